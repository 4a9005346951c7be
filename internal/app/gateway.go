package app

import (
	"context"
	"time"

	"quizplay-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store). The
// question list is read-only once returned.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// PersistenceGateway is the durable store for participant score/state and
// the source of change notifications. Writes are last-write-wins; the play
// engine treats failures as non-fatal and keeps its in-memory state
// authoritative.
type PersistenceGateway interface {
	// RegisterParticipant creates the participant record under a quiz
	// session, or refreshes the display name if it already exists.
	RegisterParticipant(ctx context.Context, quizID string, p domain.Participant) error

	// ReadInventory returns the participant's boosters, or an empty slice
	// when none were ever assigned.
	ReadInventory(ctx context.Context, participantID string) ([]domain.Booster, error)

	// WriteInventory replaces the stored booster snapshot. At-least-once;
	// duplicate writes are harmless.
	WriteInventory(ctx context.Context, participantID string, boosters []domain.Booster) error

	// AppendAnswerAndScore appends one answer log entry and mirrors the new
	// cumulative score and streak.
	AppendAnswerAndScore(ctx context.Context, participantID string, rec domain.AnswerRecord, newScore, newStreak int) error

	// MarkCompleted records the terminal completion state for a participant.
	MarkCompleted(ctx context.Context, participantID string, totalTimeSpentSec int, completedAt time.Time) error

	// ListParticipants returns every participant registered under a quiz
	// session, in no particular order.
	ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error)

	// Subscribe invokes onChange whenever any participant under the quiz
	// session changes. Notifications may be duplicated or arrive out of
	// order; subscribers re-read instead of patching. The returned func
	// unsubscribes.
	Subscribe(ctx context.Context, quizID string, onChange func()) (func(), error)
}
