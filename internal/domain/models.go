package domain

import (
	"strings"
	"time"
)

// QuestionKind distinguishes how a question is answered.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionOpenEnded      QuestionKind = "open_ended"
)

// Difficulty drives the point value of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// PointsForDifficulty returns the precomputed point value for a difficulty.
func PointsForDifficulty(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// DefaultTimeLimitSec applies when content rows carry no time limit.
const DefaultTimeLimitSec = 30

// Question is immutable once play starts. Options are only set for
// multiple-choice questions; the correct answer is compared
// case- and whitespace-insensitively.
type Question struct {
	ID            string       `json:"id"`
	Kind          QuestionKind `json:"kind"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
	Difficulty    Difficulty   `json:"difficulty"`
	Points        int          `json:"points"`
	TimeLimitSec  int          `json:"timeLimitSec"`
}

// Normalized fills the defaults sparse content rows leave blank: medium
// difficulty, difficulty-derived points and a 30 second limit.
func (q Question) Normalized() Question {
	if q.Kind == "" {
		q.Kind = QuestionOpenEnded
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if q.Points == 0 {
		q.Points = PointsForDifficulty(q.Difficulty)
	}
	if q.TimeLimitSec <= 0 {
		q.TimeLimitSec = DefaultTimeLimitSec
	}
	return q
}

// NormalizeAnswer trims and case-folds an answer for comparison.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Quiz is an ordered collection of questions. BoostersEnabled is a
// tri-state so content stores that never mention the flag keep boosters on.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title,omitempty"`
	Questions       []Question `json:"questions"`
	BoostersEnabled *bool      `json:"boostersEnabled,omitempty"`
}

// BoostersAllowed reports whether participants of this quiz receive boosters.
func (q Quiz) BoostersAllowed() bool {
	return q.BoostersEnabled == nil || *q.BoostersEnabled
}

// Booster is a one-shot consumable. Used is irreversible once set.
type Booster struct {
	ID   string      `json:"id"`
	Kind BoosterKind `json:"kind"`
	Used bool        `json:"used"`
}

// AnswerRecord is an append-only log entry, created exactly once per
// question per participant. Points may be negative (double jeopardy loss).
type AnswerRecord struct {
	QuestionID    string      `json:"questionId"`
	UserAnswer    string      `json:"userAnswer"`
	CorrectAnswer string      `json:"correctAnswer"`
	Correct       bool        `json:"isCorrect"`
	TimeSpentSec  int         `json:"timeSpentSec"`
	Difficulty    Difficulty  `json:"difficulty"`
	Points        int         `json:"points"`
	BoosterUsed   BoosterKind `json:"boosterUsed,omitempty"`
}

// MergeAnswer appends rec to the log, or, when the question was already
// answered in an earlier run, replaces that record and discards the stale
// tail. Play always restarts from the first question after a rejoin, so
// the persisted log keeps exactly one record per question and mirrors the
// live session.
func MergeAnswer(log []AnswerRecord, rec AnswerRecord) []AnswerRecord {
	for i := range log {
		if log[i].QuestionID == rec.QuestionID {
			return append(log[:i], rec)
		}
	}
	return append(log, rec)
}

// SessionState is the play-session snapshot mirrored to the store after
// every question. Score never goes below zero.
type SessionState struct {
	QuestionIndex     int       `json:"questionIndex"`
	QuestionCount     int       `json:"questionCount"`
	Score             int       `json:"score"`
	Streak            int       `json:"streak"`
	Completed         bool      `json:"completed"`
	TotalTimeSpentSec int       `json:"totalTimeSpentSec"`
	CompletedAt       time.Time `json:"completedAt,omitempty"`
}

// Participant is the durable per-player record kept by the persistence
// gateway. JoinedAt breaks leaderboard ties in favor of earlier joiners.
type Participant struct {
	ID                string         `json:"id"`
	DisplayName       string         `json:"displayName"`
	Score             int            `json:"score"`
	Streak            int            `json:"streak"`
	Completed         bool           `json:"completed"`
	JoinedAt          time.Time      `json:"joinedAt"`
	TotalTimeSpentSec int            `json:"totalTimeSpentSec,omitempty"`
	CompletedAt       time.Time      `json:"completedAt,omitempty"`
	Answers           []AnswerRecord `json:"answers,omitempty"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Completed     bool   `json:"completed"`
}

// Leaderboard captures the ordered scoreboard for a quiz session.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
