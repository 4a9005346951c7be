package app

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizplay-service/internal/domain"
)

// PlayService contains the quiz-play use cases: joining a session,
// answering, using boosters and watching the live leaderboard.
type PlayService struct {
	quizzes     QuizRepository
	gateway     PersistenceGateway
	leaderboard *LeaderboardSync
	now         func() time.Time
	tick        time.Duration

	// rng seeds a fresh source per join; math/rand.Rand is not goroutine
	// safe, so it is only touched under rngMu and never handed to sessions.
	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*PlaySession
}

// NewPlayService wires the service with a time-seeded randomness source.
func NewPlayService(quizzes QuizRepository, gateway PersistenceGateway) *PlayService {
	return NewPlayServiceWithRand(quizzes, gateway, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewPlayServiceWithRand accepts a seeded source so booster draws and
// option elimination are deterministic in tests.
func NewPlayServiceWithRand(quizzes QuizRepository, gateway PersistenceGateway, rng *rand.Rand) *PlayService {
	return &PlayService{
		quizzes:     quizzes,
		gateway:     gateway,
		leaderboard: NewLeaderboardSync(gateway),
		rng:         rng,
		now:         time.Now,
		tick:        time.Second,
		sessions:    make(map[string]*PlaySession),
	}
}

// JoinResult is everything a freshly joined player needs to render play.
type JoinResult struct {
	ParticipantID string
	Boosters      []domain.Booster
	Question      QuestionView
	State         domain.SessionState
	Leaderboard   domain.Leaderboard
}

// Join loads the quiz, registers the participant, rehydrates or assigns
// boosters and starts the play session at question zero. A blank
// participant ID mints a fresh one.
func (s *PlayService) Join(ctx context.Context, quizID, participantID, displayName string) (JoinResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return JoinResult{}, err
	}
	if len(quiz.Questions) == 0 {
		return JoinResult{}, domain.ErrEmptyQuestionSet
	}
	if participantID == "" {
		participantID = uuid.NewString()
	}
	rng := s.newRand()

	if err := s.gateway.RegisterParticipant(ctx, quizID, domain.Participant{
		ID:          participantID,
		DisplayName: displayName,
		JoinedAt:    s.now(),
	}); err != nil {
		return JoinResult{}, err
	}

	inventory, err := s.prepareInventory(ctx, quiz, participantID, rng)
	if err != nil {
		return JoinResult{}, err
	}

	session := newPlaySession(quizID, participantID, inventory, s.gateway, rng, s.now, s.tick)
	if err := session.Begin(quiz.Questions); err != nil {
		return JoinResult{}, err
	}

	s.mu.Lock()
	if prev, ok := s.sessions[participantID]; ok {
		prev.Stop()
	}
	s.sessions[participantID] = session
	s.mu.Unlock()

	question, err := session.CurrentQuestion()
	if err != nil {
		return JoinResult{}, err
	}
	lb, err := s.leaderboard.Snapshot(ctx, quizID)
	if err != nil {
		// joining still succeeds without the initial board
		log.Printf("leaderboard snapshot for %s: %v", quizID, err)
	}

	return JoinResult{
		ParticipantID: participantID,
		Boosters:      session.Inventory(),
		Question:      question,
		State:         session.State(),
		Leaderboard:   lb,
	}, nil
}

// newRand derives an independent randomness source for one session.
func (s *PlayService) newRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewSource(s.rng.Int63()))
}

// prepareInventory rehydrates existing boosters or draws the one-time set
// of three. Quizzes with boosters disabled get an empty inventory.
func (s *PlayService) prepareInventory(ctx context.Context, quiz domain.Quiz, participantID string, rng *rand.Rand) (*BoosterInventory, error) {
	if !quiz.BoostersAllowed() {
		return NewBoosterInventory(nil), nil
	}

	existing, err := s.gateway.ReadInventory(ctx, participantID)
	if err != nil {
		return nil, err
	}
	inventory := NewBoosterInventory(existing)
	if !inventory.Empty() {
		return inventory, nil
	}

	assigned, err := inventory.Assign(rng)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.WriteInventory(ctx, participantID, assigned); err != nil {
		// at-least-once: the next consume re-persists the snapshot
		log.Printf("persist assigned boosters for %s: %v", participantID, err)
	}
	return inventory, nil
}

// Session returns the live session for a participant.
func (s *PlayService) Session(participantID string) (*PlaySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[participantID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Submit records an answer for the participant's current question.
func (s *PlayService) Submit(participantID, answer string) (SubmitOutcome, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	return session.Submit(answer)
}

// UseBooster activates a booster for the participant's current question.
func (s *PlayService) UseBooster(participantID, boosterID string) (BoosterOutcome, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return BoosterOutcome{}, err
	}
	return session.UseBooster(boosterID)
}

// Leaderboard returns a one-off ranked snapshot for a quiz session.
func (s *PlayService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	return s.leaderboard.Snapshot(ctx, quizID)
}

// Subscribe streams leaderboard snapshots for a quiz session. The caller
// must invoke the returned cancel func to avoid leaks.
func (s *PlayService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	return s.leaderboard.Subscribe(ctx, quizID)
}

// Leave stops the participant's countdown and forgets the session. Partial
// state for the question in flight is not recoverable.
func (s *PlayService) Leave(participantID string) {
	s.mu.Lock()
	session, ok := s.sessions[participantID]
	delete(s.sessions, participantID)
	s.mu.Unlock()
	if ok {
		session.Stop()
	}
}
