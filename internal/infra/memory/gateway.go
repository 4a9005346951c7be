package memory

import (
	"context"
	"sync"
	"time"

	"quizplay-service/internal/domain"
)

// Gateway is the in-memory persistence gateway: participant records,
// booster inventories and a per-session change feed. Useful for demos and
// as the reference implementation in tests.
type Gateway struct {
	mu           sync.Mutex
	now          func() time.Time
	participants map[string]*domain.Participant
	sessionOf    map[string]string
	members      map[string][]string
	inventories  map[string][]domain.Booster
	subs         map[string]map[int]func()
	nextSub      int
}

func NewGateway() *Gateway {
	return &Gateway{
		now:          time.Now,
		participants: make(map[string]*domain.Participant),
		sessionOf:    make(map[string]string),
		members:      make(map[string][]string),
		inventories:  make(map[string][]domain.Booster),
		subs:         make(map[string]map[int]func()),
	}
}

func (g *Gateway) RegisterParticipant(_ context.Context, quizID string, p domain.Participant) error {
	g.mu.Lock()
	if existing, ok := g.participants[p.ID]; ok {
		existing.DisplayName = p.DisplayName
	} else {
		record := p
		if record.JoinedAt.IsZero() {
			record.JoinedAt = g.now()
		}
		g.participants[p.ID] = &record
		g.sessionOf[p.ID] = quizID
		g.members[quizID] = append(g.members[quizID], p.ID)
	}
	g.mu.Unlock()

	g.notify(quizID)
	return nil
}

func (g *Gateway) ReadInventory(_ context.Context, participantID string) ([]domain.Booster, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Booster(nil), g.inventories[participantID]...), nil
}

func (g *Gateway) WriteInventory(_ context.Context, participantID string, boosters []domain.Booster) error {
	g.mu.Lock()
	g.inventories[participantID] = append([]domain.Booster(nil), boosters...)
	quizID := g.sessionOf[participantID]
	g.mu.Unlock()

	g.notify(quizID)
	return nil
}

func (g *Gateway) AppendAnswerAndScore(_ context.Context, participantID string, rec domain.AnswerRecord, newScore, newStreak int) error {
	g.mu.Lock()
	p, ok := g.participants[participantID]
	if !ok {
		g.mu.Unlock()
		return domain.ErrParticipantNotFound
	}
	p.Answers = domain.MergeAnswer(p.Answers, rec)
	p.Score = newScore
	p.Streak = newStreak
	quizID := g.sessionOf[participantID]
	g.mu.Unlock()

	g.notify(quizID)
	return nil
}

func (g *Gateway) MarkCompleted(_ context.Context, participantID string, totalTimeSpentSec int, completedAt time.Time) error {
	g.mu.Lock()
	p, ok := g.participants[participantID]
	if !ok {
		g.mu.Unlock()
		return domain.ErrParticipantNotFound
	}
	p.Completed = true
	p.TotalTimeSpentSec = totalTimeSpentSec
	p.CompletedAt = completedAt
	quizID := g.sessionOf[participantID]
	g.mu.Unlock()

	g.notify(quizID)
	return nil
}

func (g *Gateway) ListParticipants(_ context.Context, quizID string) ([]domain.Participant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Participant, 0, len(g.members[quizID]))
	for _, id := range g.members[quizID] {
		if p, ok := g.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (g *Gateway) Subscribe(_ context.Context, quizID string, onChange func()) (func(), error) {
	g.mu.Lock()
	if g.subs[quizID] == nil {
		g.subs[quizID] = make(map[int]func())
	}
	id := g.nextSub
	g.nextSub++
	g.subs[quizID][id] = onChange
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs[quizID], id)
		g.mu.Unlock()
	}, nil
}

// notify runs subscriber callbacks outside the gateway lock so they can
// re-read participant state.
func (g *Gateway) notify(quizID string) {
	if quizID == "" {
		return
	}
	g.mu.Lock()
	callbacks := make([]func(), 0, len(g.subs[quizID]))
	for _, cb := range g.subs[quizID] {
		callbacks = append(callbacks, cb)
	}
	g.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
