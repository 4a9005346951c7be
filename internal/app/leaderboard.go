package app

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"quizplay-service/internal/domain"
)

// leaderboardSize caps the ranked projection at the conventional top ten.
const leaderboardSize = 10

// LeaderboardSync re-derives a ranked snapshot from the store whenever any
// participant of a quiz session changes. It never writes, and tolerates
// duplicated or out-of-order notifications by re-reading instead of
// patching.
type LeaderboardSync struct {
	gateway PersistenceGateway
	size    int
	now     func() time.Time
}

// NewLeaderboardSync builds a top-10 projector over the gateway.
func NewLeaderboardSync(gateway PersistenceGateway) *LeaderboardSync {
	return &LeaderboardSync{gateway: gateway, size: leaderboardSize, now: time.Now}
}

// Snapshot ranks every participant of the quiz session: score descending,
// ties broken by earliest join, then name.
func (l *LeaderboardSync) Snapshot(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	participants, err := l.gateway.ListParticipants(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		if !participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].JoinedAt.Before(participants[j].JoinedAt)
		}
		return participants[i].DisplayName < participants[j].DisplayName
	})
	if len(participants) > l.size {
		participants = participants[:l.size]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			Completed:     p.Completed,
		})
	}
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: l.now()}, nil
}

// Subscribe emits an initial snapshot and then a fresh one per change
// notification. The caller must invoke the returned cancel func.
func (l *LeaderboardSync) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := l.Snapshot(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}

	feed := &leaderboardFeed{ch: make(chan domain.Leaderboard, 8)}
	feed.send(initial)

	unsubscribe, err := l.gateway.Subscribe(ctx, quizID, func() {
		lb, err := l.Snapshot(context.Background(), quizID)
		if err != nil {
			log.Printf("leaderboard refresh for %s: %v", quizID, err)
			return
		}
		feed.send(lb)
	})
	if err != nil {
		feed.close()
		return nil, nil, err
	}

	cancel := func() {
		unsubscribe()
		feed.close()
	}
	return feed.ch, cancel, nil
}

// leaderboardFeed guards the update channel so late notifications cannot
// send on a closed channel.
type leaderboardFeed struct {
	mu     sync.Mutex
	ch     chan domain.Leaderboard
	closed bool
}

func (f *leaderboardFeed) send(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- lb:
	default:
		// drop the stale snapshot so slow consumers never block refreshes
		select {
		case <-f.ch:
		default:
		}
		f.ch <- lb
	}
}

func (f *leaderboardFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
