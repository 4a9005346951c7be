package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizplay-service/internal/domain"
)

// Gateway is the Redis-backed persistence gateway.
//
// Layout:
//
//	participant:{id}           JSON participant record (score, streak, answer log)
//	participant:{id}:quiz      owning quiz session
//	participant:{id}:boosters  JSON booster inventory
//	quiz:{quizID}:members      set of participant IDs
//
// Change notifications fan out over PUBLISH quiz:{quizID}:events; writes
// are last-write-wins, which matches the engine's conflict model.
type Gateway struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGateway(client *redis.Client, ttl time.Duration) *Gateway {
	return &Gateway{client: client, ttl: ttl}
}

func (g *Gateway) RegisterParticipant(ctx context.Context, quizID string, p domain.Participant) error {
	existing, err := g.readParticipant(ctx, p.ID)
	switch {
	case err == nil:
		existing.DisplayName = p.DisplayName
		p = existing
	case err == domain.ErrParticipantNotFound:
		if p.JoinedAt.IsZero() {
			p.JoinedAt = time.Now()
		}
	default:
		return err
	}

	if err := g.writeParticipant(ctx, p); err != nil {
		return err
	}
	pipe := g.client.Pipeline()
	pipe.Set(ctx, g.sessionKey(p.ID), quizID, g.ttl)
	pipe.SAdd(ctx, g.membersKey(quizID), p.ID)
	if g.ttl > 0 {
		pipe.Expire(ctx, g.membersKey(quizID), g.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register participant: %w", err)
	}
	g.publish(ctx, quizID)
	return nil
}

func (g *Gateway) ReadInventory(ctx context.Context, participantID string) ([]domain.Booster, error) {
	raw, err := g.client.Get(ctx, g.boostersKey(participantID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	var boosters []domain.Booster
	if err := json.Unmarshal(raw, &boosters); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return boosters, nil
}

func (g *Gateway) WriteInventory(ctx context.Context, participantID string, boosters []domain.Booster) error {
	data, err := json.Marshal(boosters)
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	if err := g.client.Set(ctx, g.boostersKey(participantID), data, g.ttl).Err(); err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	g.publish(ctx, g.sessionOf(ctx, participantID))
	return nil
}

func (g *Gateway) AppendAnswerAndScore(ctx context.Context, participantID string, rec domain.AnswerRecord, newScore, newStreak int) error {
	p, err := g.readParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	p.Answers = domain.MergeAnswer(p.Answers, rec)
	p.Score = newScore
	p.Streak = newStreak
	if err := g.writeParticipant(ctx, p); err != nil {
		return err
	}
	g.publish(ctx, g.sessionOf(ctx, participantID))
	return nil
}

func (g *Gateway) MarkCompleted(ctx context.Context, participantID string, totalTimeSpentSec int, completedAt time.Time) error {
	p, err := g.readParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	p.Completed = true
	p.TotalTimeSpentSec = totalTimeSpentSec
	p.CompletedAt = completedAt
	if err := g.writeParticipant(ctx, p); err != nil {
		return err
	}
	g.publish(ctx, g.sessionOf(ctx, participantID))
	return nil
}

func (g *Gateway) ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	ids, err := g.client.SMembers(ctx, g.membersKey(quizID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		p, err := g.readParticipant(ctx, id)
		if err == domain.ErrParticipantNotFound {
			// expired record still referenced by the member set
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Subscribe listens on the session's pub/sub channel and invokes onChange
// per message. The returned func closes the subscription.
func (g *Gateway) Subscribe(ctx context.Context, quizID string, onChange func()) (func(), error) {
	pubsub := g.client.Subscribe(ctx, g.eventsChannel(quizID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		for range pubsub.Channel() {
			onChange()
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}

func (g *Gateway) readParticipant(ctx context.Context, participantID string) (domain.Participant, error) {
	raw, err := g.client.Get(ctx, g.participantKey(participantID)).Bytes()
	if err == redis.Nil {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("read participant: %w", err)
	}
	var p domain.Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Participant{}, fmt.Errorf("decode participant: %w", err)
	}
	return p, nil
}

func (g *Gateway) writeParticipant(ctx context.Context, p domain.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode participant: %w", err)
	}
	if err := g.client.Set(ctx, g.participantKey(p.ID), data, g.ttl).Err(); err != nil {
		return fmt.Errorf("write participant: %w", err)
	}
	return nil
}

func (g *Gateway) sessionOf(ctx context.Context, participantID string) string {
	quizID, err := g.client.Get(ctx, g.sessionKey(participantID)).Result()
	if err != nil {
		return ""
	}
	return quizID
}

// publish is best-effort; subscribers re-read on the next notification.
func (g *Gateway) publish(ctx context.Context, quizID string) {
	if quizID == "" {
		return
	}
	_ = g.client.Publish(ctx, g.eventsChannel(quizID), "changed").Err()
}

func (g *Gateway) participantKey(id string) string { return "participant:" + id }
func (g *Gateway) sessionKey(id string) string     { return "participant:" + id + ":quiz" }
func (g *Gateway) boostersKey(id string) string    { return "participant:" + id + ":boosters" }
func (g *Gateway) membersKey(quizID string) string { return "quiz:" + quizID + ":members" }
func (g *Gateway) eventsChannel(quizID string) string {
	return "quiz:" + quizID + ":events"
}
