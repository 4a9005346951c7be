package app

import (
	"math/rand"

	"github.com/google/uuid"

	"quizplay-service/internal/domain"
)

// boostersPerParticipant is the draw size at session start.
const boostersPerParticipant = 3

// BoosterInventory holds a participant's boosters for one session. It is
// not goroutine safe; PlaySession serializes access under its own lock.
type BoosterInventory struct {
	boosters []domain.Booster
}

// NewBoosterInventory wraps an existing (possibly empty) booster set, so a
// participant who reloads mid-session rehydrates instead of redrawing.
func NewBoosterInventory(existing []domain.Booster) *BoosterInventory {
	inv := &BoosterInventory{}
	inv.boosters = append(inv.boosters, existing...)
	return inv
}

// Empty reports whether no boosters were ever assigned.
func (inv *BoosterInventory) Empty() bool {
	return len(inv.boosters) == 0
}

// Assign draws three distinct kinds uniformly without replacement from the
// catalog. It fails with ErrBoostersAssigned when the inventory is already
// populated; callers check Empty first and skip assignment on rejoin.
func (inv *BoosterInventory) Assign(rng *rand.Rand) ([]domain.Booster, error) {
	if !inv.Empty() {
		return nil, domain.ErrBoostersAssigned
	}
	kinds := domain.BoosterKinds()
	rng.Shuffle(len(kinds), func(i, j int) {
		kinds[i], kinds[j] = kinds[j], kinds[i]
	})
	for _, kind := range kinds[:boostersPerParticipant] {
		inv.boosters = append(inv.boosters, domain.Booster{
			ID:   uuid.NewString(),
			Kind: kind,
		})
	}
	return inv.Snapshot(), nil
}

// Find looks up a booster by ID without mutating it.
func (inv *BoosterInventory) Find(boosterID string) (domain.Booster, bool) {
	for _, b := range inv.boosters {
		if b.ID == boosterID {
			return b, true
		}
	}
	return domain.Booster{}, false
}

// Consume marks the named booster used. The used flag is irreversible.
func (inv *BoosterInventory) Consume(boosterID string) (domain.Booster, error) {
	for i := range inv.boosters {
		if inv.boosters[i].ID != boosterID {
			continue
		}
		if inv.boosters[i].Used {
			return domain.Booster{}, domain.ErrBoosterUsed
		}
		inv.boosters[i].Used = true
		return inv.boosters[i], nil
	}
	return domain.Booster{}, domain.ErrBoosterNotFound
}

// Snapshot returns a copy safe to persist or hand to transports.
func (inv *BoosterInventory) Snapshot() []domain.Booster {
	out := make([]domain.Booster, len(inv.boosters))
	copy(out, inv.boosters)
	return out
}
