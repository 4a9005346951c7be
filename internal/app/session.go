package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"quizplay-service/internal/domain"
)

type sessionPhase int

const (
	phaseLoading sessionPhase = iota
	phaseInProgress
	phaseCompleted
)

// QuestionView is what a player may see of the current question: the
// correct answer is withheld and eliminated options are filtered out.
type QuestionView struct {
	Index        int                 `json:"index"`
	Total        int                 `json:"total"`
	QuestionID   string              `json:"questionId"`
	Kind         domain.QuestionKind `json:"kind"`
	Prompt       string              `json:"prompt"`
	Options      []string            `json:"options,omitempty"`
	Difficulty   domain.Difficulty   `json:"difficulty"`
	Points       int                 `json:"points"`
	TimeLimitSec int                 `json:"timeLimitSec"`
}

// SubmitOutcome reports one finished question. PersistWarning carries a
// non-fatal store failure; in-memory progression already happened.
type SubmitOutcome struct {
	Record         domain.AnswerRecord
	Score          int
	Streak         int
	Completed      bool
	TimerExpired   bool
	NextQuestion   *QuestionView
	PersistWarning error
}

// BoosterOutcome reports a successful booster activation.
type BoosterOutcome struct {
	Booster         domain.Booster
	HiddenOptions   []string
	TimerFrozen     bool
	StreakProtected bool
	ActiveBooster   domain.BoosterKind
	Inventory       []domain.Booster
	PersistWarning  error
}

// PlaySession drives one participant through an ordered question list:
// countdown, booster effects, scoring, the append-only answer log and the
// mirrored store writes. A single mutex serializes the two event sources
// that can finish a question (user submission and timer expiry); a second
// lock hands store writes off in submission order without gating the next
// question on I/O.
type PlaySession struct {
	participantID string
	quizID        string
	gateway       PersistenceGateway
	rng           *rand.Rand
	now           func() time.Time
	timer         *QuestionTimer

	mu                sync.Mutex
	phase             sessionPhase
	questions         []domain.Question
	idx               int
	score             int
	streak            int
	totalTimeSpentSec int
	completedAt       time.Time
	answers           []domain.AnswerRecord
	inventory         *BoosterInventory
	questionStartedAt time.Time

	// per-question transient state, cleared on every transition
	activeBooster   domain.BoosterKind
	streakProtected bool
	hidden          map[string]struct{}

	writeMu sync.Mutex
	events  chan SubmitOutcome
}

// NewPlaySession builds a session in the Loading phase. Call Begin to
// start play.
func NewPlaySession(quizID, participantID string, inventory *BoosterInventory, gateway PersistenceGateway, rng *rand.Rand) *PlaySession {
	return newPlaySession(quizID, participantID, inventory, gateway, rng, time.Now, time.Second)
}

// newPlaySession lets tests inject a clock and a faster timer tick.
func newPlaySession(quizID, participantID string, inventory *BoosterInventory, gateway PersistenceGateway, rng *rand.Rand, now func() time.Time, tick time.Duration) *PlaySession {
	if inventory == nil {
		inventory = NewBoosterInventory(nil)
	}
	return &PlaySession{
		participantID: participantID,
		quizID:        quizID,
		gateway:       gateway,
		rng:           rng,
		now:           now,
		timer:         newQuestionTimer(tick),
		inventory:     inventory,
		hidden:        make(map[string]struct{}),
	}
}

// Begin accepts the finalized question list and starts the first countdown.
func (s *PlaySession) Begin(questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != phaseLoading {
		return domain.ErrInvalidState
	}
	if len(questions) == 0 {
		return domain.ErrEmptyQuestionSet
	}

	s.questions = make([]domain.Question, len(questions))
	for i, q := range questions {
		s.questions[i] = q.Normalized()
	}
	// one expiry outcome per question at most, so sends never block
	s.events = make(chan SubmitOutcome, len(questions))
	s.phase = phaseInProgress
	s.idx = 0
	s.startQuestionLocked()
	return nil
}

// startQuestionLocked resets transient state and arms the timer for the
// question at s.idx. The expiry closure captures the index so a tick that
// loses the race against a user submission becomes a no-op.
func (s *PlaySession) startQuestionLocked() {
	s.activeBooster = ""
	s.streakProtected = false
	s.hidden = make(map[string]struct{})
	s.questionStartedAt = s.now()

	idx := s.idx
	s.timer.Start(s.questions[idx].TimeLimitSec, func() {
		s.expire(idx)
	})
}

// expire is the timer-driven auto-submission, equivalent to an explicit
// empty answer. Outcomes surface on Events for the transport to push.
func (s *PlaySession) expire(idx int) {
	out, err := s.submit("", true, idx)
	if err != nil {
		// the user's submission won the race for this question
		return
	}
	s.events <- out
}

// Submit records the player's answer for the current question.
func (s *PlaySession) Submit(answer string) (SubmitOutcome, error) {
	return s.submit(answer, false, -1)
}

func (s *PlaySession) submit(answer string, expired bool, expectIdx int) (SubmitOutcome, error) {
	s.mu.Lock()
	if s.phase != phaseInProgress {
		s.mu.Unlock()
		return SubmitOutcome{}, domain.ErrInvalidState
	}
	if expired && s.idx != expectIdx {
		s.mu.Unlock()
		return SubmitOutcome{}, domain.ErrInvalidState
	}

	q := s.questions[s.idx]
	if expired {
		answer = ""
	}
	res := ScoreAnswer(q, answer, s.activeBooster, s.streakProtected, s.streak)

	elapsed := int(s.now().Sub(s.questionStartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	rec := domain.AnswerRecord{
		QuestionID:    q.ID,
		UserAnswer:    answer,
		CorrectAnswer: q.CorrectAnswer,
		Correct:       res.Correct,
		TimeSpentSec:  elapsed,
		Difficulty:    q.Difficulty,
		Points:        res.Points,
		BoosterUsed:   s.activeBooster,
	}

	// the clamp lives here, not in the engine: the engine is pure and
	// never sees the cumulative score
	newScore := s.score + res.Points
	if newScore < 0 {
		newScore = 0
	}
	s.score = newScore
	s.streak = res.NextStreak
	s.answers = append(s.answers, rec)
	s.totalTimeSpentSec += elapsed

	s.activeBooster = ""
	s.streakProtected = false
	s.hidden = make(map[string]struct{})

	out := SubmitOutcome{
		Record:       rec,
		Score:        s.score,
		Streak:       s.streak,
		TimerExpired: expired,
	}

	last := s.idx == len(s.questions)-1
	if last {
		s.phase = phaseCompleted
		s.completedAt = s.now()
		s.timer.Stop()
		out.Completed = true
	} else {
		s.idx++
		s.startQuestionLocked()
		view := s.questionViewLocked()
		out.NextQuestion = &view
	}
	totalTime := s.totalTimeSpentSec
	completedAt := s.completedAt

	// Acquiring writeMu before releasing mu keeps store writes in
	// submission order while the next countdown already runs.
	s.writeMu.Lock()
	s.mu.Unlock()
	defer s.writeMu.Unlock()

	ctx := context.Background()
	if err := s.gateway.AppendAnswerAndScore(ctx, s.participantID, rec, out.Score, out.Streak); err != nil {
		out.PersistWarning = fmt.Errorf("persist answer: %w", err)
		log.Printf("persist answer for %s: %v", s.participantID, err)
	}
	if last {
		if err := s.gateway.MarkCompleted(ctx, s.participantID, totalTime, completedAt); err != nil {
			if out.PersistWarning == nil {
				out.PersistWarning = fmt.Errorf("persist completion: %w", err)
			}
			log.Printf("persist completion for %s: %v", s.participantID, err)
		}
	}
	return out, nil
}

// UseBooster consumes a booster and applies its effect to the current
// question. Rejected activations mutate nothing.
func (s *PlaySession) UseBooster(boosterID string) (BoosterOutcome, error) {
	s.mu.Lock()
	if s.phase != phaseInProgress {
		s.mu.Unlock()
		return BoosterOutcome{}, domain.ErrInvalidState
	}

	b, ok := s.inventory.Find(boosterID)
	if !ok {
		s.mu.Unlock()
		return BoosterOutcome{}, domain.ErrBoosterNotFound
	}
	if b.Used {
		s.mu.Unlock()
		return BoosterOutcome{}, domain.ErrBoosterUsed
	}
	q := s.questions[s.idx]
	if !domain.BoosterEligible(b.Kind, q) {
		s.mu.Unlock()
		return BoosterOutcome{}, domain.ErrBoosterIneligible
	}
	if isMultiplier(b.Kind) && s.activeBooster != "" {
		// at most one multiplier per question; stacking is rejected
		s.mu.Unlock()
		return BoosterOutcome{}, domain.ErrBoosterIneligible
	}

	consumed, err := s.inventory.Consume(boosterID)
	if err != nil {
		s.mu.Unlock()
		return BoosterOutcome{}, err
	}

	switch consumed.Kind {
	case domain.BoosterTimeFreeze:
		s.timer.Freeze()
	case domain.BoosterStreakFreeze:
		s.streakProtected = true
	case domain.BoosterEraser:
		s.hideWrongOptionsLocked(q, 1)
	case domain.BoosterVaccine:
		s.hideWrongOptionsLocked(q, 2)
	case domain.BoosterDoublePoints, domain.BoosterDoubleJeopardy:
		s.activeBooster = consumed.Kind
	}

	out := BoosterOutcome{
		Booster:         consumed,
		HiddenOptions:   s.hiddenOptionsLocked(q),
		TimerFrozen:     s.timer.Frozen(),
		StreakProtected: s.streakProtected,
		ActiveBooster:   s.activeBooster,
		Inventory:       s.inventory.Snapshot(),
	}

	s.writeMu.Lock()
	s.mu.Unlock()
	defer s.writeMu.Unlock()

	if err := s.gateway.WriteInventory(context.Background(), s.participantID, out.Inventory); err != nil {
		out.PersistWarning = fmt.Errorf("persist inventory: %w", err)
		log.Printf("persist inventory for %s: %v", s.participantID, err)
	}
	return out, nil
}

func isMultiplier(kind domain.BoosterKind) bool {
	info, ok := domain.LookupBooster(kind)
	return ok && info.Effect == domain.EffectScoreMultiplier
}

// hideWrongOptionsLocked eliminates up to n randomly chosen visible wrong
// options. The correct option is never hidden, and the last visible option
// survives even on malformed content where no option matches the answer.
func (s *PlaySession) hideWrongOptionsLocked(q domain.Question, n int) {
	correct := domain.NormalizeAnswer(q.CorrectAnswer)
	correctVisible := false
	var candidates []string
	for _, opt := range q.Options {
		if _, gone := s.hidden[opt]; gone {
			continue
		}
		if domain.NormalizeAnswer(opt) == correct {
			correctVisible = true
			continue
		}
		candidates = append(candidates, opt)
	}

	max := len(candidates)
	if !correctVisible && max > 0 {
		max--
	}
	if n > max {
		n = max
	}
	for _, i := range s.rng.Perm(len(candidates))[:n] {
		s.hidden[candidates[i]] = struct{}{}
	}
}

func (s *PlaySession) hiddenOptionsLocked(q domain.Question) []string {
	var hidden []string
	for _, opt := range q.Options {
		if _, gone := s.hidden[opt]; gone {
			hidden = append(hidden, opt)
		}
	}
	return hidden
}

func (s *PlaySession) questionViewLocked() QuestionView {
	q := s.questions[s.idx]
	view := QuestionView{
		Index:        s.idx,
		Total:        len(s.questions),
		QuestionID:   q.ID,
		Kind:         q.Kind,
		Prompt:       q.Prompt,
		Difficulty:   q.Difficulty,
		Points:       q.Points,
		TimeLimitSec: q.TimeLimitSec,
	}
	for _, opt := range q.Options {
		if _, gone := s.hidden[opt]; !gone {
			view.Options = append(view.Options, opt)
		}
	}
	return view
}

// CurrentQuestion returns the player view of the question in progress.
func (s *PlaySession) CurrentQuestion() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseInProgress {
		return QuestionView{}, domain.ErrInvalidState
	}
	return s.questionViewLocked(), nil
}

// State returns the session snapshot mirrored to the store.
func (s *PlaySession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionState{
		QuestionIndex:     s.idx,
		QuestionCount:     len(s.questions),
		Score:             s.score,
		Streak:            s.streak,
		Completed:         s.phase == phaseCompleted,
		TotalTimeSpentSec: s.totalTimeSpentSec,
		CompletedAt:       s.completedAt,
	}
}

// Inventory returns a copy of the participant's boosters.
func (s *PlaySession) Inventory() []domain.Booster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory.Snapshot()
}

// Answers returns a copy of the append-only answer log.
func (s *PlaySession) Answers() []domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnswerRecord, len(s.answers))
	copy(out, s.answers)
	return out
}

// Remaining returns the seconds left on the current countdown.
func (s *PlaySession) Remaining() int {
	return s.timer.Remaining()
}

// Events delivers timer-driven auto-submissions to the transport.
func (s *PlaySession) Events() <-chan SubmitOutcome {
	return s.events
}

// Stop cancels the countdown when the participant navigates away. Partial
// timing for the question in flight is lost; that boundary is accepted.
func (s *PlaySession) Stop() {
	s.timer.Stop()
}
