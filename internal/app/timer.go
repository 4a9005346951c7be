package app

import (
	"sync"
	"time"
)

type timerState int

const (
	timerIdle timerState = iota
	timerRunning
	timerFrozen
	timerExpired
	timerStopped
)

// QuestionTimer runs a one-second-granularity countdown for the current
// question. Reaching zero while running fires the expiry callback exactly
// once. A freeze lasts until Stop or the next Start; frozen timers never
// resume on their own within the same question.
type QuestionTimer struct {
	interval time.Duration

	mu         sync.Mutex
	state      timerState
	remaining  int
	generation int
	onExpire   func()
}

// NewQuestionTimer builds an idle timer ticking at one-second granularity.
func NewQuestionTimer() *QuestionTimer {
	return newQuestionTimer(time.Second)
}

// newQuestionTimer allows a shorter tick interval in tests.
func newQuestionTimer(interval time.Duration) *QuestionTimer {
	return &QuestionTimer{interval: interval, state: timerIdle}
}

// Start begins a fresh countdown from the question's full limit, replacing
// whatever the timer was doing before. onExpire runs on the timer
// goroutine without any timer lock held.
func (t *QuestionTimer) Start(limitSec int, onExpire func()) {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.state = timerRunning
	t.remaining = limitSec
	t.onExpire = onExpire
	t.mu.Unlock()

	go t.run(gen)
}

func (t *QuestionTimer) run(gen int) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		if t.generation != gen || t.state == timerStopped || t.state == timerExpired {
			t.mu.Unlock()
			return
		}
		if t.state == timerFrozen {
			// remaining is preserved exactly; ticks pass without counting.
			t.mu.Unlock()
			continue
		}
		t.remaining--
		if t.remaining > 0 {
			t.mu.Unlock()
			continue
		}
		t.remaining = 0
		t.state = timerExpired
		expire := t.onExpire
		t.mu.Unlock()
		if expire != nil {
			expire()
		}
		return
	}
}

// Freeze halts a running countdown. No-op in any other state.
func (t *QuestionTimer) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == timerRunning {
		t.state = timerFrozen
	}
}

// Stop cancels the countdown from any state.
func (t *QuestionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = timerStopped
	t.generation++
}

// Remaining returns the seconds left on the countdown.
func (t *QuestionTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Frozen reports whether the countdown is currently halted by a freeze.
func (t *QuestionTimer) Frozen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerFrozen
}
