package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"quizplay-service/internal/domain"
	"quizplay-service/internal/infra/memory"
)

func testQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q1",
			Kind:          domain.QuestionMultipleChoice,
			Prompt:        "Pick B",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "B",
			Difficulty:    domain.DifficultyMedium,
			TimeLimitSec:  30,
		},
		{
			ID:            "q2",
			Kind:          domain.QuestionMultipleChoice,
			Prompt:        "What is 2 + 2?",
			Options:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
			Difficulty:    domain.DifficultyEasy,
			TimeLimitSec:  20,
		},
		{
			ID:            "q3",
			Kind:          domain.QuestionOpenEnded,
			Prompt:        "Capital of Australia?",
			CorrectAnswer: "Canberra",
			Difficulty:    domain.DifficultyHard,
			TimeLimitSec:  45,
		},
	}
}

func newSessionForTest(t *testing.T, boosters []domain.Booster, questions []domain.Question) (*PlaySession, *memory.Gateway) {
	t.Helper()
	gateway := memory.NewGateway()
	if err := gateway.RegisterParticipant(context.Background(), "quiz-1", domain.Participant{ID: "p1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	session := newPlaySession("quiz-1", "p1", NewBoosterInventory(boosters), gateway, rand.New(rand.NewSource(1)), time.Now, time.Hour)
	if err := session.Begin(questions); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return session, gateway
}

func TestBeginRejectsEmptyQuestionSet(t *testing.T) {
	session := newPlaySession("quiz-1", "p1", nil, memory.NewGateway(), rand.New(rand.NewSource(1)), time.Now, time.Hour)
	if err := session.Begin(nil); err != domain.ErrEmptyQuestionSet {
		t.Fatalf("expected ErrEmptyQuestionSet, got %v", err)
	}
}

func TestPlayThroughKeepsRecordsInOrder(t *testing.T) {
	session, gateway := newSessionForTest(t, nil, testQuestions())

	out, err := session.Submit("B")
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if !out.Record.Correct || out.Score != 2 || out.Streak != 1 {
		t.Fatalf("unexpected first outcome: %+v", out)
	}
	if out.NextQuestion == nil || out.NextQuestion.Index != 1 || out.NextQuestion.QuestionID != "q2" {
		t.Fatalf("expected q2 next, got %+v", out.NextQuestion)
	}

	out, err = session.Submit("5") // wrong
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if out.Record.Correct || out.Score != 2 || out.Streak != 0 {
		t.Fatalf("unexpected second outcome: %+v", out)
	}

	out, err = session.Submit("  CANBERRA ")
	if err != nil {
		t.Fatalf("submit 3: %v", err)
	}
	if !out.Record.Correct || !out.Completed || out.Score != 5 || out.Streak != 1 {
		t.Fatalf("unexpected final outcome: %+v", out)
	}

	answers := session.Answers()
	if len(answers) != 3 {
		t.Fatalf("expected 3 records, got %d", len(answers))
	}
	for i, wantID := range []string{"q1", "q2", "q3"} {
		if answers[i].QuestionID != wantID {
			t.Fatalf("record %d is %s, want %s", i, answers[i].QuestionID, wantID)
		}
	}

	state := session.State()
	if !state.Completed || state.Score != 5 || state.CompletedAt.IsZero() {
		t.Fatalf("unexpected terminal state: %+v", state)
	}

	participants, err := gateway.ListParticipants(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(participants))
	}
	mirrored := participants[0]
	if mirrored.Score != 5 || !mirrored.Completed || len(mirrored.Answers) != 3 {
		t.Fatalf("store out of sync: %+v", mirrored)
	}

	if _, err := session.Submit("late"); err != domain.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState after completion, got %v", err)
	}
}

func TestDoublePointsDoublesAWin(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterDoublePoints}}
	session, _ := newSessionForTest(t, boosters, testQuestions())

	if _, err := session.UseBooster("b1"); err != nil {
		t.Fatalf("use booster: %v", err)
	}
	out, err := session.Submit("B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Record.Correct || out.Record.Points != 4 || out.Score != 4 || out.Streak != 1 {
		t.Fatalf("expected doubled 2-point win, got %+v", out)
	}
	if out.Record.BoosterUsed != domain.BoosterDoublePoints {
		t.Fatalf("record should name the active booster, got %q", out.Record.BoosterUsed)
	}
}

func TestDoubleJeopardyLossClampsAtZero(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterDoubleJeopardy}}
	questions := testQuestions()
	// earn 1 point first, then lose 2 on the jeopardy question
	questions[0], questions[1] = questions[1], questions[0]
	session, _ := newSessionForTest(t, boosters, questions)

	if _, err := session.Submit("4"); err != nil {
		t.Fatalf("submit warmup: %v", err)
	}
	if session.State().Score != 1 {
		t.Fatalf("expected score 1, got %d", session.State().Score)
	}

	if _, err := session.UseBooster("b1"); err != nil {
		t.Fatalf("use booster: %v", err)
	}
	out, err := session.Submit("A")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Record.Points != -2 {
		t.Fatalf("expected -2 point record, got %d", out.Record.Points)
	}
	if out.Score != 0 {
		t.Fatalf("score must clamp at 0, got %d", out.Score)
	}
}

func TestStreakProtectionLastsOneQuestion(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterStreakFreeze}}
	session, _ := newSessionForTest(t, boosters, testQuestions())

	if _, err := session.Submit("B"); err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	use, err := session.UseBooster("b1")
	if err != nil {
		t.Fatalf("use booster: %v", err)
	}
	if !use.StreakProtected {
		t.Fatalf("expected protection armed")
	}

	out, err := session.Submit("3") // wrong, protected
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if out.Streak != 1 {
		t.Fatalf("protected streak should stay at 1, got %d", out.Streak)
	}

	out, err = session.Submit("wrong") // wrong, protection expired
	if err != nil {
		t.Fatalf("submit 3: %v", err)
	}
	if out.Streak != 0 {
		t.Fatalf("unprotected streak should reset, got %d", out.Streak)
	}
}

func TestSecondMultiplierIsIneligible(t *testing.T) {
	boosters := []domain.Booster{
		{ID: "b1", Kind: domain.BoosterDoublePoints},
		{ID: "b2", Kind: domain.BoosterDoubleJeopardy},
	}
	session, _ := newSessionForTest(t, boosters, testQuestions())

	if _, err := session.UseBooster("b1"); err != nil {
		t.Fatalf("use booster: %v", err)
	}
	if _, err := session.UseBooster("b2"); err != domain.ErrBoosterIneligible {
		t.Fatalf("expected ErrBoosterIneligible, got %v", err)
	}
	// the rejected booster is not consumed
	for _, b := range session.Inventory() {
		if b.ID == "b2" && b.Used {
			t.Fatalf("rejected booster must stay unused")
		}
	}
}

func TestUsedBoosterRejectedWithoutSideEffects(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterEraser}}
	session, _ := newSessionForTest(t, boosters, testQuestions())

	first, err := session.UseBooster("b1")
	if err != nil {
		t.Fatalf("use booster: %v", err)
	}
	if len(first.HiddenOptions) != 1 {
		t.Fatalf("eraser should hide exactly one option, got %v", first.HiddenOptions)
	}
	score := session.State().Score

	if _, err := session.UseBooster("b1"); err != domain.ErrBoosterUsed {
		t.Fatalf("expected ErrBoosterUsed, got %v", err)
	}
	view, err := session.CurrentQuestion()
	if err != nil {
		t.Fatalf("current question: %v", err)
	}
	if len(view.Options) != 3 {
		t.Fatalf("retry must not hide more options, visible=%v", view.Options)
	}
	if session.State().Score != score {
		t.Fatalf("retry must not change the score")
	}
}

func TestEliminationNeverHidesCorrectOption(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		gateway := memory.NewGateway()
		_ = gateway.RegisterParticipant(context.Background(), "quiz-1", domain.Participant{ID: "p1"})
		boosters := []domain.Booster{
			{ID: "b1", Kind: domain.BoosterEraser},
			{ID: "b2", Kind: domain.BoosterVaccine},
		}
		session := newPlaySession("quiz-1", "p1", NewBoosterInventory(boosters), gateway, rand.New(rand.NewSource(seed)), time.Now, time.Hour)
		if err := session.Begin(testQuestions()); err != nil {
			t.Fatalf("begin: %v", err)
		}

		if _, err := session.UseBooster("b1"); err != nil {
			t.Fatalf("eraser: %v", err)
		}
		out, err := session.UseBooster("b2")
		if err != nil {
			t.Fatalf("vaccine: %v", err)
		}
		for _, hidden := range out.HiddenOptions {
			if hidden == "B" {
				t.Fatalf("seed %d hid the correct option", seed)
			}
		}

		view, err := session.CurrentQuestion()
		if err != nil {
			t.Fatalf("current question: %v", err)
		}
		// 3 wrong options, eraser hides 1, vaccine hides 2: only B survives
		if len(view.Options) != 1 || view.Options[0] != "B" {
			t.Fatalf("seed %d: expected only the correct option visible, got %v", seed, view.Options)
		}
	}
}

func TestEliminationRequiresMultipleChoice(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterVaccine}}
	questions := testQuestions()
	questions[0], questions[2] = questions[2], questions[0] // open-ended first
	session, _ := newSessionForTest(t, boosters, questions)

	if _, err := session.UseBooster("b1"); err != domain.ErrBoosterIneligible {
		t.Fatalf("expected ErrBoosterIneligible, got %v", err)
	}
}

func TestHiddenOptionsClearOnAdvance(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterEraser}}
	session, _ := newSessionForTest(t, boosters, testQuestions())

	if _, err := session.UseBooster("b1"); err != nil {
		t.Fatalf("use booster: %v", err)
	}
	out, err := session.Submit("B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(out.NextQuestion.Options) != 3 {
		t.Fatalf("next question should show all options, got %v", out.NextQuestion.Options)
	}
}

func TestTimeFreezeThenAdvanceStartsFullLimit(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterTimeFreeze}}
	session, _ := newSessionForTest(t, boosters, testQuestions())

	use, err := session.UseBooster("b1")
	if err != nil {
		t.Fatalf("use booster: %v", err)
	}
	if !use.TimerFrozen {
		t.Fatalf("expected frozen timer")
	}

	out, err := session.Submit("B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.NextQuestion.TimeLimitSec != 20 {
		t.Fatalf("unexpected next limit %d", out.NextQuestion.TimeLimitSec)
	}
	// the frozen remainder is discarded, not carried over
	if got := session.Remaining(); got != 20 {
		t.Fatalf("expected a fresh 20 second countdown, got %d", got)
	}
}

func TestInventoryPersistedOnConsume(t *testing.T) {
	boosters := []domain.Booster{{ID: "b1", Kind: domain.BoosterStreakFreeze}}
	session, gateway := newSessionForTest(t, boosters, testQuestions())

	if _, err := session.UseBooster("b1"); err != nil {
		t.Fatalf("use booster: %v", err)
	}
	stored, err := gateway.ReadInventory(context.Background(), "p1")
	if err != nil {
		t.Fatalf("read inventory: %v", err)
	}
	if len(stored) != 1 || !stored[0].Used {
		t.Fatalf("expected used snapshot in store, got %+v", stored)
	}
}

func TestTimerExpiryAutoSubmitsEmptyAnswer(t *testing.T) {
	gateway := memory.NewGateway()
	_ = gateway.RegisterParticipant(context.Background(), "quiz-1", domain.Participant{ID: "p1"})
	questions := testQuestions()
	questions[0].TimeLimitSec = 1
	session := newPlaySession("quiz-1", "p1", nil, gateway, rand.New(rand.NewSource(1)), time.Now, 2*time.Millisecond)
	if err := session.Begin(questions); err != nil {
		t.Fatalf("begin: %v", err)
	}

	var out SubmitOutcome
	select {
	case out = <-session.Events():
	case <-time.After(time.Second):
		t.Fatalf("expiry never auto-submitted")
	}
	if !out.TimerExpired {
		t.Fatalf("expected a timer-expired outcome")
	}
	if out.Record.UserAnswer != "" || out.Record.Correct {
		t.Fatalf("expiry must record an empty incorrect answer: %+v", out.Record)
	}
	if out.NextQuestion == nil || out.NextQuestion.Index != 1 {
		t.Fatalf("expiry should advance to the next question: %+v", out.NextQuestion)
	}
}

func TestUserSubmissionBeatsLateExpiry(t *testing.T) {
	gateway := memory.NewGateway()
	_ = gateway.RegisterParticipant(context.Background(), "quiz-1", domain.Participant{ID: "p1"})
	session := newPlaySession("quiz-1", "p1", nil, gateway, rand.New(rand.NewSource(1)), time.Now, time.Hour)
	if err := session.Begin(testQuestions()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err := session.Submit("B"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// an expiry for the already-answered question must be a no-op
	session.expire(0)
	select {
	case out := <-session.Events():
		t.Fatalf("stale expiry produced an outcome: %+v", out)
	default:
	}
	if session.State().QuestionIndex != 1 {
		t.Fatalf("stale expiry moved the index")
	}
}

type failingGateway struct {
	*memory.Gateway
}

func (f *failingGateway) AppendAnswerAndScore(context.Context, string, domain.AnswerRecord, int, int) error {
	return errors.New("store down")
}

func TestPersistenceFailureIsNonFatal(t *testing.T) {
	gateway := &failingGateway{Gateway: memory.NewGateway()}
	session := newPlaySession("quiz-1", "p1", nil, gateway, rand.New(rand.NewSource(1)), time.Now, time.Hour)
	if err := session.Begin(testQuestions()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	out, err := session.Submit("B")
	if err != nil {
		t.Fatalf("submit must not fail on a store error, got %v", err)
	}
	if out.PersistWarning == nil {
		t.Fatalf("expected a persistence warning")
	}
	if session.State().QuestionIndex != 1 || session.State().Score != 2 {
		t.Fatalf("in-memory progression must continue: %+v", session.State())
	}
}
