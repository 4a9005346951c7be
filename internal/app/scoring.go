package app

import "quizplay-service/internal/domain"

// ScoreResult is the outcome of evaluating one submission.
type ScoreResult struct {
	Correct    bool
	Points     int
	NextStreak int
}

// ScoreAnswer evaluates a submission against a question. It is pure: the
// caller clamps the cumulative score, since the engine never sees it.
//
// An empty submission (timer expiry) is always incorrect. double_points
// doubles a correct answer's value; double_jeopardy doubles a win and
// charges the question's full value on a loss. Option-elimination and
// time/streak boosters have no payoff effect here.
func ScoreAnswer(q domain.Question, answer string, active domain.BoosterKind, streakProtected bool, streak int) ScoreResult {
	submitted := domain.NormalizeAnswer(answer)
	correct := submitted != "" && submitted == domain.NormalizeAnswer(q.CorrectAnswer)

	points := 0
	if correct {
		points = q.Points
		switch active {
		case domain.BoosterDoublePoints, domain.BoosterDoubleJeopardy:
			points *= 2
		}
	} else if active == domain.BoosterDoubleJeopardy {
		points = -q.Points
	}

	next := 0
	switch {
	case correct:
		next = streak + 1
	case streakProtected:
		// protection holds the streak for this question only
		next = streak
	}

	return ScoreResult{Correct: correct, Points: points, NextStreak: next}
}
