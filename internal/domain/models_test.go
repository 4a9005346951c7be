package domain

import "testing"

func TestMergeAnswerAppendsNewQuestions(t *testing.T) {
	log := MergeAnswer(nil, AnswerRecord{QuestionID: "q1", Points: 1})
	log = MergeAnswer(log, AnswerRecord{QuestionID: "q2", Points: 2})
	if len(log) != 2 || log[0].QuestionID != "q1" || log[1].QuestionID != "q2" {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestMergeAnswerReplacesReplayedQuestion(t *testing.T) {
	log := []AnswerRecord{
		{QuestionID: "q1", UserAnswer: "old", Correct: true},
		{QuestionID: "q2", UserAnswer: "old", Correct: true},
		{QuestionID: "q3", UserAnswer: "old", Correct: true},
	}

	// replaying q1 after a restart replaces the record and discards the
	// tail, matching what the live session knows
	log = MergeAnswer(log, AnswerRecord{QuestionID: "q1", UserAnswer: "new"})
	if len(log) != 1 {
		t.Fatalf("expected the stale tail dropped, got %+v", log)
	}
	if log[0].UserAnswer != "new" || log[0].Correct {
		t.Fatalf("expected the replayed record, got %+v", log[0])
	}
}
