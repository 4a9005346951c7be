package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuestionSet aborts session start when a quiz has no questions.
	ErrEmptyQuestionSet = errors.New("quiz has no questions")
	// ErrSessionNotFound is returned when no play session exists for a participant.
	ErrSessionNotFound = errors.New("play session not found")
	// ErrParticipantNotFound is returned when a participant record is missing from the store.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
	// ErrInvalidState rejects submissions or booster use outside an in-progress question.
	ErrInvalidState = errors.New("session is not accepting input")
	// ErrBoostersAssigned is returned when an inventory already holds boosters.
	ErrBoostersAssigned = errors.New("boosters already assigned")
	// ErrBoosterNotFound indicates a booster ID that does not belong to the inventory.
	ErrBoosterNotFound = errors.New("booster not found")
	// ErrBoosterUsed rejects reuse of a consumed booster.
	ErrBoosterUsed = errors.New("booster already used")
	// ErrBoosterIneligible rejects a booster the current question does not allow.
	ErrBoosterIneligible = errors.New("booster not eligible for this question")
)
