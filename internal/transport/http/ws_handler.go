package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizplay-service/internal/app"
	"quizplay-service/internal/domain"
)

type WSHandler struct {
	service  *app.PlayService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PlayService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type boosterPayload struct {
	BoosterID string `json:"boosterId"`
}

type joinedPayload struct {
	ParticipantID string              `json:"participantId"`
	Boosters      []domain.Booster    `json:"boosters"`
	State         domain.SessionState `json:"state"`
	Question      app.QuestionView    `json:"question"`
}

type answerResultPayload struct {
	QuestionID   string             `json:"questionId"`
	Correct      bool               `json:"correct"`
	Points       int                `json:"points"`
	TotalScore   int                `json:"totalScore"`
	Streak       int                `json:"streak"`
	TimerExpired bool               `json:"timerExpired"`
	Completed    bool               `json:"completed"`
	BoosterUsed  domain.BoosterKind `json:"boosterUsed,omitempty"`
}

type boosterResultPayload struct {
	Booster         domain.Booster     `json:"booster"`
	HiddenOptions   []string           `json:"hiddenOptions,omitempty"`
	TimerFrozen     bool               `json:"timerFrozen"`
	StreakProtected bool               `json:"streakProtected"`
	ActiveBooster   domain.BoosterKind `json:"activeBooster,omitempty"`
	Boosters        []domain.Booster   `json:"boosters"`
}

type completedPayload struct {
	Score             int `json:"score"`
	TotalTimeSpentSec int `json:"totalTimeSpentSec"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// play-session use cases. One connection drives one participant's session
// and streams leaderboard refreshes plus timer-driven auto-submissions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	participantID := r.URL.Query().Get("participantId")
	displayName := r.URL.Query().Get("name")
	if quizID == "" || displayName == "" {
		http.Error(w, "missing quizId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	joined, err := h.service.Join(r.Context(), quizID, participantID, displayName)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	participantID = joined.ParticipantID

	session, err := h.service.Session(participantID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(participantID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpsDone := make(chan struct{}, 2)

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// leaderboard refreshes
	go func() {
		defer func() { pumpsDone <- struct{}{} }()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// timer expiries auto-submit inside the session; push the outcomes
	go func() {
		defer func() { pumpsDone <- struct{}{} }()
		for {
			select {
			case outcome := <-session.Events():
				for _, msg := range outcomeMessages(outcome, session) {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		ParticipantID: joined.ParticipantID,
		Boosters:      joined.Boosters,
		State:         joined.State,
		Question:      joined.Question,
	}}
	send <- outboundMessage[any]{Type: "leaderboard", Payload: joined.Leaderboard}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			outcome, err := h.service.Submit(participantID, payload.Answer)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			for _, msg := range outcomeMessages(outcome, session) {
				send <- msg
			}
		case "booster":
			var payload boosterPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid booster payload"}}
				continue
			}
			result, err := h.service.UseBooster(participantID, payload.BoosterID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "boosterResult", Payload: boosterResultPayload{
				Booster:         result.Booster,
				HiddenOptions:   result.HiddenOptions,
				TimerFrozen:     result.TimerFrozen,
				StreakProtected: result.StreakProtected,
				ActiveBooster:   result.ActiveBooster,
				Boosters:        result.Inventory,
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-pumpsDone
	<-pumpsDone
	close(send)
	<-writerDone
}

// outcomeMessages renders a finished question as client events: the answer
// result, then either the next question or the completion summary.
func outcomeMessages(outcome app.SubmitOutcome, session *app.PlaySession) []outboundMessage[any] {
	msgs := []outboundMessage[any]{{
		Type: "answerResult",
		Payload: answerResultPayload{
			QuestionID:   outcome.Record.QuestionID,
			Correct:      outcome.Record.Correct,
			Points:       outcome.Record.Points,
			TotalScore:   outcome.Score,
			Streak:       outcome.Streak,
			TimerExpired: outcome.TimerExpired,
			Completed:    outcome.Completed,
			BoosterUsed:  outcome.Record.BoosterUsed,
		},
	}}
	if outcome.Completed {
		state := session.State()
		msgs = append(msgs, outboundMessage[any]{Type: "completed", Payload: completedPayload{
			Score:             state.Score,
			TotalTimeSpentSec: state.TotalTimeSpentSec,
		}})
	} else if outcome.NextQuestion != nil {
		msgs = append(msgs, outboundMessage[any]{Type: "question", Payload: *outcome.NextQuestion})
	}
	return msgs
}
