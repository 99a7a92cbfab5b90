package ws

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/hub"
)

// Client→server event names.
const (
	eventPrivateMessage = "private_message"
	eventTypingStart    = "typing_start"
	eventTypingStop     = "typing_stop"
	eventCallUser       = "call_user"
	eventAnswerCall     = "answer_call"
	eventRejectCall     = "reject_call"
	eventEndCall        = "end_call"
	eventICECandidate   = "ice_candidate"
)

type privateMessagePayload struct {
	ReceiverID  int64  `json:"receiverId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	FileURL     string `json:"fileUrl"`
}

type typingPayload struct {
	ReceiverID int64 `json:"receiverId"`
}

type callUserPayload struct {
	ReceiverID int64           `json:"receiverId"`
	Offer      json.RawMessage `json:"offer"`
}

type answerCallPayload struct {
	CallerID int64           `json:"callerId"`
	Answer   json.RawMessage `json:"answer"`
}

type rejectCallPayload struct {
	CallerID int64 `json:"callerId"`
}

type endCallPayload struct {
	OtherUserID int64 `json:"otherUserId"`
}

type candidatePayload struct {
	ReceiverID int64           `json:"receiverId"`
	Candidate  json.RawMessage `json:"candidate"`
}

// dispatch routes one inbound frame. Malformed or unknown frames are
// dropped without breaking the connection; a bad payload earns the
// sender an error event.
func (h *Handler) dispatch(c *gin.Context, sess *hub.Session, conn *wsConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Int64("user_id", sess.UserID).Msg("bad frame")
		_ = conn.Push(hub.EventError, hub.ErrorPayload{Message: "bad_payload"})
		return
	}

	switch env.Event {
	case eventPrivateMessage:
		var p privateMessagePayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.SendMessage(c.Request.Context(), sess, p.ReceiverID, p.Message, p.MessageType, p.FileURL)
	case eventTypingStart:
		var p typingPayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.TypingStart(sess, p.ReceiverID)
	case eventTypingStop:
		var p typingPayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.TypingStop(sess, p.ReceiverID)
	case eventCallUser:
		var p callUserPayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.CallUser(sess, p.ReceiverID, p.Offer)
	case eventAnswerCall:
		var p answerCallPayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.AnswerCall(sess, p.CallerID, p.Answer)
	case eventRejectCall:
		var p rejectCallPayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.RejectCall(sess, p.CallerID)
	case eventEndCall:
		var p endCallPayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.EndCall(sess, p.OtherUserID)
	case eventICECandidate:
		var p candidatePayload
		if !h.decode(sess, conn, env.Data, &p) {
			return
		}
		h.Hub.RelayCandidate(sess, p.ReceiverID, p.Candidate)
	default:
		log.Warn().Str("module", "ws").Str("event", env.Event).
			Int64("user_id", sess.UserID).Msg("unknown event")
	}
}

func (h *Handler) decode(sess *hub.Session, conn *wsConn, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "ws").Int64("user_id", sess.UserID).Msg("bad payload")
		_ = conn.Push(hub.EventError, hub.ErrorPayload{Message: "bad_payload"})
		return false
	}
	return true
}
