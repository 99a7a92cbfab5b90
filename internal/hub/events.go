package hub

import (
	"encoding/json"
	"time"

	"github.com/okulov/parley/internal/domain"
)

// Server→client event names. Client→server names live with the
// websocket adapter that dispatches them.
const (
	EventOnlineUsers    = "online_users"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventNewMessage     = "new_message"
	EventMessageSent    = "message_sent"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventIncomingCall   = "incoming_call"
	EventCallAnswered   = "call_answered"
	EventCallRejected   = "call_rejected"
	EventCallEnded      = "call_ended"
	EventCallFailed     = "call_failed"
	EventICECandidate   = "ice_candidate"
	EventError          = "error"
)

type PresencePayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type MessagePayload struct {
	ID             int64     `json:"id"`
	SenderID       int64     `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	ReceiverID     int64     `json:"receiverId"`
	Message        string    `json:"message"`
	MessageType    string    `json:"messageType"`
	FileURL        string    `json:"fileUrl,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Offer, answer and candidate payloads are opaque: the hub relays them
// between the two participants and never looks inside.
type IncomingCallPayload struct {
	CallerID       int64           `json:"callerId"`
	CallerUsername string          `json:"callerUsername"`
	Offer          json.RawMessage `json:"offer"`
}

type CallAnsweredPayload struct {
	Answer     json.RawMessage `json:"answer"`
	ReceiverID int64           `json:"receiverId"`
}

type CallRejectedPayload struct {
	ReceiverID int64 `json:"receiverId"`
}

type CallEndedPayload struct {
	UserID int64 `json:"userId"`
}

type CallFailedPayload struct {
	Message string `json:"message"`
}

type CandidatePayload struct {
	SenderID  int64           `json:"senderId"`
	Candidate json.RawMessage `json:"candidate"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// OnlineUsersPayload seeds a newly connected client's presence list.
type OnlineUsersPayload = []domain.PresenceEntry
