package domain

import "time"

const (
	CallTypeAudio = "audio"

	CallStatusAnswered = "answered"
	CallStatusRejected = "rejected"
	CallStatusMissed   = "missed"
)

type CallLog struct {
	ID         int64     `json:"id"`
	CallerID   int64     `json:"caller_id"`
	ReceiverID int64     `json:"receiver_id"`
	CallType   string    `json:"call_type"`
	Status     string    `json:"status"`
	Duration   int       `json:"duration"` // seconds
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}
