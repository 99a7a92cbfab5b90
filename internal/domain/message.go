package domain

import "time"

const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	ReceiverID  int64     `json:"receiverId"`
	Body        string    `json:"message"`
	MessageType string    `json:"messageType"`
	FileURL     string    `json:"fileUrl,omitempty"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"timestamp"`

	// SenderUsername is joined in on read paths, never stored.
	SenderUsername string `json:"senderUsername,omitempty"`
}
