// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const (
	MaxUsernameLen = 20
	MinUsernameLen = 3
)

var (
	ErrUsernameInvalid = errors.New("username must be 3-20 characters, alphanumeric and underscore only")
	ErrEmailInvalid    = errors.New("invalid email format")
	ErrPasswordWeak    = errors.New("password must be at least 6 characters with letters and numbers")
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Status    string    `json:"status"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceEntry is what a freshly connected client receives in its
// online_users snapshot: one row per currently reachable user.
type PresenceEntry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}
