// Package hub is the real-time core: it tracks which users are
// reachable, routes private messages and typing signals between them,
// and relays call signaling between exactly two peers.
package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/auth"
	"github.com/okulov/parley/internal/domain"
)

// Store is the slice of the persistence gateway the hub consumes. Only
// SaveMessage gates protocol progress; status updates and call logs are
// fire-and-forget side records.
type Store interface {
	SaveMessage(ctx context.Context, senderID, receiverID int64, body, messageType, fileURL string) (int64, error)
	UpdateStatus(ctx context.Context, userID int64, status string) error
	SaveCallLog(ctx context.Context, callerID, receiverID int64, callType, status string, durationSeconds int) error
}

type Hub struct {
	store    Store
	registry *registry
	calls    *callTable
}

func New(store Store) *Hub {
	return &Hub{
		store:    store,
		registry: newRegistry(),
		calls:    newCallTable(),
	}
}

// Connect registers a verified identity's connection, announces the user
// to everyone else and seeds the new client's presence list. A previous
// session for the same user is evicted and told why.
func (h *Hub) Connect(id auth.Identity, conn Conn) *Session {
	sess := &Session{
		UserID:      id.UserID,
		Username:    id.Username,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}

	if evicted := h.registry.register(sess); evicted != nil {
		evicted.Conn.Kick("signed in from another connection")
	}

	go h.persistStatus(sess.UserID, domain.StatusOnline)

	h.push(sess, EventOnlineUsers, h.registry.listOnline(sess.UserID))
	h.broadcast(sess.UserID, EventUserOnline, PresencePayload{
		UserID:   sess.UserID,
		Username: sess.Username,
	})
	return sess
}

// Disconnect invalidates sess so no later lookup resolves it, tears down
// any call it participates in and announces the user offline. A stale
// session that has already been replaced is a no-op.
func (h *Hub) Disconnect(sess *Session) {
	if !h.registry.unregister(sess) {
		return
	}

	h.endCallsFor(sess.UserID)

	go h.persistStatus(sess.UserID, domain.StatusOffline)

	h.broadcast(sess.UserID, EventUserOffline, PresencePayload{
		UserID:   sess.UserID,
		Username: sess.Username,
	})
}

// SendMessage persists the message first, then forwards it to the
// receiver when reachable and always acknowledges the sender. The ack is
// the sender's sole confirmation that persistence succeeded.
func (h *Hub) SendMessage(ctx context.Context, sess *Session, receiverID int64, body, messageType, fileURL string) {
	if messageType == "" {
		messageType = domain.MessageTypeText
	}

	id, err := h.store.SaveMessage(ctx, sess.UserID, receiverID, body, messageType, fileURL)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Int64("sender_id", sess.UserID).Msg("failed to save message")
		h.push(sess, EventError, ErrorPayload{Message: "failed to send message"})
		return
	}

	payload := MessagePayload{
		ID:             id,
		SenderID:       sess.UserID,
		SenderUsername: sess.Username,
		ReceiverID:     receiverID,
		Message:        body,
		MessageType:    messageType,
		FileURL:        fileURL,
		Timestamp:      time.Now().UTC(),
	}

	if receiver, ok := h.registry.lookup(receiverID); ok {
		h.push(receiver, EventNewMessage, payload)
	}
	h.push(sess, EventMessageSent, payload)
}

// TypingStart relays an ephemeral typing signal; unreachable peers are a
// silent no-op, never queued or retried.
func (h *Hub) TypingStart(sess *Session, receiverID int64) {
	h.relayTyping(sess, receiverID, EventUserTyping)
}

func (h *Hub) TypingStop(sess *Session, receiverID int64) {
	h.relayTyping(sess, receiverID, EventUserStopTyping)
}

func (h *Hub) relayTyping(sess *Session, receiverID int64, event string) {
	receiver, ok := h.registry.lookup(receiverID)
	if !ok {
		return
	}
	h.push(receiver, event, PresencePayload{
		UserID:   sess.UserID,
		Username: sess.Username,
	})
}

// ListOnline is the registry's read surface for the REST layer.
func (h *Hub) ListOnline(excluding int64) []domain.PresenceEntry {
	return h.registry.listOnline(excluding)
}

func (h *Hub) IsOnline(userID int64) bool {
	_, ok := h.registry.lookup(userID)
	return ok
}

// broadcast fans an event out to every session except one. Best-effort:
// a slow or just-closed connection never blocks the others.
func (h *Hub) broadcast(excluding int64, event string, data any) {
	for _, sess := range h.registry.snapshot(excluding) {
		h.push(sess, event, data)
	}
}

func (h *Hub) push(sess *Session, event string, data any) {
	if err := sess.Conn.Push(event, data); err != nil {
		log.Debug().Err(err).Str("module", "hub").Int64("user_id", sess.UserID).
			Str("event", event).Msg("dropped delivery")
	}
}

func (h *Hub) persistStatus(userID int64, status string) {
	if err := h.store.UpdateStatus(context.Background(), userID, status); err != nil {
		log.Error().Err(err).Str("module", "hub").Int64("user_id", userID).
			Str("status", status).Msg("failed to update user status")
	}
}
