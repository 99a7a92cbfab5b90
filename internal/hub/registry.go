package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/domain"
)

// Conn is the live connection handle a session delivers through. Push is
// best-effort and non-blocking; Kick closes the connection with a reason
// the client can display.
type Conn interface {
	Push(event string, data any) error
	Kick(reason string)
}

// Session binds an authenticated user to its active connection.
type Session struct {
	UserID      int64
	Username    string
	Conn        Conn
	ConnectedAt time.Time
}

// registry is the single source of truth for who is reachable and
// through which connection. Critical sections are O(1) map operations;
// no delivery or persistence happens under the lock.
type registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[int64]*Session)}
}

// register makes sess the authoritative session for its user. If an
// older session exists it is returned so the caller can evict it; two
// live handles are never merged.
func (r *registry) register(sess *Session) (evicted *Session) {
	r.mu.Lock()
	evicted = r.sessions[sess.UserID]
	r.sessions[sess.UserID] = sess
	r.mu.Unlock()

	log.Info().Str("module", "hub.registry").Int64("user_id", sess.UserID).
		Str("username", sess.Username).Bool("evicted_old", evicted != nil).
		Msg("registered session")
	return evicted
}

// unregister removes sess only if it is still current, so a replaced
// connection's late disconnect cannot evict its successor. Reports
// whether sess was the authoritative session.
func (r *registry) unregister(sess *Session) bool {
	r.mu.Lock()
	cur, ok := r.sessions[sess.UserID]
	if ok && cur == sess {
		delete(r.sessions, sess.UserID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		log.Info().Str("module", "hub.registry").Int64("user_id", sess.UserID).Msg("unregistered session")
	}
	return ok
}

func (r *registry) lookup(userID int64) (*Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[userID]
	r.mu.RUnlock()
	return sess, ok
}

// listOnline seeds a newly connected client's presence list.
func (r *registry) listOnline(excluding int64) []domain.PresenceEntry {
	r.mu.RLock()
	out := make([]domain.PresenceEntry, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == excluding {
			continue
		}
		out = append(out, domain.PresenceEntry{
			ID:       id,
			Username: sess.Username,
			Status:   domain.StatusOnline,
		})
	}
	r.mu.RUnlock()
	return out
}

// snapshot returns the current sessions for fan-out outside the lock.
func (r *registry) snapshot(excluding int64) []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == excluding {
			continue
		}
		out = append(out, sess)
	}
	r.mu.RUnlock()
	return out
}
