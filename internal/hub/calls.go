package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okulov/parley/internal/domain"
)

type callState int

const (
	callRinging callState = iota
	callConnected
)

// call is one signaling attempt between a fixed caller and receiver.
// Terminal states are represented by removing the entry from the table.
type call struct {
	callerID    int64
	receiverID  int64
	state       callState
	startedAt   time.Time
	connectedAt time.Time
}

func (c *call) peerOf(userID int64) int64 {
	if userID == c.callerID {
		return c.receiverID
	}
	return c.callerID
}

// pairKey identifies a call by the unordered pair of its participants:
// one live call per pair, concurrent calls across different pairs allowed.
type pairKey struct{ lo, hi int64 }

func pairOf(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type callTable struct {
	mu    sync.Mutex
	calls map[pairKey]*call
}

func newCallTable() *callTable {
	return &callTable{calls: make(map[pairKey]*call)}
}

// CallUser starts a call attempt. An offline receiver fails the call
// immediately and nothing is logged; the attempt never starts ringing.
func (h *Hub) CallUser(sess *Session, receiverID int64, offer json.RawMessage) {
	receiver, ok := h.registry.lookup(receiverID)
	if !ok {
		h.push(sess, EventCallFailed, CallFailedPayload{Message: "User is offline"})
		return
	}

	key := pairOf(sess.UserID, receiverID)
	h.calls.mu.Lock()
	if _, exists := h.calls.calls[key]; exists {
		h.calls.mu.Unlock()
		log.Warn().Str("module", "hub.calls").Int64("caller_id", sess.UserID).
			Int64("receiver_id", receiverID).Msg("call attempt while a call is already live for this pair")
		return
	}
	h.calls.calls[key] = &call{
		callerID:   sess.UserID,
		receiverID: receiverID,
		state:      callRinging,
		startedAt:  time.Now(),
	}
	h.calls.mu.Unlock()

	h.push(receiver, EventIncomingCall, IncomingCallPayload{
		CallerID:       sess.UserID,
		CallerUsername: sess.Username,
		Offer:          offer,
	})
}

// AnswerCall transitions ringing to connected. Only the designated
// receiver of the ringing call may answer; anything else is protocol
// misuse and is dropped without touching the state.
func (h *Hub) AnswerCall(sess *Session, callerID int64, answer json.RawMessage) {
	key := pairOf(sess.UserID, callerID)
	h.calls.mu.Lock()
	c, ok := h.calls.calls[key]
	if !ok || c.state != callRinging || c.receiverID != sess.UserID || c.callerID != callerID {
		h.calls.mu.Unlock()
		log.Warn().Str("module", "hub.calls").Int64("user_id", sess.UserID).
			Int64("caller_id", callerID).Msg("answer for a call not ringing for this user")
		return
	}
	c.state = callConnected
	c.connectedAt = time.Now()
	h.calls.mu.Unlock()

	if caller, ok := h.registry.lookup(callerID); ok {
		h.push(caller, EventCallAnswered, CallAnsweredPayload{
			Answer:     answer,
			ReceiverID: sess.UserID,
		})
	}
}

// RejectCall is valid only from the designated receiver of a ringing
// call. The state is discarded and a rejected call log is written.
func (h *Hub) RejectCall(sess *Session, callerID int64) {
	key := pairOf(sess.UserID, callerID)
	h.calls.mu.Lock()
	c, ok := h.calls.calls[key]
	if !ok || c.state != callRinging || c.receiverID != sess.UserID || c.callerID != callerID {
		h.calls.mu.Unlock()
		return
	}
	delete(h.calls.calls, key)
	h.calls.mu.Unlock()

	if caller, ok := h.registry.lookup(callerID); ok {
		h.push(caller, EventCallRejected, CallRejectedPayload{ReceiverID: sess.UserID})
	}
	go h.persistCallLog(c, domain.CallStatusRejected, 0)
}

// EndCall ends a ringing or connected call from either participant. The
// peer is notified and a summary is logged: answered with the connected
// duration, or missed when the call never left ringing.
func (h *Hub) EndCall(sess *Session, otherUserID int64) {
	key := pairOf(sess.UserID, otherUserID)
	h.calls.mu.Lock()
	c, ok := h.calls.calls[key]
	if !ok || (c.callerID != sess.UserID && c.receiverID != sess.UserID) {
		h.calls.mu.Unlock()
		return
	}
	delete(h.calls.calls, key)
	h.calls.mu.Unlock()

	if peer, ok := h.registry.lookup(c.peerOf(sess.UserID)); ok {
		h.push(peer, EventCallEnded, CallEndedPayload{UserID: sess.UserID})
	}
	status, duration := c.summary()
	go h.persistCallLog(c, status, duration)
}

// RelayCandidate forwards an ICE candidate between the two participants
// of a live call. Candidates for a call the sender is not part of are
// dropped; they never cause a state transition.
func (h *Hub) RelayCandidate(sess *Session, receiverID int64, candidate json.RawMessage) {
	key := pairOf(sess.UserID, receiverID)
	h.calls.mu.Lock()
	c, ok := h.calls.calls[key]
	participant := ok && (c.callerID == sess.UserID || c.receiverID == sess.UserID)
	h.calls.mu.Unlock()
	if !participant {
		return
	}

	if peer, ok := h.registry.lookup(receiverID); ok {
		h.push(peer, EventICECandidate, CandidatePayload{
			SenderID:  sess.UserID,
			Candidate: candidate,
		})
	}
}

// endCallsFor tears down every call the disconnecting user participates
// in: the peer gets a termination notification and a log is written with
// whatever duration is known.
func (h *Hub) endCallsFor(userID int64) {
	h.calls.mu.Lock()
	var ended []*call
	for key, c := range h.calls.calls {
		if c.callerID == userID || c.receiverID == userID {
			delete(h.calls.calls, key)
			ended = append(ended, c)
		}
	}
	h.calls.mu.Unlock()

	for _, c := range ended {
		if peer, ok := h.registry.lookup(c.peerOf(userID)); ok {
			h.push(peer, EventCallEnded, CallEndedPayload{UserID: userID})
		}
		status, duration := c.summary()
		go h.persistCallLog(c, status, duration)
	}
}

func (c *call) summary() (status string, durationSeconds int) {
	if c.state == callConnected {
		return domain.CallStatusAnswered, int(time.Since(c.connectedAt).Seconds())
	}
	return domain.CallStatusMissed, 0
}

func (h *Hub) persistCallLog(c *call, status string, durationSeconds int) {
	err := h.store.SaveCallLog(context.Background(), c.callerID, c.receiverID,
		domain.CallTypeAudio, status, durationSeconds)
	if err != nil {
		log.Error().Err(err).Str("module", "hub.calls").Int64("caller_id", c.callerID).
			Int64("receiver_id", c.receiverID).Msg("failed to save call log")
	}
}
