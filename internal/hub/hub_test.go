package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okulov/parley/internal/auth"
	"github.com/okulov/parley/internal/domain"
)

type pushedEvent struct {
	Event string
	Data  any
}

type fakeConn struct {
	mu     sync.Mutex
	events []pushedEvent
	kicked string
}

func (c *fakeConn) Push(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, pushedEvent{Event: event, Data: data})
	return nil
}

func (c *fakeConn) Kick(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kicked = reason
}

func (c *fakeConn) eventsNamed(name string) []pushedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []pushedEvent
	for _, e := range c.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) kickedReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kicked
}

type savedCallLog struct {
	CallerID   int64
	ReceiverID int64
	CallType   string
	Status     string
	Duration   int
}

type mockStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []MessagePayload
	statuses map[int64]string
	callLogs []savedCallLog

	failSaveMessage bool
}

func newMockStore() *mockStore {
	return &mockStore{statuses: make(map[int64]string)}
}

func (m *mockStore) SaveMessage(_ context.Context, senderID, receiverID int64, body, messageType, fileURL string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveMessage {
		return 0, errors.New("database write failed")
	}
	m.nextID++
	m.messages = append(m.messages, MessagePayload{
		ID: m.nextID, SenderID: senderID, ReceiverID: receiverID,
		Message: body, MessageType: messageType, FileURL: fileURL,
	})
	return m.nextID, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, userID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[userID] = status
	return nil
}

func (m *mockStore) SaveCallLog(_ context.Context, callerID, receiverID int64, callType, status string, durationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLogs = append(m.callLogs, savedCallLog{
		CallerID: callerID, ReceiverID: receiverID,
		CallType: callType, Status: status, Duration: durationSeconds,
	})
	return nil
}

func (m *mockStore) savedCallLogs() []savedCallLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]savedCallLog(nil), m.callLogs...)
}

func (m *mockStore) statusOf(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[userID]
}

func connect(h *Hub, userID int64, username string) (*Session, *fakeConn) {
	conn := &fakeConn{}
	sess := h.Connect(auth.Identity{UserID: userID, Username: username}, conn)
	return sess, conn
}

func TestConnectSeedsPresenceList(t *testing.T) {
	h := New(newMockStore())

	_, aliceConn := connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")

	// Bob's snapshot contains exactly alice.
	seeds := bobConn.eventsNamed(EventOnlineUsers)
	require.Len(t, seeds, 1)
	list, ok := seeds[0].Data.([]domain.PresenceEntry)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, "alice", list[0].Username)

	// Alice was told bob came online.
	online := aliceConn.eventsNamed(EventUserOnline)
	require.Len(t, online, 1)
	assert.Equal(t, PresencePayload{UserID: 2, Username: "bob"}, online[0].Data)
}

func TestConnectPersistsOnlineStatus(t *testing.T) {
	st := newMockStore()
	h := New(st)

	connect(h, 1, "alice")

	require.Eventually(t, func() bool {
		return st.statusOf(1) == domain.StatusOnline
	}, time.Second, 10*time.Millisecond)
}

func TestSendMessageDeliversAndAcks(t *testing.T) {
	h := New(newMockStore())
	alice, aliceConn := connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")

	h.SendMessage(context.Background(), alice, 2, "hi", "", "")

	delivered := bobConn.eventsNamed(EventNewMessage)
	require.Len(t, delivered, 1)
	acked := aliceConn.eventsNamed(EventMessageSent)
	require.Len(t, acked, 1)

	got := delivered[0].Data.(MessagePayload)
	ack := acked[0].Data.(MessagePayload)
	assert.Equal(t, got.ID, ack.ID, "ack and delivery must carry the same persisted id")
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, domain.MessageTypeText, got.MessageType)
	assert.Equal(t, "alice", got.SenderUsername)
}

func TestSendMessageToOfflineUserStillAcks(t *testing.T) {
	st := newMockStore()
	h := New(st)
	alice, aliceConn := connect(h, 1, "alice")

	h.SendMessage(context.Background(), alice, 42, "hello?", "text", "")

	require.Len(t, aliceConn.eventsNamed(EventMessageSent), 1)
	assert.Empty(t, aliceConn.eventsNamed(EventNewMessage))

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.messages, 1, "message must be persisted even when receiver is offline")
}

func TestSendMessagePersistenceFailureReportsToSender(t *testing.T) {
	st := newMockStore()
	st.failSaveMessage = true
	h := New(st)
	alice, aliceConn := connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")

	h.SendMessage(context.Background(), alice, 2, "hi", "text", "")

	require.Len(t, aliceConn.eventsNamed(EventError), 1)
	assert.Empty(t, aliceConn.eventsNamed(EventMessageSent))
	assert.Empty(t, bobConn.eventsNamed(EventNewMessage), "unpersisted message must not be delivered")
}

func TestSendMessageOrderingPerPair(t *testing.T) {
	h := New(newMockStore())
	alice, aliceConn := connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")

	h.SendMessage(context.Background(), alice, 2, "first", "text", "")
	h.SendMessage(context.Background(), alice, 2, "second", "text", "")

	acks := aliceConn.eventsNamed(EventMessageSent)
	require.Len(t, acks, 2)
	assert.Equal(t, "first", acks[0].Data.(MessagePayload).Message)
	assert.Equal(t, "second", acks[1].Data.(MessagePayload).Message)

	delivered := bobConn.eventsNamed(EventNewMessage)
	require.Len(t, delivered, 2)
	assert.Less(t, delivered[0].Data.(MessagePayload).ID, delivered[1].Data.(MessagePayload).ID)
}

func TestDisconnectBroadcastsOfflineOnce(t *testing.T) {
	st := newMockStore()
	h := New(st)
	alice, _ := connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")
	_, carolConn := connect(h, 3, "carol")

	h.Disconnect(alice)

	require.Len(t, bobConn.eventsNamed(EventUserOffline), 1)
	require.Len(t, carolConn.eventsNamed(EventUserOffline), 1)
	assert.Equal(t, PresencePayload{UserID: 1, Username: "alice"},
		bobConn.eventsNamed(EventUserOffline)[0].Data)

	for _, entry := range h.ListOnline(0) {
		assert.NotEqual(t, int64(1), entry.ID, "disconnected user must not appear online")
	}

	require.Eventually(t, func() bool {
		return st.statusOf(1) == domain.StatusOffline
	}, time.Second, 10*time.Millisecond)
}

func TestReconnectEvictsOldSession(t *testing.T) {
	h := New(newMockStore())
	_, oldConn := connect(h, 1, "alice")
	_, newConn := connect(h, 1, "alice")
	bob, _ := connect(h, 2, "bob")

	assert.NotEmpty(t, oldConn.kickedReason(), "replaced connection must be told why")

	h.SendMessage(context.Background(), bob, 1, "hi", "text", "")
	assert.Empty(t, oldConn.eventsNamed(EventNewMessage), "evicted session must not receive deliveries")
	require.Len(t, newConn.eventsNamed(EventNewMessage), 1)
}

func TestStaleDisconnectDoesNotEvictSuccessor(t *testing.T) {
	h := New(newMockStore())
	old, _ := connect(h, 1, "alice")
	connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")

	// The replaced connection's late disconnect must be a no-op.
	h.Disconnect(old)

	assert.Empty(t, bobConn.eventsNamed(EventUserOffline))
	assert.True(t, h.IsOnline(1))
}

func TestTypingRelayedOnlyWhenReachable(t *testing.T) {
	h := New(newMockStore())
	alice, _ := connect(h, 1, "alice")
	_, bobConn := connect(h, 2, "bob")

	h.TypingStart(alice, 2)
	h.TypingStop(alice, 2)
	h.TypingStart(alice, 99) // silently skipped

	typing := bobConn.eventsNamed(EventUserTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, PresencePayload{UserID: 1, Username: "alice"}, typing[0].Data)
	require.Len(t, bobConn.eventsNamed(EventUserStopTyping), 1)
}
