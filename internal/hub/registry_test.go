package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(userID int64, username string) *Session {
	return &Session{
		UserID:      userID,
		Username:    username,
		Conn:        &fakeConn{},
		ConnectedAt: time.Now(),
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := newRegistry()
	sess := newSession(1, "alice")

	require.Nil(t, r.register(sess))

	got, ok := r.lookup(1)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = r.lookup(2)
	assert.False(t, ok)
}

func TestRegistryRegisterReturnsEvicted(t *testing.T) {
	r := newRegistry()
	old := newSession(1, "alice")
	r.register(old)

	replacement := newSession(1, "alice")
	evicted := r.register(replacement)
	assert.Same(t, old, evicted)

	got, _ := r.lookup(1)
	assert.Same(t, replacement, got, "only the newest session may be resolvable")
}

func TestRegistryUnregisterOnlyCurrent(t *testing.T) {
	r := newRegistry()
	old := newSession(1, "alice")
	r.register(old)
	replacement := newSession(1, "alice")
	r.register(replacement)

	assert.False(t, r.unregister(old), "stale session must not evict its successor")
	_, ok := r.lookup(1)
	assert.True(t, ok)

	assert.True(t, r.unregister(replacement))
	_, ok = r.lookup(1)
	assert.False(t, ok)

	assert.False(t, r.unregister(replacement), "second unregister reports nothing removed")
}

func TestRegistryListOnlineExcludes(t *testing.T) {
	r := newRegistry()
	r.register(newSession(1, "alice"))
	r.register(newSession(2, "bob"))
	r.register(newSession(3, "carol"))

	list := r.listOnline(2)
	require.Len(t, list, 2)
	for _, e := range list {
		assert.NotEqual(t, int64(2), e.ID)
		assert.Equal(t, "online", e.Status)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sess := newSession(id, fmt.Sprintf("user%d", id))
			r.register(sess)
			r.lookup(id)
			r.listOnline(id)
			if id%2 == 0 {
				r.unregister(sess)
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Len(t, r.listOnline(-1), 25)
}
