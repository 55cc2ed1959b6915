package relay_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relaykit/core/relay"
)

// fakeConn implements relay.Conn and records everything the backend does
// to it.
type fakeConn struct {
	mu          sync.Mutex
	subject     string
	sent        [][]byte
	failSend    bool
	closed      bool
	closeCode   int
	closeReason string
}

func newFakeConn(subject string) *fakeConn {
	return &fakeConn{subject: subject}
}

func (c *fakeConn) Subject() string { return c.subject }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed {
		return assert.AnError
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]string, len(c.sent))
	for i, b := range c.sent {
		msgs[i] = string(b)
	}
	return msgs
}

func (c *fakeConn) closedWith() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// backendHarness builds a fresh backend for each subtest. waitAttached
// blocks until the backend is guaranteed to observe broadcasts for the
// channel; the distributed backend needs it to cover pub/sub propagation.
type backendHarness struct {
	newBackend   func(t *testing.T) relay.Backend
	waitAttached func(t *testing.T, channel string, instances int)
}

var roomIDPattern = regexp.MustCompile(`^[0-9]{5}$`)

// runBackendSuite exercises the Backend contract shared by both
// implementations.
func runBackendSuite(t *testing.T, h backendHarness) {
	t.Helper()
	ctx := context.Background()

	t.Run("create room returns numeric id with owner unsubscribed", func(t *testing.T) {
		b := h.newBackend(t)

		room, err := b.CreateRoom(ctx, "alice")
		require.NoError(t, err)
		assert.Regexp(t, roomIDPattern, room)

		members, err := b.GetRoom(ctx, room)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"alice": false}, members)
	})

	t.Run("join existing room", func(t *testing.T) {
		b := h.newBackend(t)

		room, err := b.CreateRoom(ctx, "alice")
		require.NoError(t, err)

		got, err := b.JoinRoom(ctx, room, "bob")
		require.NoError(t, err)
		assert.Equal(t, room, got)

		members, err := b.GetRoom(ctx, room)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"alice": false, "bob": false}, members)
	})

	t.Run("join missing room", func(t *testing.T) {
		b := h.newBackend(t)

		_, err := b.JoinRoom(ctx, "00000", "bob")
		require.ErrorIs(t, err, relay.ErrRoomNotFound)
	})

	t.Run("get missing room", func(t *testing.T) {
		b := h.newBackend(t)

		_, err := b.GetRoom(ctx, "00000")
		require.ErrorIs(t, err, relay.ErrRoomNotFound)
	})

	t.Run("join is idempotent", func(t *testing.T) {
		b := h.newBackend(t)

		room, err := b.CreateRoom(ctx, "alice")
		require.NoError(t, err)

		_, err = b.JoinRoom(ctx, room, "bob")
		require.NoError(t, err)

		conn := newFakeConn("bob")
		require.NoError(t, b.AddSubscriber(ctx, room, conn))

		// A second join must not clear the live subscription flag.
		_, err = b.JoinRoom(ctx, room, "bob")
		require.NoError(t, err)

		members, err := b.GetRoom(ctx, room)
		require.NoError(t, err)
		assert.True(t, members["bob"])
	})

	t.Run("add subscriber to plain channel", func(t *testing.T) {
		b := h.newBackend(t)

		conn := newFakeConn("alice")
		require.NoError(t, b.AddSubscriber(ctx, "12300", conn))

		subs := b.Subscribers("12300")
		require.Len(t, subs, 1)
		assert.Equal(t, "alice", subs[0].Subject())
	})

	t.Run("add room subscriber flips membership flag", func(t *testing.T) {
		b := h.newBackend(t)

		conn := newFakeConn("alice")
		room, err := b.CreateRoom(ctx, conn.Subject())
		require.NoError(t, err)

		require.NoError(t, b.AddSubscriber(ctx, room, conn))

		members, err := b.GetRoom(ctx, room)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"alice": true}, members)
	})

	t.Run("duplicate room subscription is rejected", func(t *testing.T) {
		b := h.newBackend(t)

		conn := newFakeConn("alice")
		room, err := b.CreateRoom(ctx, conn.Subject())
		require.NoError(t, err)

		require.NoError(t, b.AddSubscriber(ctx, room, conn))

		again := newFakeConn("alice")
		err = b.AddSubscriber(ctx, room, again)
		require.ErrorIs(t, err, relay.ErrAlreadySubscribed)

		// Detach frees the membership slot for a reconnect.
		require.NoError(t, b.RemoveSubscriber(ctx, room, conn))
		require.NoError(t, b.AddSubscriber(ctx, room, again))
	})

	t.Run("remove subscriber is idempotent", func(t *testing.T) {
		b := h.newBackend(t)

		conn := newFakeConn("alice")
		require.NoError(t, b.AddSubscriber(ctx, "12300", conn))
		require.NoError(t, b.RemoveSubscriber(ctx, "12300", conn))
		require.NoError(t, b.RemoveSubscriber(ctx, "12300", conn))

		assert.Empty(t, b.Subscribers("12300"))
	})

	t.Run("broadcast reaches everyone but the sender", func(t *testing.T) {
		b := h.newBackend(t)

		alice := newFakeConn("alice")
		bob := newFakeConn("bob")
		require.NoError(t, b.AddSubscriber(ctx, "12300", alice))
		require.NoError(t, b.AddSubscriber(ctx, "12300", bob))
		h.waitAttached(t, "12300", 1)

		require.NoError(t, b.Broadcast(ctx, []byte("ping"), "12300", "alice"))

		require.Eventually(t, func() bool {
			return len(bob.received()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"ping"}, bob.received())
		assert.Empty(t, alice.received())
	})

	t.Run("broadcast does not cross channels", func(t *testing.T) {
		b := h.newBackend(t)

		alice := newFakeConn("alice")
		bob := newFakeConn("bob")
		require.NoError(t, b.AddSubscriber(ctx, "12300", alice))
		require.NoError(t, b.AddSubscriber(ctx, "45600", bob))
		h.waitAttached(t, "12300", 1)
		h.waitAttached(t, "45600", 1)

		require.NoError(t, b.Broadcast(ctx, []byte("ping"), "12300", "alice"))

		time.Sleep(100 * time.Millisecond)
		assert.Empty(t, alice.received())
		assert.Empty(t, bob.received())
	})

	t.Run("broadcast into empty channel is a no-op", func(t *testing.T) {
		b := h.newBackend(t)

		require.NoError(t, b.Broadcast(ctx, []byte("ping"), "12300", "alice"))
	})

	t.Run("dead peer is pruned on broadcast", func(t *testing.T) {
		b := h.newBackend(t)

		alice := newFakeConn("alice")
		dead := newFakeConn("bob")
		dead.failSend = true
		require.NoError(t, b.AddSubscriber(ctx, "12300", alice))
		require.NoError(t, b.AddSubscriber(ctx, "12300", dead))
		h.waitAttached(t, "12300", 1)

		require.NoError(t, b.Broadcast(ctx, []byte("ping"), "12300", "alice"))

		require.Eventually(t, func() bool {
			subs := b.Subscribers("12300")
			return len(subs) == 1 && subs[0].Subject() == "alice"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("graceful shutdown closes subscribers with 4200", func(t *testing.T) {
		b := h.newBackend(t)

		alice := newFakeConn("alice")
		bob := newFakeConn("bob")
		require.NoError(t, b.AddSubscriber(ctx, "12300", alice))
		require.NoError(t, b.AddSubscriber(ctx, "45600", bob))

		require.NoError(t, b.Shutdown(ctx, true))

		for _, conn := range []*fakeConn{alice, bob} {
			code, reason := conn.closedWith()
			assert.Equal(t, relay.CloseGracefulShutdown, code)
			assert.Equal(t, relay.ShutdownReason, reason)
		}

		_, err := b.CreateRoom(ctx, "carol")
		require.ErrorIs(t, err, relay.ErrBackendClosed)
	})

	t.Run("immediate shutdown closes subscribers with 4100", func(t *testing.T) {
		b := h.newBackend(t)

		alice := newFakeConn("alice")
		require.NoError(t, b.AddSubscriber(ctx, "12300", alice))

		require.NoError(t, b.Shutdown(ctx, false))

		code, reason := alice.closedWith()
		assert.Equal(t, relay.CloseImmediateShutdown, code)
		assert.Equal(t, relay.ShutdownReason, reason)
	})

	t.Run("room scenario end to end", func(t *testing.T) {
		b := h.newBackend(t)

		room, err := b.CreateRoom(ctx, "alice")
		require.NoError(t, err)

		_, err = b.JoinRoom(ctx, room, "bob")
		require.NoError(t, err)

		members, err := b.GetRoom(ctx, room)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"alice": false, "bob": false}, members)

		alice := newFakeConn("alice")
		bob := newFakeConn("bob")
		require.NoError(t, b.AddSubscriber(ctx, room, alice))
		require.NoError(t, b.AddSubscriber(ctx, room, bob))
		h.waitAttached(t, room, 1)

		require.NoError(t, b.Broadcast(ctx, []byte("hi"), room, "alice"))

		require.Eventually(t, func() bool {
			return len(bob.received()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"hi"}, bob.received())
		assert.Empty(t, alice.received())
	})
}
