package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Memory is the in-process backend. All four concerns (rooms, membership,
// subscription directory, fan-out) live behind one mutex; no operation
// performs network I/O.
//
// Empty-room policy: a room is removed as soon as its last subscribed
// member detaches. Expired ids may be reused by later rooms.
type Memory struct {
	mu     sync.RWMutex
	logger *slog.Logger
	rooms  map[string]map[string]bool // room id -> member subject -> subscribed
	subs   map[string][]Conn          // channel id -> live connections
	closed bool
}

// MemoryOption configures a Memory backend.
type MemoryOption func(*Memory)

// WithMemoryLogger configures structured logging for the backend.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemory creates an in-process backend.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		rooms:  make(map[string]map[string]bool),
		subs:   make(map[string][]Conn),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom implements Backend.
func (m *Memory) CreateRoom(ctx context.Context, owner string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrBackendClosed
	}

	var room string
	for {
		id, err := randomRoomID()
		if err != nil {
			return "", err
		}
		if _, taken := m.rooms[id]; !taken {
			room = id
			break
		}
	}

	m.rooms[room] = map[string]bool{owner: false}
	m.logger.DebugContext(ctx, "room created", slog.String("room", room), slog.String("owner", owner))
	return room, nil
}

// JoinRoom implements Backend.
func (m *Memory) JoinRoom(ctx context.Context, room, subject string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrBackendClosed
	}

	members, ok := m.rooms[room]
	if !ok {
		return "", ErrRoomNotFound
	}
	if _, known := members[subject]; !known {
		members[subject] = false
	}
	return room, nil
}

// GetRoom implements Backend.
func (m *Memory) GetRoom(_ context.Context, room string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.rooms[room]
	if !ok {
		return nil, ErrRoomNotFound
	}

	snapshot := make(map[string]bool, len(members))
	for subject, subscribed := range members {
		snapshot[subject] = subscribed
	}
	return snapshot, nil
}

// AddSubscriber implements Backend.
func (m *Memory) AddSubscriber(ctx context.Context, channel string, conn Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackendClosed
	}

	if members, isRoom := m.rooms[channel]; isRoom {
		if members[conn.Subject()] {
			return ErrAlreadySubscribed
		}
		members[conn.Subject()] = true
	}

	m.subs[channel] = append(m.subs[channel], conn)
	m.logger.DebugContext(ctx, "subscriber attached",
		slog.String("channel", channel), slog.String("subject", conn.Subject()))
	return nil
}

// RemoveSubscriber implements Backend.
func (m *Memory) RemoveSubscriber(ctx context.Context, channel string, conn Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachLocked(ctx, channel, conn)
	return nil
}

func (m *Memory) detachLocked(ctx context.Context, channel string, conn Conn) {
	conns := m.subs[channel]
	for i, c := range conns {
		if c == conn {
			m.subs[channel] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(m.subs[channel]) == 0 {
		delete(m.subs, channel)
	}

	members, isRoom := m.rooms[channel]
	if !isRoom {
		return
	}
	if _, known := members[conn.Subject()]; known {
		members[conn.Subject()] = false
	}

	for _, subscribed := range members {
		if subscribed {
			return
		}
	}
	delete(m.rooms, channel)
	m.logger.DebugContext(ctx, "empty room removed", slog.String("room", channel))
}

// Subscribers implements Backend.
func (m *Memory) Subscribers(channel string) []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if channel != "" {
		return append([]Conn(nil), m.subs[channel]...)
	}

	var all []Conn
	for _, conns := range m.subs {
		all = append(all, conns...)
	}
	return all
}

// Broadcast implements Backend. Delivery never fails as a whole: a
// subscriber whose send errors is detached and the rest still receive
// the payload.
func (m *Memory) Broadcast(ctx context.Context, payload []byte, channel, sender string) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrBackendClosed
	}
	peers := append([]Conn(nil), m.subs[channel]...)
	m.mu.RUnlock()

	for _, peer := range peers {
		if peer.Subject() == sender {
			continue
		}
		if err := peer.Send(payload); err != nil {
			m.logger.DebugContext(ctx, "dropping dead subscriber",
				slog.String("channel", channel), slog.String("subject", peer.Subject()))
			_ = m.RemoveSubscriber(ctx, channel, peer)
		}
	}
	return nil
}

// Shutdown implements Backend.
func (m *Memory) Shutdown(_ context.Context, graceful bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	code := closeCode(graceful)
	for _, conns := range m.subs {
		for _, conn := range conns {
			_ = conn.Close(code, ShutdownReason)
		}
	}
	m.subs = make(map[string][]Conn)
	m.rooms = make(map[string]map[string]bool)
	return nil
}
