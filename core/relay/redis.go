package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomKeyPrefix prefixes the room id to form both the shared-store key for
// membership and the pub/sub topic name. Part of the external contract:
// every process of a deployment must agree on it.
const RoomKeyPrefix = "relaykit:room:"

// DefaultRoomTTL is how long an unoccupied room lives in the shared store.
// The TTL is removed while at least one member is subscribed and re-armed
// when the room drops back to zero subscribed members.
const DefaultRoomTTL = time.Hour

// subscribedFlag marks a member as currently connected in the room hash.
// Non-subscribed members carry an empty value.
const subscribedFlag = "subscribed"

// createRoomScript atomically claims a room key if absent, inserting the
// owner as a non-subscribed member and arming the expiry window.
var createRoomScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], '')
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// joinRoomScript adds a member to an existing room without touching the
// subscription state of a member that already joined, and without resetting
// the room's expiry.
var joinRoomScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSETNX', KEYS[1], ARGV[1], '')
return 1
`)

// attachMemberScript claims a member's subscription slot atomically with the
// conflict check and lifts the room's expiry while it is occupied. Returns
// 0 for a plain channel (no room key), -1 when the slot is already taken.
var attachMemberScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
local flag = redis.call('HGET', KEYS[1], ARGV[1])
if flag and flag ~= '' then
	return -1
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('PERSIST', KEYS[1])
return 1
`)

// envelope is the wire format of a broadcast travelling through pub/sub.
// The sender subject rides along so that every process can exclude the
// sender during its local fan-out.
type envelope struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Redis is the distributed backend. Rooms and membership flags live in a
// shared Redis instance; broadcasts are published to a topic per channel and
// re-delivered by every process to its own local subscribers. The directory
// of live connections is process-local.
//
// Empty-room policy: a room with zero subscribed members expires after
// DefaultRoomTTL; while occupied it is persisted.
//
// The backend owns all traffic on the client; no other component may issue
// commands against it. Shutdown tears down the pub/sub subscription, closing
// the client itself remains with whoever constructed it.
type Redis struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	logger  *slog.Logger
	roomTTL time.Duration

	mu     sync.Mutex
	subs   map[string][]Conn // channel id -> local live connections
	closed bool

	readerDone sync.WaitGroup
}

// RedisOption configures a Redis backend.
type RedisOption func(*Redis)

// WithRedisLogger configures structured logging for the backend.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRoomTTL overrides the expiry window for unoccupied rooms.
func WithRoomTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.roomTTL = ttl
		}
	}
}

// NewRedis creates a distributed backend on top of an established client
// and starts the pub/sub reader.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		roomTTL: DefaultRoomTTL,
		subs:    make(map[string][]Conn),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Subscribed to no topics yet; AddSubscriber adds them as channels
	// gain their first local connection.
	r.pubsub = client.Subscribe(context.Background())

	r.readerDone.Add(1)
	go r.readLoop()

	return r
}

func roomKey(id string) string {
	return RoomKeyPrefix + id
}

func channelFromTopic(topic string) string {
	return strings.TrimPrefix(topic, RoomKeyPrefix)
}

// CreateRoom implements Backend. The id is claimed with an atomic
// set-if-absent, retrying on collision with a live room.
func (r *Redis) CreateRoom(ctx context.Context, owner string) (string, error) {
	if r.isClosed() {
		return "", ErrBackendClosed
	}

	ttl := int(r.roomTTL / time.Second)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		room, err := randomRoomID()
		if err != nil {
			return "", err
		}

		claimed, err := createRoomScript.Run(ctx, r.client, []string{roomKey(room)}, owner, ttl).Int()
		if err != nil {
			return "", fmt.Errorf("relay: create room: %w", err)
		}
		if claimed == 1 {
			r.logger.DebugContext(ctx, "room created",
				slog.String("room", room), slog.String("owner", owner))
			return room, nil
		}
	}
}

// JoinRoom implements Backend.
func (r *Redis) JoinRoom(ctx context.Context, room, subject string) (string, error) {
	if r.isClosed() {
		return "", ErrBackendClosed
	}

	joined, err := joinRoomScript.Run(ctx, r.client, []string{roomKey(room)}, subject).Int()
	if err != nil {
		return "", fmt.Errorf("relay: join room: %w", err)
	}
	if joined == 0 {
		return "", ErrRoomNotFound
	}
	return room, nil
}

// GetRoom implements Backend.
func (r *Redis) GetRoom(ctx context.Context, room string) (map[string]bool, error) {
	fields, err := r.client.HGetAll(ctx, roomKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("relay: get room: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrRoomNotFound
	}

	members := make(map[string]bool, len(fields))
	for subject, flag := range fields {
		members[subject] = flag != ""
	}
	return members, nil
}

// AddSubscriber implements Backend. The membership slot is claimed in the
// shared store atomically before the local attach; a failure at any later
// step rolls the claim back so the member can attach again.
func (r *Redis) AddSubscriber(ctx context.Context, channel string, conn Conn) error {
	if r.isClosed() {
		return ErrBackendClosed
	}

	key := roomKey(channel)
	claimed, err := attachMemberScript.Run(ctx, r.client, []string{key}, conn.Subject(), subscribedFlag).Int()
	if err != nil {
		return fmt.Errorf("relay: add subscriber: %w", err)
	}
	if claimed == -1 {
		return ErrAlreadySubscribed
	}

	r.mu.Lock()
	first := len(r.subs[channel]) == 0
	r.subs[channel] = append(r.subs[channel], conn)
	r.mu.Unlock()

	if first {
		if err := r.pubsub.Subscribe(ctx, key); err != nil {
			// A half-attached member must not stay flagged in the store:
			// detach undoes both the local entry and the remote mirror.
			_ = r.RemoveSubscriber(ctx, channel, conn)
			return fmt.Errorf("relay: subscribe topic: %w", err)
		}
	}

	r.logger.DebugContext(ctx, "subscriber attached",
		slog.String("channel", channel), slog.String("subject", conn.Subject()))
	return nil
}

// RemoveSubscriber implements Backend. Idempotent: removing a connection
// that is not attached, or detaching during shutdown, is a no-op.
func (r *Redis) RemoveSubscriber(ctx context.Context, channel string, conn Conn) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}

	conns := r.subs[channel]
	for i, c := range conns {
		if c == conn {
			r.subs[channel] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	last := len(r.subs[channel]) == 0
	if last {
		delete(r.subs, channel)
	}
	r.mu.Unlock()

	key := roomKey(channel)
	if last {
		// Store cleanup below still has to run even when the pub/sub
		// stream is already gone.
		if err := r.pubsub.Unsubscribe(ctx, key); err != nil {
			r.logger.WarnContext(ctx, "unsubscribe topic failed",
				slog.String("channel", channel), slog.Any("error", err))
		}
	}

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("relay: remove subscriber: %w", err)
	}
	if exists == 0 {
		return nil
	}

	if err := r.client.HSet(ctx, key, conn.Subject(), "").Err(); err != nil {
		return fmt.Errorf("relay: remove subscriber: %w", err)
	}

	flags, err := r.client.HVals(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("relay: remove subscriber: %w", err)
	}
	for _, flag := range flags {
		if flag != "" {
			return nil
		}
	}
	// Zero subscribed members left: arm the expiry window.
	if err := r.client.Expire(ctx, key, r.roomTTL).Err(); err != nil {
		return fmt.Errorf("relay: remove subscriber: %w", err)
	}
	return nil
}

// Subscribers implements Backend. Only connections held by this process are
// returned; remote processes report their own.
func (r *Redis) Subscribers(channel string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if channel != "" {
		return append([]Conn(nil), r.subs[channel]...)
	}

	var all []Conn
	for _, conns := range r.subs {
		all = append(all, conns...)
	}
	return all
}

// Broadcast implements Backend. The payload is published to the channel's
// topic; every subscribed process, this one included, re-runs the local
// fan-out. Store unavailability propagates to the caller.
func (r *Redis) Broadcast(ctx context.Context, payload []byte, channel, sender string) error {
	if r.isClosed() {
		return ErrBackendClosed
	}

	data, err := json.Marshal(envelope{Sender: sender, Message: string(payload)})
	if err != nil {
		return fmt.Errorf("relay: marshal broadcast: %w", err)
	}
	if err := r.client.Publish(ctx, roomKey(channel), data).Err(); err != nil {
		return fmt.Errorf("relay: publish broadcast: %w", err)
	}
	return nil
}

// Shutdown implements Backend.
func (r *Redis) Shutdown(ctx context.Context, graceful bool) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var all []Conn
	for _, conns := range r.subs {
		all = append(all, conns...)
	}
	r.subs = make(map[string][]Conn)
	r.mu.Unlock()

	code := closeCode(graceful)
	for _, conn := range all {
		_ = conn.Close(code, ShutdownReason)
	}

	if err := r.pubsub.Close(); err != nil {
		return fmt.Errorf("relay: close pubsub: %w", err)
	}
	r.readerDone.Wait()

	r.logger.InfoContext(ctx, "redis backend shut down",
		slog.Int("connections_closed", len(all)), slog.Bool("graceful", graceful))
	return nil
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// readLoop consumes the shared pub/sub stream and re-delivers each
// broadcast to the local subscribers of its channel. Runs until Shutdown
// closes the subscription.
func (r *Redis) readLoop() {
	defer r.readerDone.Done()

	for msg := range r.pubsub.Channel() {
		r.deliver(channelFromTopic(msg.Channel), msg.Payload)
	}
}

func (r *Redis) deliver(channel, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn("invalid broadcast envelope",
			slog.String("channel", channel), slog.Any("error", err))
		return
	}

	r.mu.Lock()
	peers := append([]Conn(nil), r.subs[channel]...)
	r.mu.Unlock()

	ctx := context.Background()
	for _, peer := range peers {
		if peer.Subject() == env.Sender {
			continue
		}
		if err := peer.Send([]byte(env.Message)); err != nil {
			r.logger.Debug("dropping dead subscriber",
				slog.String("channel", channel), slog.String("subject", peer.Subject()))
			_ = r.RemoveSubscriber(ctx, channel, peer)
		}
	}
}
