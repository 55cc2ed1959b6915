package relay

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// Close codes sent to live subscribers when the process terminates.
// Graceful shutdown gives clients a chance to reconnect elsewhere;
// immediate shutdown tells them the process is going away right now.
const (
	CloseGracefulShutdown  = 4200
	CloseImmediateShutdown = 4100
)

// ShutdownReason is the close reason accompanying both shutdown codes.
const ShutdownReason = "Server shutdown."

// Conn is the capability a backend holds for a live subscriber connection.
// Implementations must tolerate Close being called more than once.
type Conn interface {
	// Subject returns the identity the connection was opened as.
	Subject() string

	// Send delivers an opaque payload to the peer. An error marks the
	// connection as dead; the backend detaches it and moves on.
	Send(payload []byte) error

	// Close terminates the connection with a close code and a
	// human-readable reason.
	Close(code int, reason string) error
}

// Backend tracks rooms, membership and live subscriptions, and fans
// messages out to subscribers. Implemented by Memory and Redis.
type Backend interface {
	// CreateRoom creates a room owned by subject and returns its id.
	CreateRoom(ctx context.Context, owner string) (string, error)

	// JoinRoom idempotently adds subject as a non-subscribed member of the
	// room. Returns ErrRoomNotFound if the room does not exist. Joining
	// does not reset the room's expiry.
	JoinRoom(ctx context.Context, room, subject string) (string, error)

	// GetRoom returns the room's members mapped to their subscription
	// state. Returns ErrRoomNotFound if the room does not exist.
	GetRoom(ctx context.Context, room string) (map[string]bool, error)

	// AddSubscriber attaches conn as a live subscriber of channel. For
	// room channels the member's subscription flag is flipped on;
	// ErrAlreadySubscribed is returned if it was already set.
	AddSubscriber(ctx context.Context, channel string, conn Conn) error

	// RemoveSubscriber idempotently detaches conn from channel, flipping
	// the member's subscription flag off for room channels.
	RemoveSubscriber(ctx context.Context, channel string, conn Conn) error

	// Subscribers returns the live connections attached to channel, or
	// every live connection when channel is empty.
	Subscribers(channel string) []Conn

	// Broadcast delivers payload to every subscriber of channel except
	// those whose subject equals sender. Best-effort per subscriber.
	Broadcast(ctx context.Context, payload []byte, channel, sender string) error

	// Shutdown closes every live connection with the appropriate close
	// code and releases backend resources. Mutations after Shutdown
	// return ErrBackendClosed.
	Shutdown(ctx context.Context, graceful bool) error
}

// roomIDDigits is the width of generated room identifiers.
const roomIDDigits = 5

// randomRoomID draws a fixed-width numeric id from a cryptographic source.
// Collisions against live rooms are handled by the caller.
func randomRoomID() (string, error) {
	lower := int64(1)
	for i := 1; i < roomIDDigits; i++ {
		lower *= 10
	}
	span := lower*10 - lower

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", fmt.Errorf("relay: generate room id: %w", err)
	}
	return fmt.Sprintf("%d", lower+n.Int64()), nil
}

func closeCode(graceful bool) int {
	if graceful {
		return CloseGracefulShutdown
	}
	return CloseImmediateShutdown
}
