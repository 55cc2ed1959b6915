package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/relaykit/core/logger"
	"github.com/dmitrymomot/relaykit/core/relay"
	"github.com/dmitrymomot/relaykit/core/token"
)

// Close codes and reasons for the websocket connection path.
const (
	CloseInvalidToken   = 4000
	CloseInvalidChannel = 4300

	reasonMissingToken   = "Missing token."
	reasonInvalidToken   = "Invalid token."
	reasonInvalidChannel = "Invalid channel."
	reasonBackendFailure = "Backend unavailable."
)

// DefaultWriteTimeout bounds individual frame writes to a peer.
const DefaultWriteTimeout = 5 * time.Second

// Tracker counts in-flight connection handlers so shutdown can wait for
// them. Implemented by shutdown.Coordinator.
type Tracker interface {
	Track()
	Done()
}

type noopTracker struct{}

func (noopTracker) Track() {}
func (noopTracker) Done()  {}

// Gateway serves the room and websocket endpoints on top of a backend and
// a credential codec.
type Gateway struct {
	backend      relay.Backend
	codec        *token.Codec
	logger       *slog.Logger
	tracker      Tracker
	upgrader     websocket.Upgrader
	readLimit    int64
	writeTimeout time.Duration
	allowedHosts []string
	debug        bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger configures structured logging for the gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTracker registers in-flight connection tracking for shutdown.
func WithTracker(t Tracker) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracker = t
		}
	}
}

// WithAllowedHosts permits the given origins (host:port) to connect
// cross-domain.
func WithAllowedHosts(hosts []string) Option {
	return func(g *Gateway) {
		g.allowedHosts = hosts
	}
}

// WithDebug disables the origin check.
func WithDebug(debug bool) Option {
	return func(g *Gateway) {
		g.debug = debug
	}
}

// WithReadLimit caps inbound message size in bytes.
func WithReadLimit(limit int64) Option {
	return func(g *Gateway) {
		if limit > 0 {
			g.readLimit = limit
		}
	}
}

// WithWriteTimeout bounds individual frame writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// New creates a Gateway.
func New(backend relay.Backend, codec *token.Codec, opts ...Option) *Gateway {
	g := &Gateway{
		backend:      backend,
		codec:        codec,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracker:      noopTracker{},
		readLimit:    65536,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Handler returns the gateway's routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", g.handleCreateRoom)
	mux.HandleFunc("GET /rooms/{room}", g.handleJoinRoom)
	mux.HandleFunc("GET /socket", g.handleSocket)
	return mux
}

// checkOrigin admits same-host requests, configured hosts, and everything
// when debug is on. Requests without an Origin header (non-browser
// clients) pass.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	if g.debug {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(strings.ToLower(origin))
	if err != nil {
		return false
	}
	if strings.EqualFold(parsed.Host, r.Host) {
		return true
	}
	for _, host := range g.allowedHosts {
		if parsed.Host == strings.ToLower(host) {
			return true
		}
	}
	return false
}

// roomResponse is the payload returned by the room endpoints: everything a
// client needs to open the websocket.
type roomResponse struct {
	Room   string `json:"room"`
	User   string `json:"user"`
	Token  string `json:"token"`
	Socket string `json:"socket"`
}

func (g *Gateway) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	subject := newSubjectID()

	room, err := g.backend.CreateRoom(r.Context(), subject)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "create room failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Backend unavailable.")
		return
	}
	g.writeRoom(w, r, room, subject)
}

func (g *Gateway) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	subject := newSubjectID()

	room, err := g.backend.JoinRoom(r.Context(), r.PathValue("room"), subject)
	switch {
	case errors.Is(err, relay.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "Unknown room.")
		return
	case err != nil:
		g.logger.ErrorContext(r.Context(), "join room failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Backend unavailable.")
		return
	}
	g.writeRoom(w, r, room, subject)
}

func (g *Gateway) writeRoom(w http.ResponseWriter, r *http.Request, room, subject string) {
	raw, err := g.codec.Issue(room, subject)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "issue credential failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Backend unavailable.")
		return
	}

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(roomResponse{
		Room:   room,
		User:   subject,
		Token:  raw,
		Socket: scheme + "://" + r.Host + "/socket",
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (g *Gateway) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		g.logger.DebugContext(r.Context(), "websocket upgrade rejected", logger.Error(err))
		return
	}

	g.tracker.Track()
	defer g.tracker.Done()
	defer ws.Close()

	g.serve(r, ws)
}

// serve validates the credential, resolves the channel and pumps inbound
// messages into the backend until the peer goes away.
func (g *Gateway) serve(r *http.Request, ws *websocket.Conn) {
	ctx := r.Context()
	query := r.URL.Query()

	raw := query.Get("token")
	if raw == "" {
		g.closeWith(ws, CloseInvalidChannel, reasonMissingToken)
		return
	}

	claims, err := g.codec.Validate(raw)
	if err != nil {
		g.closeWith(ws, CloseInvalidToken, reasonInvalidToken)
		return
	}

	members, err := g.backend.GetRoom(ctx, claims.Room)
	switch {
	case errors.Is(err, relay.ErrRoomNotFound):
		g.closeWith(ws, CloseInvalidChannel, reasonInvalidChannel)
		return
	case err != nil:
		g.logger.ErrorContext(ctx, "get room failed", logger.Error(err))
		g.closeWith(ws, websocket.CloseInternalServerErr, reasonBackendFailure)
		return
	}

	channel, ok := resolveChannel(claims, query.Get("channel"), members)
	if !ok {
		g.closeWith(ws, CloseInvalidChannel, reasonInvalidChannel)
		return
	}

	sub := newWSConn(ws, claims.Subject, g.writeTimeout)
	if err := g.backend.AddSubscriber(ctx, channel, sub); err != nil {
		if errors.Is(err, relay.ErrAlreadySubscribed) {
			g.closeWith(ws, CloseInvalidChannel, reasonInvalidChannel)
			return
		}
		g.logger.ErrorContext(ctx, "add subscriber failed", logger.Error(err))
		g.closeWith(ws, websocket.CloseInternalServerErr, reasonBackendFailure)
		return
	}
	// Detach must run even when the request context is already gone.
	defer func() {
		_ = g.backend.RemoveSubscriber(context.Background(), channel, sub)
	}()

	g.logger.DebugContext(ctx, "subscriber connected",
		logger.Channel(channel), logger.Subject(claims.Subject))

	ws.SetReadLimit(g.readLimit)
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := g.backend.Broadcast(ctx, payload, channel, claims.Subject); err != nil {
			g.logger.ErrorContext(ctx, "broadcast failed",
				logger.Channel(channel), logger.Error(err))
			g.closeWith(ws, websocket.CloseInternalServerErr, reasonBackendFailure)
			return
		}
	}
}

// resolveChannel picks the fan-out key for a connection: the room itself,
// the subject's own mailbox, or another member of the credential's room.
func resolveChannel(claims token.Claims, requested string, members map[string]bool) (string, bool) {
	switch {
	case requested == "" || requested == claims.Room:
		return claims.Room, true
	case requested == claims.Subject:
		return claims.Subject, true
	default:
		if _, member := members[requested]; member {
			return requested, true
		}
		return "", false
	}
}

func (g *Gateway) closeWith(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(g.writeTimeout)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}

// newSubjectID mints a fresh subject identity: a uuid4 in compact hex form.
func newSubjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
