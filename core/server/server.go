package server

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultShutdownTimeout bounds graceful Stop when nothing is configured.
const DefaultShutdownTimeout = 30 * time.Second

// Server wraps http.Server with graceful shutdown. Safe for concurrent
// use; Stop may be called from a signal handler while Start blocks.
type Server struct {
	mu              sync.Mutex
	addr            string
	server          *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	maxHeaderBytes  int
	tlsConfig       *tls.Config
	running         bool
}

// New creates a Server listening on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdownTimeout: DefaultShutdownTimeout,
		idleTimeout:     60 * time.Second,
		maxHeaderBytes:  http.DefaultMaxHeaderBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves handler and blocks until the listener fails or ctx is
// canceled. A clean Stop makes Start return nil.
func (s *Server) Start(ctx context.Context, handler http.Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.server = &http.Server{
		Addr:           s.addr,
		Handler:        handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.idleTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
		TLSConfig:      s.tlsConfig,
	}
	srv := s.server
	hasTLS := s.tlsConfig != nil
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "starting server", slog.String("addr", s.addr), slog.Bool("tls", hasTLS))

	errCh := make(chan error, 1)
	go func() {
		if hasTLS {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		_ = s.Stop()
		<-errCh
		return ctx.Err()
	}
}

// Stop gracefully shuts the server down within the configured timeout.
// A no-op when the server is not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running || s.server == nil {
		s.mu.Unlock()
		return nil
	}
	srv := s.server
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping server", slog.Duration("timeout", s.shutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
