package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultGracePeriod bounds how long Wait blocks for outstanding work
// before the process is allowed to exit regardless.
const DefaultGracePeriod = 10 * time.Second

// ErrGraceDeadlineExceeded is returned by Wait when the grace period
// elapses with work still outstanding.
var ErrGraceDeadlineExceeded = errors.New("shutdown: grace deadline exceeded")

// State is the coordinator's lifecycle position.
type State int

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Backend is the subset of the relay backend the coordinator drives.
type Backend interface {
	Shutdown(ctx context.Context, graceful bool) error
}

// Config holds coordinator settings with environment variable support.
type Config struct {
	// GracePeriod is the maximum time to wait for outstanding work after
	// connections have been told to close.
	GracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// Coordinator drains live connections on process termination. Safe for
// concurrent use; signal handlers and the main goroutine may race freely.
type Coordinator struct {
	mu          sync.Mutex
	state       State
	immediate   bool
	immediateCh chan struct{} // closed when the drain becomes immediate
	backend     Backend
	stopIntake  func()
	logger      *slog.Logger
	grace       time.Duration
	work        sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithGracePeriod overrides the drain deadline. Non-positive values are
// ignored.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithStopIntake registers a callback invoked once, on the first trigger,
// to stop accepting new connections (typically the HTTP server's Stop).
func WithStopIntake(fn func()) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.stopIntake = fn
		}
	}
}

// WithLogger configures structured logging for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator driving the given backend.
func NewCoordinator(backend Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:       StateRunning,
		immediateCh: make(chan struct{}),
		backend:     backend,
		stopIntake:  func() {},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		grace:       DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Track registers one unit of outstanding work (an in-flight connection
// handler). Must be paired with Done.
func (c *Coordinator) Track() {
	c.work.Add(1)
}

// Done marks one unit of outstanding work as finished.
func (c *Coordinator) Done() {
	c.work.Done()
}

// Trigger reacts to a termination signal. The first call transitions to
// Draining, stops intake and closes every live connection through the
// backend. A later call escalates a graceful drain to an immediate one,
// unblocking Wait; anything beyond that is a no-op.
func (c *Coordinator) Trigger(ctx context.Context, graceful bool) error {
	c.mu.Lock()

	switch c.state {
	case StateStopped:
		c.mu.Unlock()
		return nil
	case StateDraining:
		if c.immediate || graceful {
			c.mu.Unlock()
			return nil
		}
		// Escalate: close whatever is still attached and release Wait.
		c.immediate = true
		close(c.immediateCh)
		c.mu.Unlock()

		c.logger.InfoContext(ctx, "escalating shutdown to immediate")
		return c.backend.Shutdown(ctx, false)
	}

	c.state = StateDraining
	c.immediate = !graceful
	if c.immediate {
		close(c.immediateCh)
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "draining connections", slog.Bool("graceful", graceful))
	c.stopIntake()
	return c.backend.Shutdown(ctx, graceful)
}

// Wait blocks until outstanding work drains, the grace deadline fires, or
// ctx is canceled. An immediate shutdown, whether triggered outright or
// escalated to while Wait blocks, returns at once and abandons outstanding
// work. The coordinator ends up Stopped in every case but cancellation.
func (c *Coordinator) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		c.work.Wait()
		close(drained)
	}()

	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-drained:
		c.setStopped()
		c.logger.InfoContext(ctx, "shutdown complete")
		return nil
	case <-c.immediateCh:
		c.setStopped()
		c.logger.InfoContext(ctx, "immediate shutdown, abandoning outstanding work")
		return nil
	case <-timer.C:
		c.setStopped()
		c.logger.WarnContext(ctx, "grace deadline fired with work outstanding",
			slog.Duration("grace_period", c.grace))
		return ErrGraceDeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) setStopped() {
	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
}
