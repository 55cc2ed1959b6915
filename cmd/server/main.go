// Command server runs the signaling relay: the HTTP gateway backed by
// either the in-process backend or a Redis-backed one when REDIS_URL is
// set, with signal-driven graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/relaykit/core/config"
	"github.com/dmitrymomot/relaykit/core/gateway"
	"github.com/dmitrymomot/relaykit/core/health"
	"github.com/dmitrymomot/relaykit/core/logger"
	"github.com/dmitrymomot/relaykit/core/relay"
	"github.com/dmitrymomot/relaykit/core/server"
	"github.com/dmitrymomot/relaykit/core/shutdown"
	"github.com/dmitrymomot/relaykit/core/token"
	redisconn "github.com/dmitrymomot/relaykit/integration/database/redis"
)

type appConfig struct {
	Logger   logger.Config
	Server   server.Config
	Gateway  gateway.Config
	Redis    redisconn.Config
	Shutdown shutdown.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Logger)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("relay exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	backend, probes, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}

	codec, err := newCodec(cfg.Gateway)
	if err != nil {
		return err
	}

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		return err
	}

	coord := shutdown.NewCoordinator(backend,
		shutdown.WithGracePeriod(cfg.Shutdown.GracePeriod),
		shutdown.WithStopIntake(func() { _ = srv.Stop() }),
		shutdown.WithLogger(log),
	)

	g := gateway.New(backend, codec,
		gateway.WithLogger(log),
		gateway.WithTracker(coord),
		gateway.WithAllowedHosts(cfg.Gateway.AllowedHosts),
		gateway.WithDebug(cfg.Gateway.Debug),
		gateway.WithReadLimit(cfg.Gateway.ReadLimit),
	)

	mux := http.NewServeMux()
	mux.Handle("/", g.Handler())
	mux.Handle("GET /health/live", health.Liveness())
	mux.Handle("GET /health/ready", health.Readiness(log, probes...))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(ctx, mux)
	}()

	// SIGINT and SIGTERM drain gracefully; SIGQUIT cuts connections
	// immediately. Any repeat signal escalates a running drain.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signals)

	select {
	case err := <-serveErr:
		return err
	case sig := <-signals:
		log.Info("signal received", slog.String("signal", sig.String()))

		go func() {
			for sig := range signals {
				log.Info("signal received during drain", slog.String("signal", sig.String()))
				_ = coord.Trigger(ctx, false)
			}
		}()

		if err := coord.Trigger(ctx, sig != syscall.SIGQUIT); err != nil {
			log.Error("shutdown trigger failed", logger.Error(err))
		}
		return coord.Wait(ctx)
	}
}

func newBackend(ctx context.Context, cfg appConfig, log *slog.Logger) (relay.Backend, []health.Probe, error) {
	if !cfg.Redis.Enabled() {
		log.Info("using in-process backend", logger.Component("relay"))
		return relay.NewMemory(relay.WithMemoryLogger(log)), nil, nil
	}

	client, err := redisconn.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis backend", logger.Component("relay"))
	backend := relay.NewRedis(client, relay.WithRedisLogger(log))
	return backend, []health.Probe{redisconn.Healthcheck(client)}, nil
}

func newCodec(cfg gateway.Config) (*token.Codec, error) {
	return token.NewCodec([]byte(cfg.Secret), token.WithTTL(cfg.TokenTTL))
}
