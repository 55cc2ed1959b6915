// Package health provides HTTP handlers for service health monitoring.
//
// Handlers:
//   - Liveness: process is running, no dependency checks
//   - Readiness: every registered dependency probe succeeds
//
// Dependency probes follow the func(context.Context) error signature:
//
//	mux.Handle("GET /health/live", health.Liveness())
//	mux.Handle("GET /health/ready", health.Readiness(log,
//		redis.Healthcheck(client),
//	))
package health
