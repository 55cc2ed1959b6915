package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/relaykit/core/logger"
)

// Probe verifies a single dependency.
type Probe func(context.Context) error

// Liveness indicates the process is running. Always responds "ALIVE"
// with 200 OK.
func Liveness() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	})
}

// Readiness verifies every probe succeeds. Responds "READY" when all
// pass, 503 Service Unavailable on the first failure. With no probes it
// degrades to a liveness check.
func Readiness(log *slog.Logger, probes ...Probe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, probe := range probes {
			if err := probe(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})
}
