// Package server hosts the relay's HTTP surface: a thin wrapper around
// http.Server with environment-driven configuration, optional TLS and a
// graceful Stop suitable for wiring into the shutdown coordinator as its
// intake stop.
//
// Read and write timeouts default to zero because the websocket endpoint
// holds connections open indefinitely; bound request reads at the proxy
// or enable the timeouts explicitly for deployments without long-lived
// sockets.
//
// Usage:
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	go func() { errCh <- srv.Start(ctx, handler) }()
//	...
//	_ = srv.Stop()
package server
