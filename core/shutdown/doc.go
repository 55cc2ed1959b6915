// Package shutdown coordinates process termination for the signaling relay.
//
// The coordinator moves through three states:
//
//	Running -> Draining -> Stopped
//
// The first termination signal transitions to Draining: intake of new
// connections is stopped and every live subscriber is closed through the
// backend with the graceful close code. A second signal escalates a graceful
// drain to an immediate one; further signals are no-ops. Outstanding work
// (in-flight connection handlers) is tracked with Track/Done; Wait returns
// once everything drains or the grace deadline fires, whichever comes first.
//
// Typical wiring:
//
//	coord := shutdown.NewCoordinator(backend,
//		shutdown.WithGracePeriod(10*time.Second),
//		shutdown.WithStopIntake(func() { _ = srv.Stop() }),
//	)
//
//	<-ctx.Done() // SIGINT / SIGTERM
//	coord.Trigger(context.Background(), true)
//	if err := coord.Wait(context.Background()); err != nil {
//		// deadline fired with work still pending
//	}
package shutdown
