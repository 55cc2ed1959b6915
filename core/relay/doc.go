// Package relay implements the channel backend of the signaling relay: room
// lifecycle, membership, the directory of live subscriber connections, and
// message fan-out.
//
// Two interchangeable implementations are provided:
//
//   - Memory: all state lives in-process. Suitable for a single-process
//     deployment; no network I/O.
//   - Redis: rooms and membership flags live in a shared Redis instance with
//     TTL-based expiry, and broadcasts travel through Redis pub/sub so that
//     every process holding subscribers re-delivers to its own connections.
//     The directory of live connections is always process-local, since a
//     socket can only be served by the process that owns it.
//
// A channel is a fan-out key: a room id (broadcast to the whole room), the
// connecting subject's own id (private mailbox), or another room member's id
// (direct channel to that peer). Membership ("has joined the room") and
// subscription ("is currently connected") are tracked separately: a
// credential can be minted long before its holder connects, and a member may
// disconnect and reconnect without losing membership.
//
// Basic usage:
//
//	backend := relay.NewMemory()
//
//	room, err := backend.CreateRoom(ctx, owner)
//	if err != nil {
//		return err
//	}
//	if _, err := backend.JoinRoom(ctx, room, peer); err != nil {
//		return err
//	}
//
//	if err := backend.AddSubscriber(ctx, room, conn); err != nil {
//		// relay.ErrAlreadySubscribed: this member already holds a live
//		// connection on the room channel
//	}
//	_ = backend.Broadcast(ctx, payload, room, conn.Subject())
//
// Delivery is best-effort per subscriber: a connection that fails a send is
// detached immediately and delivery continues to the rest. The sender never
// receives its own broadcast.
package relay
