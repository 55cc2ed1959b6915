// Package gateway is the HTTP surface of the signaling relay: room creation
// and join endpoints that mint credentials, and the websocket endpoint that
// validates a credential, resolves the target channel and attaches the
// connection to the backend.
//
// Routes:
//
//	POST /rooms          create a room, respond with {room, user, token, socket}
//	GET  /rooms/{room}   join an existing room, same response shape (404 if absent)
//	GET  /socket         websocket endpoint, ?token=...&channel=...
//
// Channel resolution on connect: an absent channel parameter, or one equal
// to the credential's room, targets the whole room; the subject's own id
// targets their private mailbox; another member's id targets that peer
// directly. Anything else closes the connection.
//
// Failures on the websocket path are always expressed as a close frame with
// an explicit code and reason, never a silent drop:
//
//	4300 "Missing token."    no credential supplied
//	4000 "Invalid token."    signature or expiry failure
//	4300 "Invalid channel."  unknown room, unresolvable channel, or a
//	                         membership slot that is already occupied
package gateway
