// Package signaling implements the WebSocket surface of the call relay:
// the identity handshake, connection registration and teardown, and the
// per-connection read/write loops that feed the router.
package signaling
