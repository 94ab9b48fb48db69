// Package relay contains the in-memory call-signaling core: the connection
// registry, the per-room membership index derived from it, and the router
// that forwards signaling envelopes between live connections.
//
// Nothing in this package touches a database or the network; a frame either
// reaches the addressed peer's live connection or is dropped.
package relay
