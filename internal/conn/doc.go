// Package conn implements the per-node connection and connection pool
//: a single duplex byte stream with
// deadline-aware I/O, and a bounded, health-driven pool of idle connections.
//
// A Connection is exclusively owned by either its Pool (idle) or the caller
// frame that acquired it (busy) — never both, and never shared across
// goroutines, generalized from the one-shot
// *http.Client in internal/cluster/types.go to a pooled, long-lived
// net.Conn.
package conn
