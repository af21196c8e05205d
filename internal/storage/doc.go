// Package storage defines the key-value abstraction internal/fakeserver uses
// to hold record state, and provides the in-memory implementation the fake
// server runs against.
//
// # Overview
//
// Every namespace+set pair the fake server sees gets its own Store instance
// (see fakeserver.storeFor), keyed by hex-encoded 20-byte digest. Values are
// JSON-marshaled storedRecord envelopes (bins, generation, expiration), not
// raw record bytes — the package itself has no notion of bins, digests, or
// generations; it is a plain byte-keyed map with a pluggable backend.
//
//	┌───────────────────────────┐
//	│   internal/fakeserver     │
//	│  (digest keys, storedRecord envelopes) │
//	└───────────────────────────┘
//	              │
//	              ▼
//	┌───────────────────────────┐
//	│      storage.Store        │
//	└───────────────────────────┘
//	              │
//	              ▼
//	┌───────────────────────────┐
//	│       MemoryStore         │
//	└───────────────────────────┘
//
// # Implementation
//
// MemoryStore is the only implementation: an in-memory map guarded by
// sync.RWMutex, with no persistence across restarts. That matches
// fakeserver's role as a test double — a real server's on-disk storage
// engine is explicitly out of scope.
//
// # Error Handling
//
// ErrKeyNotFound is returned by Get when the key is absent; Delete is
// idempotent and never returns it. Callers (fakeserver.getRecord) translate
// ErrKeyNotFound into types.KeyNotFound at the protocol layer.
package storage
