// Package aerospike is the public facade over the client core: it wires
// internal/cluster, internal/partition, internal/conn, internal/command,
// internal/batch, internal/scan and internal/txn into a single Client, and
// re-exports the value types (Key, Record, Bin, Host, ResultCode,
// AerospikeError) an application imports to call it.
//
// Grounded on cmd/coordinator/main.go, which assembled its components
// (ShardRegistry, HealthMonitor, HTTP handlers) into a runnable whole in
// one place; Client plays the same assembling role here, minus the HTTP
// surface.
package aerospike
