// Package types defines the wire-independent domain values shared by every
// other package in this module: hosts, keys, bins, records, result codes and
// the boundary error type.
//
// It sits at the bottom of the dependency graph on purpose. internal/cluster,
// internal/partition, internal/conn, internal/command, internal/batch,
// internal/scan, internal/txn and the root aerospike package all import it;
// it imports none of them. The root package re-exports the identifiers
// callers need (Key, Bin, Record, Host, ResultCode, AerospikeError) as type
// aliases so application code never has to import this package directly.
package types
