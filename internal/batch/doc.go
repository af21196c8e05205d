// Package batch implements the Batch Planner:
// group a set of keyed operations by the node that owns each key's master
// partition, dispatch one sub-command per node concurrently, and reassemble
// a positional result slice the same length as the input regardless of how
// many sub-commands failed.
//
// Grounded on handleBroadcast (cmd/coordinator/main.go): fan out to every
// node, collect responses, return once all are in. Generalized
// from an unconditional all-nodes broadcast to a partition-routed subset,
// and from a hand-rolled sync.WaitGroup plus mutex-guarded error slice to
// golang.org/x/sync/errgroup with a concurrency cap.
package batch
