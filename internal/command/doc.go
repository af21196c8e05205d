// Package command implements the single generic retry/deadline loop every
// data-path operation runs through.
//
// Rather than a virtual command hierarchy (one type per operation, each
// overriding a writeBuffer/parseResult pair), this package exposes one
// function, Execute, parameterized by three small strategy interfaces:
// NodeSelector picks the target node, Encoder writes the request, Decoder
// parses the reply into a T.
//
// Grounded in control-flow shape on HealthMonitor.checkNode
// (internal/coordinator/health_monitor.go): attempt, record outcome, decide
// whether to continue, all inside one deadline-bound loop. Generalized from
// a fixed 3-strikes health check to a policy-driven
// deadline+retry-budget+result-code-classification loop.
package command
