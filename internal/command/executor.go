package command

import (
	"context"
	"errors"
	"time"

	"github.com/dreamware/aerospike-go/internal/cluster"
	"github.com/dreamware/aerospike-go/internal/conn"
	"github.com/dreamware/aerospike-go/internal/types"
	"github.com/dreamware/aerospike-go/policy"
)

// NodeSelector picks the target Node for attempt (0-based retry count). A
// key-routed command wraps a partition.Router lookup; an info/admin command
// wraps Cluster.RandomNode.
type NodeSelector interface {
	SelectNode(attempt int) (*cluster.Node, error)
}

// Encoder writes one request frame to c. Framing itself (field ordering,
// length prefixes) is an external wire-format concern; Encoder
// only owns the decision of *what* to send.
type Encoder interface {
	Encode(c *conn.Connection) error
}

// Decoder parses one reply frame from c into a T plus the server's result
// code. An I/O error (err != nil) always means the connection is in an
// unknown state; Execute never consults code in that case.
type Decoder[T any] interface {
	Decode(c *conn.Connection) (T, types.ResultCode, error)
}

// Disposition is the pure classification of a ResultCode the retry loop
// acts on.
type Disposition int

const (
	// DispositionSuccess means the command completed; return the result.
	DispositionSuccess Disposition = iota
	// DispositionRetry means the loop may attempt again if budget remains.
	DispositionRetry
	// DispositionFail means the error is terminal; surface it immediately.
	DispositionFail
)

// classify maps a ResultCode to the action Execute's loop takes next.
func classify(code types.ResultCode) Disposition {
	switch {
	case code == types.OK:
		return DispositionSuccess
	case code.Retryable():
		return DispositionRetry
	default:
		return DispositionFail
	}
}

// Execute runs the full retry/deadline loop:
// select a node, acquire a connection, encode, decode, classify the result
// code, and either return, retry, or fail — applying the keep-connection
// rule to every connection it touches regardless of outcome.
func Execute[T any](ctx context.Context, pol policy.Policy, sel NodeSelector, enc Encoder, dec Decoder[T]) (T, error) {
	var zero T

	var deadline time.Time
	hasDeadline := pol.TotalTimeout > 0
	if hasDeadline {
		deadline = time.Now().Add(pol.TotalTimeout)
	}
	if ctxDL, ok := ctx.Deadline(); ok && (!hasDeadline || ctxDL.Before(deadline)) {
		deadline = ctxDL
		hasDeadline = true
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if hasDeadline && !time.Now().Before(deadline) {
			return zero, wrapErr(types.Timeout, "total timeout exceeded after %d attempt(s): %v", attempt, lastErr)
		}
		if attempt > pol.MaxRetries {
			return zero, wrapErr(types.MaxRetriesExceeded, "exhausted %d retries: %v", pol.MaxRetries, lastErr)
		}
		if attempt > 0 && pol.SleepBetweenRetries > 0 {
			select {
			case <-time.After(pol.SleepBetweenRetries):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		node, err := sel.SelectNode(attempt)
		if err != nil {
			lastErr = err
			continue
		}

		budget := pol.SocketTimeout
		if hasDeadline {
			if remaining := time.Until(deadline); remaining < budget || budget <= 0 {
				budget = remaining
			}
		}
		if budget <= 0 {
			lastErr = wrapErr(types.Timeout, "no time budget remaining for node %s", node.ID())
			continue
		}

		result, keep, err := attemptOnce(node, budget, enc, dec)
		if err != nil {
			lastErr = err
			continue
		}

		node.EndCommand()
		switch classify(result.code) {
		case DispositionSuccess:
			return result.value, nil
		case DispositionRetry:
			lastErr = types.NewErrorf(result.code, "retryable result from node %s", node.ID())
			_ = keep
			continue
		default:
			return zero, types.NewErrorf(result.code, "non-retryable result from node %s", node.ID())
		}
	}
}

type attemptResult[T any] struct {
	value T
	code  types.ResultCode
}

// attemptOnce acquires a connection, runs one encode/decode round, and
// returns the connection to the pool per the keep-connection rule before
// returning — so every exit path (including the caller's classify branch)
// already reflects a released connection.
func attemptOnce[T any](n *cluster.Node, budget time.Duration, enc Encoder, dec Decoder[T]) (attemptResult[T], bool, error) {
	var out attemptResult[T]

	c, err := n.Pool().Acquire(budget)
	if err != nil {
		return out, false, err
	}
	n.BeginCommand()

	if err := c.SetDeadline(budget); err != nil {
		n.Pool().Release(c, false)
		n.EndCommand()
		return out, false, err
	}

	if err := enc.Encode(c); err != nil {
		c.MarkInDoubt()
		n.Pool().Release(c, false)
		n.EndCommand()
		return out, false, err
	}

	value, code, err := dec.Decode(c)
	if err != nil {
		c.MarkInDoubt()
		n.Pool().Release(c, false)
		n.EndCommand()
		return out, false, err
	}

	keep := code.KeepConnection()
	n.Pool().Release(c, keep)
	out.value, out.code = value, code
	return out, keep, nil
}

func wrapErr(code types.ResultCode, format string, args ...any) error {
	return types.NewErrorf(code, format, args...)
}

// IsInDoubt reports whether err represents an operation whose server-side
// outcome is unknown, for callers that need to decide
// whether a write is safe to blindly retry at the application level.
func IsInDoubt(err error) bool {
	var ae *types.AerospikeError
	if errors.As(err, &ae) {
		return ae.InDoubt
	}
	return false
}
