package conn

import (
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/aerospike-go/internal/types"
)

// dialFunc matches Dial's signature; tests substitute a fake server dialer
// so the pool can be exercised without a real Aerospike-protocol server.
type dialFunc func(addr string, timeout time.Duration, user string) (*Connection, error)

// Pool is the bounded, reusable-connection set: at most MaxConnsPerNode
// connections total (idle + busy), idle connections evicted once they
// exceed IdleTimeout, new connections opened lazily up to the cap.
//
// Grounded on the shared *http.Client idiom in internal/cluster/types.go
// (httpClient), generalized from one connection-pooling *http.Client per
// process to one bounded pool per Node.
type Pool struct {
	mu sync.Mutex

	addr           string
	user           string
	maxConns       int
	idleTimeout    time.Duration
	connectTimeout time.Duration
	dial           dialFunc

	idle     []*Connection
	inFlight int
}

// NewPool constructs a Pool dialing addr with the given user identity.
func NewPool(addr, user string, maxConns int, idleTimeout, connectTimeout time.Duration) *Pool {
	return &Pool{
		addr:           addr,
		user:           user,
		maxConns:       maxConns,
		idleTimeout:    idleTimeout,
		connectTimeout: connectTimeout,
		dial:           Dial,
	}
}

// setDialer overrides the dial function; test-only hook.
func (p *Pool) setDialer(d dialFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dial = d
}

// Acquire reuses a live idle connection if one exists and hasn't exceeded
// the idle timeout, otherwise
// open a new one if under the per-node cap, otherwise fail with
// NoMoreConnections. budget bounds the dial if a new connection must be
// opened.
func (p *Pool) Acquire(budget time.Duration) (*Connection, error) {
	for {
		p.mu.Lock()
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			stale := time.Since(c.LastUse()) >= p.idleTimeout && p.idleTimeout > 0
			p.mu.Unlock()

			if stale || !c.Alive() {
				_ = c.Close()
				continue
			}
			p.mu.Lock()
			p.inFlight++
			p.mu.Unlock()
			return c, nil
		}

		if p.inFlight >= p.maxConns {
			p.mu.Unlock()
			return nil, types.NewErrorf(types.NoMoreConnections,
				"pool for %s at capacity (%d connections)", p.addr, p.maxConns)
		}
		p.inFlight++
		dial := p.dial
		p.mu.Unlock()

		dialTimeout := p.connectTimeout
		if budget > 0 && budget < dialTimeout {
			dialTimeout = budget
		}
		c, err := dial(p.addr, dialTimeout, p.user)
		if err != nil {
			p.mu.Lock()
			p.inFlight--
			p.mu.Unlock()
			return nil, fmt.Errorf("aerospike: acquire connection: %w", err)
		}
		return c, nil
	}
}

// Release returns c to the idle set if keep is true and c is still alive;
// otherwise it closes c. The caller computes keep from
// ResultCode.KeepConnection() or from the I/O outcome (an
// I/O error always means close, never keep).
func (p *Pool) Release(c *Connection, keep bool) {
	p.mu.Lock()
	p.inFlight--
	if keep && c.Alive() {
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = c.Close()
}

// EvictIdle closes every idle connection older than IdleTimeout. Called
// once per tend cycle.
func (p *Pool) EvictIdle(now time.Time) int {
	if p.idleTimeout <= 0 {
		return 0
	}
	p.mu.Lock()
	var kept, stale []*Connection
	for _, c := range p.idle {
		if now.Sub(c.LastUse()) >= p.idleTimeout {
			stale = append(stale, c)
			continue
		}
		kept = append(kept, c)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, c := range stale {
		_ = c.Close()
	}
	return len(stale)
}

// Drain closes every idle connection; used when a node is marked inactive
// and its pool must be torn down. In-flight accounting is left unchanged:
// connections already acquired are released through Release as usual.
func (p *Pool) Drain() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		_ = c.Close()
	}
}

// Len reports the current idle-connection count, for tests and metrics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InFlight reports the number of connections currently acquired by callers.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}
