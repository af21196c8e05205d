package conn

import (
	"fmt"
	"net"
	"time"
)

// Connection owns a single bidirectional byte stream plus the bookkeeping
// the executor and pool need: when it was last used, which user
// authenticated it, and whether a prior operation left its state unknown.
//
// Connection is never shared between goroutines. The Pool hands out at
// most one reference per Acquire call, and the caller must Release or
// Close it before any other goroutine can touch it again.
type Connection struct {
	conn    net.Conn
	lastUse time.Time
	user    string
	inDoubt bool
	closed  bool
}

// Dial opens a new TCP connection to addr, authenticates as user (actual
// credential hashing is out of scope; this records the
// identity only), bounded by timeout.
func Dial(addr string, timeout time.Duration, user string) (*Connection, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("aerospike: dial %s: %w", addr, err)
	}
	return &Connection{conn: c, lastUse: time.Now(), user: user}, nil
}

// wrap adapts an already-established net.Conn (used by tests that dial
// through a fake server, and by callers that supply their own dialer for
// TLS).
func wrap(c net.Conn, user string) *Connection {
	return &Connection{conn: c, lastUse: time.Now(), user: user}
}

// SetDeadline bounds the next read/write pair by d, computed by the caller
// as min(socket_timeout, deadline-now).
func (c *Connection) SetDeadline(d time.Duration) error {
	return c.conn.SetDeadline(time.Now().Add(d))
}

// Write sends b in full, bounded by the last SetDeadline call.
func (c *Connection) Write(b []byte) (int, error) {
	n, err := c.conn.Write(b)
	c.lastUse = time.Now()
	return n, err
}

// Read fills b, bounded by the last SetDeadline call.
func (c *Connection) Read(b []byte) (int, error) {
	n, err := c.conn.Read(b)
	c.lastUse = time.Now()
	return n, err
}

// MarkInDoubt flags the connection's last operation as having an unknown
// socket-level outcome. A connection so marked is
// always closed rather than returned to the pool; InDoubt is exposed so the
// caller frame can thread the flag into an AerospikeError.
func (c *Connection) MarkInDoubt() {
	c.inDoubt = true
}

// InDoubt reports whether the connection's last operation left its outcome
// unknown.
func (c *Connection) InDoubt() bool {
	return c.inDoubt
}

// LastUse reports when the connection last completed a read or write,
// used by Pool's idle-eviction sweep.
func (c *Connection) LastUse() time.Time {
	return c.lastUse
}

// User returns the identity the connection authenticated as.
func (c *Connection) User() string {
	return c.user
}

// Alive performs the pool's "cheap liveness check": Go's
// net.Conn has no portable zero-cost peek, so this just checks the
// in-doubt/closed flags; a genuinely dead socket is caught by the next
// read/write's error instead.
func (c *Connection) Alive() bool {
	return !c.closed && !c.inDoubt
}

// Close releases the underlying socket. Idempotent.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
