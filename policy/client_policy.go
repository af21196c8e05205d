package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// AuthMode selects how the client authenticates to the server.
type AuthMode int

const (
	AuthInternal AuthMode = iota
	AuthExternal
	AuthPKI
)

// TLSConfig is a placeholder for the TLS handshake parameters; the
// handshake itself is out of scope, so this only carries
// enough for the Connection layer to decide whether to wrap the socket.
type TLSConfig struct {
	Enabled    bool
	ServerName string
}

// ClientPolicy holds every cluster-wide configuration option recognized by
// the client. It is constructed once and handed to
// cluster.New; fields are read by the tend loop, the connection pool, and
// the router.
type ClientPolicy struct {
	User     string
	Password string
	AuthMode AuthMode

	ClusterName string
	TLS         TLSConfig

	ConnectTimeout time.Duration
	LoginTimeout   time.Duration

	MaxConnsPerNode int
	MinConnsPerNode int
	MaxSocketIdle   time.Duration

	TendInterval time.Duration
	// MaxUnreachable is how long a node may fail tend probes before the
	// Cluster marks it inactive and drains its pool.
	MaxUnreachable time.Duration

	FailIfNotConnected bool
	UseServicesAlternate bool

	RackAware bool
	RackID    int

	AsyncMaxCommandsInProcess int

	// Logger receives structured tend/pool/connection events. Nil means a
	// disabled logger (zerolog.Nop()); logging is opt-in per client, not
	// global process-wide state.
	Logger *zerolog.Logger
	// MetricsRegisterer is a Prometheus registerer carried on the policy.
	// The client registers no collectors with it; Node.InFlight and
	// Node.ErrorRate are the values a caller can export.
	MetricsRegisterer prometheus.Registerer
}

// NewClientPolicy returns the documented defaults: internal
// auth, 1s connect timeout, 256 max connections per node, 55s max socket
// idle (just under the common firewall/NAT idle-close window), 1s tend
// interval.
func NewClientPolicy() ClientPolicy {
	nop := zerolog.Nop()
	return ClientPolicy{
		AuthMode:        AuthInternal,
		ConnectTimeout:  1 * time.Second,
		LoginTimeout:    1 * time.Second,
		MaxConnsPerNode: 256,
		MinConnsPerNode: 0,
		MaxSocketIdle:   55 * time.Second,
		TendInterval:    1 * time.Second,
		MaxUnreachable:  10 * time.Second,
		Logger:          &nop,
	}
}

// LoggerOrNop returns cp.Logger, falling back to a disabled logger so
// callers never need a nil check.
func (cp ClientPolicy) LoggerOrNop() *zerolog.Logger {
	if cp.Logger != nil {
		return cp.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
