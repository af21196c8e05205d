package types

import "fmt"

// Host identifies a seed endpoint the client can use to discover the
// cluster. It is a value type: once constructed it is never mutated, and it
// carries no liveness state of its own (that belongs to cluster.Node).
//
// Modeled on the NodeInfo{ID, Addr} pair in internal/cluster/types.go,
// split into a name/port pair plus an optional TLS-name because the wire
// client dials raw TCP rather than an HTTP URL.
type Host struct {
	// Name is a hostname or IP address.
	Name string
	// Port is the TCP port the server listens on.
	Port int
	// TLSName, if non-empty, is the name to verify against the server's
	// certificate instead of Name. Empty means no TLS verification override.
	TLSName string
}

// NewHost builds a Host with no TLS name override.
func NewHost(name string, port int) Host {
	return Host{Name: name, Port: port}
}

// NewTLSHost builds a Host that verifies the server certificate against
// tlsName instead of name.
func NewTLSHost(name string, port int, tlsName string) Host {
	return Host{Name: name, Port: port, TLSName: tlsName}
}

// String renders the host as "name:port", matching the "host:port" format
// defaultHealthCheck accepts for node addresses.
func (h Host) String() string {
	return fmt.Sprintf("%s:%d", h.Name, h.Port)
}
