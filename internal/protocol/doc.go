// Package protocol frames the request/reply envelope: a length-prefixed
// message with a version/type byte, info-flags and write-flags bitfields,
// generation, expiration, transaction id, and field and op counts, followed
// by the fields and ops themselves.
//
// Packing the individual op-type payloads (the particle-level byte
// encoding for every bin value kind) is explicitly out of scope — that job
// belongs to an external encoder/decoder. This package supplies the
// envelope only; Fields and Ops carry their payload as opaque JSON, which
// is sufficient to drive internal/command, internal/batch and
// internal/scan end to end without pretending to reproduce the server's
// exact byte-level particle format.
//
// Grounded on internal/cluster/types.go's request/reply framing (length
// header + JSON body over a raw socket), generalized from HTTP+JSON to a
// binary envelope.
package protocol
