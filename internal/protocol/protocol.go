package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dreamware/aerospike-go/internal/types"
)

// MessageType distinguishes the two kinds of envelope: record operations
// (TypeMessage) and per-partition scan/query requests (TypeInfo). The
// textual info protocol is not framed by this envelope.
type MessageType byte

const (
	TypeMessage MessageType = 1
	TypeInfo    MessageType = 2
)

// Info flags, a bitfield carried in the header.
const (
	InfoRead       uint16 = 1
	InfoGetAll     uint16 = 2
	InfoShortQuery uint16 = 4
	InfoNoBinData  uint16 = 32
)

// Write flags, a bitfield carried in the header.
const (
	WriteCreateOnly uint16 = 1
	WriteUpdateOnly uint16 = 2
)

const protocolVersion byte = 1

// Field is one request/reply field: namespace, set, key digest, a
// transaction id, a filter expression, or similar. Value
// carries its payload as opaque bytes; this package never interprets it.
type Field struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// Op is one operation on a bin: a name, an operation kind, and the value
// involved. Framing op-type-specific byte
// packing is out of scope; Value travels as a JSON-encoded
// types.Value.
type Op struct {
	Name  string     `json:"name"`
	Kind  string     `json:"kind"`
	Value types.Value `json:"value,omitempty"`
}

// Header carries the request/reply envelope's fixed fields.
type Header struct {
	Version    byte
	Type       MessageType
	ResultCode types.ResultCode
	InfoFlags  uint16
	WriteFlags uint16
	Generation uint32
	Expiration uint32
	TxnID      int64
	Digest     [types.DigestSize]byte
	NFields    uint16
	NOps       uint16
}

const headerSize = 1 + 1 + 4 + 2 + 2 + 4 + 4 + 8 + types.DigestSize + 2 + 2

// Message is a fully decoded request or reply: the header plus its fields
// and ops.
type Message struct {
	Header Header
	Fields []Field
	Ops    []Op
}

// FieldValue returns the first field named name, if present.
func (m Message) FieldValue(name string) ([]byte, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// WriteMessage frames msg as a length-prefixed envelope and writes it to w.
func WriteMessage(w io.Writer, msg Message) error {
	body, err := json.Marshal(struct {
		Fields []Field `json:"fields"`
		Ops    []Op    `json:"ops"`
	}{Fields: msg.Fields, Ops: msg.Ops})
	if err != nil {
		return fmt.Errorf("aerospike: encode message body: %w", err)
	}

	h := msg.Header
	h.Version = protocolVersion
	h.NFields = uint16(len(msg.Fields))
	h.NOps = uint16(len(msg.Ops))

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(headerSize+len(body))) //nolint:errcheck // bytes.Buffer never errors
	writeHeader(&buf, h)
	buf.Write(body)

	_, err = w.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("aerospike: write message: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed envelope from r and decodes it.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, fmt.Errorf("aerospike: read message length: %w", err)
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < headerSize {
		return Message{}, fmt.Errorf("aerospike: message length %d shorter than header", total)
	}

	rest := make([]byte, total)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Message{}, fmt.Errorf("aerospike: read message body: %w", err)
	}

	h, err := readHeader(rest[:headerSize])
	if err != nil {
		return Message{}, err
	}

	var decoded struct {
		Fields []Field `json:"fields"`
		Ops    []Op    `json:"ops"`
	}
	if err := json.Unmarshal(rest[headerSize:], &decoded); err != nil {
		return Message{}, fmt.Errorf("aerospike: decode message body: %w", err)
	}

	return Message{Header: h, Fields: decoded.Fields, Ops: decoded.Ops}, nil
}

func writeHeader(buf *bytes.Buffer, h Header) {
	buf.WriteByte(h.Version)
	buf.WriteByte(byte(h.Type))
	var rc [4]byte
	binary.BigEndian.PutUint32(rc[:], uint32(int32(h.ResultCode)))
	buf.Write(rc[:])
	var flags [4]byte
	binary.BigEndian.PutUint16(flags[0:2], h.InfoFlags)
	binary.BigEndian.PutUint16(flags[2:4], h.WriteFlags)
	buf.Write(flags[:])
	var gen [4]byte
	binary.BigEndian.PutUint32(gen[:], h.Generation)
	buf.Write(gen[:])
	var exp [4]byte
	binary.BigEndian.PutUint32(exp[:], h.Expiration)
	buf.Write(exp[:])
	var txn [8]byte
	binary.BigEndian.PutUint64(txn[:], uint64(h.TxnID))
	buf.Write(txn[:])
	buf.Write(h.Digest[:])
	var counts [4]byte
	binary.BigEndian.PutUint16(counts[0:2], h.NFields)
	binary.BigEndian.PutUint16(counts[2:4], h.NOps)
	buf.Write(counts[:])
}

func readHeader(b []byte) (Header, error) {
	if len(b) != headerSize {
		return Header{}, fmt.Errorf("aerospike: header length %d, want %d", len(b), headerSize)
	}
	var h Header
	h.Version = b[0]
	h.Type = MessageType(b[1])
	h.ResultCode = types.ResultCode(int32(binary.BigEndian.Uint32(b[2:6])))
	h.InfoFlags = binary.BigEndian.Uint16(b[6:8])
	h.WriteFlags = binary.BigEndian.Uint16(b[8:10])
	h.Generation = binary.BigEndian.Uint32(b[10:14])
	h.Expiration = binary.BigEndian.Uint32(b[14:18])
	h.TxnID = int64(binary.BigEndian.Uint64(b[18:26]))
	copy(h.Digest[:], b[26:26+types.DigestSize])
	off := 26 + types.DigestSize
	h.NFields = binary.BigEndian.Uint16(b[off : off+2])
	h.NOps = binary.BigEndian.Uint16(b[off+2 : off+4])
	return h, nil
}
