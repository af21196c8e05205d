package aerospike

import (
	"fmt"

	"github.com/dreamware/aerospike-go/internal/conn"
	"github.com/dreamware/aerospike-go/internal/protocol"
	"github.com/dreamware/aerospike-go/internal/types"
)

// recordCommand is the single Encoder/Decoder pair every single-key
// operation (put/append/prepend/add/delete/touch/exists/get/get-header/
// operate; execute-UDF uses udfCommand) builds from, varying only in which Ops it sends and
// how it turns the reply's Ops back into a Record. This plays the role
// handleData did for every verb over one HTTP route
// (cmd/coordinator/main.go), generalized to the binary envelope.
type recordCommand struct {
	key        types.Key
	infoFlags  uint16
	writeFlags uint16
	generation uint32
	expiration uint32
	txnID      int64
	ops        []protocol.Op
}

func (c recordCommand) Encode(cn *conn.Connection) error {
	digest := c.key.Digest()
	msg := protocol.Message{
		Header: protocol.Header{
			Type:       protocol.TypeMessage,
			InfoFlags:  c.infoFlags,
			WriteFlags: c.writeFlags,
			Generation: c.generation,
			Expiration: c.expiration,
			TxnID:      c.txnID,
			Digest:     digest,
		},
		Fields: []protocol.Field{
			{Name: "namespace", Value: []byte(c.key.Namespace)},
			{Name: "set", Value: []byte(c.key.SetName)},
		},
		Ops: c.ops,
	}
	return protocol.WriteMessage(cn, msg)
}

func (c recordCommand) Decode(cn *conn.Connection) (Record, types.ResultCode, error) {
	msg, err := protocol.ReadMessage(cn)
	if err != nil {
		return Record{}, 0, err
	}
	rec := Record{
		Bins:       make(map[string]types.Value, len(msg.Ops)),
		Generation: msg.Header.Generation,
		Expiration: msg.Header.Expiration,
	}
	for _, op := range msg.Ops {
		rec.Bins[op.Name] = op.Value
	}
	return rec, msg.Header.ResultCode, nil
}

// udfCommand runs a registered server-side function against one record,
// returning its single return value rather than a full Record. UDF
// registration payload framing is out of scope; this only
// frames the invocation.
type udfCommand struct {
	key      types.Key
	module   string
	function string
	args     []types.Value
}

func (c udfCommand) Encode(cn *conn.Connection) error {
	digest := c.key.Digest()
	argOps := make([]protocol.Op, len(c.args))
	for i, a := range c.args {
		argOps[i] = protocol.Op{Name: fmt.Sprintf("arg%d", i), Kind: "udf-arg", Value: a}
	}
	msg := protocol.Message{
		Header: protocol.Header{Type: protocol.TypeMessage, Digest: digest},
		Fields: []protocol.Field{
			{Name: "namespace", Value: []byte(c.key.Namespace)},
			{Name: "set", Value: []byte(c.key.SetName)},
			{Name: "udf-module", Value: []byte(c.module)},
			{Name: "udf-function", Value: []byte(c.function)},
		},
		Ops: argOps,
	}
	return protocol.WriteMessage(cn, msg)
}

func (c udfCommand) Decode(cn *conn.Connection) (types.Value, types.ResultCode, error) {
	msg, err := protocol.ReadMessage(cn)
	if err != nil {
		return nil, 0, err
	}
	var ret types.Value
	for _, op := range msg.Ops {
		if op.Name == "SUCCESS" || op.Name == "return" {
			ret = op.Value
			break
		}
	}
	return ret, msg.Header.ResultCode, nil
}
