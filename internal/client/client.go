// Package client provides a thin synchronous client for the coordination
// plane's wire protocol: one short-lived TCP connection per request.
package client

import (
	"net"
	"time"

	"golang.org/x/xerrors"

	"github.com/vela-systems/distarray/internal/wire"
)

// DefaultNodeID is used as the "from" field on every request unless the
// caller constructs a Client with a different id.
const DefaultNodeID = "client"

// Client issues one-shot requests against a master.
type Client struct {
	MasterAddress string
	NodeID        string
	DialTimeout   time.Duration
}

// New returns a Client targeting masterAddress.
func New(masterAddress string) *Client {
	return &Client{MasterAddress: masterAddress, NodeID: DefaultNodeID, DialTimeout: 5 * time.Second}
}

// CreateArray sends CREATE_ARRAY and returns the master's reply.
func (cl *Client) CreateArray(arrayID string, dataType wire.DataType, values []float64) (*wire.OperationCompletePayload, error) {
	return cl.roundTrip(wire.TypeCreateArray, wire.CreateArrayPayload{
		ArrayID:  arrayID,
		DataType: dataType,
		Values:   values,
	})
}

// ApplyOperation sends APPLY_OPERATION and returns the master's reply.
func (cl *Client) ApplyOperation(arrayID, operation string) (*wire.OperationCompletePayload, error) {
	return cl.roundTrip(wire.TypeApplyOperation, wire.ApplyOperationPayload{
		ArrayID:   arrayID,
		Operation: operation,
	})
}

// GetResult sends GET_RESULT and returns the master's reply.
func (cl *Client) GetResult(arrayID string) (*wire.OperationCompletePayload, error) {
	return cl.roundTrip(wire.TypeGetResult, wire.GetResultPayload{ArrayID: arrayID})
}

func (cl *Client) roundTrip(typ wire.Type, payload interface{}) (*wire.OperationCompletePayload, error) {
	conn, err := net.DialTimeout("tcp", cl.MasterAddress, cl.dialTimeout())
	if err != nil {
		return nil, xerrors.Errorf("client: dial master at %s: %w", cl.MasterAddress, err)
	}
	defer conn.Close()

	req, err := wire.NewEnvelope(typ, cl.nodeID(), wire.MasterNodeID, payload)
	if err != nil {
		return nil, err
	}
	buf, err := wire.Encode(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, xerrors.Errorf("client: write request: %w", err)
	}

	fr := wire.NewFrameReader(conn)
	reply, err := fr.ReadEnvelope()
	if err != nil {
		return nil, xerrors.Errorf("client: read reply: %w", err)
	}

	var out wire.OperationCompletePayload
	if err := reply.Unmarshal(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cl *Client) nodeID() string {
	if cl.NodeID == "" {
		return DefaultNodeID
	}
	return cl.NodeID
}

func (cl *Client) dialTimeout() time.Duration {
	if cl.DialTimeout <= 0 {
		return 5 * time.Second
	}
	return cl.DialTimeout
}
