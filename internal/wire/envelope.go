// Package wire implements the newline-delimited JSON envelope protocol
// shared by the master, worker and client roles.
package wire

import (
	"encoding/json"
	"time"

	"golang.org/x/xerrors"
)

// Type is the discrete tag carried by every envelope.
type Type string

// The closed set of envelope tags understood by the protocol.
const (
	TypeRegisterWorker   Type = "REGISTER_WORKER"
	TypeHeartbeat        Type = "HEARTBEAT"
	TypeShutdown         Type = "SHUTDOWN"
	TypeCreateArray      Type = "CREATE_ARRAY"
	TypeApplyOperation   Type = "APPLY_OPERATION"
	TypeGetResult        Type = "GET_RESULT"
	TypeOperationComplete Type = "OPERATION_COMPLETE"
	TypeDistributeArray  Type = "DISTRIBUTE_ARRAY"
	TypeReplicateData    Type = "REPLICATE_DATA"
	TypeProcessSegment   Type = "PROCESS_SEGMENT"
	TypeSegmentResult    Type = "SEGMENT_RESULT"
	TypeRecoverData      Type = "RECOVER_DATA"
	TypeRecoveryComplete Type = "RECOVERY_COMPLETE"
	TypeNodeFailure      Type = "NODE_FAILURE"
	TypeWorkerStatus     Type = "WORKER_STATUS"
)

// knownTypes is the closed set used to validate inbound frames.
var knownTypes = map[Type]bool{
	TypeRegisterWorker:    true,
	TypeHeartbeat:         true,
	TypeShutdown:          true,
	TypeCreateArray:       true,
	TypeApplyOperation:    true,
	TypeGetResult:         true,
	TypeOperationComplete: true,
	TypeDistributeArray:   true,
	TypeReplicateData:     true,
	TypeProcessSegment:    true,
	TypeSegmentResult:     true,
	TypeRecoverData:       true,
	TypeRecoveryComplete:  true,
	TypeNodeFailure:       true,
	TypeWorkerStatus:      true,
}

// ErrMalformedFrame is returned when a frame cannot be parsed as JSON.
var ErrMalformedFrame = xerrors.New("wire: malformed frame")

// ErrUnknownType is returned when an envelope's type tag is not part of
// the closed message catalogue.
var ErrUnknownType = xerrors.New("wire: unknown envelope type")

// MasterNodeID is the reserved node identifier for the master.
const MasterNodeID = "master"

// Envelope is the single message shape carried on the wire.
type Envelope struct {
	Type      Type            `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an envelope with the timestamp set to now and data
// marshaled from the supplied payload.
func NewEnvelope(typ Type, from, to string, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, xerrors.Errorf("wire: marshal payload for %s: %w", typ, err)
	}
	return &Envelope{
		Type:      typ,
		From:      from,
		To:        to,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// Unmarshal decodes the envelope's Data field into v.
func (e *Envelope) Unmarshal(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return xerrors.Errorf("wire: unmarshal payload for %s: %w", e.Type, err)
	}
	return nil
}

// Encode renders the envelope as a single JSON object followed by a
// newline, the unit of framing on the wire.
func Encode(e *Envelope) ([]byte, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return nil, xerrors.Errorf("wire: encode envelope: %w", err)
	}
	buf = append(buf, '\n')
	return buf, nil
}

// Decode parses the first newline-delimited frame out of buf and returns
// the envelope together with the unconsumed remainder. It returns
// (nil, buf, nil) when buf does not yet contain a full frame.
func Decode(buf []byte) (*Envelope, []byte, error) {
	idx := indexByte(buf, '\n')
	if idx < 0 {
		return nil, buf, nil
	}

	frame := buf[:idx]
	remainder := buf[idx+1:]

	var e Envelope
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, remainder, xerrors.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !knownTypes[e.Type] {
		return nil, remainder, xerrors.Errorf("%w: %q", ErrUnknownType, e.Type)
	}

	return &e, remainder, nil
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}
