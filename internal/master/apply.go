package master

import "github.com/vela-systems/distarray/internal/wire"

// applyOperationToArray broadcasts PROCESS_SEGMENT to every currently
// live worker and returns immediately. The master does not wait for
// SEGMENT_RESULT replies before answering the client; GET_RESULT is the
// client's means of polling for completion. Workers holding no piece of
// arrayID simply ignore the message.
func applyOperationToArray(registry *Registry, arrayID, operation string) {
	payload := wire.ProcessSegmentPayload{ArrayID: arrayID, Operation: operation}
	for _, rec := range registry.LiveWorkers() {
		rec.Send(mustEnvelope(wire.TypeProcessSegment, rec.ID, payload))
	}
}
