package master

import (
	"github.com/vela-systems/distarray/internal/arraymodel"
	"github.com/vela-systems/distarray/internal/wire"
)

// distribute is the placement and distribution engine: for every
// segment of arr, pick a primary from the live worker snapshot on a
// rotating cursor, then fill up to
// replicationFactor-1 replica slots from subsequent workers in the
// rotation, skipping the primary itself. Chosen workers are sent
// DISTRIBUTE_ARRAY / REPLICATE_DATA, and arr's segment table plus the
// registry's derived indices are updated to match.
func distribute(arr *arraymodel.Array, workers []*WorkerRecord, registry *Registry, replicationFactor int) {
	w := len(workers)
	if w == 0 {
		return
	}

	k := 0
	for _, seg := range arr.Segments() {
		primary := workers[k%w]

		arr.MutateSegment(seg.Start, func(s *arraymodel.Segment) {
			s.Primary = primary.ID
			s.Replicas = nil
		})
		key := segKey{ArrayID: arr.ID, Start: seg.Start}
		registry.AddPrimary(primary.ID, key)
		registry.SetReplicas(key, nil)

		sendSegment(primary, arr, seg, true)

		replicas := make([]string, 0, replicationFactor-1)
		for j := 1; j < replicationFactor; j++ {
			candidate := workers[(k+j)%w]
			if candidate.ID == primary.ID {
				continue
			}
			replicas = append(replicas, candidate.ID)
			registry.AddReplica(key, candidate.ID)
			sendSegment(candidate, arr, seg, false)
		}
		arr.MutateSegment(seg.Start, func(s *arraymodel.Segment) {
			s.Replicas = replicas
		})

		k++
	}

	arr.SetStatus(arraymodel.StatusDistributed)
}

// sendSegment builds and enqueues a DISTRIBUTE_ARRAY or REPLICATE_DATA
// envelope carrying seg's data to dst.
func sendSegment(dst *WorkerRecord, arr *arraymodel.Array, seg *arraymodel.Segment, isPrimary bool) {
	typ := wire.TypeDistributeArray
	if !isPrimary {
		typ = wire.TypeReplicateData
	}

	payload := wire.SegmentPayload{
		ArrayID:    arr.ID,
		SegmentID:  seg.Start,
		StartIndex: seg.Start,
		EndIndex:   seg.End,
		DataType:   arr.DataType,
		Data:       arr.SliceOf(seg),
		IsPrimary:  isPrimary,
	}

	env, err := wire.NewEnvelope(typ, wire.MasterNodeID, dst.ID, payload)
	if err != nil {
		return
	}
	dst.Send(env)
}
