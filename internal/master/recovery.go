package master

import (
	"github.com/sirupsen/logrus"

	"github.com/vela-systems/distarray/internal/arraymodel"
	"github.com/vela-systems/distarray/internal/wire"
)

// recoveryEngine implements the failure-recovery algorithm: promote a
// live replica to primary, then try to replenish a fresh replica. It is
// deliberately best-effort: a segment with no
// live replica is counted and skipped rather than raised as an error,
// since the master has no way to reconstruct lost data on its own.
type recoveryEngine struct {
	registry *Registry
	arrays   *arrayStore
	metrics  *metrics
	log      *logrus.Entry
}

func newRecoveryEngine(registry *Registry, arrays *arrayStore, m *metrics, log *logrus.Entry) *recoveryEngine {
	return &recoveryEngine{registry: registry, arrays: arrays, metrics: m, log: log}
}

// recover processes every segment for which failedID was primary:
//  1. Enumerate those segments from the registry's primary index.
//  2. For each, pick the first live worker in its replica list.
//  3. Promote that worker to primary with RECOVER_DATA{makePrimary: true}.
//  4. Update the array's segment table and the registry's indices.
//  5. Pick a third live worker (if any) and replicate the segment to it.
//
// A segment with no live replica is unrecoverable: it is counted and
// left with no primary. failedID is also purged from every segment
// where it was merely a replica holder, since those segments keep their
// existing primary and just lose one replica slot. Once every segment
// has been processed, failedID is removed from the registry entirely.
func (re *recoveryEngine) recover(failedID string) {
	keys := re.registry.PrimarySegmentsOf(failedID)
	for _, key := range keys {
		re.recoverSegment(failedID, key)
	}
	re.purgeStaleReplica(failedID)
	re.registry.Delete(failedID)
}

// purgeStaleReplica removes failedID from the replica list of every
// segment that holds it as a replica (not as primary — those were
// already handled by recoverSegment).
func (re *recoveryEngine) purgeStaleReplica(failedID string) {
	for _, arr := range re.arrays.all() {
		for _, seg := range arr.Segments() {
			key := segKey{ArrayID: arr.ID, Start: seg.Start}
			held := false
			for _, id := range seg.Replicas {
				if id == failedID {
					held = true
					break
				}
			}
			if !held {
				continue
			}

			re.registry.RemoveReplica(key, failedID)
			arr.MutateSegment(key.Start, func(s *arraymodel.Segment) {
				remaining := make([]string, 0, len(s.Replicas))
				for _, id := range s.Replicas {
					if id != failedID {
						remaining = append(remaining, id)
					}
				}
				s.Replicas = remaining
			})
		}
	}
}

func (re *recoveryEngine) recoverSegment(failedID string, key segKey) {
	arr, ok := re.arrays.get(key.ArrayID)
	if !ok {
		return
	}
	seg := arr.SegmentByStart(key.Start)
	if seg == nil {
		return
	}

	replicas := re.registry.ReplicasOf(key)
	var promoted *WorkerRecord
	for _, candidateID := range replicas {
		rec, ok := re.registry.Get(candidateID)
		if ok && rec.IsAlive() {
			promoted = rec
			break
		}
	}

	re.registry.RemovePrimary(failedID, key)

	if promoted == nil {
		arr.MutateSegment(key.Start, func(s *arraymodel.Segment) {
			s.Primary = ""
		})
		if re.metrics != nil {
			re.metrics.unrecoverableSegments.Inc()
		}
		re.log.WithFields(logrus.Fields{"arrayId": key.ArrayID, "segmentId": key.Start}).
			Warn("no live replica available, segment unrecoverable")
		return
	}

	re.registry.RemoveReplica(key, promoted.ID)
	re.registry.AddPrimary(promoted.ID, key)
	arr.MutateSegment(key.Start, func(s *arraymodel.Segment) {
		s.Primary = promoted.ID
		remaining := make([]string, 0, len(s.Replicas))
		for _, id := range s.Replicas {
			if id != promoted.ID {
				remaining = append(remaining, id)
			}
		}
		s.Replicas = remaining
	})

	promoted.Send(mustEnvelope(wire.TypeRecoverData, promoted.ID, wire.RecoverDataPayload{
		ArrayID:     key.ArrayID,
		SegmentID:   key.Start,
		MakePrimary: true,
	}))

	if re.metrics != nil {
		re.metrics.recoveriesTotal.Inc()
	}
	re.log.WithFields(logrus.Fields{"arrayId": key.ArrayID, "segmentId": key.Start, "newPrimary": promoted.ID}).
		Info("promoted replica to primary")

	re.replenishReplica(arr, seg, key, promoted.ID)
}

// replenishReplica looks for a third live worker (one that is neither
// the newly promoted primary nor an existing replica holder) and sends
// it a fresh copy of the segment. If none is available the segment
// simply runs with reduced redundancy; this is not an error.
func (re *recoveryEngine) replenishReplica(arr *arraymodel.Array, seg *arraymodel.Segment, key segKey, primaryID string) {
	exclude := map[string]bool{primaryID: true}
	for _, id := range re.registry.ReplicasOf(key) {
		exclude[id] = true
	}

	for _, rec := range re.registry.LiveWorkers() {
		if exclude[rec.ID] {
			continue
		}
		re.registry.AddReplica(key, rec.ID)
		arr.MutateSegment(key.Start, func(s *arraymodel.Segment) {
			s.Replicas = append(s.Replicas, rec.ID)
		})
		rec.Send(mustEnvelope(wire.TypeReplicateData, rec.ID, wire.SegmentPayload{
			ArrayID:    arr.ID,
			SegmentID:  seg.Start,
			StartIndex: seg.Start,
			EndIndex:   seg.End,
			DataType:   arr.DataType,
			Data:       arr.SliceOf(seg),
			IsPrimary:  false,
		}))
		return
	}
}

func mustEnvelope(typ wire.Type, to string, payload interface{}) *wire.Envelope {
	env, err := wire.NewEnvelope(typ, wire.MasterNodeID, to, payload)
	if err != nil {
		return &wire.Envelope{Type: typ, From: wire.MasterNodeID, To: to}
	}
	return env
}
