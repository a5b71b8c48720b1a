package worker

import (
	"fmt"
	"sync"

	"github.com/vela-systems/distarray/internal/wire"
)

// segmentKey identifies a segment across arrays: "arrayId#segmentId".
type segmentKey string

func makeSegmentKey(arrayID string, segmentID int) segmentKey {
	return segmentKey(fmt.Sprintf("%s#%d", arrayID, segmentID))
}

// Role distinguishes which of the two disjoint roles a segment is held
// under on this worker.
type Role int

const (
	RoleNone Role = iota
	RolePrimary
	RoleReplica
)

// Segment is the worker's local copy of one array segment.
type Segment struct {
	ArrayID    string
	SegmentID  int
	StartIndex int
	EndIndex   int
	DataType   wire.DataType
	Values     []float64
}

// Store is the worker-side segment store: four disjoint keyed stores
// (primary/replica crossed with int/double) plus a role flag per
// segmentKey. A worker holds at most one primary
// segment per array — a consequence of the partitioner's allocation —
// so the primary stores are keyed by arrayId alone; replica stores are
// keyed by the full segmentKey since a worker may replicate several
// segments of the same array.
type Store struct {
	mu sync.Mutex

	primaryInt    map[string]*Segment
	primaryDouble map[string]*Segment
	replicaInt    map[segmentKey]*Segment
	replicaDouble map[segmentKey]*Segment
	roles         map[segmentKey]Role
}

// NewStore returns an empty segment store.
func NewStore() *Store {
	return &Store{
		primaryInt:    make(map[string]*Segment),
		primaryDouble: make(map[string]*Segment),
		replicaInt:    make(map[segmentKey]*Segment),
		replicaDouble: make(map[segmentKey]*Segment),
		roles:         make(map[segmentKey]Role),
	}
}

// StorePrimary installs seg as the primary copy for its array,
// evicting any replica copy under the same key so a segment never
// holds both roles at once.
func (s *Store) StorePrimary(seg *Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := makeSegmentKey(seg.ArrayID, seg.SegmentID)
	delete(s.replicaInt, key)
	delete(s.replicaDouble, key)

	if seg.DataType == wire.DataTypeInt {
		s.primaryInt[seg.ArrayID] = seg
	} else {
		s.primaryDouble[seg.ArrayID] = seg
	}
	s.roles[key] = RolePrimary
}

// StoreReplica installs seg as a replica copy, keyed by segmentKey. The
// role is forced to replica regardless of any caller-supplied flag,
// matching REPLICATE_DATA handling.
func (s *Store) StoreReplica(seg *Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := makeSegmentKey(seg.ArrayID, seg.SegmentID)
	if seg.DataType == wire.DataTypeInt {
		s.replicaInt[key] = seg
	} else {
		s.replicaDouble[key] = seg
	}
	s.roles[key] = RoleReplica
}

// RoleOf reports the stored role for (arrayID, segmentID), or RoleNone
// if nothing is held for that key.
func (s *Store) RoleOf(arrayID string, segmentID int) Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[makeSegmentKey(arrayID, segmentID)]
}

// PrimaryOf returns this worker's (single) primary segment for
// arrayID, if any.
func (s *Store) PrimaryOf(arrayID string) (*Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seg, ok := s.primaryInt[arrayID]; ok {
		return seg, true
	}
	if seg, ok := s.primaryDouble[arrayID]; ok {
		return seg, true
	}
	return nil, false
}

// Promote moves the replica copy of (arrayID, segmentID) into the
// primary store and flips its role, implementing RECOVER_DATA's
// makePrimary handling. Reports false if no replica copy is held under
// that key.
func (s *Store) Promote(arrayID string, segmentID int) (*Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := makeSegmentKey(arrayID, segmentID)
	if seg, ok := s.replicaInt[key]; ok {
		delete(s.replicaInt, key)
		s.primaryInt[arrayID] = seg
		s.roles[key] = RolePrimary
		return seg, true
	}
	if seg, ok := s.replicaDouble[key]; ok {
		delete(s.replicaDouble, key)
		s.primaryDouble[arrayID] = seg
		s.roles[key] = RolePrimary
		return seg, true
	}
	return nil, false
}
