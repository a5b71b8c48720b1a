// Package arraymodel holds an array's values and its segment table, and
// computes the balanced partition used to place segments across a fleet.
package arraymodel

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/vela-systems/distarray/internal/wire"
)

// ErrEmptyFleet is returned by Partition when called with zero workers.
var ErrEmptyFleet = xerrors.New("arraymodel: cannot partition across an empty fleet")

// Status is a coarse lifecycle marker for an array. Its only reader is
// the master's GET_RESULT handler, which picks its reply from it;
// placement, recovery and the apply broadcast never read it.
type Status string

const (
	StatusCreated    Status = "created"
	StatusDistributed Status = "distributed"
	StatusProcessed  Status = "processed"
)

// Segment is a half-open index range [Start, End) over an array's values,
// and the bookkeeping of which workers currently host it.
type Segment struct {
	Start   int
	End     int
	Primary string
	Replicas []string
}

// Len returns the number of elements in the segment.
func (s *Segment) Len() int { return s.End - s.Start }

// Array is the master's view of a created array: its immutable value
// vector and its mutable segment ownership table.
type Array struct {
	ID       string
	DataType wire.DataType
	Values   []float64
	Status   Status

	mu       sync.RWMutex
	segments []*Segment
}

// NewArray stores the immutable value vector and computes its segments
// via Partition. W is the number of live workers at creation time.
func NewArray(id string, dataType wire.DataType, values []float64, numWorkers int) (*Array, error) {
	segs, err := Partition(len(values), numWorkers)
	if err != nil {
		return nil, err
	}
	return &Array{
		ID:       id,
		DataType: dataType,
		Values:   values,
		Status:   StatusCreated,
		segments: segs,
	}, nil
}

// Partition produces the segment list defined by the partition invariant:
// exactly min(totalSize, numWorkers) segments, the first totalSize mod
// numWorkers of them with length ceil(totalSize/numWorkers), the rest
// with length floor(totalSize/numWorkers), emitted in index order.
// Empty segments are never created.
func Partition(totalSize, numWorkers int) ([]*Segment, error) {
	if numWorkers <= 0 {
		return nil, ErrEmptyFleet
	}
	if totalSize == 0 {
		return nil, nil
	}

	numSegments := totalSize
	if numWorkers < numSegments {
		numSegments = numWorkers
	}

	base := totalSize / numSegments
	remainder := totalSize % numSegments

	segments := make([]*Segment, 0, numSegments)
	start := 0
	for i := 0; i < numSegments; i++ {
		length := base
		if i < remainder {
			length++
		}
		segments = append(segments, &Segment{Start: start, End: start + length})
		start += length
	}
	return segments, nil
}

// Segments returns a copy of the array's segment list. The *Segment
// values themselves are shared with the array, so later MutateSegment
// calls are visible through them.
func (a *Array) Segments() []*Segment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// SliceOf returns the element range backing seg.
func (a *Array) SliceOf(seg *Segment) []float64 {
	return a.Values[seg.Start:seg.End]
}

// SegmentByStart returns the segment identified by its start index
// (the on-wire segmentId), or nil if none matches.
func (a *Array) SegmentByStart(start int) *Segment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, seg := range a.segments {
		if seg.Start == start {
			return seg
		}
	}
	return nil
}

// SetStatus updates the array's informational status.
func (a *Array) SetStatus(status Status) {
	a.mu.Lock()
	a.Status = status
	a.mu.Unlock()
}

// CurrentStatus returns the array's informational status.
func (a *Array) CurrentStatus() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Status
}

// MutateSegment runs fn with exclusive access to the segment identified by
// start, used by the placement and recovery engines to update primary and
// replica assignments under a single lock.
func (a *Array) MutateSegment(start int, fn func(seg *Segment)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, seg := range a.segments {
		if seg.Start == start {
			fn(seg)
			return true
		}
	}
	return false
}
