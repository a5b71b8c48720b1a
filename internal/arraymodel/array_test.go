package arraymodel

import (
	"testing"

	gc "gopkg.in/check.v1"

	"github.com/vela-systems/distarray/internal/wire"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(ArrayTestSuite))

type ArrayTestSuite struct{}

func (s *ArrayTestSuite) TestPartitionCover(c *gc.C) {
	cases := []struct{ l, w int }{
		{0, 1}, {1, 1}, {10, 3}, {3, 10}, {9, 3}, {100, 7}, {1, 5},
	}
	for _, tc := range cases {
		segs, err := Partition(tc.l, tc.w)
		c.Assert(err, gc.IsNil, gc.Commentf("L=%d W=%d", tc.l, tc.w))

		if tc.l == 0 {
			c.Assert(segs, gc.HasLen, 0)
			continue
		}

		wantCount := tc.l
		if tc.w < wantCount {
			wantCount = tc.w
		}
		c.Assert(segs, gc.HasLen, wantCount)

		total := 0
		minLen, maxLen := segs[0].Len(), segs[0].Len()
		for i, seg := range segs {
			c.Assert(seg.Start < seg.End, gc.Equals, true)
			if i > 0 {
				c.Assert(seg.Start, gc.Equals, segs[i-1].End)
			}
			if seg.Len() < minLen {
				minLen = seg.Len()
			}
			if seg.Len() > maxLen {
				maxLen = seg.Len()
			}
			total += seg.Len()
		}
		c.Assert(total, gc.Equals, tc.l)
		c.Assert(segs[0].Start, gc.Equals, 0)
		c.Assert(segs[len(segs)-1].End, gc.Equals, tc.l)
		c.Assert(maxLen-minLen <= 1, gc.Equals, true)
	}
}

func (s *ArrayTestSuite) TestPartitionS1TenAcrossThree(c *gc.C) {
	segs, err := Partition(10, 3)
	c.Assert(err, gc.IsNil)
	c.Assert(segs, gc.HasLen, 3)
	c.Assert(*segs[0], gc.DeepEquals, Segment{Start: 0, End: 4})
	c.Assert(*segs[1], gc.DeepEquals, Segment{Start: 4, End: 7})
	c.Assert(*segs[2], gc.DeepEquals, Segment{Start: 7, End: 10})
}

func (s *ArrayTestSuite) TestPartitionSingleWorker(c *gc.C) {
	segs, err := Partition(3, 1)
	c.Assert(err, gc.IsNil)
	c.Assert(segs, gc.HasLen, 1)
	c.Assert(*segs[0], gc.DeepEquals, Segment{Start: 0, End: 3})
}

func (s *ArrayTestSuite) TestPartitionEmptyFleet(c *gc.C) {
	_, err := Partition(10, 0)
	c.Assert(err, gc.Equals, ErrEmptyFleet)
}

func (s *ArrayTestSuite) TestSliceOf(c *gc.C) {
	a, err := NewArray("a", wire.DataTypeInt, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3)
	c.Assert(err, gc.IsNil)
	segs := a.Segments()
	c.Assert(a.SliceOf(segs[1]), gc.DeepEquals, []float64{5, 6, 7})
}

func (s *ArrayTestSuite) TestMutateSegment(c *gc.C) {
	a, err := NewArray("a", wire.DataTypeInt, []float64{1, 2, 3}, 1)
	c.Assert(err, gc.IsNil)

	ok := a.MutateSegment(0, func(seg *Segment) {
		seg.Primary = "w0"
		seg.Replicas = []string{"w1"}
	})
	c.Assert(ok, gc.Equals, true)

	seg := a.SegmentByStart(0)
	c.Assert(seg.Primary, gc.Equals, "w0")
	c.Assert(seg.Replicas, gc.DeepEquals, []string{"w1"})

	c.Assert(a.MutateSegment(99, func(*Segment) {}), gc.Equals, false)
}
