package master

import (
	"net"

	gc "gopkg.in/check.v1"

	"github.com/vela-systems/distarray/internal/arraymodel"
	"github.com/vela-systems/distarray/internal/wire"
)

var _ = gc.Suite(new(RecoveryTestSuite))

type RecoveryTestSuite struct{}

func drainFrames(c *gc.C, conn net.Conn, n int) {
	fr := wire.NewFrameReader(conn)
	for i := 0; i < n; i++ {
		_, err := fr.ReadEnvelope()
		c.Assert(err, gc.IsNil)
	}
}

// Three workers, RF=2, W1 holds segment1 primary + segment0 replica.
// Killing W1 must promote W2 (segment1's replica) to primary and
// replenish a fresh replica on W0; segment0 loses its only replica and
// is left with none.
func (s *RecoveryTestSuite) TestRecoverPromotesReplicaAndReplenishes(c *gc.C) {
	reg := NewRegistry()
	arrays := newArrayStore()

	var peers []net.Conn
	for _, id := range []string{"w0", "w1", "w2"} {
		local, peer := net.Pipe()
		peers = append(peers, peer)
		out := wire.NewOutboundQueue(local)
		reg.Register(newWorkerRecord(id, "h", "1", 1, 0, local, out))
	}
	defer func() {
		for _, p := range peers {
			p.Close()
		}
	}()

	arr, err := arraymodel.NewArray("a", wire.DataTypeDouble, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 3)
	c.Assert(err, gc.IsNil)
	arrays.put(arr)

	distribute(arr, reg.LiveWorkers(), reg, 2)

	// Each worker is primary for one segment and replica for another:
	// w0 gets seg0 (primary) + seg2 (replica); w1 gets seg1 + seg0;
	// w2 gets seg2 + seg1 -- two frames apiece.
	drainFrames(c, peers[0], 2)
	drainFrames(c, peers[1], 2)
	drainFrames(c, peers[2], 2)

	re := newRecoveryEngine(reg, arrays, nil, discardLogger())
	reg.MarkDead("w1")
	re.recover("w1")

	segs := arr.Segments()
	c.Assert(segs[1].Primary, gc.Equals, "w2")
	c.Assert(segs[1].Replicas, gc.DeepEquals, []string{"w0"})
	c.Assert(segs[0].Primary, gc.Equals, "w0")
	c.Assert(segs[0].Replicas, gc.HasLen, 0)

	_, ok := reg.Get("w1")
	c.Assert(ok, gc.Equals, false)
}

func (s *RecoveryTestSuite) TestRecoverUnrecoverableSegmentIsSkipped(c *gc.C) {
	reg := NewRegistry()
	arrays := newArrayStore()

	local, peer := net.Pipe()
	defer peer.Close()
	out := wire.NewOutboundQueue(local)
	reg.Register(newWorkerRecord("w0", "h", "1", 1, 0, local, out))

	arr, err := arraymodel.NewArray("a", wire.DataTypeInt, []float64{1, 2, 3}, 1)
	c.Assert(err, gc.IsNil)
	arrays.put(arr)

	distribute(arr, reg.LiveWorkers(), reg, 2)
	drainFrames(c, peer, 1)

	m := newMetrics(nil)
	re := newRecoveryEngine(reg, arrays, m, discardLogger())
	reg.MarkDead("w0")
	re.recover("w0")

	seg := arr.SegmentByStart(0)
	c.Assert(seg.Primary, gc.Equals, "")
}
