package worker

import (
	"io"
	"net"
	"time"

	gc "gopkg.in/check.v1"

	"github.com/vela-systems/distarray/internal/wire"
)

var _ = gc.Suite(new(WorkerTestSuite))

type WorkerTestSuite struct{}

// newTestWorker wires up a Worker against one end of an in-memory pipe,
// returning the Worker and the peer conn used to read what it writes.
func newTestWorker(c *gc.C) (*Worker, net.Conn) {
	cfg := Config{WorkerID: "w0", MasterAddress: "unused:0"}
	c.Assert(cfg.Validate(), gc.IsNil)

	local, peer := net.Pipe()
	w := &Worker{
		cfg:   cfg,
		store: NewStore(),
		log:   cfg.Logger,
		conn:  local,
		fr:    wire.NewFrameReader(local),
		out:   wire.NewOutboundQueue(local),
	}
	w.pool = newComputePool(1, w.log, w.handleComputeResult)
	return w, peer
}

func readEnvelope(c *gc.C, conn net.Conn) *wire.Envelope {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	fr := wire.NewFrameReader(conn)
	env, err := fr.ReadEnvelope()
	c.Assert(err, gc.IsNil)
	return env
}

func (s *WorkerTestSuite) TestHandleDistributeArrayStoresPrimary(c *gc.C) {
	w, peer := newTestWorker(c)
	defer peer.Close()
	defer w.pool.Close()

	env, err := wire.NewEnvelope(wire.TypeDistributeArray, "master", "w0", wire.SegmentPayload{
		ArrayID: "a", SegmentID: 0, StartIndex: 0, EndIndex: 3,
		DataType: wire.DataTypeDouble, Data: []float64{1, 2, 3}, IsPrimary: true,
	})
	c.Assert(err, gc.IsNil)

	w.dispatch(env)

	c.Assert(w.store.RoleOf("a", 0), gc.Equals, RolePrimary)
	seg, ok := w.store.PrimaryOf("a")
	c.Assert(ok, gc.Equals, true)
	c.Assert(seg.Values, gc.DeepEquals, []float64{1, 2, 3})
}

func (s *WorkerTestSuite) TestHandleReplicateDataForcesReplicaRole(c *gc.C) {
	w, peer := newTestWorker(c)
	defer peer.Close()
	defer w.pool.Close()

	env, err := wire.NewEnvelope(wire.TypeReplicateData, "master", "w0", wire.SegmentPayload{
		ArrayID: "a", SegmentID: 4, StartIndex: 4, EndIndex: 7,
		DataType: wire.DataTypeDouble, Data: []float64{4, 5, 6}, IsPrimary: true,
	})
	c.Assert(err, gc.IsNil)

	w.dispatch(env)

	c.Assert(w.store.RoleOf("a", 4), gc.Equals, RoleReplica)
}

func (s *WorkerTestSuite) TestHandleRecoverDataPromotesAndReplies(c *gc.C) {
	w, peer := newTestWorker(c)
	defer peer.Close()
	defer w.pool.Close()

	w.store.StoreReplica(&Segment{ArrayID: "a", SegmentID: 4, DataType: wire.DataTypeDouble, Values: []float64{4, 5, 6}})

	env, err := wire.NewEnvelope(wire.TypeRecoverData, "master", "w0", wire.RecoverDataPayload{
		ArrayID: "a", SegmentID: 4, MakePrimary: true,
	})
	c.Assert(err, gc.IsNil)

	done := make(chan struct{})
	go func() {
		w.dispatch(env)
		close(done)
	}()

	reply := readEnvelope(c, peer)
	<-done

	c.Assert(reply.Type, gc.Equals, wire.TypeRecoveryComplete)
	c.Assert(w.store.RoleOf("a", 4), gc.Equals, RolePrimary)

	var p wire.RecoveryCompletePayload
	c.Assert(reply.Unmarshal(&p), gc.IsNil)
	c.Assert(p.ArrayID, gc.Equals, "a")
	c.Assert(p.SegmentID, gc.Equals, 4)
}

func (s *WorkerTestSuite) TestHandleRecoverDataWithNoReplicaIsIgnored(c *gc.C) {
	w, peer := newTestWorker(c)
	defer peer.Close()
	defer w.pool.Close()

	env, err := wire.NewEnvelope(wire.TypeRecoverData, "master", "w0", wire.RecoverDataPayload{
		ArrayID: "a", SegmentID: 99, MakePrimary: true,
	})
	c.Assert(err, gc.IsNil)

	w.dispatch(env)
	c.Assert(w.store.RoleOf("a", 99), gc.Equals, RoleNone)
}

func (s *WorkerTestSuite) TestHandleProcessSegmentRunsKernelAndReplies(c *gc.C) {
	w, peer := newTestWorker(c)
	defer peer.Close()
	defer w.pool.Close()

	w.store.StorePrimary(&Segment{ArrayID: "a", SegmentID: 0, DataType: wire.DataTypeDouble, Values: []float64{1, 2, 3}})

	env, err := wire.NewEnvelope(wire.TypeProcessSegment, "master", "w0", wire.ProcessSegmentPayload{
		ArrayID: "a", Operation: "example1",
	})
	c.Assert(err, gc.IsNil)

	done := make(chan struct{})
	go func() {
		w.dispatch(env)
		close(done)
	}()

	reply := readEnvelope(c, peer)
	<-done

	c.Assert(reply.Type, gc.Equals, wire.TypeSegmentResult)
	var p wire.SegmentResultPayload
	c.Assert(reply.Unmarshal(&p), gc.IsNil)
	c.Assert(p.Status, gc.Equals, "complete")
	c.Assert(p.Data, gc.DeepEquals, []float64{2, 4, 6})
}

func (s *WorkerTestSuite) TestHandleProcessSegmentWithNoPrimaryIsNoop(c *gc.C) {
	w, peer := newTestWorker(c)
	defer peer.Close()
	defer w.pool.Close()

	env, err := wire.NewEnvelope(wire.TypeProcessSegment, "master", "w0", wire.ProcessSegmentPayload{
		ArrayID: "missing", Operation: "example1",
	})
	c.Assert(err, gc.IsNil)

	w.dispatch(env)

	// Give the (empty) compute pool a moment; then confirm no frame was written.
	peer.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, 1)
	_, err = peer.Read(buf)
	c.Assert(err, gc.NotNil, gc.Commentf("expected a read timeout, got a frame instead"))
	if ne, ok := err.(net.Error); ok {
		c.Assert(ne.Timeout(), gc.Equals, true)
	} else {
		c.Assert(err, gc.Equals, io.EOF)
	}
}
