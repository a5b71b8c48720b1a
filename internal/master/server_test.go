package master

import (
	"context"
	"net"
	"time"

	gc "gopkg.in/check.v1"

	"github.com/vela-systems/distarray/internal/client"
	"github.com/vela-systems/distarray/internal/wire"
)

var _ = gc.Suite(new(ServerTestSuite))

type ServerTestSuite struct{}

// connectFakeWorker dials addr, registers as id, and returns the
// connection's FrameReader so the test can observe what the master
// sends it.
func connectFakeWorker(c *gc.C, addr, id string) (net.Conn, *wire.FrameReader) {
	conn, err := net.Dial("tcp", addr)
	c.Assert(err, gc.IsNil)

	env, err := wire.NewEnvelope(wire.TypeRegisterWorker, id, wire.MasterNodeID, wire.RegisterWorkerPayload{
		Host: "127.0.0.1", Port: "0", Cores: 1, Memory: 512,
	})
	c.Assert(err, gc.IsNil)
	buf, err := wire.Encode(env)
	c.Assert(err, gc.IsNil)
	_, err = conn.Write(buf)
	c.Assert(err, gc.IsNil)

	return conn, wire.NewFrameReader(conn)
}

func startTestMaster(c *gc.C) (*Master, context.CancelFunc, string) {
	cfg := Config{ListenAddress: "127.0.0.1:0", MaxConcurrentHandlers: 4}
	m, err := New(cfg)
	c.Assert(err, gc.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	addr := m.Addr().String()
	return m, cancel, addr
}

func (s *ServerTestSuite) TestCreateArrayWithNoWorkersReturnsError(c *gc.C) {
	_, cancel, addr := startTestMaster(c)
	defer cancel()

	cl := client.New(addr)
	resp, err := cl.CreateArray("a", wire.DataTypeDouble, []float64{1, 2, 3})
	c.Assert(err, gc.IsNil)
	c.Assert(resp.Status, gc.Equals, wire.StatusError)
}

func (s *ServerTestSuite) TestCreateArrayDistributesAndApplyBroadcasts(c *gc.C) {
	_, cancel, addr := startTestMaster(c)
	defer cancel()

	conn, fr := connectFakeWorker(c, addr, "w0")
	defer conn.Close()

	cl := client.New(addr)
	resp, err := cl.CreateArray("a", wire.DataTypeDouble, []float64{1, 2, 3})
	c.Assert(err, gc.IsNil)
	c.Assert(resp.Status, gc.Equals, wire.StatusCreated)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	dist, err := fr.ReadEnvelope()
	c.Assert(err, gc.IsNil)
	c.Assert(dist.Type, gc.Equals, wire.TypeDistributeArray)

	applyResp, err := cl.ApplyOperation("a", "example1")
	c.Assert(err, gc.IsNil)
	c.Assert(applyResp.Status, gc.Equals, wire.StatusProcessing)

	proc, err := fr.ReadEnvelope()
	c.Assert(err, gc.IsNil)
	c.Assert(proc.Type, gc.Equals, wire.TypeProcessSegment)

	result, err := cl.GetResult("a")
	c.Assert(err, gc.IsNil)
	c.Assert(result.Status, gc.Equals, wire.StatusComplete)
}

func (s *ServerTestSuite) TestGetResultBeforeApplyReturnsCreated(c *gc.C) {
	_, cancel, addr := startTestMaster(c)
	defer cancel()

	conn, _ := connectFakeWorker(c, addr, "w0")
	defer conn.Close()

	cl := client.New(addr)
	_, err := cl.CreateArray("a", wire.DataTypeDouble, []float64{1, 2, 3})
	c.Assert(err, gc.IsNil)

	result, err := cl.GetResult("a")
	c.Assert(err, gc.IsNil)
	c.Assert(result.Status, gc.Equals, wire.StatusCreated)
}

func (s *ServerTestSuite) TestDuplicateRegistrationReplacesPriorConnection(c *gc.C) {
	m, cancel, addr := startTestMaster(c)
	defer cancel()

	conn1, _ := connectFakeWorker(c, addr, "w0")
	defer conn1.Close()

	// Give the master a moment to process the first registration.
	time.Sleep(50 * time.Millisecond)

	conn2, _ := connectFakeWorker(c, addr, "w0")
	defer conn2.Close()

	time.Sleep(50 * time.Millisecond)
	c.Assert(m.registry.Count(), gc.Equals, 1)
}
