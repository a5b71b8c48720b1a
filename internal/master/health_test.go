package master

import (
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(HealthTestSuite))

type HealthTestSuite struct{}

func discardLogger() *logrus.Entry {
	return logrus.NewEntry(&logrus.Logger{Out: io.Discard, Formatter: new(logrus.JSONFormatter), Level: logrus.InfoLevel})
}

func (s *HealthTestSuite) TestSweepMarksStaleWorkerDeadExactlyOnce(c *gc.C) {
	reg := NewRegistry()
	local, peer := net.Pipe()
	defer peer.Close()
	rec := newWorkerRecord("w0", "h", "1", 1, 0, local, nil)
	reg.Register(rec)

	// Force staleness.
	rec.mu.Lock()
	rec.lastHeartbeat = time.Now().Add(-1 * time.Hour)
	rec.mu.Unlock()

	var calls int
	hm := newHealthMonitor(reg, 10*time.Second, 5*time.Second, func(id string) {
		calls++
	}, discardLogger())

	hm.sweep()
	hm.sweep()

	c.Assert(calls, gc.Equals, 1)
	c.Assert(rec.IsAlive(), gc.Equals, false)
	c.Assert(reg.Count(), gc.Equals, 0)
}

func (s *HealthTestSuite) TestSweepLeavesFreshWorkerAlone(c *gc.C) {
	reg := NewRegistry()
	local, peer := net.Pipe()
	defer peer.Close()
	rec := newWorkerRecord("w0", "h", "1", 1, 0, local, nil)
	reg.Register(rec)

	var calls int
	hm := newHealthMonitor(reg, 10*time.Second, 5*time.Second, func(id string) {
		calls++
	}, discardLogger())

	hm.sweep()
	c.Assert(calls, gc.Equals, 0)
	c.Assert(reg.Count(), gc.Equals, 1)
}
