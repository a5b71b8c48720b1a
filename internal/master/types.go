package master

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vela-systems/distarray/internal/wire"
)

// segKey identifies a segment within the membership index: an array ID
// paired with the segment's start index (its on-wire segmentId).
type segKey struct {
	ArrayID string
	Start   int
}

// WorkerRecord is the master's bookkeeping for one connected worker: its
// live connection, advertised capacity, and liveness state.
type WorkerRecord struct {
	ID     string
	Host   string
	Port   string
	Cores  int
	Memory int64

	conn net.Conn
	out  *wire.OutboundQueue

	mu            sync.Mutex
	lastHeartbeat time.Time

	alive int32 // 0/1, CAS-guarded single-shot liveness latch
}

func newWorkerRecord(id, host, port string, cores int, memory int64, conn net.Conn, out *wire.OutboundQueue) *WorkerRecord {
	w := &WorkerRecord{
		ID:     id,
		Host:   host,
		Port:   port,
		Cores:  cores,
		Memory: memory,
		conn:   conn,
		out:    out,
	}
	w.lastHeartbeat = time.Now()
	atomic.StoreInt32(&w.alive, 1)
	return w
}

// Touch updates the worker's last-heartbeat timestamp to now.
func (w *WorkerRecord) Touch() {
	w.mu.Lock()
	w.lastHeartbeat = time.Now()
	w.mu.Unlock()
}

// LastHeartbeat returns the last time any envelope was received from this worker.
func (w *WorkerRecord) LastHeartbeat() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHeartbeat
}

// IsAlive reports whether this record has not yet been marked dead.
func (w *WorkerRecord) IsAlive() bool {
	return atomic.LoadInt32(&w.alive) == 1
}

// markDead flips the liveness latch exactly once, returning true only for
// the call that performed the transition. This lets the health monitor's
// timer path and a socket's read-failure path race without double-handling
// the same worker.
func (w *WorkerRecord) markDead() bool {
	return atomic.CompareAndSwapInt32(&w.alive, 1, 0)
}

// Send enqueues an envelope for delivery on this worker's connection. It
// never blocks the caller (see wire.OutboundQueue).
func (w *WorkerRecord) Send(e *wire.Envelope) {
	if w.out != nil {
		w.out.Enqueue(e)
	}
}

// Close shuts down the worker's outbound queue and underlying socket.
func (w *WorkerRecord) Close() {
	if w.out != nil {
		w.out.Close()
	}
	if w.conn != nil {
		_ = w.conn.Close()
	}
}
