package worker

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/vela-systems/distarray/internal/wire"
)

// Worker maintains one long-lived connection to the master, a local
// segment store, and a bounded compute pool that executes kernels over
// primary segments.
type Worker struct {
	cfg   Config
	store *Store
	pool  *computePool
	log   *logrus.Entry

	conn net.Conn
	fr   *wire.FrameReader
	out  *wire.OutboundQueue

	shuttingDown int32
}

// New validates cfg and constructs a Worker. Dial must be called before
// Run.
func New(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		cfg:   cfg,
		store: NewStore(),
		log:   cfg.Logger,
	}, nil
}

// Dial opens the connection to the master and sends REGISTER_WORKER.
func (w *Worker) Dial() error {
	conn, err := net.Dial("tcp", w.cfg.MasterAddress)
	if err != nil {
		return xerrors.Errorf("worker: dial master at %s: %w", w.cfg.MasterAddress, err)
	}

	w.conn = conn
	w.fr = wire.NewFrameReader(conn)
	w.out = wire.NewOutboundQueue(conn)

	env, err := wire.NewEnvelope(wire.TypeRegisterWorker, w.cfg.WorkerID, wire.MasterNodeID, wire.RegisterWorkerPayload{
		Host:   w.cfg.AdvertiseHost,
		Port:   w.cfg.AdvertisePort,
		Cores:  w.cfg.ComputePoolSize,
		Memory: w.cfg.Memory,
	})
	if err != nil {
		conn.Close()
		return err
	}
	w.out.Enqueue(env)
	return nil
}

// Close tears down the worker's connection and compute pool.
func (w *Worker) Close() {
	if w.out != nil {
		w.out.Close()
	}
	if w.conn != nil {
		w.conn.Close()
	}
	if w.pool != nil {
		w.pool.Close()
	}
}

// Run starts the heartbeat goroutine and the compute pool, then blocks
// draining envelopes from the master until the connection fails or ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.pool = newComputePool(w.cfg.ComputePoolSize, w.log, w.handleComputeResult)

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	go w.heartbeatLoop(hbCtx)

	// Closing the connection unblocks a pending ReadEnvelope once ctx is
	// cancelled.
	go func() {
		<-hbCtx.Done()
		if ctx.Err() != nil {
			atomic.StoreInt32(&w.shuttingDown, 1)
			w.conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		env, err := w.fr.ReadEnvelope()
		if err != nil {
			if atomic.LoadInt32(&w.shuttingDown) == 1 {
				return nil
			}
			return xerrors.Errorf("worker: connection to master failed: %w", err)
		}
		w.dispatch(env)
	}
}

// heartbeatLoop writes a HEARTBEAT envelope every cfg.HeartbeatInterval.
// A write failure terminates the loop without attempting reconnection.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			env, err := wire.NewEnvelope(wire.TypeHeartbeat, w.cfg.WorkerID, wire.MasterNodeID, struct{}{})
			if err != nil {
				continue
			}
			w.out.Enqueue(env)
			if err := w.out.Err(); err != nil {
				w.log.WithError(err).Warn("heartbeat write failed, stopping heartbeat loop")
				return
			}
		}
	}
}

func (w *Worker) dispatch(env *wire.Envelope) {
	switch env.Type {
	case wire.TypeDistributeArray:
		w.handleSegmentPayload(env, true)
	case wire.TypeReplicateData:
		w.handleSegmentPayload(env, false)
	case wire.TypeRecoverData:
		w.handleRecoverData(env)
	case wire.TypeProcessSegment:
		w.handleProcessSegment(env)
	case wire.TypeShutdown:
		w.log.Info("received shutdown command")
		atomic.StoreInt32(&w.shuttingDown, 1)
		w.Close()
	default:
		w.log.WithField("type", env.Type).Debug("ignoring unexpected envelope")
	}
}

func (w *Worker) handleSegmentPayload(env *wire.Envelope, isPrimary bool) {
	var p wire.SegmentPayload
	if err := env.Unmarshal(&p); err != nil {
		w.log.WithError(err).Warn("malformed segment payload")
		return
	}

	seg := &Segment{
		ArrayID:    p.ArrayID,
		SegmentID:  p.SegmentID,
		StartIndex: p.StartIndex,
		EndIndex:   p.EndIndex,
		DataType:   p.DataType,
		Values:     p.Data,
	}

	// DISTRIBUTE_ARRAY's isPrimary is authoritative; REPLICATE_DATA's
	// role is always forced to replica regardless of the wire payload.
	if isPrimary && p.IsPrimary {
		w.store.StorePrimary(seg)
		w.log.WithFields(logrus.Fields{"arrayId": p.ArrayID, "segmentId": p.SegmentID}).Info("stored primary segment")
	} else {
		w.store.StoreReplica(seg)
		w.log.WithFields(logrus.Fields{"arrayId": p.ArrayID, "segmentId": p.SegmentID}).Info("stored replica segment")
	}
}

func (w *Worker) handleRecoverData(env *wire.Envelope) {
	var p wire.RecoverDataPayload
	if err := env.Unmarshal(&p); err != nil {
		w.log.WithError(err).Warn("malformed RECOVER_DATA payload")
		return
	}
	if !p.MakePrimary {
		return
	}

	if _, ok := w.store.Promote(p.ArrayID, p.SegmentID); !ok {
		w.log.WithFields(logrus.Fields{"arrayId": p.ArrayID, "segmentId": p.SegmentID}).
			Warn("RECOVER_DATA for segment not held as replica, ignoring")
		return
	}

	env, err := wire.NewEnvelope(wire.TypeRecoveryComplete, w.cfg.WorkerID, wire.MasterNodeID, wire.RecoveryCompletePayload{
		ArrayID:   p.ArrayID,
		SegmentID: p.SegmentID,
		Status:    "complete",
	})
	if err != nil {
		return
	}
	w.out.Enqueue(env)
	w.log.WithFields(logrus.Fields{"arrayId": p.ArrayID, "segmentId": p.SegmentID}).Info("promoted replica to primary")
}

func (w *Worker) handleProcessSegment(env *wire.Envelope) {
	var p wire.ProcessSegmentPayload
	if err := env.Unmarshal(&p); err != nil {
		w.log.WithError(err).Warn("malformed PROCESS_SEGMENT payload")
		return
	}

	seg, ok := w.store.PrimaryOf(p.ArrayID)
	if !ok {
		return
	}
	w.pool.Submit(seg, p.Operation)
}

func (w *Worker) handleComputeResult(seg *Segment, result []float64, err error) {
	status := "complete"
	if err != nil {
		status = "error"
		result = nil
		w.log.WithError(err).WithFields(logrus.Fields{"arrayId": seg.ArrayID, "segmentId": seg.SegmentID}).
			Warn("kernel execution failed")
	}

	reply, buildErr := wire.NewEnvelope(wire.TypeSegmentResult, w.cfg.WorkerID, wire.MasterNodeID, wire.SegmentResultPayload{
		ArrayID:   seg.ArrayID,
		SegmentID: seg.SegmentID,
		Status:    status,
		Data:      result,
	})
	if buildErr != nil {
		return
	}
	w.out.Enqueue(reply)
}
