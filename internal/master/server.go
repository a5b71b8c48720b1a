package master

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/vela-systems/distarray/internal/arraymodel"
	"github.com/vela-systems/distarray/internal/wire"
)

// Master is the coordination-plane server: it accepts both worker and
// client TCP connections on one listener and classifies each by its
// first frame.
type Master struct {
	cfg         Config
	registry    *Registry
	arrays      *arrayStore
	metrics     *metrics
	metricsReg  *prometheus.Registry
	recovery    *recoveryEngine
	health      *healthMonitor
	sem         chan struct{}
	log         *logrus.Entry

	readyCh chan struct{}
	addr    net.Addr
}

// New validates cfg and wires up a Master ready to Run.
func New(cfg Config) (*Master, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Master{
		cfg:        cfg,
		registry:   NewRegistry(),
		arrays:     newArrayStore(),
		log:        cfg.Logger,
		sem:        make(chan struct{}, cfg.MaxConcurrentHandlers),
		readyCh:    make(chan struct{}),
		metricsReg: prometheus.NewRegistry(),
	}
	m.metrics = newMetrics(m.metricsReg)
	m.recovery = newRecoveryEngine(m.registry, m.arrays, m.metrics, m.log)
	m.health = newHealthMonitor(m.registry, cfg.HeartbeatTimeout, cfg.HealthCheckInterval, m.recovery.recover, m.log)
	return m, nil
}

// Run listens on cfg.ListenAddress and serves until ctx is cancelled. It
// returns an error only when the listener cannot be bound; accept errors
// are logged and the loop keeps accepting. It returns nil on a clean,
// context-driven shutdown.
func (m *Master) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.ListenAddress)
	if err != nil {
		return xerrors.Errorf("master: listen on %s: %w", m.cfg.ListenAddress, err)
	}
	defer ln.Close()

	m.addr = ln.Addr()
	close(m.readyCh)

	if m.cfg.MetricsAddress != "" {
		go m.serveMetrics()
	}

	go m.health.Run(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	m.log.WithField("addr", ln.Addr().String()).Info("master listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				m.log.WithError(err).Warn("accept failed")
				continue
			}
		}

		select {
		case m.sem <- struct{}{}:
			go func() {
				defer func() { <-m.sem }()
				m.handleConnection(ctx, conn)
			}()
		default:
			// handler pool saturated: refuse rather than queue unbounded.
			conn.Close()
		}
	}
}

func (m *Master) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.metricsReg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: m.cfg.MetricsAddress, Handler: mux}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		m.log.WithError(err).Warn("metrics server stopped")
	}
}

// handleConnection reads exactly one frame to classify the connection,
// then either hands it off to the long-lived worker loop or treats it
// as a one-shot client request.
func (m *Master) handleConnection(ctx context.Context, conn net.Conn) {
	fr := wire.NewFrameReader(conn)
	first, err := fr.ReadEnvelope()
	if err != nil {
		conn.Close()
		return
	}

	if first.Type == wire.TypeRegisterWorker {
		m.handleWorkerConnection(ctx, conn, fr, first)
		return
	}

	defer conn.Close()
	m.handleClientRequest(conn, first)
}

// handleWorkerConnection registers the worker and then loops reading
// further envelopes (heartbeats, segment results, recovery-complete
// notices) until the connection fails, at which point the worker is
// declared dead exactly once, unless a later registration under the same
// id has already replaced this connection's record.
func (m *Master) handleWorkerConnection(ctx context.Context, conn net.Conn, fr *wire.FrameReader, reg *wire.Envelope) {
	var payload wire.RegisterWorkerPayload
	if err := reg.Unmarshal(&payload); err != nil {
		conn.Close()
		return
	}

	workerID := reg.From
	out := wire.NewOutboundQueue(conn)
	rec := newWorkerRecord(workerID, payload.Host, payload.Port, payload.Cores, payload.Memory, conn, out)

	if previous, replaced := m.registry.Register(rec); replaced {
		m.log.WithField("workerId", workerID).Info("duplicate registration, replacing prior connection")
		previous.Close()
	} else {
		m.log.WithField("workerId", workerID).Info("worker registered")
	}

	defer func() {
		conn.Close()
		out.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := fr.ReadEnvelope()
		if err != nil {
			// A connection orphaned by a later registration under the same
			// id must not declare the replacement record dead.
			if cur, ok := m.registry.Get(workerID); !ok || cur != rec {
				return
			}
			if _, dead := m.registry.MarkDead(workerID); dead {
				m.log.WithField("workerId", workerID).Warn("worker connection failed, declaring dead")
				m.recovery.recover(workerID)
			}
			return
		}

		m.registry.Touch(workerID)
		m.dispatchWorkerEnvelope(env)
	}
}

func (m *Master) dispatchWorkerEnvelope(env *wire.Envelope) {
	switch env.Type {
	case wire.TypeHeartbeat:
		// Touch already applied above; nothing further to do.
	case wire.TypeSegmentResult:
		var p wire.SegmentResultPayload
		if err := env.Unmarshal(&p); err == nil {
			m.log.WithFields(logrus.Fields{"arrayId": p.ArrayID, "segmentId": p.SegmentID, "status": p.Status}).
				Debug("segment result received")
		}
	case wire.TypeRecoveryComplete:
		var p wire.RecoveryCompletePayload
		if err := env.Unmarshal(&p); err == nil {
			m.log.WithFields(logrus.Fields{"arrayId": p.ArrayID, "segmentId": p.SegmentID, "status": p.Status}).
				Info("worker reports recovery complete")
		}
	default:
		m.log.WithField("type", env.Type).Debug("ignoring unexpected envelope on worker channel")
	}
}

// handleClientRequest services exactly one client envelope and writes at
// most one reply before the connection is closed by the caller; an
// envelope of an unknown type gets no reply.
func (m *Master) handleClientRequest(conn net.Conn, env *wire.Envelope) {
	corrID := newCorrelationID()
	log := m.log.WithFields(logrus.Fields{"correlationId": corrID, "type": env.Type, "from": env.From})
	log.Debug("handling client request")

	reply := m.dispatchClientEnvelope(env)
	if reply == nil {
		log.Debug("no reply for request")
		return
	}
	buf, err := wire.Encode(reply)
	if err != nil {
		log.WithError(err).Warn("failed to encode reply")
		return
	}
	if _, err := conn.Write(buf); err != nil {
		log.WithError(err).Warn("failed to write reply")
	}
}

func (m *Master) dispatchClientEnvelope(env *wire.Envelope) *wire.Envelope {
	switch env.Type {
	case wire.TypeCreateArray:
		return m.handleCreateArray(env)
	case wire.TypeApplyOperation:
		return m.handleApplyOperation(env)
	case wire.TypeGetResult:
		return m.handleGetResult(env)
	default:
		m.log.WithField("type", env.Type).Warn("unknown envelope type on client channel")
		return nil
	}
}

func (m *Master) handleCreateArray(env *wire.Envelope) *wire.Envelope {
	var p wire.CreateArrayPayload
	if err := env.Unmarshal(&p); err != nil {
		return errorReply(env.From, p.ArrayID, "malformed CREATE_ARRAY payload")
	}

	workers := m.registry.LiveWorkers()
	if len(workers) == 0 {
		return errorReply(env.From, p.ArrayID, "no workers available")
	}

	arr, err := arraymodel.NewArray(p.ArrayID, p.DataType, p.Values, len(workers))
	if err != nil {
		return errorReply(env.From, p.ArrayID, err.Error())
	}

	m.arrays.put(arr)
	distribute(arr, workers, m.registry, m.cfg.ReplicationFactor)
	m.refreshGauges()

	return statusReply(env.From, p.ArrayID, wire.StatusCreated)
}

func (m *Master) handleApplyOperation(env *wire.Envelope) *wire.Envelope {
	var p wire.ApplyOperationPayload
	if err := env.Unmarshal(&p); err != nil {
		return errorReply(env.From, "", "malformed APPLY_OPERATION payload")
	}

	arr, ok := m.arrays.get(p.ArrayID)
	if !ok {
		return errorReply(env.From, p.ArrayID, "unknown array")
	}

	applyOperationToArray(m.registry, p.ArrayID, p.Operation)
	arr.SetStatus(arraymodel.StatusProcessed)

	return statusReply(env.From, p.ArrayID, wire.StatusProcessing)
}

// handleGetResult does not aggregate worker results: the reply reflects
// only whether an APPLY_OPERATION has been broadcast for this array.
func (m *Master) handleGetResult(env *wire.Envelope) *wire.Envelope {
	var p wire.GetResultPayload
	if err := env.Unmarshal(&p); err != nil {
		return errorReply(env.From, "", "malformed GET_RESULT payload")
	}

	arr, ok := m.arrays.get(p.ArrayID)
	if !ok {
		return errorReply(env.From, p.ArrayID, "unknown array")
	}

	if arr.CurrentStatus() == arraymodel.StatusProcessed {
		reply, _ := wire.NewEnvelope(wire.TypeOperationComplete, wire.MasterNodeID, env.From, wire.OperationCompletePayload{
			Status: wire.StatusComplete,
			Result: "Operation completed successfully",
		})
		return reply
	}

	return statusReply(env.From, p.ArrayID, wire.StatusCreated)
}

func (m *Master) refreshGauges() {
	if m.metrics == nil {
		return
	}
	m.metrics.workersAlive.Set(float64(m.registry.Count()))

	var segs, reps float64
	for _, arr := range m.arrays.all() {
		for _, seg := range arr.Segments() {
			segs++
			reps += float64(len(seg.Replicas))
		}
	}
	m.metrics.segmentsTotal.Set(segs)
	m.metrics.replicasTotal.Set(reps)
}

func errorReply(to, arrayID, msg string) *wire.Envelope {
	env, _ := wire.NewEnvelope(wire.TypeOperationComplete, wire.MasterNodeID, to, wire.OperationCompletePayload{
		Status:  wire.StatusError,
		ArrayID: arrayID,
		Error:   msg,
	})
	return env
}

func statusReply(to, arrayID string, status wire.OperationStatus) *wire.Envelope {
	env, _ := wire.NewEnvelope(wire.TypeOperationComplete, wire.MasterNodeID, to, wire.OperationCompletePayload{
		Status:  status,
		ArrayID: arrayID,
	})
	return env
}

// newCorrelationID produces an opaque id for log correlation; it never
// appears on the wire.
func newCorrelationID() string {
	return uuid.NewString()
}

// Addr blocks until Run has bound its listener, then returns its
// address. Used by tests to discover the ephemeral port chosen when
// Config.ListenAddress requests port 0.
func (m *Master) Addr() net.Addr {
	<-m.readyCh
	return m.addr
}
