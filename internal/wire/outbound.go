package wire

import (
	"io"
	"sync"
)

// OutboundQueue serializes envelope writes onto a single connection so
// that concurrent producers (distribution, broadcast, recovery, ...)
// never interleave JSON frames on the wire: one dedicated goroutine
// drains sendCh and owns all writes to w.
type OutboundQueue struct {
	w      io.Writer
	sendCh chan *Envelope
	doneCh chan struct{}
	errCh  chan error

	closeOnce sync.Once
}

// NewOutboundQueue starts a goroutine that drains envelopes written to
// the queue and serializes them onto w. The caller must eventually call
// Close.
func NewOutboundQueue(w io.Writer) *OutboundQueue {
	q := &OutboundQueue{
		w:      w,
		sendCh: make(chan *Envelope, 64),
		doneCh: make(chan struct{}),
		errCh:  make(chan error, 1),
	}
	go q.run()
	return q
}

func (q *OutboundQueue) run() {
	for {
		select {
		case e, ok := <-q.sendCh:
			if !ok {
				return
			}
			buf, err := Encode(e)
			if err != nil {
				q.reportErr(err)
				continue
			}
			if _, err := q.w.Write(buf); err != nil {
				q.reportErr(err)
				return
			}
		case <-q.doneCh:
			return
		}
	}
}

func (q *OutboundQueue) reportErr(err error) {
	select {
	case q.errCh <- err:
	default:
	}
}

// Enqueue queues e for delivery. It is fire-and-forget: a full queue or
// a closed connection silently drops the envelope, matching the
// best-effort semantics of recovery and broadcast messages.
func (q *OutboundQueue) Enqueue(e *Envelope) {
	select {
	case q.sendCh <- e:
	case <-q.doneCh:
	default:
		// queue full: drop rather than block the producer.
	}
}

// Err returns the first write error observed, if any.
func (q *OutboundQueue) Err() error {
	select {
	case err := <-q.errCh:
		return err
	default:
		return nil
	}
}

// Close stops the draining goroutine. Safe to call multiple times.
func (q *OutboundQueue) Close() {
	q.closeOnce.Do(func() { close(q.doneCh) })
}
