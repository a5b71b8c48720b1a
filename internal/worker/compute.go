package worker

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vela-systems/distarray/internal/kernel"
)

// computeTask is one unit of work submitted to the compute pool: run
// operation over seg and report the outcome back to w.
type computeTask struct {
	seg       *Segment
	operation string
}

// computePool runs kernel invocations across a bounded number of
// persistent goroutines draining a shared task channel.
type computePool struct {
	taskCh chan computeTask
	wg     sync.WaitGroup
	log    *logrus.Entry
	onDone func(seg *Segment, result []float64, err error)
}

func newComputePool(size int, log *logrus.Entry, onDone func(seg *Segment, result []float64, err error)) *computePool {
	p := &computePool{
		taskCh: make(chan computeTask),
		log:    log,
		onDone: onDone,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *computePool) worker() {
	defer p.wg.Done()
	for task := range p.taskCh {
		fn, err := kernel.Lookup(task.operation)
		if err != nil {
			p.log.WithField("operation", task.operation).Warn("unknown kernel operation")
			p.onDone(task.seg, nil, err)
			continue
		}
		p.onDone(task.seg, fn(task.seg.Values), nil)
	}
}

// Submit enqueues a task, blocking until a worker is free to accept it.
func (p *computePool) Submit(seg *Segment, operation string) {
	p.taskCh <- computeTask{seg: seg, operation: operation}
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (p *computePool) Close() {
	close(p.taskCh)
	p.wg.Wait()
}
