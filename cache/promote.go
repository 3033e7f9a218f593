package cache

import (
	"log"
	"sync"
)

// PromotionQueue is the fire-and-forget background worker pool backing
// Composite's optional promotion behavior (spec.md §4.2 invariant 3, §9
// design note: "must be fire-and-forget so it never contributes to request
// latency... bound the promotion work queue to avoid unbounded growth").
//
// Adapted from warming/worker_pool.go's bounded-channel + fixed-worker-pool
// shape: a full queue silently drops the task (logged) rather than blocking
// the caller, exactly as the teacher's WorkerPool.QueueTasks does for warm
// tasks it can't accept.
type PromotionQueue struct {
	tasks  chan promotionTask
	stopCh chan struct{}
	wg     sync.WaitGroup
	logf   func(format string, args ...interface{})
}

type promotionTask struct {
	key      string
	value    []byte
	targets  []Backend
	fromIdx  int
	metaFrom Backend
}

// PromotionQueueConfig configures PromotionQueue construction.
type PromotionQueueConfig struct {
	// Workers is the number of concurrent promotion goroutines.
	Workers int
	// QueueSize bounds how many pending promotions may queue before new
	// ones are dropped.
	QueueSize int
	Logf      func(format string, args ...interface{})
}

// NewPromotionQueue starts Workers goroutines draining a QueueSize-bounded
// channel of promotion tasks.
func NewPromotionQueue(cfg PromotionQueueConfig) *PromotionQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}

	q := &PromotionQueue{
		tasks:  make(chan promotionTask, cfg.QueueSize),
		stopCh: make(chan struct{}),
		logf:   cfg.Logf,
	}

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.run()
	}

	return q
}

// Enqueue submits a promotion task. If the queue is full the task is
// dropped and logged; it never blocks the caller.
func (q *PromotionQueue) Enqueue(t promotionTask) {
	select {
	case q.tasks <- t:
	default:
		q.logf("cache: promotion queue full, dropping promotion for key %q", t.key)
	}
}

func (q *PromotionQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case t := <-q.tasks:
			q.promote(t)
		}
	}
}

func (q *PromotionQueue) promote(t promotionTask) {
	meta, err := t.metaFrom.GetMetadata(t.key)
	if err != nil || meta == nil {
		// The source already expired or faulted; nothing sensible to promote.
		return
	}

	for _, target := range t.targets {
		if err := target.Set(t.key, t.value, meta.TTL); err != nil {
			q.logf("cache: promotion to %s failed for key %q: %v", target.Name(), t.key, err)
		}
	}
}

// Stop stops all workers and waits for them to exit. A promotion already
// running finishes; tasks still waiting in the queue are not guaranteed to
// run.
func (q *PromotionQueue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}
