package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Queue is C5's rate-control mechanism: a single FIFO queue that serializes
// all outbound requests behind one worker goroutine, so at most one upstream
// call is ever in flight (spec.md §4.3, §5).
//
// Grounded on warming/service.go's use of golang.org/x/time/rate — a
// burst-1 rate.Limiter IS a minimum-dispatch-interval gate, so
// rate.NewLimiter(rate.Every(minInterval), 1) reproduces spec.md §4.3's
// "wait at least minInterval since the previous dispatch" precisely.
// The single-worker-over-a-channel shape follows spec.md §9's re-architecture
// note: "a worker task consuming a bounded request channel; each request
// carries a reply channel."
type Queue struct {
	limiter *rate.Limiter
	reqCh   chan dispatchRequest
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type dispatchRequest struct {
	ctx   context.Context
	fn    func(ctx context.Context) (interface{}, error)
	reply chan dispatchResult
}

type dispatchResult struct {
	val interface{}
	err error
}

// NewQueue starts the single dispatch worker, gated at one dispatch per
// minInterval.
func NewQueue(minInterval time.Duration) *Queue {
	q := &Queue{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		reqCh:   make(chan dispatchRequest),
		stopCh:  make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Do enqueues fn and blocks until it has been dispatched and completed, or
// ctx is cancelled. If ctx is cancelled before dispatch, the request is
// discarded without ever running fn (spec.md §5 cancellation semantics).
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	reply := make(chan dispatchResult, 1)
	req := dispatchRequest{ctx: ctx, fn: fn, reply: reply}

	select {
	case q.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.stopCh:
		return nil, context.Canceled
	}

	select {
	case res := <-reply:
		return res.val, res.err
	case <-ctx.Done():
		// The worker may already have taken the request: fn then sees this
		// same cancelled ctx, and its result is discarded through the
		// buffered reply channel. Nothing keeps the call alive for anyone
		// else, so when a bracket single-flight leader's ctx is cancelled,
		// the fetch its coalesced followers share is cut short as well.
		return nil, ctx.Err()
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case req := <-q.reqCh:
			q.dispatch(req)
		}
	}
}

func (q *Queue) dispatch(req dispatchRequest) {
	if req.ctx.Err() != nil {
		// Discarded: cancelled before it ever reached the front of the queue.
		return
	}

	if err := q.limiter.Wait(req.ctx); err != nil {
		select {
		case req.reply <- dispatchResult{err: err}:
		default:
		}
		return
	}

	val, err := req.fn(req.ctx)
	select {
	case req.reply <- dispatchResult{val: val, err: err}:
	default:
	}
}

// Stop halts the dispatch worker. In-flight dispatches complete normally.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}
