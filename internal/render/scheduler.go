package render

import (
	"sync"
	"time"
)

// FrameResult is the typed outcome of one asynchronous frame request: either
// a rendered buffer or a per-frame failure, never both.
type FrameResult struct {
	Timestamp time.Duration
	Frame     *FrameBuffer
	Err       error
}

// Scheduler runs frame requests on a bounded pool of render workers. Each
// request is processed independently; requests share no state beyond the
// store snapshots their render functions take.
//
// CancelPending is a synchronous barrier: it blocks until all dispatched work
// has drained, and no request dispatched before the barrier delivers a result
// after it returns. Requests submitted after the barrier proceed normally.
type Scheduler struct {
	slots chan struct{}

	mu  sync.Mutex
	gen uint64

	// inflight tracks requests of the current generation only. CancelPending
	// retires it and waits on the retired group, so an Add from a concurrent
	// Submit always targets a fresh WaitGroup, never one being waited on.
	inflight *sync.WaitGroup
}

// NewScheduler returns a Scheduler with the given worker concurrency.
// workers <= 0 defaults to 1.
func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		slots:    make(chan struct{}, workers),
		inflight: new(sync.WaitGroup),
	}
}

// Submit dispatches a frame request. renderFn runs on a worker; deliver is
// invoked with the result unless the request's generation was cancelled
// before delivery.
func (s *Scheduler) Submit(renderFn func() FrameResult, deliver func(FrameResult)) {
	s.mu.Lock()
	gen := s.gen
	wg := s.inflight
	wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer wg.Done()

		s.slots <- struct{}{}
		defer func() { <-s.slots }()

		res := renderFn()

		s.mu.Lock()
		cancelled := gen != s.gen
		s.mu.Unlock()
		if cancelled {
			return
		}
		deliver(res)
	}()
}

// CancelPending invalidates all dispatched requests and blocks until they
// drain. Any delivery for a pre-barrier request completes before this
// returns; none happens after.
func (s *Scheduler) CancelPending() {
	s.mu.Lock()
	s.gen++
	retired := s.inflight
	s.inflight = new(sync.WaitGroup)
	s.mu.Unlock()

	retired.Wait()
}
