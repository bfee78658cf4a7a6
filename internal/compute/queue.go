package compute

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// PassTiming is the accumulated execution time of one debug scope.
type PassTiming struct {
	Scope      string
	Dispatches int
	Total      time.Duration
}

// Queue executes command buffers on a backend. Commands run strictly in
// recording order and each dispatch completes before the next starts.
type Queue struct {
	backend Backend

	mu      sync.Mutex
	timings map[string]*PassTiming

	callbacks sync.WaitGroup
}

func NewQueue(b Backend) *Queue {
	return &Queue{backend: b, timings: make(map[string]*PassTiming)}
}

func (q *Queue) Backend() Backend { return q.backend }

// Submit executes the buffers in order. Remaining work is abandoned when ctx
// is cancelled between two commands.
func (q *Queue) Submit(ctx context.Context, bufs ...*CommandBuffer) error {
	for _, buf := range bufs {
		for i := range buf.commands {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := q.execute(&buf.commands[i]); err != nil {
				return fmt.Errorf("submit %q: %w", buf.label, err)
			}
		}
	}
	return nil
}

func (q *Queue) execute(c *command) error {
	start := time.Now()

	switch c.kind {
	case cmdCopy:
		c.copyFn()
	case cmdDispatch:
		kernel, err := c.pipeline.entry(c.groups)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", c.pipeline.label, err)
		}
		q.backend.Dispatch(c.count, c.pipeline.workgroupSize, kernel)
	}

	q.record(c.scope, time.Since(start))
	return nil
}

func (q *Queue) record(scope string, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.timings[scope]
	if !ok {
		t = &PassTiming{Scope: scope}
		q.timings[scope] = t
	}
	t.Dispatches++
	t.Total += d
}

// OnSubmittedWorkDone calls fn on another goroutine once every submission
// made so far has completed.
func (q *Queue) OnSubmittedWorkDone(fn func()) {
	q.callbacks.Add(1)
	go func() {
		defer q.callbacks.Done()
		fn()
	}()
}

// WaitCallbacks blocks until every pending completion callback has returned.
func (q *Queue) WaitCallbacks() {
	q.callbacks.Wait()
}

// Timings returns the accumulated timings sorted by total time, longest first.
func (q *Queue) Timings() []PassTiming {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PassTiming, 0, len(q.timings))
	for _, t := range q.timings {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func (q *Queue) ResetTimings() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.timings = make(map[string]*PassTiming)
}
