package compute

import (
	"runtime"
	"sync"
)

// minParallelInvocations is the dispatch size below which the parallel
// backend runs inline.
const minParallelInvocations = 1024

type ParallelBackend struct {
	workers int
}

func NewParallelBackend() *ParallelBackend {
	return &ParallelBackend{
		workers: runtime.NumCPU(),
	}
}

func (c *ParallelBackend) Name() string    { return "parallel" }
func (c *ParallelBackend) Available() bool { return c.workers > 1 }
func (c *ParallelBackend) Cleanup()        {}

func (c *ParallelBackend) Dispatch(groups, size Dim3, invoke Kernel) {
	n := groups.Count()
	if n == 0 || size.Count() == 0 {
		return
	}

	if n*size.Count() < minParallelInvocations || n == 1 {
		forEachInvocation(groups, size, 0, n, invoke)
		return
	}

	workers := c.workers
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	chunkSize := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			forEachInvocation(groups, size, start, end, invoke)
		}(start, end)
	}

	wg.Wait()
}

type SerialBackend struct{}

func NewSerialBackend() *SerialBackend { return &SerialBackend{} }

func (s *SerialBackend) Name() string    { return "serial" }
func (s *SerialBackend) Available() bool { return true }
func (s *SerialBackend) Cleanup()        {}

func (s *SerialBackend) Dispatch(groups, size Dim3, invoke Kernel) {
	forEachInvocation(groups, size, 0, groups.Count(), invoke)
}
