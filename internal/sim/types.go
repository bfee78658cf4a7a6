package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/host"
	"github.com/san-kum/eulerfluid/internal/storage"
)

var (
	ErrInvalidTicks   = errors.New("sim: ticks must be positive")
	ErrEventDomain    = errors.New("sim: scenario event targets a missing domain")
	ErrNonFiniteField = errors.New("sim: non-finite velocity")
)

// SimError reports a failure at a specific tick of a run.
type SimError struct {
	Tick   uint64
	Domain fluid.DomainID
	Err    error
}

func (e SimError) Error() string {
	return fmt.Sprintf("tick %d, domain %d: %v", e.Tick, e.Domain, e.Err)
}

func (e SimError) Unwrap() error { return e.Err }

// Frame is the state of one domain after a tick, handed to observers.
type Frame struct {
	Tick   fluid.Tick
	Domain fluid.DomainID
	Fields *fluid.Fields
	Sample storage.Sample
}

// Observer is notified after every sampled tick. OnFrame runs on the
// runner goroutine and must not block for long.
type Observer interface {
	OnFrame(f Frame)
}

type ObserverFunc func(Frame)

func (fn ObserverFunc) OnFrame(f Frame) { fn(f) }

// Result summarizes a finished run.
type Result struct {
	Ticks     int
	Samples   []storage.Sample
	Metrics   map[string]float64
	Timings   []compute.PassTiming
	Readbacks host.ReadbackStats
}
