package host

import (
	"time"

	"github.com/san-kum/eulerfluid/internal/fluid"
)

// Clock is a fixed-step physics clock. Tick numbers start at 1.
type Clock struct {
	dt      float32
	tick    uint64
	elapsed time.Duration
	backlog time.Duration
}

func NewClock(hz float64) *Clock {
	if hz <= 0 {
		hz = 60
	}
	return &Clock{dt: float32(1 / hz)}
}

func (c *Clock) Dt() float32 { return c.dt }

// Current is the last tick handed out, or the zero tick before the first.
func (c *Clock) Current() fluid.Tick {
	if c.tick == 0 {
		return fluid.Tick{}
	}
	return fluid.Tick{Number: c.tick, Dt: c.dt}
}

// Next advances one fixed step.
func (c *Clock) Next() fluid.Tick {
	c.tick++
	c.elapsed += c.step()
	return fluid.Tick{Number: c.tick, Dt: c.dt}
}

// Advance adds wall time and returns the number of fixed steps now due.
// The caller runs Next that many times.
func (c *Clock) Advance(d time.Duration) int {
	c.backlog += d
	n := int(c.backlog / c.step())
	c.backlog -= time.Duration(n) * c.step()
	return n
}

// Elapsed is the simulated time of the ticks handed out so far.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

func (c *Clock) step() time.Duration {
	return time.Duration(float64(c.dt) * float64(time.Second))
}
