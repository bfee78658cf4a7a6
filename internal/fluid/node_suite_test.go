package fluid

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/kernels"
)

func TestFluid(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fluid Suite")
}

func smallSettings() Settings {
	s := DefaultSettings()
	s.Width, s.Height = 16, 16
	return s
}

func tick(n uint64) Tick { return Tick{Number: n, Dt: 1.0 / 60} }

func timing(q *compute.Queue, scope string) compute.PassTiming {
	for _, t := range q.Timings() {
		if t.Scope == scope {
			return t
		}
	}
	return compute.PassTiming{Scope: scope}
}

var _ = Describe("Domain scheduling", func() {
	var (
		ctx context.Context
		sim *Simulation
		id  DomainID
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		sim, err = NewSimulation(compute.NewDevice(compute.NewSerialBackend()), Options{
			LengthUnit:          10,
			JacobiIterations:    4,
			ExtrapolationPasses: 2,
		})
		Expect(err).NotTo(HaveOccurred())
		id, err = sim.Add(smallSettings())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sim.Close()
	})

	Context("before the shader module is loaded", func() {
		It("stays in Loading without error", func() {
			for n := uint64(1); n <= 3; n++ {
				Expect(sim.Poll(ctx, id, tick(n))).To(Succeed())
			}
			info, err := sim.Info(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.State).To(Equal(StateLoading))
			Expect(info.Steps).To(BeZero())
		})

		It("refuses the velocity overlay", func() {
			_, err := sim.VelocityArrows(ctx, id, 4)
			Expect(err).To(MatchError(ErrNotReady))
		})
	})

	Context("once the pipelines are ready", func() {
		BeforeEach(func() {
			sim.LoadShaders()
			sim.WaitPipelines()
		})

		It("initializes and steps on the first tick", func() {
			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			info, _ := sim.Info(id)
			Expect(info.State).To(Equal(StateUpdate))
			Expect(info.Steps).To(Equal(1))
			Expect(info.LastTick).To(BeEquivalentTo(1))
			Expect(timing(sim.Device().Queue, "initialize").Dispatches).To(Equal(1))
		})

		It("steps at most once per tick", func() {
			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			info, _ := sim.Info(id)
			Expect(info.State).To(Equal(StateIdle))
			Expect(info.Steps).To(Equal(1))

			Expect(sim.Poll(ctx, id, tick(2))).To(Succeed())
			info, _ = sim.Info(id)
			Expect(info.State).To(Equal(StateUpdate))
			Expect(info.Steps).To(Equal(2))
		})

		It("re-runs initialize after Reset", func() {
			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			Expect(sim.Reset(id)).To(Succeed())
			info, _ := sim.Info(id)
			Expect(info.State).To(Equal(StateInit))

			Expect(sim.Poll(ctx, id, tick(2))).To(Succeed())
			Expect(timing(sim.Device().Queue, "initialize").Dispatches).To(Equal(2))
			info, _ = sim.Info(id)
			Expect(info.State).To(Equal(StateUpdate))
		})

		It("records every step pass", func() {
			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			for _, scope := range []string{
				"update_solid", "advect_velocity", "apply_forces", "divergence",
				"solve_pressure", "solve_velocity", "extrapolate_velocity",
				"advect_levelset", "reinitialize_levelset", "fluid_to_solid",
			} {
				Expect(timing(sim.Device().Queue, scope).Dispatches).To(BeNumerically(">", 0), scope)
			}
			Expect(timing(sim.Device().Queue, "solve_pressure").Dispatches).To(Equal(8))
		})

		It("delivers one readback per step", func() {
			var (
				mu  sync.Mutex
				got []ForceReadback
			)
			sim.OnReadback(func(r ForceReadback) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, r)
			})
			for n := uint64(1); n <= 3; n++ {
				Expect(sim.Poll(ctx, id, tick(n))).To(Succeed())
			}
			Expect(sim.Poll(ctx, id, tick(3))).To(Succeed())
			sim.Close()

			mu.Lock()
			defer mu.Unlock()
			var ticks []uint64
			for _, r := range got {
				Expect(r.Domain).To(Equal(id))
				Expect(r.Forces).To(HaveLen(256))
				ticks = append(ticks, r.Tick)
			}
			Expect(ticks).To(ConsistOf(uint64(1), uint64(2), uint64(3)))
		})

		It("returns the overlay arrows", func() {
			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			arrows, err := sim.VelocityArrows(ctx, id, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(arrows).To(HaveLen(16))
		})

		It("leaves the domain alone when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			err := sim.Poll(cancelled, id, tick(1))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			info, _ := sim.Info(id)
			Expect(info.State).To(Equal(StateInit))

			Expect(sim.Poll(ctx, id, tick(1))).To(Succeed())
			info, _ = sim.Info(id)
			Expect(info.State).To(Equal(StateUpdate))
		})
	})

	Context("when an entry point is missing", func() {
		BeforeEach(func() {
			sim.Device().Library.Load(compute.NewShaderModule(kernels.ModuleName))
			sim.WaitPipelines()
		})

		It("fails permanently", func() {
			err := sim.Poll(ctx, id, tick(1))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, ErrDomainFailed)).To(BeTrue())
			Expect(errors.Is(err, compute.ErrEntryPointNotFound)).To(BeTrue())

			var de *DomainError
			Expect(errors.As(err, &de)).To(BeTrue())
			Expect(de.Domain).To(Equal(id))
			Expect(de.State).To(Equal(StateLoading))

			again := sim.Poll(ctx, id, tick(2))
			Expect(again).To(BeIdenticalTo(err))
			info, _ := sim.Info(id)
			Expect(info.State).To(Equal(StateFailed))
		})

		It("ignores Reset", func() {
			_ = sim.Poll(ctx, id, tick(1))
			Expect(sim.Reset(id)).To(Succeed())
			info, _ := sim.Info(id)
			Expect(info.State).To(Equal(StateFailed))
		})
	})

	Describe("the domain arena", func() {
		It("reports added domains once", func() {
			Expect(sim.Added()).To(Equal([]DomainID{id}))
			Expect(sim.Added()).To(BeEmpty())

			other, err := sim.Add(smallSettings())
			Expect(err).NotTo(HaveOccurred())
			Expect(other).NotTo(Equal(id))
			Expect(sim.Added()).To(Equal([]DomainID{other}))
			Expect(sim.IDs()).To(Equal([]DomainID{id, other}))
		})

		It("forgets removed domains", func() {
			Expect(sim.Remove(id)).To(Succeed())
			Expect(sim.Poll(ctx, id, tick(1))).To(MatchError(ErrUnknownDomain))
			Expect(sim.Remove(id)).To(MatchError(ErrUnknownDomain))
			_, err := sim.Snapshot(id)
			Expect(err).To(MatchError(ErrUnknownDomain))
		})

		It("rejects invalid settings", func() {
			s := smallSettings()
			s.Rho = 0
			_, err := sim.Add(s)
			Expect(err).To(MatchError(ErrInvalidDensity))
		})

		It("polls every domain", func() {
			other, err := sim.Add(smallSettings())
			Expect(err).NotTo(HaveOccurred())
			sim.LoadShaders()
			sim.WaitPipelines()

			Expect(sim.PollAll(ctx, tick(1))).To(Succeed())
			for _, d := range []DomainID{id, other} {
				info, _ := sim.Info(d)
				Expect(info.Steps).To(Equal(1))
			}
		})
	})
})
