package host

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/gomega"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

func readback(domain fluid.DomainID, tick uint64, forces ...kernels.SolidForce) fluid.ForceReadback {
	return fluid.ForceReadback{Domain: domain, Tick: tick, Dt: 0.5, Dx: 0.1, Forces: forces}
}

func upward(fy float32) kernels.SolidForce {
	return kernels.SolidForce{Force: mgl32.Vec2{0, fy}}
}

func TestApplyDropsStaleReadbacks(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{})
	e := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}})

	var applied []bool
	for _, tick := range []uint64{1, 1, 3, 2, 4} {
		applied = append(applied, w.Apply(readback(0, tick, upward(6))))
	}

	g.Expect(applied).To(Equal([]bool{true, false, true, false, true}))
	g.Expect(w.Stats()).To(Equal(ReadbackStats{Applied: 3, Stale: 2}))
	g.Expect(w.PendingForce(e).Force.Y()).To(BeNumerically("~", 3.6, 1e-5))
}

func TestApplyTracksDomainsSeparately(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{})
	w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}})

	g.Expect(w.Apply(readback(0, 5, upward(1)))).To(BeTrue())
	g.Expect(w.Apply(readback(1, 2, upward(1)))).To(BeTrue())
	g.Expect(w.Apply(readback(1, 2, upward(1)))).To(BeFalse())
	g.Expect(w.Apply(readback(0, 4, upward(1)))).To(BeFalse())
}

func TestApplyOnlyMovesDynamicBodies(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{})
	static := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}, Type: obstacle.Static})
	kinematic := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}, Type: obstacle.Kinematic})
	dynamic := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}})

	w.Apply(readback(0, 1, upward(1), upward(1), upward(1)))

	g.Expect(w.PendingForce(static)).To(Equal(ExternalForce{}))
	g.Expect(w.PendingForce(kinematic)).To(Equal(ExternalForce{}))
	g.Expect(w.PendingForce(dynamic).Force.Y()).To(BeNumerically("~", 0.2, 1e-6))
}

func TestStepIntegratesForces(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{0, -10})
	ball := obstacle.Ball{Radius: 1}
	falling := w.Spawn(BodySpec{Collider: ball, Density: 1})
	floating := w.Spawn(BodySpec{Collider: ball, Density: 1})
	fixed := w.Spawn(BodySpec{Collider: ball, Density: 1, Type: obstacle.Static, Position: mgl32.Vec2{3, 0}})

	// exactly cancels gravity on the second ball: m = pi, F = 10 pi
	forces := make([]kernels.SolidForce, 3)
	forces[1] = upward(10 * ball.Area() * 0.5 / 0.1)
	g.Expect(w.Apply(readback(0, 1, forces...))).To(BeTrue())

	w.Step(0.1)

	p, ok := w.Pose(falling)
	g.Expect(ok).To(BeTrue())
	g.Expect(p.Position.Y()).To(BeNumerically("~", -0.1, 1e-5))

	p, _ = w.Pose(floating)
	g.Expect(p.Position.Y()).To(BeNumerically("~", 0, 1e-4))

	p, _ = w.Pose(fixed)
	g.Expect(p.Position).To(Equal(mgl32.Vec2{3, 0}))

	g.Expect(w.PendingForce(floating)).To(Equal(ExternalForce{}))
}

func TestKinematicBodiesKeepVelocity(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{0, -10})
	e := w.Spawn(BodySpec{
		Collider:        obstacle.Cuboid{HalfExtents: mgl32.Vec2{0.5, 0.5}},
		Type:            obstacle.Kinematic,
		LinearVelocity:  mgl32.Vec2{1, 0},
		AngularVelocity: 2,
	})
	w.Step(0.5)
	w.Step(0.5)

	p, _ := w.Pose(e)
	g.Expect(p.Position.X()).To(BeNumerically("~", 1, 1e-6))
	g.Expect(p.Position.Y()).To(BeNumerically("~", 0, 1e-6))
	g.Expect(p.Angle).To(BeNumerically("~", 2, 1e-6))
}

func TestBodiesFollowSpawnOrder(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{})
	a := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 1}, Position: mgl32.Vec2{1, 0}})
	w.Spawn(BodySpec{Collider: obstacle.Cuboid{HalfExtents: mgl32.Vec2{1, 1}}, Type: obstacle.Static})
	w.Spawn(BodySpec{Collider: obstacle.Capsule{HalfHeight: 1, Radius: 1}})

	bodies := w.Bodies()
	g.Expect(bodies).To(HaveLen(3))
	g.Expect(bodies[0].Collider).To(Equal(obstacle.Ball{Radius: 1}))
	g.Expect(bodies[0].Transform.Col(3)).To(Equal(mgl32.Vec4{1, 0, 0, 1}))
	g.Expect(bodies[1].Type).To(Equal(obstacle.Static))
	g.Expect(bodies[2].Collider.ColliderName()).To(Equal("capsule"))

	w.Despawn(a)
	w.Despawn(a)
	g.Expect(w.Len()).To(Equal(2))
	g.Expect(w.Bodies()[0].Type).To(Equal(obstacle.Static))
	_, ok := w.Pose(a)
	g.Expect(ok).To(BeFalse())
}

func TestDespawnRemovesBody(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{})
	a := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 1}})
	b := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 2}})

	w.Despawn(a)
	_, ok := w.Pose(a)
	g.Expect(ok).To(BeFalse())
	g.Expect(w.PendingForce(a)).To(Equal(ExternalForce{}))
	g.Expect(w.Len()).To(Equal(1))

	_, ok = w.Pose(b)
	g.Expect(ok).To(BeTrue())
	g.Expect(w.Bodies()[0].Collider).To(Equal(obstacle.Ball{Radius: 2}))

	w.Step(0.1)
	w.Despawn(a)
	g.Expect(w.Len()).To(Equal(1))
}

func TestApplyUsesLayoutOfReadbackTick(t *testing.T) {
	g := NewWithT(t)
	w := NewWorld(mgl32.Vec2{})
	a := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}})
	b := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}})
	c := w.Spawn(BodySpec{Collider: obstacle.Ball{Radius: 0.1}})

	g.Expect(w.BodiesAt(1)).To(HaveLen(3))
	w.Despawn(a)
	g.Expect(w.BodiesAt(2)).To(HaveLen(2))

	// tick 1 was stepped with ids a=0, b=1, c=2
	g.Expect(w.Apply(readback(0, 1, upward(1), upward(2), upward(3)))).To(BeTrue())
	g.Expect(w.PendingForce(b).Force.Y()).To(BeNumerically("~", 0.4, 1e-6))
	g.Expect(w.PendingForce(c).Force.Y()).To(BeNumerically("~", 0.6, 1e-6))

	// tick 2 with ids b=0, c=1
	g.Expect(w.Apply(readback(0, 2, upward(1), upward(1)))).To(BeTrue())
	g.Expect(w.PendingForce(b).Force.Y()).To(BeNumerically("~", 0.6, 1e-6))
	g.Expect(w.PendingForce(c).Force.Y()).To(BeNumerically("~", 0.8, 1e-6))
}

func TestClock(t *testing.T) {
	g := NewWithT(t)
	c := NewClock(50)
	g.Expect(c.Current()).To(Equal(fluid.Tick{}))

	first := c.Next()
	g.Expect(first.Number).To(BeEquivalentTo(1))
	g.Expect(first.Dt).To(BeNumerically("~", 0.02, 1e-7))
	g.Expect(c.Next().Number).To(BeEquivalentTo(2))
	g.Expect(c.Current().Number).To(BeEquivalentTo(2))
	g.Expect(c.Elapsed()).To(BeNumerically("~", 40*time.Millisecond, time.Microsecond))

	g.Expect(c.Advance(50 * time.Millisecond)).To(Equal(2))
	g.Expect(c.Advance(30 * time.Millisecond)).To(Equal(2))
	g.Expect(c.Advance(5 * time.Millisecond)).To(Equal(0))
}
