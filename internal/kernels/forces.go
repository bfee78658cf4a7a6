package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
)

const (
	forceList = iota
	forceU1
	forceV1
	forceAir
	forceSolid
)

// gridForce is a point force moved into the grid frame and scaled to a
// velocity change per unit weight.
type gridForce struct {
	pos   mgl32.Vec2
	delta mgl32.Vec2
}

type forcing struct {
	cells
	gravity mgl32.Vec2
	forces  []gridForce
	u1, v1  []float32
}

func bindForces(groups []*compute.BindGroup) (*forcing, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	list := bufferOf[LocalForce](b, forceList)
	f := &forcing{
		cells: cells{grid: g, air: b.f32(forceAir, g.w, g.h), solid: b.f32(forceSolid, g.w, g.h)},
		u1:    b.f32(forceU1, g.w+1, g.h),
		v1:    b.f32(forceV1, g.w, g.h+1),
	}
	if b.err != nil {
		return nil, b.err
	}

	f.gravity = u.WorldDirToGrid(u.Gravity).Mul(u.Dt)
	scale := u.Dt / (u.Rho * u.Dx * u.Dx)
	for _, lf := range list.Live() {
		f.forces = append(f.forces, gridForce{
			pos:   u.WorldToGrid(lf.Position),
			delta: u.WorldDirToGrid(lf.Force).Mul(scale),
		})
	}
	return f, nil
}

// tent is the bilinear weight of a force at q for a sample at p.
func tent(p, q mgl32.Vec2) float32 {
	return max(0, 1-abs32(p.X()-q.X())) * max(0, 1-abs32(p.Y()-q.Y()))
}

func (f *forcing) pointForces(p mgl32.Vec2, axis int) float32 {
	var sum float32
	for _, pf := range f.forces {
		if w := tent(p, pf.pos); w > 0 {
			sum += w * pf.delta[axis]
		}
	}
	return sum
}

// applyForceU adds gravity to x-faces next to fluid and gathers the point
// forces onto every open face.
func applyForceU(groups []*compute.BindGroup) (compute.Kernel, error) {
	f, err := bindForces(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i > f.w || j >= f.h || f.solidFaceU(i, j) {
			return
		}
		k := f.fu(i, j)
		if f.fluidFaceU(i, j) {
			f.u1[k] += f.gravity.X()
		}
		f.u1[k] += f.pointForces(mgl32.Vec2{float32(i), float32(j) + 0.5}, 0)
	}, nil
}

func applyForceV(groups []*compute.BindGroup) (compute.Kernel, error) {
	f, err := bindForces(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i >= f.w || j > f.h || f.solidFaceV(i, j) {
			return
		}
		k := f.fv(i, j)
		if f.fluidFaceV(i, j) {
			f.v1[k] += f.gravity.Y()
		}
		f.v1[k] += f.pointForces(mgl32.Vec2{float32(i) + 0.5, float32(j)}, 1)
	}, nil
}
