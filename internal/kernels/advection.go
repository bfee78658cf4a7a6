package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
)

const (
	advectU0 = iota
	advectV0
	advectU1
	advectV1
	advectSolidU
	advectSolidV
	advectSolidLevelset
)

type advection struct {
	cells
	dt, dx         float32
	u0, v0, u1, v1 []float32
	uSolid, vSolid []float32
}

func bindAdvection(groups []*compute.BindGroup) (*advection, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	a := &advection{
		cells:  cells{grid: g, solid: b.f32(advectSolidLevelset, g.w, g.h)},
		dt:     u.Dt,
		dx:     u.Dx,
		u0:     b.f32(advectU0, g.w+1, g.h),
		v0:     b.f32(advectV0, g.w, g.h+1),
		u1:     b.f32(advectU1, g.w+1, g.h),
		v1:     b.f32(advectV1, g.w, g.h+1),
		uSolid: b.f32(advectSolidU, g.w+1, g.h),
		vSolid: b.f32(advectSolidV, g.w, g.h+1),
	}
	if b.err != nil {
		return nil, b.err
	}
	return a, nil
}

// backtrace follows the velocity field one step back from p and keeps the
// result out of solids.
func (a *advection) backtrace(p mgl32.Vec2) mgl32.Vec2 {
	vel := a.velocityAt(a.u0, a.v0, p)
	back := p.Sub(vel.Mul(a.dt / a.dx))
	return a.pushOutOfSolid(a.solid, back)
}

func advectU(groups []*compute.BindGroup) (compute.Kernel, error) {
	a, err := bindAdvection(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i > a.w || j >= a.h {
			return
		}
		k := a.fu(i, j)
		if a.solidFaceU(i, j) {
			a.u1[k] = a.uSolid[k]
			return
		}
		back := a.backtrace(mgl32.Vec2{float32(i), float32(j) + 0.5})
		a.u1[k] = a.sampleU(a.u0, back)
	}, nil
}

func advectV(groups []*compute.BindGroup) (compute.Kernel, error) {
	a, err := bindAdvection(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i >= a.w || j > a.h {
			return
		}
		k := a.fv(i, j)
		if a.solidFaceV(i, j) {
			a.v1[k] = a.vSolid[k]
			return
		}
		back := a.backtrace(mgl32.Vec2{float32(i) + 0.5, float32(j)})
		a.v1[k] = a.sampleV(a.v0, back)
	}, nil
}

const (
	levelsetU0 = iota
	levelsetV0
	levelsetSource
	levelsetTarget
)

// advectLevelset moves the air levelset along the projected velocity.
func advectLevelset(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	u0 := b.f32(levelsetU0, g.w+1, g.h)
	v0 := b.f32(levelsetV0, g.w, g.h+1)
	src := b.f32(levelsetSource, g.w, g.h)
	dst := b.f32(levelsetTarget, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}
	scale := u.Dt / u.Dx

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		p := mgl32.Vec2{float32(i) + 0.5, float32(j) + 0.5}
		back := p.Sub(g.velocityAt(u0, v0, p).Mul(scale))
		dst[g.c(i, j)] = g.sampleCenter(src, back)
	}, nil
}
