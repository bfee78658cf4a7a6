package kernels

import (
	"github.com/san-kum/eulerfluid/internal/compute"
)

const (
	initU0 = iota
	initV0
	initU1
	initV1
	initP0
	initP1
	initLevelset0
	initLevelset1
	initDivergence
)

// initialize zeroes velocity and pressure and sets the air levelset to a
// flat surface at InitialFluidLevel of the height. Dispatched over
// FaceDispatch.
func initialize(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	u0 := b.f32(initU0, g.w+1, g.h)
	v0 := b.f32(initV0, g.w, g.h+1)
	u1 := b.f32(initU1, g.w+1, g.h)
	v1 := b.f32(initV1, g.w, g.h+1)
	p0 := b.f32(initP0, g.w, g.h)
	p1 := b.f32(initP1, g.w, g.h)
	ls0 := b.f32(initLevelset0, g.w, g.h)
	ls1 := b.f32(initLevelset1, g.w, g.h)
	div := b.f32(initDivergence, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}

	surface := clamp(u.InitialFluidLevel, 0, 1) * float32(g.h)

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i <= g.w && j < g.h {
			k := g.fu(i, j)
			u0[k], u1[k] = 0, 0
		}
		if i < g.w && j <= g.h {
			k := g.fv(i, j)
			v0[k], v1[k] = 0, 0
		}
		if g.inside(i, j) {
			k := g.c(i, j)
			p0[k], p1[k], div[k] = 0, 0, 0
			phi := float32(j) + 0.5 - surface
			ls0[k], ls1[k] = phi, phi
		}
	}, nil
}
