package kernels

import (
	"github.com/san-kum/eulerfluid/internal/compute"
)

const (
	divU1 = iota
	divV1
	divSolidU
	divSolidV
	divAir
	divSolid
	divOut
)

// divergence computes the net outflow of every fluid cell. Faces against
// solids or the domain wall carry the solid velocity.
func divergence(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	u1 := b.f32(divU1, g.w+1, g.h)
	v1 := b.f32(divV1, g.w, g.h+1)
	uSolid := b.f32(divSolidU, g.w+1, g.h)
	vSolid := b.f32(divSolidV, g.w, g.h+1)
	c := cells{grid: g, air: b.f32(divAir, g.w, g.h), solid: b.f32(divSolid, g.w, g.h)}
	out := b.f32(divOut, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}

	faceU := func(i, j int) float32 {
		if c.solidFaceU(i, j) {
			return uSolid[g.fu(i, j)]
		}
		return u1[g.fu(i, j)]
	}
	faceV := func(i, j int) float32 {
		if c.solidFaceV(i, j) {
			return vSolid[g.fv(i, j)]
		}
		return v1[g.fv(i, j)]
	}

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		k := g.c(i, j)
		if !c.isFluid(i, j) {
			out[k] = 0
			return
		}
		out[k] = faceU(i+1, j) - faceU(i, j) + faceV(i, j+1) - faceV(i, j)
	}, nil
}

const (
	jacobiIn = iota
	jacobiOut
	jacobiDivergence
	jacobiAir
	jacobiSolid
)

// jacobiIteration is one Jacobi sweep of the pressure Poisson equation.
// Solid and out-of-domain neighbours mirror the centre pressure; air
// neighbours hold zero.
func jacobiIteration(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	in := b.f32(jacobiIn, g.w, g.h)
	out := b.f32(jacobiOut, g.w, g.h)
	div := b.f32(jacobiDivergence, g.w, g.h)
	c := cells{grid: g, air: b.f32(jacobiAir, g.w, g.h), solid: b.f32(jacobiSolid, g.w, g.h)}
	if b.err != nil {
		return nil, b.err
	}

	neighbor := func(i, j int, center float32) float32 {
		if !g.inside(i, j) || c.isSolid(i, j) {
			return center
		}
		if c.isAir(i, j) {
			return 0
		}
		return in[g.c(i, j)]
	}

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		k := g.c(i, j)
		if !c.isFluid(i, j) {
			out[k] = 0
			return
		}
		pc := in[k]
		sum := neighbor(i-1, j, pc) + neighbor(i+1, j, pc) + neighbor(i, j-1, pc) + neighbor(i, j+1, pc)
		out[k] = (sum - div[k]) / 4
	}, nil
}

const (
	solveU1 = iota
	solveV1
	solvePressure
	solveSolidU
	solveSolidV
	solveAir
	solveSolid
	solveU0
	solveV0
)

type projection struct {
	cells
	u1, v1, p      []float32
	uSolid, vSolid []float32
	u0, v0         []float32
}

func bindProjection(groups []*compute.BindGroup) (*projection, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	p := &projection{
		cells:  cells{grid: g, air: b.f32(solveAir, g.w, g.h), solid: b.f32(solveSolid, g.w, g.h)},
		u1:     b.f32(solveU1, g.w+1, g.h),
		v1:     b.f32(solveV1, g.w, g.h+1),
		p:      b.f32(solvePressure, g.w, g.h),
		uSolid: b.f32(solveSolidU, g.w+1, g.h),
		vSolid: b.f32(solveSolidV, g.w, g.h+1),
		u0:     b.f32(solveU0, g.w+1, g.h),
		v0:     b.f32(solveV0, g.w, g.h+1),
	}
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

// solveVelocityU subtracts the pressure gradient from the x-faces.
func solveVelocityU(groups []*compute.BindGroup) (compute.Kernel, error) {
	p, err := bindProjection(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i > p.w || j >= p.h {
			return
		}
		k := p.fu(i, j)
		switch {
		case p.solidFaceU(i, j):
			p.u0[k] = p.uSolid[k]
		case p.isAir(i-1, j) && p.isAir(i, j):
			p.u0[k] = p.u1[k]
		default:
			p.u0[k] = p.u1[k] - (p.p[p.c(i, j)] - p.p[p.c(i-1, j)])
		}
	}, nil
}

func solveVelocityV(groups []*compute.BindGroup) (compute.Kernel, error) {
	p, err := bindProjection(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i >= p.w || j > p.h {
			return
		}
		k := p.fv(i, j)
		switch {
		case p.solidFaceV(i, j):
			p.v0[k] = p.vSolid[k]
		case p.isAir(i, j-1) && p.isAir(i, j):
			p.v0[k] = p.v1[k]
		default:
			p.v0[k] = p.v1[k] - (p.p[p.c(i, j)] - p.p[p.c(i, j-1)])
		}
	}, nil
}
