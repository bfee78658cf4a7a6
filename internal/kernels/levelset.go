package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
)

// InvalidSeed marks a cell with no known surface point.
const InvalidSeed = -1

const (
	seedsLevelset = iota
	seedsX
	seedsY
)

func validSeed(x, y float32) bool { return x >= 0 && y >= 0 }

func center(i, j int) mgl32.Vec2 { return mgl32.Vec2{float32(i) + 0.5, float32(j) + 0.5} }

// initializeSeeds places a seed on the zero crossing nearest to every cell
// whose levelset changes sign towards a 4-neighbour.
func initializeSeeds(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	phi := b.f32(seedsLevelset, g.w, g.h)
	sx := b.f32(seedsX, g.w, g.h)
	sy := b.f32(seedsY, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		k := g.c(i, j)
		p := phi[k]
		best := float32(2)
		seed := mgl32.Vec2{InvalidSeed, InvalidSeed}
		c := center(i, j)
		for _, n := range [4][2]int{{i - 1, j}, {i + 1, j}, {i, j - 1}, {i, j + 1}} {
			if !g.inside(n[0], n[1]) {
				continue
			}
			pn := phi[g.c(n[0], n[1])]
			if (p < 0) == (pn < 0) {
				continue
			}
			t := p / (p - pn)
			if t < best {
				best = t
				seed = c.Add(center(n[0], n[1]).Sub(c).Mul(t))
			}
		}
		sx[k], sy[k] = seed.X(), seed.Y()
	}, nil
}

const (
	floodInX = iota
	floodInY
	floodOutX
	floodOutY
)

// jumpFlooding propagates the nearest seed from the 3×3 neighbourhood at
// the current jump offset.
func jumpFlooding(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	if len(groups) < 3 {
		return nil, compute.ErrMissingBinding
	}
	params, err := uniformOf[JumpFloodingUniform](groups[2], 0)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	inX := b.f32(floodInX, g.w, g.h)
	inY := b.f32(floodInY, g.w, g.h)
	outX := b.f32(floodOutX, g.w, g.h)
	outY := b.f32(floodOutY, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}
	step := int(params.Step)

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		c := center(i, j)
		bestX, bestY := float32(InvalidSeed), float32(InvalidSeed)
		var bestD float32
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				ni, nj := i+dx*step, j+dy*step
				if !g.inside(ni, nj) {
					continue
				}
				k := g.c(ni, nj)
				x, y := inX[k], inY[k]
				if !validSeed(x, y) {
					continue
				}
				d := mgl32.Vec2{x, y}.Sub(c).LenSqr()
				if !validSeed(bestX, bestY) || d < bestD {
					bestX, bestY, bestD = x, y, d
				}
			}
		}
		k := g.c(i, j)
		outX[k], outY[k] = bestX, bestY
	}, nil
}

const (
	sdfLevelset = iota
	sdfSeedX
	sdfSeedY
	sdfOut
)

// calculateSDF rebuilds the air levelset as the signed distance to the
// nearest seed, keeping the sign of the advected levelset.
func calculateSDF(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	phi := b.f32(sdfLevelset, g.w, g.h)
	sx := b.f32(sdfSeedX, g.w, g.h)
	sy := b.f32(sdfSeedY, g.w, g.h)
	out := b.f32(sdfOut, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		k := g.c(i, j)
		if !validSeed(sx[k], sy[k]) {
			out[k] = phi[k]
			return
		}
		d := mgl32.Vec2{sx[k], sy[k]}.Sub(center(i, j)).Len()
		if phi[k] < 0 {
			d = -d
		}
		out[k] = d
	}, nil
}
