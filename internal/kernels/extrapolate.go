package kernels

import (
	"github.com/san-kum/eulerfluid/internal/compute"
)

const (
	extrapolateU0 = iota
	extrapolateV0
	extrapolateAir
	extrapolateSolid
)

type extrapolation struct {
	cells
	u0, v0 []float32
	band   float32
	last   bool
}

func bindExtrapolation(groups []*compute.BindGroup) (*extrapolation, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	if len(groups) < 3 {
		return nil, compute.ErrMissingBinding
	}
	params, err := uniformOf[ExtrapolationUniform](groups[2], 0)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	e := &extrapolation{
		cells: cells{grid: g, air: b.f32(extrapolateAir, g.w, g.h), solid: b.f32(extrapolateSolid, g.w, g.h)},
		u0:    b.f32(extrapolateU0, g.w+1, g.h),
		v0:    b.f32(extrapolateV0, g.w, g.h+1),
		band:  float32(params.Band),
		last:  params.Last,
	}
	if b.err != nil {
		return nil, b.err
	}
	return e, nil
}

// distU is the air distance of x-face (i, j): the smaller levelset of its
// two cells, clamped at the domain wall.
func (e *extrapolation) distU(i, j int) float32 {
	l, r := max(i-1, 0), min(i, e.w-1)
	return min(e.air[e.c(l, j)], e.air[e.c(r, j)])
}

func (e *extrapolation) distV(i, j int) float32 {
	d, u := max(j-1, 0), min(j, e.h-1)
	return min(e.air[e.c(i, d)], e.air[e.c(i, u)])
}

// settled reports whether a face at distance d was final before this pass.
func (e *extrapolation) settled(d float32) bool { return d < e.band-1 }

// fill writes the face value for the current band given its distance d.
// Faces inside the band take the mean of the settled neighbours neighbors
// yields.
func (e *extrapolation) fill(d float32, value *float32, neighbors func(yield func(float32))) {
	switch {
	case e.settled(d):
		return
	case d < e.band:
		var sum float32
		n := 0
		neighbors(func(v float32) {
			sum += v
			n++
		})
		if n == 0 {
			*value = 0
			return
		}
		*value = sum / float32(n)
	case e.last:
		*value = 0
	}
}

// extrapolateU extends x-velocities one band of cells into the air.
func extrapolateU(groups []*compute.BindGroup) (compute.Kernel, error) {
	e, err := bindExtrapolation(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i > e.w || j >= e.h || e.solidFaceU(i, j) {
			return
		}
		e.fill(e.distU(i, j), &e.u0[e.fu(i, j)], func(yield func(float32)) {
			for _, n := range [4][2]int{{i - 1, j}, {i + 1, j}, {i, j - 1}, {i, j + 1}} {
				ni, nj := n[0], n[1]
				if ni < 0 || ni > e.w || nj < 0 || nj >= e.h || e.solidFaceU(ni, nj) {
					continue
				}
				if e.settled(e.distU(ni, nj)) {
					yield(e.u0[e.fu(ni, nj)])
				}
			}
		})
	}, nil
}

func extrapolateV(groups []*compute.BindGroup) (compute.Kernel, error) {
	e, err := bindExtrapolation(groups)
	if err != nil {
		return nil, err
	}
	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i >= e.w || j > e.h || e.solidFaceV(i, j) {
			return
		}
		e.fill(e.distV(i, j), &e.v0[e.fv(i, j)], func(yield func(float32)) {
			for _, n := range [4][2]int{{i - 1, j}, {i + 1, j}, {i, j - 1}, {i, j + 1}} {
				ni, nj := n[0], n[1]
				if ni < 0 || ni >= e.w || nj < 0 || nj > e.h || e.solidFaceV(ni, nj) {
					continue
				}
				if e.settled(e.distV(ni, nj)) {
					yield(e.v0[e.fv(ni, nj)])
				}
			}
		})
	}, nil
}
