package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

const (
	sampleP1 = iota
	sampleSolid
	sampleIDs
	sampleObstacles
	sampleForceX
	sampleForceY
	sampleTorque
)

// sampleForces integrates the pressure on every solid face into the bin of
// the solid's id. A face contributes -rho*dx*p*n, with n pointing out of the
// solid. The sums are impulses in grid scaling; dividing by dt/dx gives
// newtons.
func sampleForces(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	p := b.f32(sampleP1, g.w, g.h)
	solid := b.f32(sampleSolid, g.w, g.h)
	ids := b.i32(sampleIDs, g.w, g.h)
	buf := bufferOf[obstacle.SolidObstacle](b, sampleObstacles)
	fx := b.bins(sampleForceX)
	fy := b.bins(sampleForceY)
	torque := b.bins(sampleTorque)
	if b.err != nil {
		return nil, b.err
	}

	var centers [obstacle.MaxSolids]mgl32.Vec2
	for n := range buf.Live() {
		o := &buf.Live()[n]
		if int(o.EntityID) < obstacle.MaxSolids {
			centers[o.EntityID] = o.Center()
		}
	}
	scale := u.Rho * u.Dx

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) {
			return
		}
		k := g.c(i, j)
		sid := int(ids[k])
		if solid[k] >= 0 || sid < 0 || sid >= obstacle.MaxSolids {
			return
		}
		c := center(i, j)
		for _, dir := range [4]mgl32.Vec2{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			ni, nj := i+int(dir.X()), j+int(dir.Y())
			if !g.inside(ni, nj) {
				continue
			}
			nk := g.c(ni, nj)
			if solid[nk] < 0 {
				continue
			}
			f := u.GridDirToWorld(dir.Mul(-scale * p[nk]))
			r := u.GridToWorld(c.Add(dir.Mul(0.5))).Sub(centers[sid])
			fx.Add(sid, f.X())
			fy.Add(sid, f.Y())
			torque.Add(sid, r.X()*f.Y()-r.Y()*f.X())
		}
	}, nil
}

const (
	accumulateForceX = iota
	accumulateForceY
	accumulateTorque
	accumulateOut
)

// accumulateForces drains the bins into the per-solid force buffer.
func accumulateForces(groups []*compute.BindGroup) (compute.Kernel, error) {
	if _, err := simulation(groups); err != nil {
		return nil, err
	}
	b := &binder{g: groups[0]}
	fx := b.bins(accumulateForceX)
	fy := b.bins(accumulateForceY)
	torque := b.bins(accumulateTorque)
	out := bufferOf[SolidForce](b, accumulateOut)
	if b.err != nil {
		return nil, b.err
	}

	return func(id compute.Dim3) {
		i := int(id.X)
		if i >= out.Cap() || i >= fx.Len() {
			return
		}
		out.Data[i] = SolidForce{
			Force:  mgl32.Vec2{fx.Take(i), fy.Take(i)},
			Torque: torque.Take(i),
		}
	}, nil
}
