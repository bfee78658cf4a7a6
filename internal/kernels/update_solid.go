package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

const (
	solidObstacles = iota
	solidU
	solidV
	solidLevelset
	solidIDs
)

// nearest returns the obstacle closest to world point p and its signed
// distance in world units.
func nearest(obstacles []obstacle.SolidObstacle, p mgl32.Vec2) (*obstacle.SolidObstacle, float32) {
	var best *obstacle.SolidObstacle
	var dist float32
	for n := range obstacles {
		d := obstacles[n].SignedDistance(p)
		if best == nil || d < dist {
			best, dist = &obstacles[n], d
		}
	}
	return best, dist
}

// updateSolid rasterizes the obstacle list into the solid levelset, the
// solid id map and the solid face velocities. Dispatched over FaceDispatch.
func updateSolid(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	buf := bufferOf[obstacle.SolidObstacle](b, solidObstacles)
	uSolid := b.f32(solidU, g.w+1, g.h)
	vSolid := b.f32(solidV, g.w, g.h+1)
	ls := b.f32(solidLevelset, g.w, g.h)
	ids := b.i32(solidIDs, g.w, g.h)
	if b.err != nil {
		return nil, b.err
	}
	obstacles := buf.Live()

	faceVelocity := func(p mgl32.Vec2) mgl32.Vec2 {
		o, _ := nearest(obstacles, u.GridToWorld(p))
		if o == nil {
			return mgl32.Vec2{}
		}
		return u.WorldDirToGrid(o.VelocityAt(u.GridToWorld(p)))
	}

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if i <= g.w && j < g.h {
			var vel float32
			if i > 0 && i < g.w {
				vel = faceVelocity(mgl32.Vec2{float32(i), float32(j) + 0.5}).X()
			}
			uSolid[g.fu(i, j)] = vel
		}
		if i < g.w && j <= g.h {
			var vel float32
			if j > 0 && j < g.h {
				vel = faceVelocity(mgl32.Vec2{float32(i) + 0.5, float32(j)}).Y()
			}
			vSolid[g.fv(i, j)] = vel
		}
		if g.inside(i, j) {
			k := g.c(i, j)
			o, d := nearest(obstacles, u.GridToWorld(mgl32.Vec2{float32(i) + 0.5, float32(j) + 0.5}))
			if o == nil {
				ls[k], ids[k] = FarDistance, -1
				return
			}
			ls[k] = d / u.Dx
			ids[k] = -1
			if d < 0 {
				ids[k] = int32(o.EntityID)
			}
		}
	}, nil
}

const (
	pressureP0 = iota
	pressureP1
	pressureSolid
	pressureAir
)

// updateSolidPressure clears the pressure of solid and air cells.
func updateSolidPressure(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	p0 := b.f32(pressureP0, g.w, g.h)
	p1 := b.f32(pressureP1, g.w, g.h)
	c := cells{grid: g, solid: b.f32(pressureSolid, g.w, g.h), air: b.f32(pressureAir, g.w, g.h)}
	if b.err != nil {
		return nil, b.err
	}

	return func(id compute.Dim3) {
		i, j := int(id.X), int(id.Y)
		if !g.inside(i, j) || c.isFluid(i, j) {
			return
		}
		k := g.c(i, j)
		p0[k], p1[k] = 0, 0
	}, nil
}
