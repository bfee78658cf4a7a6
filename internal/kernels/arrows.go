package kernels

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/compute"
)

const (
	arrowU0 = iota
	arrowV0
	arrowOut
)

// velocityArrows averages the cell-centre velocity over bins of BinSize
// cells for the overlay. Arrows are written row-major by bin.
func velocityArrows(groups []*compute.BindGroup) (compute.Kernel, error) {
	u, err := simulation(groups)
	if err != nil {
		return nil, err
	}
	if len(groups) < 3 {
		return nil, compute.ErrMissingBinding
	}
	params, err := uniformOf[ArrowUniform](groups[2], 0)
	if err != nil {
		return nil, err
	}
	g := gridOf(&u)
	b := &binder{g: groups[0]}
	u0 := b.f32(arrowU0, g.w+1, g.h)
	v0 := b.f32(arrowV0, g.w, g.h+1)
	out := bufferOf[Arrow](b, arrowOut)
	if b.err != nil {
		return nil, b.err
	}
	size := max(int(params.BinSize), 1)
	nx, ny := ArrowGrid(g.w, g.h, size)

	return func(id compute.Dim3) {
		bx, by := int(id.X), int(id.Y)
		if bx >= nx || by >= ny {
			return
		}
		idx := by*nx + bx
		if idx >= out.Cap() {
			return
		}
		var sum mgl32.Vec2
		n := 0
		for j := by * size; j < min((by+1)*size, g.h); j++ {
			for i := bx * size; i < min((bx+1)*size, g.w); i++ {
				sum = sum.Add(g.velocityAt(u0, v0, center(i, j)))
				n++
			}
		}
		mid := mgl32.Vec2{
			(float32(bx*size) + float32(min((bx+1)*size, g.w))) / 2,
			(float32(by*size) + float32(min((by+1)*size, g.h))) / 2,
		}
		out.Data[idx] = Arrow{
			Position: u.GridToWorld(mid),
			Velocity: u.GridDirToWorld(sum.Mul(1 / float32(n))),
		}
	}, nil
}
