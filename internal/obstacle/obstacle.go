// Package obstacle converts rigid bodies into the fixed-capacity solid list
// the fluid kernels rasterize.
package obstacle

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxSolids is the capacity of the solid list and of the force bins.
const MaxSolids = 256

type ShapeKind uint32

const (
	ShapeBall ShapeKind = iota
	ShapeCuboid
	ShapeTriangle
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBall:
		return "ball"
	case ShapeCuboid:
		return "cuboid"
	case ShapeTriangle:
		return "triangle"
	default:
		return fmt.Sprintf("ShapeKind(%d)", uint32(k))
	}
}

// ShapeVariant is the tagged shape record. Values holds
//
//	ball:     radius
//	cuboid:   half extent x, half extent y
//	triangle: ax, ay, bx, by, cx, cy
type ShapeVariant struct {
	Kind   ShapeKind
	Values [6]float32
}

type BodyType int

const (
	Dynamic BodyType = iota
	Static
	Kinematic
)

func (t BodyType) String() string {
	switch t {
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	default:
		return fmt.Sprintf("BodyType(%d)", int(t))
	}
}

func ParseBodyType(s string) (BodyType, error) {
	switch s {
	case "", "dynamic":
		return Dynamic, nil
	case "static":
		return Static, nil
	case "kinematic":
		return Kinematic, nil
	default:
		return Dynamic, fmt.Errorf("unknown body type %q", s)
	}
}

// Body is the host's view of one rigid body.
type Body struct {
	Collider        Collider
	Transform       mgl32.Mat4
	LinearVelocity  mgl32.Vec2
	AngularVelocity float32
	Type            BodyType
}

// SolidObstacle is one entry of the solid list. EntityID is the body's
// position in the host enumeration and selects its force bin.
type SolidObstacle struct {
	EntityID         uint32
	Shape            ShapeVariant
	Transform        mgl32.Mat4
	InverseTransform mgl32.Mat4
	LinearVelocity   mgl32.Vec2
	AngularVelocity  float32
}

// Report describes the bodies Build left out.
type Report struct {
	Unsupported []int
	Overflow    int
}

// Build converts bodies into the solid list. Order follows the input. Bodies
// at index MaxSolids or later are dropped; bodies with an unsupported
// collider are skipped but still consume their index.
func Build(bodies []Body) ([]SolidObstacle, Report) {
	var rep Report
	n := len(bodies)
	if n > MaxSolids {
		rep.Overflow = n - MaxSolids
		n = MaxSolids
	}

	out := make([]SolidObstacle, 0, n)
	for idx := 0; idx < n; idx++ {
		b := bodies[idx]
		shape, ok := ShapeOf(b.Collider)
		if !ok {
			rep.Unsupported = append(rep.Unsupported, idx)
			continue
		}
		out = append(out, SolidObstacle{
			EntityID:         uint32(idx),
			Shape:            shape,
			Transform:        b.Transform,
			InverseTransform: b.Transform.Inv(),
			LinearVelocity:   b.LinearVelocity,
			AngularVelocity:  b.AngularVelocity,
		})
	}
	return out, rep
}

// Center is the body origin in world space.
func (o *SolidObstacle) Center() mgl32.Vec2 {
	c := o.Transform.Col(3)
	return mgl32.Vec2{c.X(), c.Y()}
}

// SignedDistance returns the world-space distance from p to the shape
// boundary, negative inside.
func (o *SolidObstacle) SignedDistance(p mgl32.Vec2) float32 {
	local := o.InverseTransform.Mul4x1(mgl32.Vec4{p.X(), p.Y(), 0, 1})
	return o.Shape.SignedDistance(mgl32.Vec2{local.X(), local.Y()})
}

// VelocityAt is the rigid velocity v + ω×r at world point p.
func (o *SolidObstacle) VelocityAt(p mgl32.Vec2) mgl32.Vec2 {
	r := p.Sub(o.Center())
	w := o.AngularVelocity
	return mgl32.Vec2{
		o.LinearVelocity.X() - w*r.Y(),
		o.LinearVelocity.Y() + w*r.X(),
	}
}
