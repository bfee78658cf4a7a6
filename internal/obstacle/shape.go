package obstacle

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Collider is a rigid-body collision shape in body-local coordinates.
type Collider interface {
	ColliderName() string
	Area() float32
}

type Ball struct {
	Radius float32
}

type Cuboid struct {
	HalfExtents mgl32.Vec2
}

type Triangle struct {
	A, B, C mgl32.Vec2
}

// Capsule is accepted by hosts but cannot be rasterized.
type Capsule struct {
	HalfHeight float32
	Radius     float32
}

func (Ball) ColliderName() string     { return "ball" }
func (Cuboid) ColliderName() string   { return "cuboid" }
func (Triangle) ColliderName() string { return "triangle" }
func (Capsule) ColliderName() string  { return "capsule" }

func (b Ball) Area() float32 { return math.Pi * b.Radius * b.Radius }

func (c Cuboid) Area() float32 { return 4 * c.HalfExtents.X() * c.HalfExtents.Y() }

func (t Triangle) Area() float32 {
	ab := t.B.Sub(t.A)
	ac := t.C.Sub(t.A)
	return float32(math.Abs(float64(ab.X()*ac.Y()-ab.Y()*ac.X()))) / 2
}

func (c Capsule) Area() float32 {
	return 4*c.HalfHeight*c.Radius + math.Pi*c.Radius*c.Radius
}

// ShapeOf returns the shape record for a supported collider.
func ShapeOf(c Collider) (ShapeVariant, bool) {
	switch s := c.(type) {
	case Ball:
		return ShapeVariant{Kind: ShapeBall, Values: [6]float32{s.Radius}}, true
	case Cuboid:
		return ShapeVariant{Kind: ShapeCuboid, Values: [6]float32{s.HalfExtents.X(), s.HalfExtents.Y()}}, true
	case Triangle:
		return ShapeVariant{Kind: ShapeTriangle, Values: [6]float32{
			s.A.X(), s.A.Y(), s.B.X(), s.B.Y(), s.C.X(), s.C.Y(),
		}}, true
	default:
		return ShapeVariant{}, false
	}
}

// SignedDistance evaluates the shape SDF at a body-local point.
func (s ShapeVariant) SignedDistance(p mgl32.Vec2) float32 {
	switch s.Kind {
	case ShapeBall:
		return p.Len() - s.Values[0]
	case ShapeCuboid:
		return boxDistance(p, mgl32.Vec2{s.Values[0], s.Values[1]})
	case ShapeTriangle:
		return triangleDistance(p,
			mgl32.Vec2{s.Values[0], s.Values[1]},
			mgl32.Vec2{s.Values[2], s.Values[3]},
			mgl32.Vec2{s.Values[4], s.Values[5]})
	default:
		return float32(math.Inf(1))
	}
}

func boxDistance(p, half mgl32.Vec2) float32 {
	dx := abs32(p.X()) - half.X()
	dy := abs32(p.Y()) - half.Y()
	outside := mgl32.Vec2{max(dx, 0), max(dy, 0)}.Len()
	inside := min(max(dx, dy), 0)
	return outside + inside
}

func triangleDistance(p, a, b, c mgl32.Vec2) float32 {
	e0, e1, e2 := b.Sub(a), c.Sub(b), a.Sub(c)
	v0, v1, v2 := p.Sub(a), p.Sub(b), p.Sub(c)

	pq0 := v0.Sub(e0.Mul(clamp01(v0.Dot(e0) / e0.Dot(e0))))
	pq1 := v1.Sub(e1.Mul(clamp01(v1.Dot(e1) / e1.Dot(e1))))
	pq2 := v2.Sub(e2.Mul(clamp01(v2.Dot(e2) / e2.Dot(e2))))

	s := sign32(e0.X()*e2.Y() - e0.Y()*e2.X())
	d0 := mgl32.Vec2{pq0.Dot(pq0), s * (v0.X()*e0.Y() - v0.Y()*e0.X())}
	d1 := mgl32.Vec2{pq1.Dot(pq1), s * (v1.X()*e1.Y() - v1.Y()*e1.X())}
	d2 := mgl32.Vec2{pq2.Dot(pq2), s * (v2.X()*e2.Y() - v2.Y()*e2.X())}

	dist := min(d0.X(), d1.X(), d2.X())
	side := min(d0.Y(), d1.Y(), d2.Y())
	return -float32(math.Sqrt(float64(dist))) * sign32(side)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sign32(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

// Transform2D builds a world transform from a position and a rotation in
// radians about z.
func Transform2D(position mgl32.Vec2, angle float32) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), 0).Mul4(mgl32.HomogRotate3DZ(angle))
}
