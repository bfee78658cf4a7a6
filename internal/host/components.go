package host

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/eulerfluid/internal/obstacle"
)

// Pose is the world placement of a body.
type Pose struct {
	Position mgl32.Vec2
	Angle    float32
}

// Matrix returns the rigid transform of the pose.
func (p *Pose) Matrix() mgl32.Mat4 {
	return obstacle.Transform2D(p.Position, p.Angle)
}

// Velocity holds the linear (m/s) and angular (rad/s) velocity of a body.
type Velocity struct {
	Linear  mgl32.Vec2
	Angular float32
}

// Shape wraps the collider of a body.
type Shape struct {
	Collider obstacle.Collider
}

// Mass holds the inertial properties derived from density and shape area.
type Mass struct {
	Type    obstacle.BodyType
	Mass    float32
	Inertia float32
}

// ExternalForce accumulates the fluid force of every readback applied since
// the last physics step. It is cleared by Step.
type ExternalForce struct {
	Force  mgl32.Vec2
	Torque float32
}
