package compute

import "fmt"

// Dim3 is a three dimensional extent or invocation id.
type Dim3 struct {
	X, Y, Z uint32
}

// D2 returns a two dimensional extent with Z = 1.
func D2(x, y uint32) Dim3 { return Dim3{X: x, Y: y, Z: 1} }

// Count is the number of elements covered by the extent.
func (d Dim3) Count() int { return int(d.X) * int(d.Y) * int(d.Z) }

func (d Dim3) String() string { return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z) }

// Kernel is one invocation of a compiled entry point.
type Kernel func(id Dim3)

type Backend interface {
	Name() string
	Available() bool
	// Dispatch runs invoke once per global invocation id and returns after
	// every invocation has completed.
	Dispatch(groups, workgroupSize Dim3, invoke Kernel)
	Cleanup()
}

var activeBackend Backend

func init() {
	activeBackend = AutoSelectBackend()
}

func GetBackend() Backend {
	return activeBackend
}

func AutoSelectBackend() Backend {
	parallel := NewParallelBackend()
	if parallel.Available() {
		return parallel
	}
	return NewSerialBackend()
}

// BackendByName returns the backend registered under name.
func BackendByName(name string) (Backend, error) {
	switch name {
	case "", "auto":
		return AutoSelectBackend(), nil
	case "parallel":
		return NewParallelBackend(), nil
	case "serial":
		return NewSerialBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}

// forEachInvocation expands workgroups [start, end) into global ids.
func forEachInvocation(groups, size Dim3, start, end int, invoke Kernel) {
	perLayer := int(groups.X) * int(groups.Y)
	for g := start; g < end; g++ {
		gz := uint32(g / perLayer)
		rem := g % perLayer
		gy := uint32(rem / int(groups.X))
		gx := uint32(rem % int(groups.X))

		for lz := uint32(0); lz < size.Z; lz++ {
			for ly := uint32(0); ly < size.Y; ly++ {
				for lx := uint32(0); lx < size.X; lx++ {
					invoke(Dim3{
						X: gx*size.X + lx,
						Y: gy*size.Y + ly,
						Z: gz*size.Z + lz,
					})
				}
			}
		}
	}
}
