package compute

import (
	"fmt"
	"math"
	"sync/atomic"
)

type TextureFormat int

const (
	R32Float TextureFormat = iota
	R32Sint
)

func (f TextureFormat) String() string {
	switch f {
	case R32Float:
		return "r32float"
	case R32Sint:
		return "r32sint"
	default:
		return fmt.Sprintf("TextureFormat(%d)", int(f))
	}
}

// ResourceKind identifies what a binding holds.
type ResourceKind int

const (
	KindStorageTexture ResourceKind = iota
	KindStorageBuffer
	KindAtomicBins
	KindUniform
)

func (k ResourceKind) String() string {
	switch k {
	case KindStorageTexture:
		return "storage_texture"
	case KindStorageBuffer:
		return "storage_buffer"
	case KindAtomicBins:
		return "atomic_bins"
	case KindUniform:
		return "uniform"
	default:
		return fmt.Sprintf("ResourceKind(%d)", int(k))
	}
}

// Resource is anything that can be placed in a bind group.
type Resource interface {
	Kind() ResourceKind
	Label() string
}

// Texture is a 2D storage texture with a single 32-bit channel. Its size is
// fixed at creation.
type Texture struct {
	label  string
	format TextureFormat
	width  int
	height int
	f32    []float32
	i32    []int32
}

func NewTexture(label string, format TextureFormat, width, height int) *Texture {
	t := &Texture{label: label, format: format, width: width, height: height}
	switch format {
	case R32Sint:
		t.i32 = make([]int32, width*height)
	default:
		t.f32 = make([]float32, width*height)
	}
	return t
}

func (t *Texture) Kind() ResourceKind    { return KindStorageTexture }
func (t *Texture) Label() string         { return t.label }
func (t *Texture) Format() TextureFormat { return t.format }
func (t *Texture) Width() int            { return t.width }
func (t *Texture) Height() int           { return t.height }
func (t *Texture) Size() (int, int)      { return t.width, t.height }

// Float32 returns the row-major texel storage of an R32Float texture.
func (t *Texture) Float32() []float32 { return t.f32 }

// Int32 returns the row-major texel storage of an R32Sint texture.
func (t *Texture) Int32() []int32 { return t.i32 }

func (t *Texture) At(x, y int) float32 { return t.f32[y*t.width+x] }

func (t *Texture) Set(x, y int, v float32) { t.f32[y*t.width+x] = v }

func (t *Texture) IntAt(x, y int) int32 { return t.i32[y*t.width+x] }

// Fill writes v to every texel. Integer textures receive int32(v).
func (t *Texture) Fill(v float32) {
	if t.format == R32Sint {
		iv := int32(v)
		for i := range t.i32 {
			t.i32[i] = iv
		}
		return
	}
	for i := range t.f32 {
		t.f32[i] = v
	}
}

// Snapshot copies the float texels.
func (t *Texture) Snapshot() []float32 {
	out := make([]float32, len(t.f32))
	copy(out, t.f32)
	return out
}

// FixedPointScale converts float contributions to the integer domain of
// AtomicBins.
const FixedPointScale = 1 << 20

// AtomicBins is a fixed-length array of fixed-point accumulators that many
// invocations can add to without locks.
type AtomicBins struct {
	label string
	bins  []atomic.Int64
}

func NewAtomicBins(label string, n int) *AtomicBins {
	return &AtomicBins{label: label, bins: make([]atomic.Int64, n)}
}

func (b *AtomicBins) Kind() ResourceKind { return KindAtomicBins }
func (b *AtomicBins) Label() string      { return b.label }
func (b *AtomicBins) Len() int           { return len(b.bins) }

// Add accumulates v into bin i.
func (b *AtomicBins) Add(i int, v float32) {
	b.bins[i].Add(ToFixedPoint(v))
}

// Load returns the value of bin i.
func (b *AtomicBins) Load(i int) float32 {
	return FromFixedPoint(b.bins[i].Load())
}

// Take returns the value of bin i and resets it to zero.
func (b *AtomicBins) Take(i int) float32 {
	return FromFixedPoint(b.bins[i].Swap(0))
}

func (b *AtomicBins) Reset() {
	for i := range b.bins {
		b.bins[i].Store(0)
	}
}

func ToFixedPoint(v float32) int64 {
	return int64(math.Round(float64(v) * FixedPointScale))
}

func FromFixedPoint(v int64) float32 {
	return float32(float64(v) / FixedPointScale)
}

// StorageBuffer is a fixed-capacity array of records. Count is the number
// of live records written by the last Write.
type StorageBuffer[T any] struct {
	label string
	Data  []T
	count int
}

func NewStorageBuffer[T any](label string, capacity int) *StorageBuffer[T] {
	return &StorageBuffer[T]{label: label, Data: make([]T, capacity)}
}

func (b *StorageBuffer[T]) Kind() ResourceKind { return KindStorageBuffer }
func (b *StorageBuffer[T]) Label() string      { return b.label }
func (b *StorageBuffer[T]) Cap() int           { return len(b.Data) }
func (b *StorageBuffer[T]) Count() int         { return b.count }

// Live returns the records written by the last Write.
func (b *StorageBuffer[T]) Live() []T { return b.Data[:b.count] }

// Write replaces the buffer contents and returns the number of records
// stored. Records beyond the capacity are dropped; the tail is zeroed.
func (b *StorageBuffer[T]) Write(records []T) int {
	n := copy(b.Data, records)
	var zero T
	for i := n; i < len(b.Data); i++ {
		b.Data[i] = zero
	}
	b.count = n
	return n
}

// Snapshot copies every record, live or not.
func (b *StorageBuffer[T]) Snapshot() []T {
	out := make([]T, len(b.Data))
	copy(out, b.Data)
	return out
}

// UniformBuffer holds a value read by every invocation of a dispatch.
type UniformBuffer[T any] struct {
	label string
	value atomic.Pointer[T]
}

func NewUniformBuffer[T any](label string, v T) *UniformBuffer[T] {
	u := &UniformBuffer[T]{label: label}
	u.Set(v)
	return u
}

func (u *UniformBuffer[T]) Kind() ResourceKind { return KindUniform }
func (u *UniformBuffer[T]) Label() string      { return u.label }

// Set replaces the value. Kernels already holding the previous value keep it.
func (u *UniformBuffer[T]) Set(v T) { u.value.Store(&v) }

func (u *UniformBuffer[T]) Get() T { return *u.value.Load() }
