package metrics

import (
	"math"

	"github.com/san-kum/eulerfluid/internal/fluid"
)

// Metric accumulates one quality measure over the snapshots of a run.
type Metric interface {
	Name() string
	Observe(f *fluid.Fields, t float64)
	Value() float64
	Reset()
}

// Default returns the metrics recorded for every run.
func Default() []Metric {
	return []Metric{
		NewDivergence(),
		NewVolumeDrift(),
		NewRoughness(),
		NewSDFQuality(3),
	}
}

// Summary evaluates every metric into a name → value map.
func Summary(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// DivergenceMetric is the worst residual divergence seen.
type DivergenceMetric struct {
	worst float64
}

func NewDivergence() *DivergenceMetric { return &DivergenceMetric{} }

func (d *DivergenceMetric) Name() string { return "max_divergence" }

func (d *DivergenceMetric) Observe(f *fluid.Fields, t float64) {
	d.worst = math.Max(d.worst, MaxDivergence(f))
}

func (d *DivergenceMetric) Value() float64 { return d.worst }
func (d *DivergenceMetric) Reset()         { d.worst = 0 }

// VolumeDrift is the largest relative change of fluid volume from the
// first observation.
type VolumeDrift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewVolumeDrift() *VolumeDrift { return &VolumeDrift{} }

func (v *VolumeDrift) Name() string { return "volume_drift" }

func (v *VolumeDrift) Observe(f *fluid.Fields, t float64) {
	vol := FluidVolume(f)
	if v.samples == 0 {
		v.initial = vol
	}
	v.samples++
	if v.initial != 0 {
		v.maxDrift = math.Max(v.maxDrift, math.Abs(vol-v.initial)/v.initial)
	}
}

func (v *VolumeDrift) Value() float64 { return v.maxDrift }

func (v *VolumeDrift) Reset() {
	v.initial = 0
	v.maxDrift = 0
	v.samples = 0
}

// Roughness is the mean over snapshots of the surface height standard
// deviation, in cells.
type Roughness struct {
	sum     float64
	samples int
}

func NewRoughness() *Roughness { return &Roughness{} }

func (r *Roughness) Name() string { return "surface_roughness" }

func (r *Roughness) Observe(f *fluid.Fields, t float64) {
	_, std := Surface(f)
	if math.IsNaN(std) {
		return
	}
	r.sum += std
	r.samples++
}

func (r *Roughness) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return r.sum / float64(r.samples)
}

func (r *Roughness) Reset() {
	r.sum = 0
	r.samples = 0
}

// SDFQuality is the worst mean eikonal error near the surface.
type SDFQuality struct {
	band  float64
	worst float64
}

func NewSDFQuality(band float64) *SDFQuality { return &SDFQuality{band: band} }

func (s *SDFQuality) Name() string { return "sdf_error" }

func (s *SDFQuality) Observe(f *fluid.Fields, t float64) {
	s.worst = math.Max(s.worst, SDFError(f, s.band))
}

func (s *SDFQuality) Value() float64 { return s.worst }
func (s *SDFQuality) Reset()         { s.worst = 0 }
