// Package metrics measures the quality of fluid snapshots: residual
// divergence, volume, surface shape and levelset regularity.
package metrics

import (
	"math"

	"github.com/san-kum/eulerfluid/internal/fluid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func isFluid(f *fluid.Fields, k int) bool {
	return f.LevelsetSolid[k] >= 0 && f.LevelsetAir[k] < 0
}

// Divergence returns |div u| of every fluid cell in grid scaling.
func Divergence(f *fluid.Fields) []float64 {
	var out []float64
	for j := 0; j < f.Height; j++ {
		for i := 0; i < f.Width; i++ {
			if !isFluid(f, f.Cell(i, j)) {
				continue
			}
			d := f.UAt(i+1, j) - f.UAt(i, j) + f.VAt(i, j+1) - f.VAt(i, j)
			out = append(out, math.Abs(float64(d)))
		}
	}
	return out
}

// MaxDivergence is the largest residual divergence, 0 without fluid.
func MaxDivergence(f *fluid.Fields) float64 {
	d := Divergence(f)
	if len(d) == 0 {
		return 0
	}
	return floats.Max(d)
}

func FluidCells(f *fluid.Fields) int {
	n := 0
	for k := range f.LevelsetAir {
		if isFluid(f, k) {
			n++
		}
	}
	return n
}

// FluidVolume is the fluid area in m².
func FluidVolume(f *fluid.Fields) float64 {
	dx := float64(f.Dx)
	return float64(FluidCells(f)) * dx * dx
}

// SurfaceHeights returns, per column, the height in cells of the lowest
// air crossing above fluid. Columns without fluid report 0 and full
// columns report the grid height.
func SurfaceHeights(f *fluid.Fields) []float64 {
	heights := make([]float64, f.Width)
	for i := 0; i < f.Width; i++ {
		h, wet := 0.0, false
		for j := 0; j < f.Height; j++ {
			phi := float64(f.LevelsetAir[f.Cell(i, j)])
			if phi < 0 {
				wet = true
				h = float64(f.Height)
				continue
			}
			if wet {
				below := float64(f.LevelsetAir[f.Cell(i, j-1)])
				h = float64(j) - 0.5 + below/(below-phi)
				break
			}
		}
		heights[i] = h
	}
	return heights
}

// Surface returns the mean and standard deviation of the column heights.
func Surface(f *fluid.Fields) (mean, std float64) {
	return stat.MeanStdDev(SurfaceHeights(f), nil)
}

// SDFError is the mean deviation of |grad phi| from 1 over interior cells
// within band cells of the surface.
func SDFError(f *fluid.Fields, band float64) float64 {
	phi := func(i, j int) float64 { return float64(f.LevelsetAir[f.Cell(i, j)]) }
	var errs []float64
	for j := 1; j < f.Height-1; j++ {
		for i := 1; i < f.Width-1; i++ {
			if math.Abs(phi(i, j)) >= band {
				continue
			}
			gx := (phi(i+1, j) - phi(i-1, j)) / 2
			gy := (phi(i, j+1) - phi(i, j-1)) / 2
			errs = append(errs, math.Abs(math.Hypot(gx, gy)-1))
		}
	}
	if len(errs) == 0 {
		return 0
	}
	return stat.Mean(errs, nil)
}
