package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/eulerfluid/internal/analysis"
)

// Plot draws a telemetry series. Long series are resampled to width points
// by asciigraph.
func Plot(values []float64, caption string, width, height int) string {
	if len(values) == 0 {
		return Subtle.Render("(no data)")
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotSpectrum draws the lower quarter of an amplitude spectrum, where
// shedding frequencies of practical grids lie.
func PlotSpectrum(s *analysis.Spectrum, width, height int) string {
	n := max(len(s.Amplitudes)/4, 2)
	n = min(n, len(s.Amplitudes))
	top := s.Frequencies[n-1]
	return Plot(s.Amplitudes[:n], fmt.Sprintf("amplitude spectrum, 0 to %.2f Hz", top), width, height)
}
