// Package export renders fluid fields and telemetry series as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/viz"
)

func fill(t viz.Theme, k viz.CellKind) string {
	switch k {
	case viz.KindFluid:
		return string(t.Fluid)
	case viz.KindSurface:
		return string(t.Surface)
	case viz.KindSolid:
		return string(t.Solid)
	default:
		return string(t.Air)
	}
}

// FieldSVG draws f at scale pixels per cell, top row first. Cells are
// merged into horizontal runs of one kind; air is the background. Arrows
// from a VelocityArrows readback of binSize blocks are drawn as segments
// scaled to the fastest arrow.
func FieldSVG(f *fluid.Fields, arrows []kernels.Arrow, binSize int, scale float64, theme viz.Theme) string {
	if f == nil || f.Width == 0 || f.Height == 0 {
		return ""
	}
	width := float64(f.Width) * scale
	height := float64(f.Height) * scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g shape-rendering="crispEdges">
`, width, height, width, height, theme.Air)

	for j := f.Height - 1; j >= 0; j-- {
		y := float64(f.Height-1-j) * scale
		for i := 0; i < f.Width; {
			kind := viz.Classify(f, i, j)
			run := 1
			for i+run < f.Width && viz.Classify(f, i+run, j) == kind {
				run++
			}
			if kind != viz.KindAir {
				fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, float64(i)*scale, y, float64(run)*scale, scale, fill(theme, kind))
			}
			i += run
		}
	}
	sb.WriteString("</g>\n")

	if len(arrows) > 0 && binSize > 0 {
		writeArrows(&sb, f, arrows, binSize, scale, theme)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func writeArrows(sb *strings.Builder, f *fluid.Fields, arrows []kernels.Arrow, binSize int, scale float64, theme viz.Theme) {
	nx, ny := kernels.ArrowGrid(f.Width, f.Height, binSize)
	fastest := 0.0
	for _, a := range arrows {
		fastest = math.Max(fastest, float64(a.Velocity.Len()))
	}
	if fastest < viz.MinArrowSpeed {
		return
	}

	fmt.Fprintf(sb, `<g stroke="%s" stroke-width="%.1f" stroke-linecap="round">
`, theme.Arrow, math.Max(scale/4, 0.5))
	half := float64(binSize) * scale * 0.45
	for k, a := range arrows {
		speed := float64(a.Velocity.Len())
		if k >= nx*ny || speed < viz.MinArrowSpeed {
			continue
		}
		cx := (float64((k%nx)*binSize) + float64(binSize)/2) * scale
		cy := float64(f.Height)*scale - (float64((k/nx)*binSize)+float64(binSize)/2)*scale
		l := half * speed / fastest
		dx := float64(a.Velocity.X()) / speed * l
		dy := -float64(a.Velocity.Y()) / speed * l
		fmt.Fprintf(sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>
`, cx-dx, cy-dy, cx+dx, cy+dy)
	}
	sb.WriteString("</g>\n")
}

// SeriesSVG plots values against their index as a polyline with 10%
// padding on both axes.
func SeriesSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	minX, maxX := 0.0, float64(len(values)-1)

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor)

	for i, v := range values {
		x := (float64(i) - minX) / rangeX * float64(width)
		y := float64(height) - (v-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
