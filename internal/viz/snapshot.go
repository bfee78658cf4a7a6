package viz

import (
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"

	"github.com/san-kum/eulerfluid/internal/fluid"
	"golang.org/x/image/draw"
)

func kindColor(k CellKind) color.RGBA {
	t := CurrentTheme
	switch k {
	case KindFluid:
		return RGBA(t.Fluid)
	case KindSurface:
		return RGBA(t.Surface)
	case KindSolid:
		return RGBA(t.Solid)
	default:
		return RGBA(t.Air)
	}
}

// Image renders one pixel per cell with y up.
func Image(f *fluid.Fields) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for j := 0; j < f.Height; j++ {
		for i := 0; i < f.Width; i++ {
			img.SetRGBA(i, f.Height-1-j, kindColor(Classify(f, i, j)))
		}
	}
	return img
}

// Scaled upscales the field image by scale with nearest-neighbour sampling
// so cells stay sharp.
func Scaled(f *fluid.Fields, scale int) *image.RGBA {
	src := Image(f)
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, f.Width*scale, f.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func WritePNG(w io.Writer, f *fluid.Fields, scale int) error {
	return png.Encode(w, Scaled(f, scale))
}

// Palette is the GIF palette of the current theme, indexed by CellKind.
func Palette() color.Palette {
	return color.Palette{
		kindColor(KindAir),
		kindColor(KindFluid),
		kindColor(KindSurface),
		kindColor(KindSolid),
	}
}

// Frame renders a GIF frame of f.
func Frame(f *fluid.Fields, scale int) *image.Paletted {
	src := Scaled(f, scale)
	dst := image.NewPaletted(src.Bounds(), Palette())
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
	return dst
}

// WriteGIF encodes frames as a looping animation with delay hundredths of a
// second between frames.
func WriteGIF(w io.Writer, frames []*image.Paletted, delay int) error {
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}
	return gif.EncodeAll(w, &anim)
}
