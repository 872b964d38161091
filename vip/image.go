package vip

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/nf/ch8/chip8"
)

// Theme holds the colors of lit and unlit pixels.
type Theme struct {
	On, Off color.RGBA
}

// DefaultTheme is amber on near-black, after the VIP's usual monitors.
var DefaultTheme = Theme{
	On:  color.RGBA{0xff, 0xb0, 0x00, 0xff},
	Off: color.RGBA{0x10, 0x10, 0x10, 0xff},
}

// Render draws s into dst at one dst pixel per screen pixel. If dst is nil
// or the wrong size a new image is allocated. It returns the image drawn.
func (t Theme) Render(dst *image.RGBA, s *chip8.Screen) *image.RGBA {
	if dst == nil || dst.Rect.Dx() != s.Width || dst.Rect.Dy() != s.Height {
		dst = image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	}
	for y := 0; y < s.Height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x, p := range s.Pix[y*s.Width : (y+1)*s.Width] {
			c := t.Off
			if p != 0 {
				c = t.On
			}
			row[x*4+0] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = c.A
		}
	}
	return dst
}

// WriteScreenshot writes s to w as a PNG image, each screen pixel scaled
// to a scale by scale square.
func WriteScreenshot(w io.Writer, s *chip8.Screen, scale int) error {
	src := DefaultTheme.Render(nil, s)
	if scale <= 1 {
		return png.Encode(w, src)
	}
	dst := image.NewRGBA(image.Rect(0, 0, s.Width*scale, s.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return png.Encode(w, dst)
}
