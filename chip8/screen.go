package chip8

import "strings"

// Screen is a monochrome framebuffer. Pix holds one byte per pixel, row by
// row, that is 1 if the pixel is on and 0 if it is off.
type Screen struct {
	Width, Height int
	Pix           []byte
	Ops           int // total count of draw and clear operations
}

func NewScreen(w, h int) *Screen {
	return &Screen{Width: w, Height: h, Pix: make([]byte, w*h)}
}

// At reports whether the pixel at (x, y) is on.
func (s *Screen) At(x, y int) bool { return s.Pix[y*s.Width+x] != 0 }

// Clear turns every pixel off.
func (s *Screen) Clear() {
	for i := range s.Pix {
		s.Pix[i] = 0
	}
	s.Ops++
}

// Draw exclusive-ors sprite onto the screen with its top-left corner at
// (x, y). Each byte of sprite is one row of 8 pixels, most significant bit
// leftmost. Rows and columns that fall off an edge wrap around to the
// opposite edge. Draw reports whether any pixel was turned off.
func (s *Screen) Draw(x, y int, sprite []byte) (collision bool) {
	s.Ops++
	for r, row := range sprite {
		py := (y + r) % s.Height
		for c := 0; c < 8; c++ {
			if row&(0x80>>c) == 0 {
				continue
			}
			px := &s.Pix[py*s.Width+(x+c)%s.Width]
			if *px != 0 {
				collision = true
			}
			*px ^= 1
		}
	}
	return
}

// CopyTo copies the contents of s into dst, reusing dst.Pix if it is large
// enough.
func (s *Screen) CopyTo(dst *Screen) {
	dst.Width, dst.Height, dst.Ops = s.Width, s.Height, s.Ops
	if cap(dst.Pix) < len(s.Pix) {
		dst.Pix = make([]byte, len(s.Pix))
	}
	dst.Pix = dst.Pix[:len(s.Pix)]
	copy(dst.Pix, s.Pix)
}

// String renders the screen as text, one line per row,
// with '#' for pixels that are on and '.' for those that are off.
func (s *Screen) String() string {
	var b strings.Builder
	b.Grow((s.Width + 1) * s.Height)
	for y := 0; y < s.Height; y++ {
		for _, p := range s.Pix[y*s.Width : (y+1)*s.Width] {
			if p != 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
