package vip

import (
	"image"
	"image/draw"
	"log"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nf/ch8/chip8"
)

// GUI is a Frontend that shows the screen in a window.
type GUI struct {
	Scale int // window pixels per screen pixel
	Theme Theme

	scr  chip8.Screen
	buf  screen.Buffer
	tex  screen.Texture
	size image.Point

	held    byte
	holding bool
}

func NewGUI(scale int) *GUI {
	if scale < 1 {
		scale = 1
	}
	return &GUI{Scale: scale, Theme: DefaultTheme}
}

func (g *GUI) Run(r *Runner, exit <-chan bool) error {
	var err error
	driver.Main(func(s screen.Screen) {
		r.Snapshot(&g.scr)
		w, werr := s.NewWindow(&screen.NewWindowOptions{
			Title:  "ch8",
			Width:  g.scr.Width * g.Scale,
			Height: g.scr.Height * g.Scale,
		})
		if werr != nil {
			err = werr
			return
		}
		defer w.Release()
		defer g.release()

		type update struct{}
		go func() {
			t := time.NewTicker(FramePeriod)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-exit:
					w.Send(update{})
					return
				}
			}
		}()

		var (
			sz    size.Event
			dirty = true
		)
		for {
			e := w.NextEvent()

			select {
			case <-exit:
				return
			default:
			}

			switch e := e.(type) {
			case size.Event:
				sz = e
				if sz.WidthPx+sz.HeightPx == 0 {
					r.Quit()
					return
				}
				dirty = true

			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					r.Quit()
					return
				}

			case paint.Event:
				dirty = true

			case key.Event:
				if e.Code == key.CodeEscape {
					r.Quit()
					return
				}
				g.key(r, e)

			case update:
				if r.Snapshot(&g.scr) {
					dirty = true
				}
				if !dirty || sz.WidthPx == 0 {
					break
				}
				if err := g.upload(s); err != nil {
					log.Printf("gui: %v", err)
					break
				}
				w.Scale(sz.Bounds(), g.tex, g.tex.Bounds(), draw.Src, nil)
				w.Publish()
				dirty = false

			case error:
				log.Print(e)
			}
		}
	})
	return err
}

// key presses and releases keypad keys. The keypad holds one key, so a
// release only counts for the key last pressed.
func (g *GUI) key(r *Runner, e key.Event) {
	k, ok := KeyFor(e.Rune)
	if !ok {
		return
	}
	switch e.Direction {
	case key.DirPress:
		g.held, g.holding = k, true
		r.Press(k)
	case key.DirRelease:
		if g.holding && g.held == k {
			g.holding = false
			r.Release()
		}
	}
}

func (g *GUI) upload(s screen.Screen) (err error) {
	sz := image.Point{g.scr.Width, g.scr.Height}
	if g.tex == nil || g.size != sz {
		g.release()
		g.size = sz
		if g.buf, err = s.NewBuffer(sz); err != nil {
			return
		}
		if g.tex, err = s.NewTexture(sz); err != nil {
			return
		}
	}
	g.Theme.Render(g.buf.RGBA(), &g.scr)
	g.tex.Upload(image.Point{}, g.buf, g.buf.Bounds())
	return nil
}

func (g *GUI) release() {
	if g.tex != nil {
		g.tex.Release()
		g.tex = nil
	}
	if g.buf != nil {
		g.buf.Release()
		g.buf = nil
	}
}
