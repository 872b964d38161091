package vip

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/nf/ch8/chip8"
)

// KeyHold is how long the terminal frontend holds a keypad key down after
// the key is typed. Terminals report no key releases.
const KeyHold = 150 * time.Millisecond

// Term is a Frontend that draws the screen in a terminal, two pixels to
// each character cell.
type Term struct {
	Theme Theme

	scr chip8.Screen
}

func NewTerm() *Term { return &Term{Theme: DefaultTheme} }

func (t *Term) Run(r *Runner, exit <-chan bool) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()
	s.HideCursor()

	var (
		events  = make(chan tcell.Event, 16)
		stop    = make(chan struct{})
		tick    = time.NewTicker(FramePeriod)
		release = time.NewTimer(KeyHold)
	)
	defer tick.Stop()
	defer release.Stop()
	go s.ChannelEvents(events, stop)
	defer close(stop)

	r.Snapshot(&t.scr)
	t.draw(s)
	for {
		select {
		case <-exit:
			return nil
		case <-tick.C:
			if r.Snapshot(&t.scr) {
				t.draw(s)
			}
		case <-release.C:
			r.Release()
		case e := <-events:
			switch e := e.(type) {
			case *tcell.EventResize:
				s.Sync()
				t.draw(s)
			case *tcell.EventKey:
				switch e.Key() {
				case tcell.KeyEscape, tcell.KeyCtrlC:
					r.Quit()
					return nil
				case tcell.KeyRune:
					if k, ok := KeyFor(e.Rune()); ok {
						r.Press(k)
						if !release.Stop() {
							select {
							case <-release.C:
							default:
							}
						}
						release.Reset(KeyHold)
					}
				}
			}
		}
	}
}

func (t *Term) draw(s tcell.Screen) {
	var (
		on  = tcell.NewRGBColor(int32(t.Theme.On.R), int32(t.Theme.On.G), int32(t.Theme.On.B))
		off = tcell.NewRGBColor(int32(t.Theme.Off.R), int32(t.Theme.Off.G), int32(t.Theme.Off.B))
		c   = func(x, y int) tcell.Color {
			if y < t.scr.Height && t.scr.At(x, y) {
				return on
			}
			return off
		}
	)
	for y := 0; y < t.scr.Height; y += 2 {
		for x := 0; x < t.scr.Width; x++ {
			st := tcell.StyleDefault.Foreground(c(x, y)).Background(c(x, y+1))
			s.SetContent(x, y/2, '▀', nil, st)
		}
	}
	s.Show()
}
