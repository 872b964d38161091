package main

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/ch8/chip8"
	"github.com/nf/ch8/vip"
)

// debugger is a terminal UI for a runner in dev mode: a register panel
// above a command line, with memory watches beside the log.
type debugger struct {
	run   *vip.Runner
	reset func()

	app   *tview.Application
	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField

	mu      sync.Mutex
	brk     *symbol
	syms    symbols
	watches []watch
}

type watch struct {
	symbol
	short bool
}

var debugCommands = []string{
	"break", "step", "cont", "pause", "watch", "watch2", "reset", "exit",
}

func (d *debugger) symbols() symbols {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syms
}

func (d *debugger) setSymbols(s symbols) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syms = s
}

func newDebugger() *debugger {
	d := &debugger{app: tview.NewApplication()}

	d.log = tview.NewTextView().SetMaxLines(1000)
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.log.SetBorder(true).SetTitle(" log ")

	d.watch = tview.NewTextView().SetWrap(false)
	d.watch.SetBorder(true).SetTitle(" watch ")

	d.state = tview.NewTextView().SetWrap(false)
	d.state.SetTextStyle(stateStyle(chip8.Idle, vip.ClearState))

	d.input = tview.NewInputField().SetLabel("> ")
	d.input.SetAutocompleteFunc(d.complete)
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(d.done)

	panes := tview.NewFlex().
		AddItem(d.log, 0, 3, false).
		AddItem(d.watch, 24, 0, false)
	d.app.SetRoot(tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.state, 5, 0, false).
		AddItem(panes, 0, 1, false).
		AddItem(d.input, 1, 0, true), true)
	return d
}

func (d *debugger) done(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	cmd := strings.TrimSpace(d.input.GetText())
	d.input.SetText("")
	switch cmd {
	case "":
	case "exit":
		d.app.Stop()
	default:
		d.command(cmd)
	}
}

func (d *debugger) complete(t string) (entries []string) {
	cmd, arg, ok := strings.Cut(t, " ")
	if !ok {
		if t == "" {
			return nil
		}
		for _, c := range debugCommands {
			if strings.HasPrefix(c, t) {
				entries = append(entries, c)
			}
		}
		return
	}
	switch cmd {
	case "b", "break", "w", "w2", "watch", "watch2":
		for _, s := range d.symbols().withLabelPrefix(arg) {
			entries = append(entries, cmd+" "+s.label)
		}
	}
	return
}

// command runs a debugger command other than exit.
func (d *debugger) command(cmd string) {
	if cmd, arg, ok := strings.Cut(cmd, " "); ok {
		switch cmd {
		case "b", "break":
			s, ok := d.symbols().resolve(arg)
			if !ok {
				log.Printf("invalid addr %q", arg)
				return
			}
			d.run.Debug(cmd, s.addr, true)
			d.mu.Lock()
			d.brk = &s
			d.mu.Unlock()
			log.Printf("set break %.3x", s.addr)
			return
		case "w", "w2", "watch", "watch2":
			s, ok := d.symbols().resolve(arg)
			if !ok {
				log.Printf("invalid address %q", arg)
				return
			}
			d.mu.Lock()
			d.watches = append(d.watches,
				watch{symbol: s, short: strings.HasSuffix(cmd, "2")})
			d.mu.Unlock()
			log.Printf("watching %.3x", s.addr)
			return
		}
		log.Printf("unexpected argument to %q", cmd)
		return
	}
	switch cmd {
	case "reset":
		if d.reset != nil {
			d.reset()
		}
		return
	case "b", "break":
		d.mu.Lock()
		d.brk = nil
		d.mu.Unlock()
		log.Print("cleared break")
	}
	d.run.Debug(cmd, 0, false)
}

func (d *debugger) Run() error { return d.app.Run() }

func (d *debugger) StateFunc(m *chip8.Machine, k vip.StateKind) {
	var (
		watch = d.watchContent(m)
		style = stateStyle(m.State(), k)
		state string
	)
	if k != vip.QuietState {
		state = stateMsg(d.symbols(), m, k)
	}
	d.app.QueueUpdateDraw(func() {
		d.watch.SetText(watch)
		if k == vip.QuietState {
			return
		}
		d.state.SetTextStyle(style)
		d.state.SetText(state)
	})
}

// stateStyle colours the register panel. A faulted machine is always
// shown in red, whatever the reason for the update.
func stateStyle(s chip8.State, k vip.StateKind) tcell.Style {
	st := tcell.StyleDefault
	switch {
	case s == chip8.Faulted || k == vip.HaltState:
		return st.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkRed)
	case k == vip.BreakState:
		return st.Foreground(tcell.ColorYellow).Background(tcell.ColorDarkBlue)
	case k == vip.PauseState:
		return st.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkBlue)
	}
	return st.Foreground(tcell.ColorBlack).Background(tcell.ColorDarkGrey)
}

var stateLabels = map[vip.StateKind]string{
	vip.BreakState: "break",
	vip.DebugState: "step",
	vip.PauseState: "pause",
	vip.HaltState:  "fault",
}

func stateMsg(syms symbols, m *chip8.Machine, k vip.StateKind) string {
	var b strings.Builder
	op := m.Op()
	fmt.Fprintf(&b, "%.3x %.4x %-16s", m.PC, uint16(op), op)
	if l, ok := stateLabels[k]; ok {
		fmt.Fprintf(&b, " [%s]", l)
	}
	if s := syms.forAddr(m.PC); len(s) > 0 {
		fmt.Fprintf(&b, " %v ->", s[0])
	}
	if addr, ok := addrForOp(m); ok {
		if s := syms.forAddr(addr); len(s) > 0 {
			fmt.Fprintf(&b, " %v", s[0])
		}
	}
	key := "-"
	if c, ok := m.Key.Pressed(); ok {
		key = fmt.Sprintf("%X", c)
	}
	fmt.Fprintf(&b, "\nv:  % x\ni: %.3x dt: %.2x st: %.2x key: %s\nstack: %v\n",
		m.V, m.I, m.Delay.Get(), m.Sound.Get(), key, m.Stack)
	if err := m.Fault(); err != nil {
		fmt.Fprintf(&b, "%s: %v\n", m.State(), err)
	}
	return b.String()
}

func (d *debugger) watchContent(m *chip8.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if s := d.brk; s != nil {
		fmt.Fprintf(&b, "%s [%.3x] brk!\n", s.label, s.addr)
	}
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%.3x] ", w.label, w.addr)
		if w.short && int(w.addr)+1 < chip8.MemSize {
			fmt.Fprintf(&b, "%.2x%.2x", m.Mem[w.addr], m.Mem[w.addr+1])
		} else {
			fmt.Fprintf(&b, "  %.2x", m.Mem[w.addr])
		}
	}
	return b.String()
}
