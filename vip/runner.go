// Package vip hosts a CHIP-8 machine in the manner of the COSMAC VIP:
// it drives the machine's step loop and timers and connects its screen
// and keypad to a frontend.
package vip

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nf/ch8/chip8"
)

// FramePeriod is the interval at which the runner paces execution and
// reports state.
const FramePeriod = time.Second / 60

// DefaultHz is a typical instruction rate for CHIP-8 programs.
const DefaultHz = 700

// A Frontend presents a running machine's screen and feeds its keypad.
type Frontend interface {
	// Run drives the frontend until exit is closed or the user quits.
	// It is called on the goroutine that called Runner.Run.
	Run(r *Runner, exit <-chan bool) error
}

// StateKind describes why a StateFunc is being called.
type StateKind int

const (
	ClearState StateKind = iota // execution resumed
	QuietState                  // periodic update while running
	DebugState                  // single step completed
	BreakState                  // breakpoint reached
	PauseState                  // paused by request
	HaltState                   // machine faulted
)

// StateFunc is called on the runner's goroutine, between steps, when the
// execution state changes and once per frame while running.
type StateFunc func(m *chip8.Machine, k StateKind)

type Runner struct {
	front Frontend
	hz    int
	dev   bool
	state StateFunc

	// Trace, if set, records each executed instruction in a backlog that
	// is printed when the machine faults.
	Trace bool

	cur       atomic.Pointer[chip8.Machine]
	reset     chan *chip8.Machine
	resetDone chan bool
	debug     chan debugCmd
	quit      chan bool
	quitOnce  sync.Once

	paused bool
	pumped time.Time
	brk    uint16
	brkSet bool
	log    backlog

	mu     sync.Mutex
	screen chip8.Screen // most recently published screen
}

type debugCmd struct {
	cmd  string
	addr uint16
	arg  bool
}

// NewRunner returns a Runner that executes hz instructions per second,
// or as many as it can if hz is zero or negative. A nil frontend runs
// headless.
// In dev mode a fault pauses execution instead of ending it, and Swap
// may be used to replace the machine.
func NewRunner(front Frontend, hz int, devMode bool, state StateFunc) *Runner {
	if hz < 0 {
		hz = 0
	}
	return &Runner{
		front:     front,
		hz:        hz,
		dev:       devMode,
		state:     state,
		reset:     make(chan *chip8.Machine),
		resetDone: make(chan bool),
		debug:     make(chan debugCmd, 16),
		quit:      make(chan bool),
	}
}

// Run executes m until it faults or Quit is called, driving the frontend
// (if any) on the calling goroutine. It returns the fault, if any.
func (r *Runner) Run(m *chip8.Machine) error {
	var (
		exit = make(chan bool)
		err  error
	)
	r.cur.Store(m)
	r.publish(m)
	go func() {
		err = r.loop(m)
		close(exit)
	}()
	if r.front != nil {
		ferr := r.front.Run(r, exit)
		r.Quit()
		<-exit
		if ferr != nil {
			return fmt.Errorf("frontend: %v", ferr)
		}
		return err
	}
	<-exit
	r.Quit()
	return err
}

// Machine returns the machine being run. Only its Key and timers may be
// used while Run is in progress.
func (r *Runner) Machine() *chip8.Machine { return r.cur.Load() }

// Quit stops the runner. It may be called from any goroutine, any number
// of times.
func (r *Runner) Quit() {
	r.quitOnce.Do(func() { close(r.quit) })
	if m := r.cur.Load(); m != nil {
		m.Halt()
	}
}

// Press and Release update the keypad of the machine being run.
func (r *Runner) Press(k byte) {
	if m := r.cur.Load(); m != nil {
		m.Key.Press(k)
	}
}

func (r *Runner) Release() {
	if m := r.cur.Load(); m != nil {
		m.Key.Release()
	}
}

// Swap replaces the running machine with m.
func (r *Runner) Swap(m *chip8.Machine) {
	if !r.dev {
		panic("Swap called while not running in dev mode")
	}
	if old := r.cur.Load(); old != nil {
		old.Halt()
	}
	r.reset <- m
	<-r.resetDone
}

// Debug sends a debugger command to the runner. Commands are
// "b" or "break" (set a breakpoint at addr if arg is set, or clear it),
// "s" or "step", "c" or "cont", "p" or "pause", and "exit".
// Commands sent after the runner has stopped are dropped.
func (r *Runner) Debug(cmd string, addr uint16, arg bool) {
	if cmd == "exit" {
		r.Quit()
		return
	}
	select {
	case r.debug <- debugCmd{cmd, addr, arg}:
	case <-r.quit:
	}
}

// Snapshot copies the most recently published screen into dst if its
// operation count differs from dst's, and reports whether it did.
func (r *Runner) Snapshot(dst *chip8.Screen) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dst.Pix != nil && dst.Ops == r.screen.Ops {
		return false
	}
	r.screen.CopyTo(dst)
	return true
}

func (r *Runner) publish(m *chip8.Machine) {
	r.mu.Lock()
	m.Screen.CopyTo(&r.screen)
	r.mu.Unlock()
}

func (r *Runner) notify(m *chip8.Machine, k StateKind) {
	if r.state != nil {
		r.state(m, k)
	}
}

func (r *Runner) start(m *chip8.Machine) {
	r.cur.Store(m)
	m.Pump = func() { r.pump(m) }
	r.publish(m)
	go m.RunTimers()
}

// pump is called while m waits for a key, so that state is still reported
// once per frame.
func (r *Runner) pump(m *chip8.Machine) {
	if now := time.Now(); now.Sub(r.pumped) >= FramePeriod {
		r.pumped = now
		r.notify(m, QuietState)
	}
}

func (r *Runner) loop(m *chip8.Machine) error {
	r.start(m)
	defer func() { r.cur.Load().Halt() }()

	var (
		t      = time.NewTicker(FramePeriod)
		acc    int  // instruction budget carried between frames, times 60
		resume bool // ignore the breakpoint at the current PC
	)
	defer t.Stop()
	for {
		select {
		case <-r.quit:
			return nil
		case nm := <-r.reset:
			m.Halt()
			m = nm
			r.start(m)
			r.resetDone <- true
			r.paused = false
			resume = false
			r.notify(m, ClearState)
			continue
		case c := <-r.debug:
			step := r.command(m, c)
			resume = !r.paused
			if step {
				if err := r.exec(m); err != nil {
					if done, err := r.stopped(&m, err); done {
						return err
					}
				}
				r.publish(m)
				r.notify(m, DebugState)
			}
			continue
		case <-t.C:
		}
		if r.paused {
			continue
		}

		var (
			n        = 0
			deadline time.Time
		)
		if r.hz > 0 {
			acc += r.hz
			n, acc = acc/60, acc%60
		} else {
			deadline = time.Now().Add(FramePeriod)
		}
		for i := 0; r.hz == 0 || i < n; i++ {
			if r.hz == 0 && i%64 == 0 && time.Now().After(deadline) {
				break
			}
			if r.brkSet && m.PC == r.brk && !resume {
				r.paused = true
				r.notify(m, BreakState)
				break
			}
			resume = false
			ops := m.Screen.Ops
			if err := r.exec(m); err != nil {
				if done, err := r.stopped(&m, err); done {
					return err
				}
				break
			}
			if m.Screen.Ops != ops {
				r.publish(m)
			}
		}
		if !r.paused {
			r.notify(m, QuietState)
		}
	}
}

func (r *Runner) exec(m *chip8.Machine) error {
	if r.Trace {
		r.log.LazyPrintf("%.3x %v", m.PC, m.Op())
	}
	return m.Step()
}

// stopped handles an error returned by Step. It reports whether the loop
// should return, and with what error. A machine halted for a Swap is
// replaced by the new one.
func (r *Runner) stopped(m **chip8.Machine, err error) (bool, error) {
	if h, ok := err.(chip8.HaltError); ok && h.HaltCode == chip8.Halt {
		select {
		case <-r.quit:
			return true, nil
		case nm := <-r.reset:
			*m = nm
			r.start(nm)
			r.resetDone <- true
			r.paused = false
			r.notify(nm, ClearState)
			return false, nil
		}
	}
	r.log.Emit()
	r.log.Reset()
	r.notify(*m, HaltState)
	if !r.dev {
		return true, err
	}
	log.Printf("chip8: %v", err)
	r.paused = true
	return false, nil
}

// command applies a debugger command and reports whether the runner
// should execute a single step.
func (r *Runner) command(m *chip8.Machine, c debugCmd) (step bool) {
	switch c.cmd {
	case "b", "break":
		r.brk, r.brkSet = c.addr, c.arg
	case "s", "step":
		if m.State() == chip8.Faulted {
			return false
		}
		r.paused = true
		return true
	case "c", "cont":
		if m.State() == chip8.Faulted {
			return false
		}
		r.paused = false
		r.notify(m, ClearState)
	case "p", "pause":
		r.paused = true
		r.notify(m, PauseState)
	default:
		log.Printf("unknown debug command %q", c.cmd)
	}
	return false
}

// RunBatch executes up to n instructions of m as fast as possible, with the
// timers running, and returns the first fault.
func RunBatch(m *chip8.Machine, n int) error {
	go m.RunTimers()
	defer m.Halt()
	for i := 0; i < n; i++ {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}
