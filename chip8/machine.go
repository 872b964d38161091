// Package chip8 provides an implementation of a CHIP-8 CPU, called Machine,
// that can be used to execute CHIP-8 programs.
package chip8

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"time"
)

const (
	MemSize      = 0x1000
	ProgramStart = 0x200
	GlyphStart   = 0x050
	GlyphSize    = 5
	StackDepth   = 16
	Flag         = 0xf // index of the flag register

	DefaultWidth  = 64
	DefaultHeight = 32
)

// Config selects between the behaviors that differ across CHIP-8
// implementations.
type Config struct {
	// Width and Height give the framebuffer dimensions.
	// Zero values select DefaultWidth and DefaultHeight.
	Width, Height int

	// NullFatal makes the all-zero word halt with NullInstruction
	// instead of executing as a no-op.
	NullFatal bool

	// AdvanceI makes register store and load (Fx55, Fx65) leave I
	// pointing just past the last byte transferred.
	AdvanceI bool

	// Collision makes DRW set VF to 1 if any pixel was turned off,
	// and 0 otherwise. If false DRW leaves VF alone.
	Collision bool

	// Seed seeds the generator used by RND. Zero selects a seed
	// from the current time.
	Seed int64
}

// DefaultConfig returns the configuration of a 64x32 machine on which zero
// words are no-ops and I is left unchanged by Fx55 and Fx65.
func DefaultConfig() Config {
	return Config{Width: DefaultWidth, Height: DefaultHeight}
}

// Machine is an implementation of a CHIP-8 CPU.
//
// The engine goroutine owns every field except Delay and Sound, which are
// also decremented by RunTimers, and Key, which is written by the input
// collaborator. Those three, and the stop flag set by Halt, are safe for
// concurrent use.
type Machine struct {
	Mem    [MemSize]byte
	V      [16]byte
	I      uint16
	PC     uint16
	Stack  Stack
	Screen Screen

	Delay Timer
	Sound Timer
	Key   Keypad

	// Pump, if non-nil, is called while LD Vx, K waits for a key so that
	// a caller sharing the engine's goroutine can process events.
	Pump func()

	cfg   Config
	rand  *rand.Rand
	state State
	fault error
	halt  atomic.Bool
}

// NewMachine returns a CHIP-8 CPU with zeroed registers and memory, the hex
// digit glyphs installed at GlyphStart and PC set to ProgramStart.
func NewMachine(c Config) *Machine {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	m := &Machine{
		cfg:    c,
		rand:   rand.New(rand.NewSource(c.Seed)),
		Screen: *NewScreen(c.Width, c.Height),
	}
	m.Reset()
	return m
}

// Config returns the configuration the machine was created with.
func (m *Machine) Config() Config { return m.cfg }

// Reset returns the machine to its initial state, discarding any loaded
// program and clearing a fault or a pending Halt.
func (m *Machine) Reset() {
	m.Mem = [MemSize]byte{}
	copy(m.Mem[GlyphStart:], glyphs[:])
	m.V = [16]byte{}
	m.I = 0
	m.PC = ProgramStart
	m.Stack = Stack{}
	m.Screen.Clear()
	m.Delay.Set(0)
	m.Sound.Set(0)
	m.Key.Release()
	m.state = Idle
	m.fault = nil
	m.halt.Store(false)
}

// ErrProgramTooLarge is returned by Load if the program does not fit
// between ProgramStart and the end of memory.
var ErrProgramTooLarge = errors.New("program too large")

// Load copies rom into memory at ProgramStart. If rom is too large it
// returns ErrProgramTooLarge and memory is left untouched.
func (m *Machine) Load(rom []byte) error {
	if len(rom) > MemSize-ProgramStart {
		return ErrProgramTooLarge
	}
	copy(m.Mem[ProgramStart:], rom)
	return nil
}

// Halt asks the machine to stop. Any LD Vx, K in progress returns promptly,
// RunTimers exits and subsequent calls to Step return a Halt error.
func (m *Machine) Halt() { m.halt.Store(true) }

// Halted reports whether Halt has been called since the last Reset.
func (m *Machine) Halted() bool { return m.halt.Load() }

// State returns the current phase of the fetch/execute cycle.
func (m *Machine) State() State { return m.state }

// Fault returns the error that put the machine in the Faulted state,
// or nil.
func (m *Machine) Fault() error { return m.fault }

// Op returns the instruction word at PC, or zero if PC is out of range.
func (m *Machine) Op() Op {
	if int(m.PC)+1 >= MemSize {
		return 0
	}
	return Op(short(m.Mem[m.PC], m.Mem[m.PC+1]))
}

var glyphs = [16 * GlyphSize]byte{
	0xf0, 0x90, 0x90, 0x90, 0xf0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xf0, 0x10, 0xf0, 0x80, 0xf0, // 2
	0xf0, 0x10, 0xf0, 0x10, 0xf0, // 3
	0x90, 0x90, 0xf0, 0x10, 0x10, // 4
	0xf0, 0x80, 0xf0, 0x10, 0xf0, // 5
	0xf0, 0x80, 0xf0, 0x90, 0xf0, // 6
	0xf0, 0x10, 0x20, 0x40, 0x40, // 7
	0xf0, 0x90, 0xf0, 0x90, 0xf0, // 8
	0xf0, 0x90, 0xf0, 0x10, 0xf0, // 9
	0xf0, 0x90, 0xf0, 0x90, 0x90, // A
	0xe0, 0x90, 0xe0, 0x90, 0xe0, // B
	0xf0, 0x80, 0x80, 0x80, 0xf0, // C
	0xe0, 0x90, 0x90, 0x90, 0xe0, // D
	0xf0, 0x80, 0xf0, 0x80, 0xf0, // E
	0xf0, 0x80, 0xf0, 0x80, 0x80, // F
}

func short(hi, lo byte) uint16 {
	return uint16(hi)<<8 + uint16(lo)
}
