package chip8

import (
	"fmt"
	"time"
)

// State is a phase of the fetch/execute cycle.
type State byte

const (
	Idle State = iota
	Fetching
	Dispatching
	Executing
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Dispatching:
		return "dispatching"
	case Executing:
		return "executing"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", byte(s))
}

// Step executes the instruction at m.PC. It only returns a non-nil error if
// it encounters a halt condition, in which case the error is a HaltError, PC
// still addresses the offending instruction and no other state has changed.
//
// A Halt error (from a call to Halt) leaves the machine ready to continue
// after Reset; any other HaltError puts the machine in the Faulted state
// and Step returns the same error until Reset is called.
func (m *Machine) Step() (err error) {
	if m.state == Faulted {
		return m.fault
	}
	var (
		opPC = m.PC
		op   Op
	)
	defer func() {
		if e := recover(); e != nil {
			code, ok := e.(HaltCode)
			if !ok {
				panic(e)
			}
			m.PC = opPC
			err = HaltError{HaltCode: code, Op: op, Addr: opPC}
			if code == Halt {
				m.state = Idle
			} else {
				m.state = Faulted
				m.fault = err
			}
		}
	}()

	if m.Halted() {
		panic(Halt)
	}

	m.state = Fetching
	if int(opPC)+1 >= MemSize {
		panic(OutOfBoundsRead)
	}
	op = Op(short(m.Mem[opPC], m.Mem[opPC+1]))

	m.state = Dispatching
	in := lookup(op)
	if in == nil {
		panic(UnknownInstruction)
	}

	m.state = Executing
	m.PC += 2
	in.exec(m, op)
	m.state = Idle
	return nil
}

// skip advances PC past the next instruction.
func (m *Machine) skip(cond bool) {
	if cond {
		m.PC += 2
	}
}

// span panics with code unless the n bytes starting at addr lie in memory.
func span(addr uint16, n int, code HaltCode) {
	if int(addr)+n > MemSize {
		panic(code)
	}
}

func (m *Machine) nul(op Op) {
	if m.cfg.NullFatal {
		panic(NullInstruction)
	}
}

func (m *Machine) sys(op Op) {}

func (m *Machine) cls(op Op) { m.Screen.Clear() }

func (m *Machine) ret(op Op) { m.PC = m.Stack.Pop() }

func (m *Machine) jp(op Op) { m.PC = op.NNN() }

func (m *Machine) call(op Op) {
	m.Stack.Push(m.PC)
	m.PC = op.NNN()
}

func (m *Machine) jpv(op Op) { m.PC = op.NNN() + uint16(m.V[0]) }

func (m *Machine) sek(op Op)  { m.skip(m.V[op.X()] == op.KK()) }
func (m *Machine) snek(op Op) { m.skip(m.V[op.X()] != op.KK()) }
func (m *Machine) sev(op Op)  { m.skip(m.V[op.X()] == m.V[op.Y()]) }
func (m *Machine) snev(op Op) { m.skip(m.V[op.X()] != m.V[op.Y()]) }

func (m *Machine) ldk(op Op)  { m.V[op.X()] = op.KK() }
func (m *Machine) addk(op Op) { m.V[op.X()] += op.KK() }
func (m *Machine) ldv(op Op)  { m.V[op.X()] = m.V[op.Y()] }
func (m *Machine) or(op Op)   { m.V[op.X()] |= m.V[op.Y()] }
func (m *Machine) and(op Op)  { m.V[op.X()] &= m.V[op.Y()] }
func (m *Machine) xor(op Op)  { m.V[op.X()] ^= m.V[op.Y()] }

// The arithmetic and shift instructions write the flag after the result so
// that VF holds the flag when x is F.

func (m *Machine) addv(op Op) {
	a, b := m.V[op.X()], m.V[op.Y()]
	m.V[op.X()] = a + b
	m.V[Flag] = flag(uint16(a)+uint16(b) > 0xff)
}

func (m *Machine) sub(op Op) {
	a, b := m.V[op.X()], m.V[op.Y()]
	m.V[op.X()] = a - b
	m.V[Flag] = flag(a > b)
}

func (m *Machine) subn(op Op) {
	a, b := m.V[op.X()], m.V[op.Y()]
	m.V[op.X()] = b - a
	m.V[Flag] = flag(b > a)
}

func (m *Machine) shr(op Op) {
	a := m.V[op.X()]
	m.V[op.X()] = a >> 1
	m.V[Flag] = a & 1
}

func (m *Machine) shl(op Op) {
	a := m.V[op.X()]
	m.V[op.X()] = a << 1
	m.V[Flag] = a >> 7
}

func (m *Machine) rnd(op Op) { m.V[op.X()] = byte(m.rand.Intn(0x100)) & op.KK() }

func (m *Machine) ldi(op Op)  { m.I = op.NNN() }
func (m *Machine) addi(op Op) { m.I += uint16(m.V[op.X()]) }
func (m *Machine) ldf(op Op)  { m.I = GlyphStart + uint16(m.V[op.X()])*GlyphSize }

func (m *Machine) bcd(op Op) {
	span(m.I, 3, OutOfBoundsWrite)
	v := m.V[op.X()]
	m.Mem[m.I] = v / 100
	m.Mem[m.I+1] = v / 10 % 10
	m.Mem[m.I+2] = v % 10
}

func (m *Machine) str(op Op) {
	n := int(op.X()) + 1
	span(m.I, n, OutOfBoundsWrite)
	copy(m.Mem[m.I:], m.V[:n])
	if m.cfg.AdvanceI {
		m.I += uint16(n)
	}
}

func (m *Machine) ldr(op Op) {
	n := int(op.X()) + 1
	span(m.I, n, OutOfBoundsRead)
	copy(m.V[:n], m.Mem[m.I:])
	if m.cfg.AdvanceI {
		m.I += uint16(n)
	}
}

func (m *Machine) lddt(op Op) { m.V[op.X()] = m.Delay.Get() }
func (m *Machine) stdt(op Op) { m.Delay.Set(m.V[op.X()]) }
func (m *Machine) stst(op Op) { m.Sound.Set(m.V[op.X()]) }

func (m *Machine) skp(op Op) {
	k, ok := m.Key.Pressed()
	m.skip(ok && k == m.V[op.X()])
}

func (m *Machine) sknp(op Op) {
	k, ok := m.Key.Pressed()
	m.skip(!ok || k != m.V[op.X()])
}

func (m *Machine) ldkey(op Op) {
	for {
		if k, ok := m.Key.Pressed(); ok {
			m.V[op.X()] = k
			return
		}
		if m.Halted() {
			panic(Halt)
		}
		if m.Pump != nil {
			m.Pump()
		}
		time.Sleep(KeyPoll)
	}
}

func (m *Machine) drw(op Op) {
	n := int(op.N())
	span(m.I, n, OutOfBoundsRead)
	c := m.Screen.Draw(int(m.V[op.X()]), int(m.V[op.Y()]), m.Mem[m.I:int(m.I)+n])
	if m.cfg.Collision {
		m.V[Flag] = flag(c)
	}
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// HaltError is returned by Step if execution is halted for some reason.
type HaltError struct {
	HaltCode
	Op   Op
	Addr uint16
}

func (e HaltError) Error() string {
	return fmt.Sprintf("%s executing %.4x (%s) at %.3x", e.HaltCode, uint16(e.Op), e.Op, e.Addr)
}

// HaltCode signifies the type of condition that halted execution.
type HaltCode byte

const (
	Halt               HaltCode = 0x00 // Halt was called; not a fault
	OutOfBoundsRead    HaltCode = 0x01
	OutOfBoundsWrite   HaltCode = 0x02
	StackOverflow      HaltCode = 0x03
	StackUnderflow     HaltCode = 0x04
	UnknownInstruction HaltCode = 0x05
	NullInstruction    HaltCode = 0x06
)

func (c HaltCode) String() string {
	if s, ok := map[HaltCode]string{
		Halt:               "halt",
		OutOfBoundsRead:    "out of bounds read",
		OutOfBoundsWrite:   "out of bounds write",
		StackOverflow:      "stack overflow",
		StackUnderflow:     "stack underflow",
		UnknownInstruction: "unknown instruction",
		NullInstruction:    "null instruction",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}
