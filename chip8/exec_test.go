package chip8

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

var testConfig = Config{Seed: 1}

func TestExec(t *testing.T) {
	c := newExecTestCase
	for i, c := range []*execTestCase{
		c(0x0000),
		c(0x0123),
		c(0x00e0).pix(3, 4).pix(63, 31).want().clear(),

		c(0x00ee).stack(0x2a2, 0x346).want().stack(0x2a2).pc(0x346),
		c(0x1345).want().pc(0x345),
		c(0x2345).want().stack(0x202).pc(0x345),
		c(0x2345).stack(0x2a2).want().stack(0x2a2, 0x202).pc(0x345),
		c(0xb300).v(0, 4).want().pc(0x304),
		c(0xbfff).v(0, 0xff).want().pc(0x10fe),

		c(0x3a42).v(0xa, 0x42).want().pc(0x204),
		c(0x3a42).v(0xa, 0x41),
		c(0x4a42).v(0xa, 0x41).want().pc(0x204),
		c(0x4a42).v(0xa, 0x42),
		c(0x5ab0).v(0xa, 7).v(0xb, 7).want().pc(0x204),
		c(0x5ab0).v(0xa, 7).v(0xb, 8),
		c(0x9ab0).v(0xa, 7).v(0xb, 8).want().pc(0x204),
		c(0x9ab0).v(0xa, 7).v(0xb, 7),

		c(0x6a42).want().v(0xa, 0x42),
		c(0x7a01).v(0xa, 1).v(0xf, 9).want().v(0xa, 2),
		c(0x7a01).v(0xa, 0xff).want().v(0xa, 0),
		c(0x8ab0).v(0xb, 5).want().v(0xa, 5),
		c(0x8ab1).v(0xa, 0x36).v(0xb, 0x63).want().v(0xa, 0x77),
		c(0x8ab2).v(0xa, 0x99).v(0xb, 0xb8).want().v(0xa, 0x98),
		c(0x8ab3).v(0xa, 0x31).v(0xb, 0x13).want().v(0xa, 0x22),

		c(0x8ab4).v(0xa, 1).v(0xb, 2).v(0xf, 7).want().v(0xa, 3).v(0xf, 0),
		c(0x8ab4).v(0xa, 0xff).v(0xb, 2).want().v(0xa, 1).v(0xf, 1),
		c(0x8ab4).v(0xa, 0x80).v(0xb, 0x80).want().v(0xa, 0).v(0xf, 1),
		c(0x8fb4).v(0xf, 0xff).v(0xb, 2).want().v(0xf, 1),

		c(0x8ab5).v(0xa, 5).v(0xb, 3).want().v(0xa, 2).v(0xf, 1),
		c(0x8ab5).v(0xa, 3).v(0xb, 5).v(0xf, 1).want().v(0xa, 0xfe).v(0xf, 0),
		c(0x8ab5).v(0xa, 5).v(0xb, 5).want().v(0xa, 0).v(0xf, 0),

		c(0x8ab7).v(0xa, 3).v(0xb, 5).want().v(0xa, 2).v(0xf, 1),
		c(0x8ab7).v(0xa, 5).v(0xb, 3).v(0xf, 1).want().v(0xa, 0xfe).v(0xf, 0),

		c(0x8a06).v(0xa, 5).want().v(0xa, 2).v(0xf, 1),
		c(0x8a06).v(0xa, 4).v(0xf, 1).want().v(0xa, 2).v(0xf, 0),
		c(0x8a0e).v(0xa, 0x81).want().v(0xa, 0x02).v(0xf, 1),
		c(0x8a0e).v(0xa, 0x41).v(0xf, 1).want().v(0xa, 0x82).v(0xf, 0),

		c(0xa123).want().i(0x123),
		c(0xfa1e).i(0x300).v(0xa, 0x20).want().i(0x320),
		c(0xfa1e).i(0xfff0).v(0xa, 0x20).v(0xf, 3).want().i(0x0010),
		c(0xfa29).v(0xa, 0xb).want().i(GlyphStart + 0xb*GlyphSize),

		c(0xca00).v(0xa, 9).want().v(0xa, 0),

		c(0xfa33).v(0xa, 254).i(0x300).want().mem(0x300, 2, 5, 4),
		c(0xfa33).v(0xa, 7).i(0x300).want().mem(0x300, 0, 0, 7),
		c(0xf355).v(0, 1).v(1, 2).v(2, 3).v(3, 4).v(4, 5).i(0x300).
			want().mem(0x300, 1, 2, 3, 4),
		c(0xf265).mem(0x300, 7, 8, 9, 10).i(0x300).
			want().v(0, 7).v(1, 8).v(2, 9),

		c(0xfa07).delay(7).want().v(0xa, 7),
		c(0xfa15).v(0xa, 9).want().delay(9),
		c(0xfa18).v(0xa, 9).want().sound(9),

		c(0xea9e).v(0xa, 5).key(5).want().pc(0x204),
		c(0xea9e).v(0xa, 5).key(4),
		c(0xea9e).v(0xa, 5),
		c(0xeaa1).v(0xa, 5).want().pc(0x204),
		c(0xeaa1).v(0xa, 5).key(4).want().pc(0x204),
		c(0xeaa1).v(0xa, 5).key(5),
		c(0xfa0a).key(3).want().v(0xa, 3),

		c(0xd015).v(0, 2).v(1, 3).i(GlyphStart).want().
			pix(2, 3).pix(3, 3).pix(4, 3).pix(5, 3).
			pix(2, 4).pix(5, 4).
			pix(2, 5).pix(5, 5).
			pix(2, 6).pix(5, 6).
			pix(2, 7).pix(3, 7).pix(4, 7).pix(5, 7),
		c(0xd011).v(1, 31).i(0x300).mem(0x300, 0x81).pix(7, 31).want().
			clear().pix(0, 31),

		c(0x00ee).want().pc(0x200).
			error(HaltError{HaltCode: StackUnderflow, Op: 0x00ee, Addr: 0x200}),
		c(0x2345).stack(0x202, 0x202, 0x202, 0x202, 0x202, 0x202, 0x202, 0x202,
			0x202, 0x202, 0x202, 0x202, 0x202, 0x202, 0x202, 0x202).
			want().pc(0x200).
			error(HaltError{HaltCode: StackOverflow, Op: 0x2345, Addr: 0x200}),
		c(0x5ab1).want().pc(0x200).
			error(HaltError{HaltCode: UnknownInstruction, Op: 0x5ab1, Addr: 0x200}),
		c(0xe19f).want().pc(0x200).
			error(HaltError{HaltCode: UnknownInstruction, Op: 0xe19f, Addr: 0x200}),
		c(0xfa33).v(0xa, 254).i(0xffe).want().pc(0x200).
			error(HaltError{HaltCode: OutOfBoundsWrite, Op: 0xfa33, Addr: 0x200}),
		c(0xf355).i(0xffe).want().pc(0x200).
			error(HaltError{HaltCode: OutOfBoundsWrite, Op: 0xf355, Addr: 0x200}),
		c(0xf265).i(0xffe).want().pc(0x200).
			error(HaltError{HaltCode: OutOfBoundsRead, Op: 0xf265, Addr: 0x200}),
		c(0xd01f).i(0xff8).want().pc(0x200).
			error(HaltError{HaltCode: OutOfBoundsRead, Op: 0xd01f, Addr: 0x200}),
		c(0x1200).pc(0xfff).want().pc(0xfff).
			error(HaltError{HaltCode: OutOfBoundsRead, Op: 0, Addr: 0xfff}),
	} {
		t.Run(fmt.Sprintf("%s_%d", c.op, i), func(t *testing.T) {
			if err := c.m.Step(); err != c.err {
				t.Fatalf("got error %v, want %v", err, c.err)
			}
			if g, w := c.m.V, c.w.V; g != w {
				t.Errorf("registers are\n\t% x\nwant\n\t% x", g, w)
			}
			if g, w := c.m.I, c.w.I; g != w {
				t.Errorf("I is %.4x, want %.4x", g, w)
			}
			if g, w := c.m.PC, c.w.PC; g != w {
				t.Errorf("PC is %.4x, want %.4x", g, w)
			}
			if g, w := c.m.Stack, c.w.Stack; !stackEq(g, w) {
				t.Errorf("stack is %v, want %v", g, w)
			}
			if g, w := c.m.Mem, c.w.Mem; g != w {
				for i := range g {
					if g[i] != w[i] {
						t.Errorf("memory[%.4x] = %.2x, want %.2x", i, g[i], w[i])
					}
				}
			}
			if g, w := c.m.Delay.Get(), c.w.Delay.Get(); g != w {
				t.Errorf("delay timer is %d, want %d", g, w)
			}
			if g, w := c.m.Sound.Get(), c.w.Sound.Get(); g != w {
				t.Errorf("sound timer is %d, want %d", g, w)
			}
			if g, w := c.m.Screen.Pix, c.w.Screen.Pix; !bytes.Equal(g, w) {
				t.Errorf("screen is\n%vwant\n%v", &c.m.Screen, &c.w.Screen)
			}
		})
	}
}

type execTestCase struct {
	op   Op
	m, w *Machine
	err  error
	set  *Machine
}

func newExecTestCase(op Op) *execTestCase {
	c := &execTestCase{op: op}
	rom := []byte{byte(op >> 8), byte(op)}
	c.m = NewMachine(testConfig)
	c.m.Load(rom)
	c.w = NewMachine(testConfig)
	c.w.Load(rom)
	c.w.PC += 2
	c.set = c.m
	return c
}

// both applies f to the machine being set up and, if that is the initial
// machine, to the wanted machine as well.
func (c *execTestCase) both(f func(m *Machine)) *execTestCase {
	f(c.set)
	if c.set == c.m {
		f(c.w)
	}
	return c
}

func (c *execTestCase) v(reg, val byte) *execTestCase {
	return c.both(func(m *Machine) { m.V[reg] = val })
}

func (c *execTestCase) i(addr uint16) *execTestCase {
	return c.both(func(m *Machine) { m.I = addr })
}

func (c *execTestCase) mem(addr uint16, bytes ...byte) *execTestCase {
	return c.both(func(m *Machine) { copy(m.Mem[addr:], bytes) })
}

func (c *execTestCase) stack(addrs ...uint16) *execTestCase {
	return c.both(func(m *Machine) {
		m.Stack = Stack{}
		for _, a := range addrs {
			m.Stack.Push(a)
		}
	})
}

func (c *execTestCase) key(k byte) *execTestCase {
	return c.both(func(m *Machine) { m.Key.Press(k) })
}

func (c *execTestCase) delay(v byte) *execTestCase {
	return c.both(func(m *Machine) { m.Delay.Set(v) })
}

func (c *execTestCase) sound(v byte) *execTestCase {
	return c.both(func(m *Machine) { m.Sound.Set(v) })
}

func (c *execTestCase) pix(x, y int) *execTestCase {
	return c.both(func(m *Machine) { m.Screen.Pix[y*m.Screen.Width+x] = 1 })
}

func (c *execTestCase) clear() *execTestCase {
	return c.both(func(m *Machine) { m.Screen.Clear() })
}

// pc sets the program counter of the machine being set up only.
func (c *execTestCase) pc(addr uint16) *execTestCase {
	c.set.PC = addr
	return c
}

func (c *execTestCase) want() *execTestCase {
	c.set = c.w
	return c
}

func (c *execTestCase) error(err error) *execTestCase {
	c.err = err
	return c
}

func stackEq(a, b Stack) bool {
	if a.Ptr != b.Ptr {
		return false
	}
	for i := 0; i < int(a.Ptr); i++ {
		if a.Addrs[i] != b.Addrs[i] {
			return false
		}
	}
	return true
}

// newTestMachine returns a machine with the given words loaded at
// ProgramStart.
func newTestMachine(c Config, words ...uint16) *Machine {
	m := NewMachine(c)
	for i, w := range words {
		m.Mem[ProgramStart+2*i] = byte(w >> 8)
		m.Mem[ProgramStart+2*i+1] = byte(w)
	}
	return m
}

func TestSubtractFlag(t *testing.T) {
	m := newTestMachine(testConfig, 0x8125)
	for a := 0; a < 0x100; a++ {
		for b := 0; b < 0x100; b++ {
			m.PC = ProgramStart
			m.V[1], m.V[2] = byte(a), byte(b)
			if err := m.Step(); err != nil {
				t.Fatal(err)
			}
			if g, w := m.V[1], byte(a-b); g != w {
				t.Fatalf("%d - %d: V1 = %d, want %d", a, b, g, w)
			}
			if g, w := m.V[Flag], flag(a > b); g != w {
				t.Fatalf("%d - %d: VF = %d, want %d", a, b, g, w)
			}
		}
	}
}

func TestSubtractRegisters(t *testing.T) {
	for x := byte(0); x < Flag; x++ {
		for y := byte(0); y < 16; y++ {
			for _, ab := range [][2]byte{{0, 0}, {1, 0}, {0, 1}, {0x80, 0x7f}, {0xff, 0xff}, {3, 200}} {
				m := newTestMachine(testConfig, 0x8005|uint16(x)<<8|uint16(y)<<4)
				a, b := ab[0], ab[1]
				m.V[x], m.V[y] = a, b
				if x == y {
					a = b
				}
				if err := m.Step(); err != nil {
					t.Fatal(err)
				}
				if g, w := m.V[x], a-b; g != w {
					t.Errorf("V%X = V%X - V%X: got %d, want %d", x, x, y, g, w)
				}
				if g, w := m.V[Flag], flag(a > b); g != w {
					t.Errorf("V%X = V%X - V%X: VF = %d, want %d", x, x, y, g, w)
				}
			}
		}
	}
}

func TestShiftLeft(t *testing.T) {
	m := newTestMachine(testConfig, 0x830e)
	for a := 0; a < 0x100; a++ {
		m.PC = ProgramStart
		m.V[3] = byte(a)
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		if g, w := m.V[3], byte(a*2); g != w {
			t.Errorf("%.2x << 1 = %.2x, want %.2x", a, g, w)
		}
		if g, w := m.V[Flag], byte(a>>7); g != w {
			t.Errorf("%.2x << 1: VF = %d, want %d", a, g, w)
		}
	}
}

func TestRandom(t *testing.T) {
	m := newTestMachine(testConfig, 0xc10f, 0xc2ff)
	r := rand.New(rand.NewSource(testConfig.Seed))
	for _, kk := range []byte{0x0f, 0xff} {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		want := byte(r.Intn(0x100)) & kk
		if g := m.V[1+kk>>7]; g != want {
			t.Errorf("RND with mask %.2x: got %.2x, want %.2x", kk, g, want)
		}
	}
}

func TestNestedCalls(t *testing.T) {
	m := newTestMachine(testConfig, 0x2200)
	for i := 0; i < StackDepth; i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	err := m.Step()
	want := HaltError{HaltCode: StackOverflow, Op: 0x2200, Addr: 0x200}
	if err != want {
		t.Fatalf("call %d: got error %v, want %v", StackDepth+1, err, want)
	}
	if m.Stack.Ptr != StackDepth {
		t.Errorf("stack pointer is %d, want %d", m.Stack.Ptr, StackDepth)
	}

	m = newTestMachine(testConfig, 0x00ee)
	err = m.Step()
	want = HaltError{HaltCode: StackUnderflow, Op: 0x00ee, Addr: 0x200}
	if err != want {
		t.Fatalf("return: got error %v, want %v", err, want)
	}
}

func TestCallReturn(t *testing.T) {
	m := newTestMachine(testConfig,
		0x2206, // 200: CALL 206
		0x6a01, // 202: LD VA, 01
		0x1204, // 204: JP 204
		0x6b02, // 206: LD VB, 02
		0x00ee, // 208: RET
	)
	for i := 0; i < 5; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.V[0xa] != 1 || m.V[0xb] != 2 {
		t.Errorf("VA, VB = %d, %d, want 1, 2", m.V[0xa], m.V[0xb])
	}
	if m.PC != 0x204 {
		t.Errorf("PC is %.3x, want 204", m.PC)
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	for _, advance := range []bool{false, true} {
		t.Run(fmt.Sprint("advance=", advance), func(t *testing.T) {
			c := testConfig
			c.AdvanceI = advance
			m := newTestMachine(c,
				0xa300, // LD I, 300
				0xf355, // LD [I], V3
				0x6000, // LD V0, 00
				0x6100, // LD V1, 00
				0x62ff, // LD V2, ff
				0x63ff, // LD V3, ff
				0xa300, // LD I, 300
				0xf365, // LD V3, [I]
			)
			want := [4]byte{0x12, 0x34, 0x56, 0x78}
			copy(m.V[:], want[:])
			for i := 0; i < 8; i++ {
				if err := m.Step(); err != nil {
					t.Fatal(err)
				}
			}
			if g := [4]byte(m.V[:4]); g != want {
				t.Errorf("V0..V3 = % x, want % x", g, want)
			}
			if g := [4]byte(m.Mem[0x300:0x304]); g != want {
				t.Errorf("memory at 300 = % x, want % x", g, want)
			}
			wantI := uint16(0x300)
			if advance {
				wantI = 0x304
			}
			if m.I != wantI {
				t.Errorf("I is %.3x, want %.3x", m.I, wantI)
			}
		})
	}
}

func TestNullInstruction(t *testing.T) {
	m := newTestMachine(testConfig)
	if err := m.Step(); err != nil {
		t.Fatalf("null word with NullFatal unset: %v", err)
	}
	if m.PC != 0x202 {
		t.Errorf("PC is %.3x, want 202", m.PC)
	}

	c := testConfig
	c.NullFatal = true
	m = newTestMachine(c)
	err := m.Step()
	want := HaltError{HaltCode: NullInstruction, Op: 0, Addr: 0x200}
	if err != want {
		t.Fatalf("got error %v, want %v", err, want)
	}
	if m.State() != Faulted {
		t.Errorf("state is %v, want %v", m.State(), Faulted)
	}
}

func TestCollision(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		c := testConfig
		c.Collision = enabled
		m := newTestMachine(c,
			0xa050, // LD I, 050 (glyph 0)
			0xd005, // DRW V0, V0, 5
			0xd005, // DRW V0, V0, 5
		)
		m.V[Flag] = 7
		want := []byte{7, 7}
		if enabled {
			want = []byte{0, 1}
		}
		m.Step()
		for i, w := range want {
			if err := m.Step(); err != nil {
				t.Fatal(err)
			}
			if g := m.V[Flag]; g != w {
				t.Errorf("Collision=%v: draw %d: VF = %d, want %d", enabled, i, g, w)
			}
		}
		for i, p := range m.Screen.Pix {
			if p != 0 {
				t.Fatalf("Collision=%v: pixel %d still on after drawing twice", enabled, i)
			}
		}
	}
}

func TestDrawWraps(t *testing.T) {
	m := newTestMachine(testConfig, 0xd011)
	w := m.Screen.Width
	m.V[0] = byte(w - 1)
	m.I = 0x300
	m.Mem[0x300] = 0xc0
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	for i, p := range m.Screen.Pix {
		on := i == w-1 || i == 0
		if (p != 0) != on {
			t.Errorf("pixel (%d, %d) on = %v, want %v", i%w, i/w, p != 0, on)
		}
	}
}

func TestFaultIsSticky(t *testing.T) {
	m := newTestMachine(testConfig, 0x5001, 0x6001)
	err := m.Step()
	if err == nil {
		t.Fatal("expected error")
	}
	m.PC = 0x202
	if err2 := m.Step(); err2 != err {
		t.Fatalf("second step returned %v, want %v", err2, err)
	}
	if m.V[0] != 0 {
		t.Errorf("faulted machine executed an instruction")
	}
	if f := m.Fault(); f != err {
		t.Errorf("Fault() = %v, want %v", f, err)
	}
	m.Reset()
	if m.State() != Idle || m.Fault() != nil {
		t.Errorf("after Reset state is %v and fault %v, want %v and nil", m.State(), m.Fault(), Idle)
	}
}

func TestWaitKey(t *testing.T) {
	m := newTestMachine(testConfig, 0xf30a)
	pumped := make(chan bool, 1)
	m.Pump = func() {
		select {
		case pumped <- true:
		default:
		}
	}
	done := make(chan error)
	go func() { done <- m.Step() }()

	<-pumped
	select {
	case err := <-done:
		t.Fatalf("step returned %v before a key was pressed", err)
	case <-time.After(20 * time.Millisecond):
	}
	m.Key.Press(0xc)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("step did not return after key press")
	}
	if m.V[3] != 0xc {
		t.Errorf("V3 = %x, want c", m.V[3])
	}
	if m.PC != 0x202 {
		t.Errorf("PC is %.3x, want 202", m.PC)
	}
}

func TestWaitKeyHalt(t *testing.T) {
	m := newTestMachine(testConfig, 0xf30a)
	done := make(chan error)
	go func() { done <- m.Step() }()
	time.Sleep(10 * time.Millisecond)
	m.Halt()
	select {
	case err := <-done:
		want := HaltError{HaltCode: Halt, Op: 0xf30a, Addr: 0x200}
		if err != want {
			t.Fatalf("got error %v, want %v", err, want)
		}
	case <-time.After(time.Second):
		t.Fatal("step did not return after Halt")
	}
	if m.PC != 0x200 {
		t.Errorf("PC is %.3x, want 200", m.PC)
	}
	if m.State() == Faulted {
		t.Errorf("Halt left the machine faulted")
	}
}
