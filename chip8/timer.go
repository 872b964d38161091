package chip8

import (
	"sync/atomic"
	"time"
)

const (
	// TimerPeriod is the interval between timer decrements.
	TimerPeriod = time.Second / 60

	// KeyPoll is the interval at which LD Vx, K checks for a key
	// or a Halt.
	KeyPoll = time.Millisecond
)

// Timer is an 8-bit countdown register.
type Timer struct {
	v atomic.Uint32
}

func (t *Timer) Get() byte  { return byte(t.v.Load()) }
func (t *Timer) Set(b byte) { t.v.Store(uint32(b)) }

// tick decrements a non-zero timer. A Set between the load and the store
// wins over the decrement.
func (t *Timer) tick() {
	for {
		v := t.v.Load()
		if v == 0 || t.v.CompareAndSwap(v, v-1) {
			return
		}
	}
}

// RunTimers decrements the delay and sound timers every TimerPeriod until
// the machine is halted. It is meant to be run in its own goroutine.
func (m *Machine) RunTimers() {
	t := time.NewTicker(TimerPeriod)
	defer t.Stop()
	for range t.C {
		if m.Halted() {
			return
		}
		m.Delay.tick()
		m.Sound.tick()
	}
}

// Keypad holds the key currently pressed on the hex keypad, if any.
// The zero value has no key pressed.
type Keypad struct {
	k atomic.Uint32 // key+1, or 0 for none
}

// Press records k (masked to 0-15) as the pressed key,
// replacing any key already pressed.
func (p *Keypad) Press(k byte) { p.k.Store(uint32(k&0xf) + 1) }

// Release records that no key is pressed.
func (p *Keypad) Release() { p.k.Store(0) }

// Pressed returns the pressed key and reports whether there is one.
func (p *Keypad) Pressed() (byte, bool) {
	k := p.k.Load()
	if k == 0 {
		return 0, false
	}
	return byte(k - 1), true
}
