package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nf/ch8/chip8"
)

// symbols is a list of program labels ordered by address.
type symbols []symbol

type symbol struct {
	addr  uint16
	label string
}

func (s symbol) String() string { return fmt.Sprintf("%s (%.3x)", s.label, s.addr) }

func (s symbols) forAddr(addr uint16) (ss []symbol) {
	i := sort.Search(len(s), func(i int) bool { return s[i].addr >= addr })
	for ; i < len(s) && s[i].addr == addr; i++ {
		ss = append(ss, s[i])
	}
	return ss
}

func (s symbols) withLabelPrefix(p string) (ss []symbol) {
	for _, sym := range s {
		if strings.HasPrefix(sym.label, p) {
			ss = append(ss, sym)
		}
	}
	return ss
}

// resolve returns the symbol with the given label, or a symbol for the
// address if arg is a hex address.
func (s symbols) resolve(arg string) (symbol, bool) {
	for _, sym := range s {
		if sym.label == arg {
			return sym, true
		}
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 16)
	if err != nil || v >= chip8.MemSize {
		return symbol{}, false
	}
	return symbol{addr: uint16(v), label: fmt.Sprintf("%.3x", v)}, true
}

// parseSymbols reads a symbol file, in which each line holds a hex address
// and a label separated by white space. Blank lines and lines beginning
// with '#' are ignored. A missing file yields no symbols.
func parseSymbols(symFile string) (symbols, error) {
	b, err := os.ReadFile(symFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var (
		ss   symbols
		sc   = bufio.NewScanner(bytes.NewReader(b))
		line = 0
	)
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], "#") {
			continue
		}
		if len(f) != 2 {
			return nil, fmt.Errorf("%s:%d: want address and label, got %q", symFile, line, sc.Text())
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(f[0], "0x"), 16, 16)
		if err != nil || v >= chip8.MemSize {
			return nil, fmt.Errorf("%s:%d: invalid address %q", symFile, line, f[0])
		}
		ss = append(ss, symbol{addr: uint16(v), label: f[1]})
	}
	sort.SliceStable(ss, func(i, j int) bool {
		return ss[i].addr < ss[j].addr
	})
	return ss, sc.Err()
}

// addrForOp returns the address the instruction at PC refers to, if any.
func addrForOp(m *chip8.Machine) (uint16, bool) {
	switch op := m.Op(); chip8.Decode(op) {
	case chip8.SYS, chip8.JP, chip8.CALL, chip8.LDI:
		return op.NNN(), true
	case chip8.JPV:
		return op.NNN() + uint16(m.V[0]), true
	case chip8.DRW, chip8.BCD, chip8.STR, chip8.LDR:
		return m.I, true
	}
	return 0, false
}
