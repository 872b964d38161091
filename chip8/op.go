package chip8

import "fmt"

// Op represents a CHIP-8 instruction word.
type Op uint16

// Nibble returns the 4 bits of the word starting at bit offset off
// (0, 4, 8 or 12).
func (o Op) Nibble(off uint) byte { return byte(o>>off) & 0xf }

// X returns the register index held in bits 8-11.
func (o Op) X() byte { return o.Nibble(8) }

// Y returns the register index held in bits 4-7.
func (o Op) Y() byte { return o.Nibble(4) }

// N returns the 4-bit immediate held in bits 0-3.
func (o Op) N() byte { return o.Nibble(0) }

// KK returns the 8-bit immediate held in bits 0-7.
func (o Op) KK() byte { return byte(o) }

// NNN returns the 12-bit address immediate held in bits 0-11.
func (o Op) NNN() uint16 { return uint16(o) & 0xfff }

// Kind identifies one of the instruction shapes recognized by Decode.
type Kind byte

const (
	BAD Kind = iota // no instruction matches
	NUL             // 0000
	CLS             // 00E0
	RET             // 00EE
	SYS             // 0nnn
	JP              // 1nnn
	CALL            // 2nnn
	SEK             // 3xkk
	SNEK            // 4xkk
	SEV             // 5xy0
	LDK             // 6xkk
	ADDK            // 7xkk
	LDV             // 8xy0
	OR              // 8xy1
	AND             // 8xy2
	XOR             // 8xy3
	ADDV            // 8xy4
	SUB             // 8xy5
	SHR             // 8xy6
	SUBN            // 8xy7
	SHL             // 8xyE
	SNEV            // 9xy0
	LDI             // Annn
	JPV             // Bnnn
	RND             // Cxkk
	DRW             // Dxyn
	SKP             // Ex9E
	SKNP            // ExA1
	LDDT            // Fx07
	LDKEY           // Fx0A
	STDT            // Fx15
	STST            // Fx18
	ADDI            // Fx1E
	LDF             // Fx29
	BCD             // Fx33
	STR             // Fx55
	LDR             // Fx65
)

func (k Kind) String() string {
	if int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

var kindStrings = [...]string{
	"BAD", "NUL", "CLS", "RET", "SYS", "JP", "CALL", "SEK", "SNEK", "SEV",
	"LDK", "ADDK", "LDV", "OR", "AND", "XOR", "ADDV", "SUB", "SHR", "SUBN",
	"SHL", "SNEV", "LDI", "JPV", "RND", "DRW", "SKP", "SKNP", "LDDT", "LDKEY",
	"STDT", "STST", "ADDI", "LDF", "BCD", "STR", "LDR",
}

type instr struct {
	pattern, mask Op
	kind          Kind
	exec          func(*Machine, Op)
}

// instrs is evaluated in order and the first match wins, so entries with
// wider masks must follow every narrower entry they would also match.
var instrs = [...]instr{
	{0x0000, 0xffff, NUL, (*Machine).nul},
	{0x00e0, 0xffff, CLS, (*Machine).cls},
	{0x00ee, 0xffff, RET, (*Machine).ret},
	{0x0000, 0xf000, SYS, (*Machine).sys},
	{0x1000, 0xf000, JP, (*Machine).jp},
	{0x2000, 0xf000, CALL, (*Machine).call},
	{0x3000, 0xf000, SEK, (*Machine).sek},
	{0x4000, 0xf000, SNEK, (*Machine).snek},
	{0x5000, 0xf00f, SEV, (*Machine).sev},
	{0x6000, 0xf000, LDK, (*Machine).ldk},
	{0x7000, 0xf000, ADDK, (*Machine).addk},
	{0x8000, 0xf00f, LDV, (*Machine).ldv},
	{0x8001, 0xf00f, OR, (*Machine).or},
	{0x8002, 0xf00f, AND, (*Machine).and},
	{0x8003, 0xf00f, XOR, (*Machine).xor},
	{0x8004, 0xf00f, ADDV, (*Machine).addv},
	{0x8005, 0xf00f, SUB, (*Machine).sub},
	{0x8006, 0xf00f, SHR, (*Machine).shr},
	{0x8007, 0xf00f, SUBN, (*Machine).subn},
	{0x800e, 0xf00f, SHL, (*Machine).shl},
	{0x9000, 0xf00f, SNEV, (*Machine).snev},
	{0xa000, 0xf000, LDI, (*Machine).ldi},
	{0xb000, 0xf000, JPV, (*Machine).jpv},
	{0xc000, 0xf000, RND, (*Machine).rnd},
	{0xd000, 0xf000, DRW, (*Machine).drw},
	{0xe09e, 0xf0ff, SKP, (*Machine).skp},
	{0xe0a1, 0xf0ff, SKNP, (*Machine).sknp},
	{0xf007, 0xf0ff, LDDT, (*Machine).lddt},
	{0xf00a, 0xf0ff, LDKEY, (*Machine).ldkey},
	{0xf015, 0xf0ff, STDT, (*Machine).stdt},
	{0xf018, 0xf0ff, STST, (*Machine).stst},
	{0xf01e, 0xf0ff, ADDI, (*Machine).addi},
	{0xf029, 0xf0ff, LDF, (*Machine).ldf},
	{0xf033, 0xf0ff, BCD, (*Machine).bcd},
	{0xf055, 0xf0ff, STR, (*Machine).str},
	{0xf065, 0xf0ff, LDR, (*Machine).ldr},
}

func lookup(o Op) *instr {
	for i := range instrs {
		in := &instrs[i]
		if o&in.mask == in.pattern&in.mask {
			return in
		}
	}
	return nil
}

// Decode reports which instruction shape the word o represents.
// It returns BAD if no shape matches.
func Decode(o Op) Kind {
	if in := lookup(o); in != nil {
		return in.kind
	}
	return BAD
}

// String returns the assembly form of the instruction.
func (o Op) String() string {
	x, y := o.X(), o.Y()
	switch Decode(o) {
	case NUL:
		return "NUL"
	case CLS:
		return "CLS"
	case RET:
		return "RET"
	case SYS:
		return fmt.Sprintf("SYS %.3x", o.NNN())
	case JP:
		return fmt.Sprintf("JP %.3x", o.NNN())
	case CALL:
		return fmt.Sprintf("CALL %.3x", o.NNN())
	case SEK:
		return fmt.Sprintf("SE V%X, %.2x", x, o.KK())
	case SNEK:
		return fmt.Sprintf("SNE V%X, %.2x", x, o.KK())
	case SEV:
		return fmt.Sprintf("SE V%X, V%X", x, y)
	case LDK:
		return fmt.Sprintf("LD V%X, %.2x", x, o.KK())
	case ADDK:
		return fmt.Sprintf("ADD V%X, %.2x", x, o.KK())
	case LDV:
		return fmt.Sprintf("LD V%X, V%X", x, y)
	case OR:
		return fmt.Sprintf("OR V%X, V%X", x, y)
	case AND:
		return fmt.Sprintf("AND V%X, V%X", x, y)
	case XOR:
		return fmt.Sprintf("XOR V%X, V%X", x, y)
	case ADDV:
		return fmt.Sprintf("ADD V%X, V%X", x, y)
	case SUB:
		return fmt.Sprintf("SUB V%X, V%X", x, y)
	case SHR:
		return fmt.Sprintf("SHR V%X", x)
	case SUBN:
		return fmt.Sprintf("SUBN V%X, V%X", x, y)
	case SHL:
		return fmt.Sprintf("SHL V%X", x)
	case SNEV:
		return fmt.Sprintf("SNE V%X, V%X", x, y)
	case LDI:
		return fmt.Sprintf("LD I, %.3x", o.NNN())
	case JPV:
		return fmt.Sprintf("JP V0, %.3x", o.NNN())
	case RND:
		return fmt.Sprintf("RND V%X, %.2x", x, o.KK())
	case DRW:
		return fmt.Sprintf("DRW V%X, V%X, %d", x, y, o.N())
	case SKP:
		return fmt.Sprintf("SKP V%X", x)
	case SKNP:
		return fmt.Sprintf("SKNP V%X", x)
	case LDDT:
		return fmt.Sprintf("LD V%X, DT", x)
	case LDKEY:
		return fmt.Sprintf("LD V%X, K", x)
	case STDT:
		return fmt.Sprintf("LD DT, V%X", x)
	case STST:
		return fmt.Sprintf("LD ST, V%X", x)
	case ADDI:
		return fmt.Sprintf("ADD I, V%X", x)
	case LDF:
		return fmt.Sprintf("LD F, V%X", x)
	case BCD:
		return fmt.Sprintf("LD B, V%X", x)
	case STR:
		return fmt.Sprintf("LD [I], V%X", x)
	case LDR:
		return fmt.Sprintf("LD V%X, [I]", x)
	}
	return fmt.Sprintf("DW %.4x", uint16(o))
}
