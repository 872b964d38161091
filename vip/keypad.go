package vip

import "unicode"

// The VIP's hex keypad is laid out on the left of a QWERTY keyboard:
//
//	1 2 3 C        1 2 3 4
//	4 5 6 D   <-   q w e r
//	7 8 9 E        a s d f
//	A 0 B F        z x c v
var keyLayout = map[rune]byte{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
}

// KeyFor returns the keypad key for the keyboard character c, and reports
// whether c is mapped to one.
func KeyFor(c rune) (byte, bool) {
	k, ok := keyLayout[unicode.ToLower(c)]
	return k, ok
}
