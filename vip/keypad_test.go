package vip

import "testing"

func TestKeyFor(t *testing.T) {
	seen := map[byte]rune{}
	for _, c := range "1234qwerasdfzxcv" {
		k, ok := KeyFor(c)
		if !ok {
			t.Errorf("%q is not mapped", c)
			continue
		}
		if prev, dup := seen[k]; dup {
			t.Errorf("%q and %q both map to key %x", prev, c, k)
		}
		seen[k] = c
	}
	if len(seen) != 16 {
		t.Errorf("layout covers %d keys, want 16", len(seen))
	}

	for _, c := range []struct {
		c rune
		k byte
	}{
		{'1', 0x1}, {'4', 0xc}, {'x', 0x0}, {'X', 0x0}, {'Q', 0x4}, {'v', 0xf},
	} {
		if k, ok := KeyFor(c.c); !ok || k != c.k {
			t.Errorf("KeyFor(%q) = %x, %v, want %x, true", c.c, k, ok, c.k)
		}
	}
	for _, c := range "05gp \n" {
		if k, ok := KeyFor(c); ok {
			t.Errorf("KeyFor(%q) = %x, want unmapped", c, k)
		}
	}
}
