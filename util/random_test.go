package util

import "testing"

func TestRandomSuffixLength(t *testing.T) {
	for _, n := range []int{0, 1, 6, 12} {
		s := RandomSuffix(n)
		if len(s) != n {
			t.Fatalf("RandomSuffix(%d) length = %d, want %d", n, len(s), n)
		}
	}
}

func TestRandomSuffixAlphabet(t *testing.T) {
	s := RandomSuffix(64)
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			t.Fatalf("RandomSuffix produced out-of-alphabet rune %q", r)
		}
	}
}

func TestRandomSuffixVaries(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[RandomSuffix(6)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("RandomSuffix produced %d distinct values across 20 calls, expected variance", len(seen))
	}
}

func TestRandomTokenFormatAndVariance(t *testing.T) {
	a := RandomToken()
	b := RandomToken()
	if len(a) != 32 {
		t.Fatalf("RandomToken() length = %d, want 32", len(a))
	}
	if a == b {
		t.Fatalf("RandomToken() returned the same value twice: %q", a)
	}
}
