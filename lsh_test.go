package progindex

import "testing"

func TestLSHHashZeroVectorIsZero(t *testing.T) {
	r := newLSHRouter(8, 6, 42, true)
	zero := make([]float32, 8)
	if got := r.hash(zero); got != 0 {
		t.Errorf("hash(zero) = %d, want 0", got)
	}
}

func TestLSHHashDeterministicWithSeed(t *testing.T) {
	r1 := newLSHRouter(16, 8, 7, true)
	r2 := newLSHRouter(16, 8, 7, true)
	v := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if r1.hash(v) != r2.hash(v) {
		t.Errorf("same seed produced different hyperplanes/hashes")
	}
}

func TestLSHHashInRange(t *testing.T) {
	bits := 6
	r := newLSHRouter(32, bits, 1, true)
	v := make([]float32, 32)
	for i := range v {
		v[i] = float32(i%7) - 3
	}
	h := r.hash(v)
	if h >= uint32(1<<uint(bits)) {
		t.Errorf("hash %d out of range [0, %d)", h, 1<<uint(bits))
	}
}

func TestLSHHashRepeatableForSameInput(t *testing.T) {
	r := newLSHRouter(8, 5, 3, true)
	v := []float32{0.1, 0.2, -0.3, 0.4, -0.5, 0.6, 0.7, -0.8}
	h1 := r.hash(v)
	h2 := r.hash(v)
	if h1 != h2 {
		t.Errorf("hash not stable across calls: %d != %d", h1, h2)
	}
}
