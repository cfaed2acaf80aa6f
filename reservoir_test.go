package progindex

import "testing"

func TestReservoirFillsUpToCapacity(t *testing.T) {
	r := newReservoir(5)
	for i := 0; i < 5; i++ {
		r.sample([]float32{float32(i)})
	}
	if r.size() != 5 {
		t.Errorf("size = %d, want 5", r.size())
	}
	if r.totalSeen != 5 {
		t.Errorf("totalSeen = %d, want 5", r.totalSeen)
	}
}

func TestReservoirNeverExceedsCapacity(t *testing.T) {
	r := newReservoir(10)
	for i := 0; i < 1000; i++ {
		r.sample([]float32{float32(i)})
	}
	if r.size() != 10 {
		t.Errorf("size = %d, want 10", r.size())
	}
	if r.totalSeen != 1000 {
		t.Errorf("totalSeen = %d, want 1000", r.totalSeen)
	}
}

func TestReservoirClear(t *testing.T) {
	r := newReservoir(4)
	for i := 0; i < 4; i++ {
		r.sample([]float32{float32(i)})
	}
	r.clear()
	if r.size() != 0 || r.totalSeen != 0 {
		t.Errorf("expected empty reservoir after clear, got size=%d totalSeen=%d", r.size(), r.totalSeen)
	}
}

func TestReservoirSampleIsCopied(t *testing.T) {
	r := newReservoir(2)
	v := []float32{1, 2, 3}
	r.sample(v)
	v[0] = 999
	if r.samples[0][0] == 999 {
		t.Error("reservoir should copy samples, not alias caller's slice")
	}
}
