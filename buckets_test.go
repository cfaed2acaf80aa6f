package progindex

import "testing"

func TestBucketStoreAppendFullTracksCounts(t *testing.T) {
	b := newBucketStore(3)
	b.appendFull(1, 10, []float32{1, 2, 3})
	b.appendFull(1, 11, []float32{4, 5, 6})

	if b.total() != 2 {
		t.Errorf("total = %d, want 2", b.total())
	}
	if b.counts[1] != 2 {
		t.Errorf("counts[1] = %d, want 2", b.counts[1])
	}
	if !b.nonEmpty.Test(1) {
		t.Error("cluster 1 should be marked non-empty")
	}
	if b.nonEmpty.Test(0) {
		t.Error("cluster 0 should remain empty")
	}
}

func TestBucketStoreAppendCopiesInput(t *testing.T) {
	b := newBucketStore(1)
	vec := []float32{1, 2, 3}
	b.appendFull(0, 1, vec)
	vec[0] = 999
	if b.full[0][0].vec[0] == 999 {
		t.Error("bucket should copy vectors, not alias caller's slice")
	}
}

func TestBucketStoreMigrateToQuantized(t *testing.T) {
	const dim = 16
	pq, err := newProductQuantizer(dim, 8, 16)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([][]float32, MinTrainingSamples)
	for i := range samples {
		v := make([]float32, dim)
		v[i%dim] = 1
		samples[i] = v
	}
	if err := pq.train(samples); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	b := newBucketStore(2)
	b.appendFull(0, 1, samples[0])
	b.appendFull(0, 2, samples[1])

	if err := b.migrateToQuantized(pq); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if b.fullPrecisionCount() != 0 {
		t.Errorf("full precision count = %d, want 0 after migration", b.fullPrecisionCount())
	}
	if b.quantizedCount() != 2 {
		t.Errorf("quantized count = %d, want 2", b.quantizedCount())
	}
}

func TestBucketStoreBumpTogglesNonEmptyBit(t *testing.T) {
	b := newBucketStore(2)
	b.bump(0, 1)
	if !b.nonEmpty.Test(0) {
		t.Error("expected cluster 0 marked non-empty after bump +1")
	}
	b.bump(0, -1)
	if b.nonEmpty.Test(0) {
		t.Error("expected cluster 0 marked empty after bump back to 0")
	}
}

func TestBucketStoreClear(t *testing.T) {
	b := newBucketStore(2)
	b.appendFull(0, 1, []float32{1})
	b.appendQuantized(1, 2, []byte{1, 2})
	b.clear()

	if b.total() != 0 {
		t.Errorf("total = %d, want 0 after clear", b.total())
	}
	if b.nonEmpty.Any() {
		t.Error("expected no non-empty clusters after clear")
	}
}
