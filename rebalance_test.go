package progindex

import "testing"

func TestRebalanceNoOpWhenBalanced(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for c := 0; c < 4; c++ {
		for i := 0; i < 10; i++ {
			idx.buckets.appendFull(c, uint32(c*100+i), []float32{1, 0, 0, 0})
			idx.centers.update(c, []float32{1, 0, 0, 0})
		}
	}
	if moved := idx.rebalance(); moved != 0 {
		t.Errorf("moved = %d, want 0 for a balanced index", moved)
	}
}

func TestRebalanceNoOpOnEmptyIndex(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if moved := idx.rebalance(); moved != 0 {
		t.Errorf("moved = %d, want 0 for an empty index", moved)
	}
}

func TestRebalanceMovesEntriesFromOverfullCluster(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 500; i++ {
		idx.buckets.appendFull(0, uint32(i), []float32{1, 0, 0, 0})
		idx.centers.update(0, []float32{1, 0, 0, 0})
	}
	idx.buckets.appendFull(1, 9001, []float32{0, 1, 0, 0})
	idx.centers.update(1, []float32{0, 1, 0, 0})
	idx.buckets.appendFull(2, 9002, []float32{0, 0, 1, 0})
	idx.centers.update(2, []float32{0, 0, 1, 0})
	idx.buckets.appendFull(3, 9003, []float32{0, 0, 0, 1})
	idx.centers.update(3, []float32{0, 0, 0, 1})

	before := idx.buckets.counts[0]
	moved := idx.rebalance()
	if moved == 0 {
		t.Fatal("expected rebalance to move entries out of the overfull cluster")
	}
	if idx.buckets.counts[0] >= before {
		t.Errorf("overfull cluster count = %d, want less than %d after rebalance", idx.buckets.counts[0], before)
	}
	if idx.buckets.total() != 503 {
		t.Errorf("total entries changed across rebalance: got %d, want 503", idx.buckets.total())
	}
}

func TestRebalanceIdempotentOnAlreadyBalancedResult(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 500; i++ {
		idx.buckets.appendFull(0, uint32(i), []float32{1, 0, 0, 0})
		idx.centers.update(0, []float32{1, 0, 0, 0})
	}
	idx.buckets.appendFull(1, 9001, []float32{0, 1, 0, 0})
	idx.centers.update(1, []float32{0, 1, 0, 0})
	idx.buckets.appendFull(2, 9002, []float32{0, 0, 1, 0})
	idx.centers.update(2, []float32{0, 0, 1, 0})
	idx.buckets.appendFull(3, 9003, []float32{0, 0, 0, 1})
	idx.centers.update(3, []float32{0, 0, 0, 1})

	idx.rebalance()
	second := idx.rebalance()
	if second != 0 {
		t.Errorf("second rebalance moved %d entries, want 0 (already balanced)", second)
	}
}
