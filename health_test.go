package progindex

import "testing"

func newTestIndexForHealth(t *testing.T, k int) *Index {
	t.Helper()
	idx, err := New(4, k)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return idx
}

func TestHealthReportsNeutralBelowThreshold(t *testing.T) {
	idx := newTestIndexForHealth(t, 16)
	for i := 0; i < OnlineKMeansThreshold-1; i++ {
		idx.buckets.appendFull(0, uint32(i), []float32{1, 0, 0, 0})
	}
	if got := idx.health(); got != 0.5 {
		t.Errorf("health = %v, want 0.5 below threshold", got)
	}
}

func TestHealthPerfectlyBalanced(t *testing.T) {
	idx := newTestIndexForHealth(t, 4)
	for c := 0; c < 4; c++ {
		for i := 0; i < 30; i++ {
			idx.buckets.appendFull(c, uint32(c*100+i), []float32{1, 0, 0, 0})
		}
	}
	m := idx.computeHealthMetrics()
	if m.EmptyClusters != 0 {
		t.Errorf("expected no empty clusters, got %d", m.EmptyClusters)
	}
	if m.ImbalanceRatio != 1 {
		t.Errorf("ImbalanceRatio = %v, want 1 for perfectly balanced clusters", m.ImbalanceRatio)
	}
}

func TestHealthSevereImbalanceClampsToOne(t *testing.T) {
	idx := newTestIndexForHealth(t, 4)
	for i := 0; i < OnlineKMeansThreshold+ImbalanceRatioThreshold*2; i++ {
		idx.buckets.appendFull(0, uint32(i), []float32{1, 0, 0, 0})
	}
	idx.buckets.appendFull(1, 999999, []float32{1, 0, 0, 0})

	if got := idx.health(); got != 1.0 {
		t.Errorf("health = %v, want 1.0 when imbalance ratio exceeds the threshold", got)
	}
}
