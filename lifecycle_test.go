package progindex

import (
	"math/rand"
	"testing"
)

func TestLifecycleAdvancesToKMeansRouting(t *testing.T) {
	idx, err := New(4, 16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rng := rand.New(rand.NewSource(11))

	if idx.currentStage() != stageLSHOnly {
		t.Fatalf("expected stageLSHOnly at start, got %v", idx.currentStage())
	}

	for i := 0; i < OnlineKMeansThreshold; i++ {
		if _, err := idx.Add(uint32(i), randomUnitVector(4, rng)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if !idx.usingKMeans {
		t.Errorf("expected usingKMeans=true after crossing OnlineKMeansThreshold")
	}
	if idx.currentStage() != stageKMeansRouting {
		t.Errorf("stage = %v, want stageKMeansRouting", idx.currentStage())
	}
}

func TestLifecycleNeverDowngradesUsingKMeans(t *testing.T) {
	idx, err := New(4, 16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	idx.usingKMeans = true
	idx.reservoir.totalSeen = 0

	idx.maybeAdvanceOnInsert()

	if !idx.usingKMeans {
		t.Error("usingKMeans must never revert to false")
	}
}

func TestLifecycleTrainsQuantizerOnceThresholdReached(t *testing.T) {
	idx, err := NewWithQuantization(16, 16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rng := rand.New(rand.NewSource(13))

	for i := 0; i < MinTrainingSamples; i++ {
		if _, err := idx.Add(uint32(i), randomUnitVector(16, rng)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if !idx.pq.trained {
		t.Errorf("expected quantizer trained after %d inserts", MinTrainingSamples)
	}
}

func TestHNSWEnabledRequiresBothPolicyAndBuild(t *testing.T) {
	idx, err := New(4, 64)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if idx.hnswEnabled() {
		t.Error("hnswEnabled should be false before policy is turned on")
	}
	idx.policyHNSW = true
	idx.maybeRebuildHNSW()
	if !idx.hnswEnabled() {
		t.Error("hnswEnabled should be true once policy is on and K qualifies")
	}
}

func TestHNSWNotBuiltBelowMinNodes(t *testing.T) {
	idx, err := New(4, 16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	idx.policyHNSW = true
	idx.maybeRebuildHNSW()
	if idx.hnswEnabled() {
		t.Error("HNSW should not build when K is below MinNodesForHNSW")
	}
}
