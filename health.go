package progindex

import "github.com/chewxy/math32"

// HealthMetrics summarizes cluster balance, returned by (*Index).HealthMetrics.
type HealthMetrics struct {
	TotalDocuments          int
	NumClusters             int
	EmptyClusters           int
	LargestClusterSize      int
	SmallestNonEmptyCluster int
	ImbalanceRatio          float64
	ClusterStdDev           float64
	NeedsWork               bool
}

// health computes the [0, 1] health score: 0.0 is perfectly balanced, 1.0 is
// poor, 0.5 is reported when there isn't enough data to judge.
func (idx *Index) health() float64 {
	if idx.buckets.total() < OnlineKMeansThreshold {
		return 0.5
	}
	m := idx.computeHealthMetrics()
	if m.SmallestNonEmptyCluster == 0 {
		return 1.0
	}
	ratio := m.ImbalanceRatio
	score := (ratio - 1) / float64(ImbalanceRatioThreshold-1)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (idx *Index) computeHealthMetrics() HealthMetrics {
	counts := idx.buckets.counts
	m := HealthMetrics{
		TotalDocuments: idx.buckets.total(),
		NumClusters:    idx.k,
	}

	largest := 0
	smallestNonEmpty := -1
	var sum, sumSq float64
	nonEmpty := 0

	for _, c := range counts {
		if c == 0 {
			m.EmptyClusters++
			continue
		}
		nonEmpty++
		sum += float64(c)
		sumSq += float64(c) * float64(c)
		if c > largest {
			largest = c
		}
		if smallestNonEmpty == -1 || c < smallestNonEmpty {
			smallestNonEmpty = c
		}
	}

	m.LargestClusterSize = largest
	if smallestNonEmpty == -1 {
		smallestNonEmpty = 0
	}
	m.SmallestNonEmptyCluster = smallestNonEmpty

	if smallestNonEmpty > 0 {
		m.ImbalanceRatio = float64(largest) / float64(smallestNonEmpty)
	} else if largest > 0 {
		m.ImbalanceRatio = float64(largest)
	}

	if nonEmpty > 0 {
		mean := sum / float64(nonEmpty)
		variance := sumSq/float64(nonEmpty) - mean*mean
		if variance < 0 {
			variance = 0
		}
		m.ClusterStdDev = float64(math32.Sqrt(float32(variance)))
	}

	denom := max(1, idx.buckets.total()/max(1, idx.k))
	m.NeedsWork = m.ImbalanceRatio >= float64(ImbalanceRatioThreshold) || m.ClusterStdDev/float64(denom) > HealthThresholdNeedsWork
	return m
}
