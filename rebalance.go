package progindex

import (
	"math"
	"sort"
)

// rebalance moves entries from the most overfull cluster into the most
// similar underfull clusters until the imbalance clears or capacity runs out.
// Returns the number of entries moved; 0 on a balanced or empty index.
func (idx *Index) rebalance() int {
	total := idx.buckets.total()
	if total == 0 {
		return 0
	}

	largest, smallestNonEmpty := -1, -1
	for _, c := range idx.buckets.counts {
		if c == 0 {
			continue
		}
		if largest == -1 || c > largest {
			largest = c
		}
		if smallestNonEmpty == -1 || c < smallestNonEmpty {
			smallestNonEmpty = c
		}
	}
	if largest == -1 {
		return 0
	}

	target := int(math.Ceil(float64(total) / float64(idx.k)))

	imbalanced := false
	if smallestNonEmpty > 0 && largest >= smallestNonEmpty*ImbalanceRatioThreshold {
		imbalanced = true
	}
	if smallestNonEmpty == 0 && largest > target {
		imbalanced = true
	}
	if !imbalanced {
		return 0
	}

	largestCluster := -1
	for c, cnt := range idx.buckets.counts {
		if cnt == largest {
			largestCluster = c
			break
		}
	}
	if largestCluster == -1 {
		return 0
	}

	moveBudget := largest - target
	underfullCapacity := 0
	underfull := make([]int, 0)
	for c, cnt := range idx.buckets.counts {
		if c == largestCluster {
			continue
		}
		if cnt < target {
			underfull = append(underfull, c)
			underfullCapacity += target - cnt
		}
	}
	if moveBudget > underfullCapacity {
		moveBudget = underfullCapacity
	}
	if moveBudget <= 0 {
		return 0
	}

	center := idx.centers.vectors[largestCluster]
	type dist struct {
		idx   int
		isPQ  bool
		score float32
	}

	fulls := idx.buckets.full[largestCluster]
	quants := idx.buckets.quantized[largestCluster]
	farthest := make([]dist, 0, len(fulls)+len(quants))
	for i, e := range fulls {
		farthest = append(farthest, dist{idx: i, isPQ: false, score: 1 - cosine(e.vec, center)})
	}
	for i, e := range quants {
		v, err := idx.pq.decode(e.code)
		if err != nil {
			continue
		}
		farthest = append(farthest, dist{idx: i, isPQ: true, score: 1 - cosine(v, center)})
	}
	sort.SliceStable(farthest, func(i, j int) bool { return farthest[i].score > farthest[j].score })
	if len(farthest) > moveBudget {
		farthest = farthest[:moveBudget]
	}

	remaining := make(map[int]int, len(underfull))
	for _, c := range underfull {
		remaining[c] = target - idx.buckets.counts[c]
	}

	moved := 0
	removeFull := make(map[int]bool)
	removeQuant := make(map[int]bool)
	touched := map[int]bool{largestCluster: true}

	for _, d := range farthest {
		var vec []float32
		var docID uint32
		var code []byte
		if d.isPQ {
			e := quants[d.idx]
			vv, err := idx.pq.decode(e.code)
			if err != nil {
				continue
			}
			vec, docID, code = vv, e.docID, e.code
		} else {
			e := fulls[d.idx]
			vec, docID = e.vec, e.docID
		}

		bestCluster, bestScore := -1, float32(-2)
		for c, left := range remaining {
			if left <= 0 {
				continue
			}
			score := cosine(vec, idx.centers.vectors[c])
			if score > bestScore {
				bestScore = score
				bestCluster = c
			}
		}
		if bestCluster == -1 {
			continue
		}

		if d.isPQ {
			idx.buckets.quantized[bestCluster] = append(idx.buckets.quantized[bestCluster], qEntry{docID: docID, code: code})
			removeQuant[d.idx] = true
		} else {
			idx.buckets.full[bestCluster] = append(idx.buckets.full[bestCluster], fpEntry{docID: docID, vec: vec})
			removeFull[d.idx] = true
		}
		idx.buckets.bump(bestCluster, 1)
		idx.buckets.bump(largestCluster, -1)
		remaining[bestCluster]--
		touched[bestCluster] = true
		moved++
	}

	if len(removeFull) > 0 {
		kept := fulls[:0]
		for i, e := range fulls {
			if !removeFull[i] {
				kept = append(kept, e)
			}
		}
		idx.buckets.full[largestCluster] = kept
	}
	if len(removeQuant) > 0 {
		kept := quants[:0]
		for i, e := range quants {
			if !removeQuant[i] {
				kept = append(kept, e)
			}
		}
		idx.buckets.quantized[largestCluster] = kept
	}

	for c := range touched {
		idx.recomputeCenterFromBuckets(c)
	}

	if idx.policyHNSW {
		idx.maybeRebuildHNSW()
	}

	return moved
}

// recomputeCenterFromBuckets rebuilds a cluster's center from scratch from
// its current bucket contents, decoding quantized entries as needed.
func (idx *Index) recomputeCenterFromBuckets(cluster int) {
	vectors := make([][]float32, 0, idx.buckets.counts[cluster])
	for _, e := range idx.buckets.full[cluster] {
		vectors = append(vectors, e.vec)
	}
	for _, e := range idx.buckets.quantized[cluster] {
		v, err := idx.pq.decode(e.code)
		if err != nil {
			continue
		}
		vectors = append(vectors, v)
	}
	idx.centers.recompute(cluster, vectors)
}
