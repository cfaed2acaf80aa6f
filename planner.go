package progindex

import (
	"math"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ScoredDoc is a single search result: a doc-id and its similarity score.
type ScoredDoc struct {
	DocID uint32
	Score float32
}

// numProbeClusters returns ceil(sqrt(k)), the default probe-cluster count.
func numProbeClusters(k int) int {
	return int(math.Ceil(math.Sqrt(float64(k))))
}

// selectProbeClusters picks the probe set for query: HNSW first (filtered to
// non-empty clusters), falling back to a linear scan over centers (also
// filtered, ranked by cosine descending) if HNSW is unavailable or returns
// nothing. Iteration order is ascending cluster id for determinism.
func (idx *Index) selectProbeClusters(query []float32, numProbe int) []int {
	if idx.hnswEnabled() {
		ids := idx.graph.search(query, numProbe, idx.cfg.HNSWEfSearch)
		probes := make([]int, 0, len(ids))
		for _, id := range ids {
			if idx.buckets.nonEmpty.Test(uint(id)) {
				probes = append(probes, int(id))
			}
		}
		if len(probes) > 0 {
			sort.Ints(probes)
			return probes
		}
	}

	type scored struct {
		cluster int
		score   float32
	}
	candidates := make([]scored, 0, idx.k)
	for c := 0; c < idx.k; c++ {
		if !idx.buckets.nonEmpty.Test(uint(c)) {
			continue
		}
		candidates = append(candidates, scored{cluster: c, score: cosine(query, idx.centers.vectors[c])})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > numProbe {
		candidates = candidates[:numProbe]
	}
	probes := make([]int, len(candidates))
	for i, c := range candidates {
		probes[i] = c.cluster
	}
	sort.Ints(probes)
	return probes
}

// search picks probe clusters, scores their candidates against query, and
// returns the deduplicated top-k by descending similarity.
func (idx *Index) search(query []float32, k int) ([]ScoredDoc, error) {
	if len(query) != idx.cfg.Dim {
		return nil, wrapError("search", ErrDimensionMismatch)
	}

	numProbe := numProbeClusters(idx.k)
	probes := idx.selectProbeClusters(query, numProbe)

	var table [][]float32
	if idx.pq != nil && idx.pq.trained {
		table = idx.pq.distanceTable(query)
	}

	scratch := make([]ScoredDoc, 0, k*4)
	for _, c := range probes {
		for _, e := range idx.buckets.quantized[c] {
			scratch = append(scratch, ScoredDoc{DocID: e.docID, Score: scoreADC(table, e.code)})
		}
		for _, e := range idx.buckets.full[c] {
			scratch = append(scratch, ScoredDoc{DocID: e.docID, Score: cosine(query, e.vec)})
		}
	}

	return dedupeSortTruncate(scratch, k), nil
}

// dedupeSortTruncate sorts scratch descending by score (stable), keeps only
// the first (highest) occurrence of each doc-id, and truncates to k. Doc-ids
// are remapped to a dense [0, n) index on first sight and tracked in a
// bitset rather than a map[uint32]struct{}, since the "seen" check only ever
// needs a single bit per candidate.
func dedupeSortTruncate(scratch []ScoredDoc, k int) []ScoredDoc {
	sort.SliceStable(scratch, func(i, j int) bool { return scratch[i].Score > scratch[j].Score })

	dense := make(map[uint32]uint, len(scratch))
	seen := bitset.New(uint(len(scratch)))
	out := make([]ScoredDoc, 0, k)
	for _, sd := range scratch {
		id, ok := dense[sd.DocID]
		if !ok {
			id = uint(len(dense))
			dense[sd.DocID] = id
		}
		if seen.Test(id) {
			continue
		}
		seen.Set(id)
		out = append(out, sd)
		if len(out) == k {
			break
		}
	}
	return out
}

// searchMaxSim implements multi-vector MaxSim search: per-doc scoring is
// data-parallel across doc-ids, fanned out across a bounded goroutine pool
// and joined before return.
func (idx *Index) searchMaxSim(flatQueries []float32, n, k int) ([]ScoredDoc, error) {
	dim := idx.cfg.Dim
	if len(flatQueries) != n*dim {
		return nil, wrapError("search_maxsim", ErrDimensionMismatch)
	}

	queries := make([][]float32, n)
	for i := 0; i < n; i++ {
		queries[i] = flatQueries[i*dim : (i+1)*dim]
	}

	numProbe := numProbeClusters(idx.k)
	probeSet := bitset.New(uint(idx.k))
	for _, q := range queries {
		for _, c := range idx.selectProbeClusters(q, numProbe) {
			probeSet.Set(uint(c))
		}
	}

	docTokens := make(map[uint32][][]float32)
	docTokensQuant := make(map[uint32][][]byte)
	for c := 0; c < idx.k; c++ {
		if !probeSet.Test(uint(c)) {
			continue
		}
		for _, e := range idx.buckets.full[c] {
			docTokens[e.docID] = append(docTokens[e.docID], e.vec)
		}
		for _, e := range idx.buckets.quantized[c] {
			docTokensQuant[e.docID] = append(docTokensQuant[e.docID], e.code)
		}
	}

	var tables [][][]float32
	if idx.pq != nil && idx.pq.trained {
		tables = make([][][]float32, n)
		for i, q := range queries {
			tables[i] = idx.pq.distanceTable(q)
		}
	}

	candidateCount := len(docTokens) + len(docTokensQuant)
	docIDs := make([]uint32, 0, candidateCount)
	dense := make(map[uint32]uint, candidateCount)
	seen := bitset.New(uint(candidateCount))
	addDocID := func(id uint32) {
		d, ok := dense[id]
		if !ok {
			d = uint(len(dense))
			dense[id] = d
		}
		if seen.Test(d) {
			return
		}
		seen.Set(d)
		docIDs = append(docIDs, id)
	}
	for id := range docTokens {
		addDocID(id)
	}
	for id := range docTokensQuant {
		addDocID(id)
	}
	sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

	results := make([]ScoredDoc, len(docIDs))
	var wg sync.WaitGroup
	const workerCount = 8
	jobs := make(chan int, len(docIDs))
	for i := range docIDs {
		jobs <- i
	}
	close(jobs)

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			docID := docIDs[i]
			results[i] = ScoredDoc{DocID: docID, Score: maxSimScore(queries, tables, docTokens[docID], docTokensQuant[docID])}
		}
	}
	workers := workerCount
	if workers > len(docIDs) {
		workers = len(docIDs)
	}
	if workers == 0 {
		return []ScoredDoc{}, nil
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	wg.Wait()

	return dedupeSortTruncate(results, k), nil
}

// maxSimScore computes the MaxSim score for one document: for each query
// token, the max similarity across all of the document's tokens, averaged
// across query tokens. tables[i], if non-nil, is query token i's
// precomputed PQ distance table. Runs entirely against immutable snapshots;
// safe to call from multiple goroutines concurrently.
func maxSimScore(queries [][]float32, tables [][][]float32, fullTokens [][]float32, quantTokens [][]byte) float32 {
	var sum float32
	for i, q := range queries {
		best := float32(-2)
		for _, tok := range fullTokens {
			if s := dotNormalized(q, tok); s > best {
				best = s
			}
		}
		if tables != nil && len(quantTokens) > 0 {
			table := tables[i]
			for _, code := range quantTokens {
				if s := scoreADC(table, code); s > best {
					best = s
				}
			}
		}
		if best == -2 {
			best = 0
		}
		sum += best
	}
	return sum / float32(len(queries))
}
