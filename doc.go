// Package progindex implements a progressive, self-improving approximate
// nearest-neighbor index over fixed-dimensional, L2-normalized embeddings.
//
// # Key Features
//
//   - Usable from the first insert - a random-hyperplane LSH router answers
//     queries before any learning has happened.
//   - Self-improving - an online k-means layer takes over cluster routing
//     once enough vectors have been seen, with no retrain-from-scratch step.
//   - Memory efficient - optional product quantization compresses stored
//     vectors to a handful of bytes once the reservoir has enough samples.
//   - Cluster-graph search - an HNSW graph over cluster centers keeps probe
//     selection at O(log K) once K is large enough to benefit from it.
//   - Multi-vector MaxSim scoring for late-interaction style retrieval,
//     parallelized internally across candidate documents.
//
// # Quick Start
//
//	idx, err := progindex.New(128, 64)
//	if err != nil {
//	    panic(err)
//	}
//
//	cluster, err := idx.Add(1, embedding)
//	results, err := idx.Search(query, 10)
//
// # Progressive lifecycle
//
// An index never retrains: it moves monotonically through routing stages
// (LSH, then k-means, then +PQ storage, then +HNSW routing) as more vectors
// arrive. Policy flags (SetQuantization, SetHNSW) gate what the index is
// allowed to do; capability flags (QuantizerTrained, HNSWEnabled) report
// what it is currently doing. See Config for the thresholds driving these
// transitions.
//
// # Persistence
//
// Save/Load persist only the learned structure - centers, PQ codebooks, and
// lifecycle flags - never the corpus itself. Callers are expected to
// re-insert their corpus after Load if they need queryable buckets again;
// this keeps the persisted blob small and the index's definition of
// "learned state" sharp.
package progindex
