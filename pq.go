package progindex

import (
	"fmt"
	"math/rand"
)

// productQuantizer implements product quantization with an asymmetric
// inner-product (cosine) distance table: sub-space centroids are kept
// L2-normalized against their sub-space slice norm so that summed
// per-subspace inner products approximate cosine similarity over the whole
// vector, rather than Euclidean distance.
type productQuantizer struct {
	m         int // sub-spaces
	k         int // centroids per sub-space
	d         int // original dimension
	subDim    int // d / m
	codebooks [][][]float32
	trained   bool
}

func newProductQuantizer(dim, subspaces, centroidsPerSubspace int) (*productQuantizer, error) {
	if dim%subspaces != 0 {
		return nil, fmt.Errorf("dimension %d must be divisible by %d subspaces", dim, subspaces)
	}
	if centroidsPerSubspace > 256 {
		return nil, fmt.Errorf("centroids per subspace must be <= 256 for byte codes, got %d", centroidsPerSubspace)
	}
	return &productQuantizer{
		m:      subspaces,
		k:      centroidsPerSubspace,
		d:      dim,
		subDim: dim / subspaces,
	}, nil
}

// train runs Lloyd's k-means independently per sub-space on samples, then
// L2-normalizes every resulting centroid. Fails with ErrInsufficientSamples
// if there aren't enough samples to seed K centroids per sub-space.
func (pq *productQuantizer) train(samples [][]float32) error {
	if len(samples) < MinTrainingSamples {
		return wrapError("train", ErrInsufficientSamples)
	}
	if len(samples) < pq.k {
		return wrapError("train", ErrInsufficientSamples)
	}

	codebooks := make([][][]float32, pq.m)
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.subDim
		end := start + pq.subDim
		slices := make([][]float32, len(samples))
		for i, s := range samples {
			slices[i] = s[start:end]
		}

		centroids, err := kMeansSubspace(slices, pq.k, 20)
		if err != nil {
			return wrapError("train", fmt.Errorf("subspace %d: %w", sub, err))
		}
		for _, c := range centroids {
			normalizeInPlace(c)
		}
		codebooks[sub] = centroids
	}

	pq.codebooks = codebooks
	pq.trained = true
	return nil
}

// encode returns the nearest-centroid byte index per sub-space, selected by
// maximum inner product against the normalized sub-space slice of v.
func (pq *productQuantizer) encode(v []float32) ([]byte, error) {
	if !pq.trained {
		return nil, wrapError("encode", ErrNotTrained)
	}
	if len(v) != pq.d {
		return nil, wrapError("encode", fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, pq.d, len(v)))
	}

	codes := make([]byte, pq.m)
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.subDim
		slice := v[start : start+pq.subDim]
		best := -1
		bestScore := float32(-2) // inner product of unit vectors is in [-1, 1]
		for c, centroid := range pq.codebooks[sub] {
			score := dotNormalized(slice, centroid)
			if score > bestScore {
				bestScore = score
				best = c
			}
		}
		codes[sub] = byte(best)
	}
	return codes, nil
}

// decode reconstructs an approximate vector by concatenating the codebook
// entries addressed by codes. Only used off the query hot path, for
// rebalancing and re-centering.
func (pq *productQuantizer) decode(codes []byte) ([]float32, error) {
	if !pq.trained {
		return nil, wrapError("decode", ErrNotTrained)
	}
	if len(codes) != pq.m {
		return nil, wrapError("decode", fmt.Errorf("%w: code length %d, expected %d", ErrDimensionMismatch, len(codes), pq.m))
	}
	out := make([]float32, pq.d)
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.subDim
		copy(out[start:start+pq.subDim], pq.codebooks[sub][codes[sub]])
	}
	return out, nil
}

// distanceTable precomputes, for query q, the M x 256 table of per-subspace
// inner products against every centroid.
func (pq *productQuantizer) distanceTable(q []float32) [][]float32 {
	table := make([][]float32, pq.m)
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.subDim
		slice := q[start : start+pq.subDim]
		row := make([]float32, pq.k)
		for c, centroid := range pq.codebooks[sub] {
			row[c] = dotNormalized(slice, centroid)
		}
		table[sub] = row
	}
	return table
}

// score sums the table entries addressed by codes: the asymmetric cosine
// similarity estimate for a stored code against the query that produced
// table, at a cost of one add per sub-space and zero multiplies.
func scoreADC(table [][]float32, codes []byte) float32 {
	var total float32
	for sub, row := range table {
		total += row[codes[sub]]
	}
	return total
}

// compressionRatio reports the storage reduction PQ achieves relative to
// storing the original float32 vector.
func (pq *productQuantizer) compressionRatio() float32 {
	return float32(pq.d*4) / float32(pq.m)
}

// kMeansSubspace runs Lloyd's algorithm for maxIters rounds (or until
// assignments stop changing) over dim-sized sub-vectors. Centroids are
// seeded with a plain random permutation of the input rather than
// k-means++, which is cheap and sufficient given the bounded iteration
// count and per-subspace retraining.
func kMeansSubspace(vectors [][]float32, k, maxIters int) ([][]float32, error) {
	if len(vectors) < k {
		return nil, fmt.Errorf("need at least %d vectors, got %d", k, len(vectors))
	}
	dim := len(vectors[0])

	centroids := make([][]float32, k)
	perm := rand.Perm(len(vectors))
	for i := 0; i < k; i++ {
		centroids[i] = make([]float32, dim)
		copy(centroids[i], vectors[perm[i]])
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, euclideanSq(v, centroids[0])
			for c := 1; c < k; c++ {
				d := euclideanSq(v, centroids[c])
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				changed = true
				assignments[i] = best
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += v[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			inv := 1 / float32(counts[c])
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] * inv
			}
		}
	}

	return centroids, nil
}

func euclideanSq(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
