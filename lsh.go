package progindex

import "math/rand"

// lshRouter assigns a bucket id in [0, 2^bits) to an embedding via a
// random-hyperplane sign hash, before the index has accumulated enough data
// to route by learned cluster centers.
type lshRouter struct {
	bits        int
	hyperplanes [][]float32
}

// newLSHRouter builds bits hyperplanes of dimension dim. With hasSeed false
// construction is non-deterministic; with hasSeed true, seed (zero included)
// pins the hyperplanes for reproducible evaluations.
func newLSHRouter(dim, bits int, seed uint64, hasSeed bool) *lshRouter {
	var rng *rand.Rand
	if hasSeed {
		rng = rand.New(rand.NewSource(int64(seed)))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	planes := make([][]float32, bits)
	for i := range planes {
		plane := make([]float32, dim)
		for d := 0; d < dim; d++ {
			plane[d] = rng.Float32()*2 - 1
		}
		normalizeInPlace(plane)
		planes[i] = plane
	}

	return &lshRouter{bits: bits, hyperplanes: planes}
}

// hash packs the sign of hyperplane i's dot product with v into bit i.
// Identical input hashes identically;
// negating v bitwise-complements the hash (within the b-bit mask); the zero
// vector hashes to 0; the result always lies in [0, 2^bits).
func (r *lshRouter) hash(v []float32) uint32 {
	var h uint32
	for i, plane := range r.hyperplanes {
		if dotNormalized(plane, v) > 0 {
			h |= 1 << uint(i)
		}
	}
	return h
}
