package progindex

import "math/rand"

// reservoir is a bounded uniform sample of embeddings seen so far, via
// classic reservoir sampling against totalSeen: draw j in [0, totalSeen);
// if j < cap, overwrite slot j.
type reservoir struct {
	cap       int
	samples   [][]float32
	totalSeen int
	rng       *rand.Rand
}

func newReservoir(capacity int) *reservoir {
	return &reservoir{cap: capacity, rng: rand.New(rand.NewSource(rand.Int63()))}
}

// sample offers emb to the reservoir. Must be called exactly once per
// inserted embedding, in insertion order, since totalSeen is the sampling
// denominator.
func (r *reservoir) sample(emb []float32) {
	r.totalSeen++
	if len(r.samples) < r.cap {
		cp := make([]float32, len(emb))
		copy(cp, emb)
		r.samples = append(r.samples, cp)
		return
	}
	j := r.rng.Intn(r.totalSeen)
	if j < r.cap {
		cp := make([]float32, len(emb))
		copy(cp, emb)
		r.samples[j] = cp
	}
}

func (r *reservoir) size() int {
	return len(r.samples)
}

func (r *reservoir) clear() {
	r.samples = nil
	r.totalSeen = 0
}
