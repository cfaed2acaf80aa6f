package progindex

import "github.com/bits-and-blooms/bitset"

// fpEntry is a full-precision bucket entry: a raw embedding alongside its
// doc-id, stored before PQ training or while quantization policy is off.
type fpEntry struct {
	docID uint32
	vec   []float32
}

// qEntry is a quantized bucket entry: an M-byte PQ code alongside its
// doc-id, used once the quantizer is trained and quantization is enabled.
type qEntry struct {
	docID uint32
	code  []byte
}

// bucketStore holds two parallel per-cluster sequences, full-precision and
// quantized, plus the cluster occupancy counts used to drive rebalancing and
// probe filtering. Non-empty-cluster membership uses a bitset instead of
// rescanning counts, matching the dedup bitset used by the query planner.
type bucketStore struct {
	k          int
	full       [][]fpEntry
	quantized  [][]qEntry
	counts     []int
	nonEmpty   *bitset.BitSet
}

func newBucketStore(k int) *bucketStore {
	return &bucketStore{
		k:         k,
		full:      make([][]fpEntry, k),
		quantized: make([][]qEntry, k),
		counts:    make([]int, k),
		nonEmpty:  bitset.New(uint(k)),
	}
}

func (b *bucketStore) appendFull(cluster int, docID uint32, vec []float32) {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	b.full[cluster] = append(b.full[cluster], fpEntry{docID: docID, vec: cp})
	b.bump(cluster, 1)
}

func (b *bucketStore) appendQuantized(cluster int, docID uint32, code []byte) {
	cp := make([]byte, len(code))
	copy(cp, code)
	b.quantized[cluster] = append(b.quantized[cluster], qEntry{docID: docID, code: cp})
	b.bump(cluster, 1)
}

func (b *bucketStore) bump(cluster, delta int) {
	before := b.counts[cluster]
	b.counts[cluster] += delta
	after := b.counts[cluster]
	if before == 0 && after > 0 {
		b.nonEmpty.Set(uint(cluster))
	} else if after == 0 && before > 0 {
		b.nonEmpty.Clear(uint(cluster))
	}
}

// migrateToQuantized re-encodes every full-precision entry in every cluster
// via pq and drains the full-precision buckets. Re-encodes the originals
// rather than decoding anything, since nothing has been quantized yet.
func (b *bucketStore) migrateToQuantized(pq *productQuantizer) error {
	for c := 0; c < b.k; c++ {
		for _, e := range b.full[c] {
			code, err := pq.encode(e.vec)
			if err != nil {
				return err
			}
			b.quantized[c] = append(b.quantized[c], qEntry{docID: e.docID, code: code})
		}
		b.full[c] = nil
	}
	return nil
}

func (b *bucketStore) total() int {
	n := 0
	for _, c := range b.counts {
		n += c
	}
	return n
}

func (b *bucketStore) fullPrecisionCount() int {
	n := 0
	for _, bucket := range b.full {
		n += len(bucket)
	}
	return n
}

func (b *bucketStore) quantizedCount() int {
	n := 0
	for _, bucket := range b.quantized {
		n += len(bucket)
	}
	return n
}

func (b *bucketStore) clear() {
	for c := 0; c < b.k; c++ {
		b.full[c] = nil
		b.quantized[c] = nil
		b.counts[c] = 0
	}
	b.nonEmpty.ClearAll()
}
