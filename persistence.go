package progindex

import (
	"os"

	"github.com/google/uuid"
	"github.com/kelindar/binary"
)

// persistedState is the versioned on-disk schema for the index's learned
// structure. Encoded declaratively via github.com/kelindar/binary struct
// tags rather than a hand-rolled binary.LittleEndian.PutUint32 loop, with a
// fixed field order and a deliberately narrow scope: no buckets, no
// reservoir, no total_seen, no LSH hyperplanes, no HNSW graph.
type persistedState struct {
	Version         uint32
	K               uint64
	Centers         []float32
	UsingKMeans     uint8
	UseQuantization uint8
	PQPresent       uint8
	PQCodebooks     []float32
	UseHNSW         uint8
	HasIdentity     uint8
	InstanceID      [16]byte
}

// save writes the index's learned structure to path.
func (idx *Index) save(path string) error {
	state := persistedState{
		Version:         persistenceSchemaVersion,
		K:               uint64(idx.k),
		UsingKMeans:     boolToByte(idx.usingKMeans),
		UseQuantization: boolToByte(idx.policyQuantization),
		UseHNSW:         boolToByte(idx.policyHNSW),
		HasIdentity:     1,
		InstanceID:      idx.instanceID,
	}
	state.Centers, _ = idx.centers.export()

	if idx.pq != nil && idx.pq.trained {
		state.PQPresent = 1
		state.PQCodebooks = flattenCodebooks(idx.pq)
	}

	data, err := binary.Marshal(state)
	if err != nil {
		return wrapError("save", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wrapError("save", err)
	}
	return nil
}

// load restores an index's learned structure from path. Restoring centers
// implies usingKMeans=true regardless of the saved flag, since LSH routing
// is inapplicable once learned centers exist.
func (idx *Index) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return wrapError("load", err)
	}

	var state persistedState
	if err := binary.Unmarshal(data, &state); err != nil {
		return wrapError("load", err)
	}
	if state.Version != persistenceSchemaVersion {
		return wrapError("load", ErrVersionMismatch)
	}

	k := int(state.K)
	idx.k = k
	idx.cfg.Clusters = k
	idx.centers = newCenterStore(idx.cfg.Dim, k)
	if err := idx.centers.importFlat(state.Centers, k); err != nil {
		return wrapError("load", err)
	}

	idx.usingKMeans = true
	idx.policyQuantization = state.UseQuantization != 0
	idx.policyHNSW = state.UseHNSW != 0
	idx.buckets = newBucketStore(k)
	idx.reservoir.clear()

	if state.PQPresent != 0 {
		pq, err := unflattenCodebooks(state.PQCodebooks, idx.cfg.Dim)
		if err != nil {
			return wrapError("load", err)
		}
		idx.pq = pq
	} else {
		idx.pq = nil
	}

	if state.HasIdentity != 0 {
		idx.instanceID = state.InstanceID
	} else {
		idx.instanceID = [16]byte(uuid.New())
	}

	if idx.policyHNSW && idx.k >= MinNodesForHNSW {
		idx.maybeRebuildHNSW()
	}

	return nil
}

// loadOrNew returns a freshly loaded index, or a brand-new one with the
// given dimension and K if path doesn't exist.
func loadOrNew(path string, dim, k int) (*Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(dim, k)
	}
	idx, err := New(dim, k)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(path); err != nil {
		return nil, err
	}
	return idx, nil
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func flattenCodebooks(pq *productQuantizer) []float32 {
	flat := make([]float32, 0, pq.m*pq.k*pq.subDim)
	for _, book := range pq.codebooks {
		for _, centroid := range book {
			flat = append(flat, centroid...)
		}
	}
	return flat
}

func unflattenCodebooks(flat []float32, dim int) (*productQuantizer, error) {
	pq, err := newProductQuantizer(dim, PQSubspaces, PQCentroidsPerSubspace)
	if err != nil {
		return nil, err
	}
	pq.codebooks = make([][][]float32, pq.m)
	offset := 0
	for sub := 0; sub < pq.m; sub++ {
		book := make([][]float32, pq.k)
		for c := 0; c < pq.k; c++ {
			book[c] = append([]float32(nil), flat[offset:offset+pq.subDim]...)
			offset += pq.subDim
		}
		pq.codebooks[sub] = book
	}
	pq.trained = true
	return pq, nil
}
