package progindex

import (
	"github.com/fogfish/hnsw"
	hnswvector "github.com/fogfish/hnsw/vector"
	surface "github.com/kshard/vector"
)

// clusterGraph is a navigable-small-world graph over the K cluster centers,
// rebuilt wholesale whenever centers shift materially. The coupling between
// a moved center and its neighborhood is too subtle to patch incrementally,
// so no partial-edit path is attempted.
type clusterGraph struct {
	graph *hnsw.HNSW[hnswvector.VF32]
	efM              int
	efConstruction   int
}

func newClusterGraph(m, efConstruction int) *clusterGraph {
	return &clusterGraph{
		efM:            m,
		efConstruction: efConstruction,
	}
}

// rebuild discards any existing graph and constructs a fresh one over the
// non-zero centers. Cluster ids double as HNSW keys.
func (g *clusterGraph) rebuild(centers [][]float32) {
	g.graph = hnsw.New(
		hnswvector.SurfaceVF32(surface.Cosine()),
		hnsw.WithM(g.efM),
		hnsw.WithEfConstruction(g.efConstruction),
	)
	for id, c := range centers {
		if l2Norm(c) == 0 {
			continue
		}
		g.graph.Insert(hnswvector.VF32{Key: uint32(id), Vec: c})
	}
}

// search returns up to numProbe cluster ids closest to query. Returns nil if
// the graph hasn't been built yet; callers must fall back to a linear scan
// in that case.
func (g *clusterGraph) search(query []float32, numProbe, efSearch int) []uint32 {
	if g == nil || g.graph == nil {
		return nil
	}
	neighbors := g.graph.Search(hnswvector.VF32{Key: 0, Vec: query}, numProbe, efSearch)
	ids := make([]uint32, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids
}

func (g *clusterGraph) built() bool {
	return g != nil && g.graph != nil
}
