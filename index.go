package progindex

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Index is a progressive, self-improving approximate nearest-neighbor index.
// See the package doc for the lifecycle model. Safe for concurrent use: one
// writer at a time, exclusive of readers, realized with a single
// sync.RWMutex guarding the whole index.
type Index struct {
	mu sync.RWMutex

	cfg Config
	k   int

	instanceID [16]byte
	logger     Logger

	router    *lshRouter
	centers   *centerStore
	buckets   *bucketStore
	pq        *productQuantizer
	graph     *clusterGraph
	reservoir *reservoir

	usingKMeans        bool
	policyQuantization bool
	policyHNSW         bool

	insertsSinceRebalanceCheck int
}

// New constructs an index for the given embedding dimension and cluster
// count. A zero K selects the default; any other value rounds up to the
// next power of two.
func New(dim, k int) (*Index, error) {
	cfg := DefaultConfig(dim)
	cfg.Clusters = k
	return NewWithConfig(cfg)
}

// NewWithSeed is like New but pins LSH hyperplane construction to seed, for
// reproducible evaluations.
func NewWithSeed(dim, k int, seed uint64) (*Index, error) {
	cfg := DefaultConfig(dim)
	cfg.Clusters = k
	cfg.Seed = seed
	cfg.hasSeed = true
	return NewWithConfig(cfg)
}

// NewWithQuantization is like New but enables the quantization policy from
// construction.
func NewWithQuantization(dim, k int) (*Index, error) {
	cfg := DefaultConfig(dim)
	cfg.Clusters = k
	cfg.EnableQuantization = true
	return NewWithConfig(cfg)
}

// NewWithHNSW is like New but enables the HNSW policy from construction.
func NewWithHNSW(dim, k int) (*Index, error) {
	cfg := DefaultConfig(dim)
	cfg.Clusters = k
	cfg.EnableHNSW = true
	return NewWithConfig(cfg)
}

// NewWithConfig builds an index from a fully specified Config. Config.Device
// is accepted but stored nowhere meaningful, since this index is CPU-only.
func NewWithConfig(cfg Config) (*Index, error) {
	if err := cfg.validate(); err != nil {
		return nil, wrapError("new", err)
	}
	cfg.applyDefaults()

	k := cfg.Clusters
	bits := bitsFor(k)

	idx := &Index{
		cfg:                cfg,
		k:                  k,
		instanceID:         [16]byte(uuid.New()),
		logger:             cfg.Logger,
		router:             newLSHRouter(cfg.Dim, bits, cfg.Seed, cfg.hasSeed),
		centers:            newCenterStore(cfg.Dim, k),
		buckets:            newBucketStore(k),
		graph:              newClusterGraph(cfg.HNSWM, cfg.HNSWEfConstruction),
		reservoir:          newReservoir(MaxReservoirSize),
		policyQuantization: cfg.EnableQuantization,
		policyHNSW:         cfg.EnableHNSW,
	}
	if cfg.EnableQuantization {
		idx.ensurePQ()
	}
	return idx, nil
}

// ensurePQ lazily allocates the product quantizer the first time quantization
// is actually requested, rather than at construction. A dimension that isn't
// a multiple of PQSubspaces only ever matters once quantization is asked
// for (validate already rejects EnableQuantization with such a dimension);
// an index that never turns quantization on never pays for or trips over
// that constraint. Returns nil if the dimension can't support a quantizer.
func (idx *Index) ensurePQ() *productQuantizer {
	if idx.pq != nil {
		return idx.pq
	}
	pq, err := newProductQuantizer(idx.cfg.Dim, PQSubspaces, PQCentroidsPerSubspace)
	if err != nil {
		return nil
	}
	idx.pq = pq
	return idx.pq
}

func bitsFor(k int) int {
	bits := 0
	for (1 << uint(bits)) < k {
		bits++
	}
	return bits
}

// SetQuantization sets the quantization policy flag. Turning it on does not
// immediately train the quantizer; training still waits for the reservoir
// threshold. "Enabled" gates future behavior; "trained" gates current
// behavior, and the two are never conflated.
func (idx *Index) SetQuantization(enabled bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.policyQuantization = enabled
	if enabled {
		idx.ensurePQ()
	}
}

// SetHNSW sets the HNSW policy flag. Turning it on triggers an immediate
// rebuild if K already qualifies.
func (idx *Index) SetHNSW(enabled bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.policyHNSW = enabled
	if enabled {
		idx.maybeRebuildHNSW()
	}
}

// Add inserts a single embedding under docID and returns the cluster it was
// routed to.
func (idx *Index) Add(docID uint32, emb []float32) (uint32, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(emb) != idx.cfg.Dim {
		return 0, wrapError("add", ErrDimensionMismatch)
	}

	cluster := idx.routeForInsert(emb)
	idx.insertAt(cluster, docID, emb)
	idx.reservoir.sample(emb)
	idx.maybeAdvanceOnInsert()

	idx.insertsSinceRebalanceCheck++
	if idx.insertsSinceRebalanceCheck >= AutoRebalanceCheckInterval {
		idx.insertsSinceRebalanceCheck = 0
		idx.runAutoRebalance()
	}

	return uint32(cluster), nil
}

// AddMulti inserts a flat buffer of n*D floats as n separate entries sharing
// docID, returning each entry's cluster assignment in order.
func (idx *Index) AddMulti(docID uint32, flat []float32, n int) ([]uint32, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(flat) != n*idx.cfg.Dim {
		return nil, wrapError("add_multi", ErrDimensionMismatch)
	}

	clusters := make([]uint32, n)
	for i := 0; i < n; i++ {
		tok := flat[i*idx.cfg.Dim : (i+1)*idx.cfg.Dim]
		cluster := idx.routeForInsert(tok)
		idx.insertAt(cluster, docID, tok)
		idx.reservoir.sample(tok)
		clusters[i] = uint32(cluster)
	}
	idx.maybeAdvanceOnInsert()
	return clusters, nil
}

// routeForInsert picks a cluster via nearest-center if k-means routing is
// active, else via the LSH hash.
func (idx *Index) routeForInsert(emb []float32) int {
	if idx.usingKMeans {
		return idx.centers.nearest(emb)
	}
	return int(idx.router.hash(emb))
}

// insertAt stores a single embedding already routed to cluster, quantized or
// full-precision as appropriate, then updates the cluster's center.
func (idx *Index) insertAt(cluster int, docID uint32, emb []float32) {
	if idx.pq != nil && idx.pq.trained && idx.policyQuantization {
		code, err := idx.pq.encode(emb)
		if err == nil {
			idx.buckets.appendQuantized(cluster, docID, code)
		} else {
			idx.buckets.appendFull(cluster, docID, emb)
		}
	} else {
		idx.buckets.appendFull(cluster, docID, emb)
	}
	idx.centers.update(cluster, emb)
}

// Improve performs one background optimization step: a randomized
// re-centering pass blended with CenterBlendFactor against the reservoir.
// Errors are swallowed rather than propagated; state is never left
// inconsistent by a failed Improve.
func (idx *Index) Improve() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.reservoir.size() == 0 {
		return nil
	}
	sample := idx.reservoir.samples[idx.reservoir.rng.Intn(idx.reservoir.size())]
	cluster := idx.routeForInsert(sample)
	blended := make([]float32, idx.cfg.Dim)
	for d := range blended {
		blended[d] = idx.centers.vectors[cluster][d]*(1-CenterBlendFactor) + sample[d]*CenterBlendFactor
	}
	normalizeInPlace(blended)
	idx.centers.vectors[cluster] = blended

	if idx.policyHNSW {
		idx.maybeRebuildHNSW()
	}
	return nil
}

// RebalanceClusters runs the rebalance procedure unconditionally (subject to
// the imbalance gate inside it) and returns the number of entries moved.
func (idx *Index) RebalanceClusters() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.rebalance(), nil
}

// AutoRebalance is the background-optimizer entry point: it only rebalances
// if the total count meets OnlineKMeansThreshold. Errors never propagate;
// this always returns a count, never an error, per the best-effort contract.
func (idx *Index) AutoRebalance() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.runAutoRebalanceLocked(), nil
}

func (idx *Index) runAutoRebalance() {
	idx.runAutoRebalanceLocked()
}

func (idx *Index) runAutoRebalanceLocked() int {
	if idx.buckets.total() < OnlineKMeansThreshold {
		return 0
	}
	moved := idx.rebalance()
	if moved > 0 {
		idx.logger.Debug("auto rebalance", "moved", moved)
	}
	return moved
}

// Clear empties the index back to its just-constructed state, keeping
// configuration and LSH hyperplanes.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.buckets = newBucketStore(idx.k)
	idx.centers = newCenterStore(idx.cfg.Dim, idx.k)
	idx.reservoir.clear()
	idx.usingKMeans = false
	idx.pq = nil
	if idx.cfg.EnableQuantization {
		idx.ensurePQ()
	}
	idx.graph = newClusterGraph(idx.cfg.HNSWM, idx.cfg.HNSWEfConstruction)
	idx.insertsSinceRebalanceCheck = 0
}

// Search performs single-vector top-k cosine search.
func (idx *Index) Search(query []float32, k int) ([]ScoredDoc, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.search(query, k)
}

// SearchMaxSim performs multi-vector MaxSim search over n query tokens
// packed into flatQueries.
func (idx *Index) SearchMaxSim(flatQueries []float32, n, k int) ([]ScoredDoc, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.searchMaxSim(flatQueries, n, k)
}

// NumClusters returns K.
func (idx *Index) NumClusters() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.k
}

// TotalDocuments returns the total number of entries across all buckets.
func (idx *Index) TotalDocuments() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.buckets.total()
}

// Health returns the [0, 1] cluster-balance score: 0 is perfectly balanced,
// 1 is poor, 0.5 means there isn't enough data yet to judge.
func (idx *Index) Health() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.health()
}

// HealthMetrics returns the detailed balance metrics backing Health.
func (idx *Index) HealthMetrics() HealthMetrics {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.computeHealthMetrics()
}

// MemoryUsage estimates the index's resident byte footprint: bucket
// entries, centers, and PQ codebooks.
func (idx *Index) MemoryUsage() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.memoryUsage()
}

// MemoryUsageHuman is MemoryUsage formatted with github.com/dustin/go-humanize.
func (idx *Index) MemoryUsageHuman() string {
	return humanize.Bytes(idx.MemoryUsage())
}

func (idx *Index) memoryUsage() uint64 {
	var bytes uint64
	bytes += uint64(idx.buckets.fullPrecisionCount()) * uint64(idx.cfg.Dim) * 4
	bytes += uint64(idx.buckets.quantizedCount()) * uint64(PQSubspaces)
	bytes += uint64(idx.k) * uint64(idx.cfg.Dim) * 4
	if idx.pq != nil && idx.pq.trained {
		bytes += uint64(idx.pq.m) * uint64(idx.pq.k) * uint64(idx.pq.subDim) * 4
	}
	return bytes
}

// FullPrecisionCount returns the number of entries still stored at full
// precision.
func (idx *Index) FullPrecisionCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.buckets.fullPrecisionCount()
}

// QuantizedCount returns the number of entries stored as PQ codes.
func (idx *Index) QuantizedCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.buckets.quantizedCount()
}

// QuantizerTrained reports whether the PQ codebooks have been trained.
// Inserts never revert it to false; Clear, and Load of a blob without
// codebooks, drop the quantizer and do.
func (idx *Index) QuantizerTrained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.pq != nil && idx.pq.trained
}

// IsQuantized reports whether quantized storage is both policy-enabled and
// actually trained.
func (idx *Index) IsQuantized() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.pq != nil && idx.pq.trained && idx.policyQuantization
}

// HNSWEnabled reports whether the cluster graph is both policy-enabled and
// actually built.
func (idx *Index) HNSWEnabled() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.hnswEnabled()
}

// UsingKMeans reports whether cluster routing has switched from LSH to
// nearest-center.
func (idx *Index) UsingKMeans() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.usingKMeans
}

// Save persists the index's learned structure to path.
func (idx *Index) Save(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.save(path)
}

// Load restores the index's learned structure from path, discarding any
// current buckets/reservoir (those are never persisted to begin with).
func (idx *Index) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.load(path)
}

// LoadOrNew returns an index loaded from path, or a brand-new one with the
// given dimension and K if the file doesn't exist.
func LoadOrNew(path string, dim, k int) (*Index, error) {
	return loadOrNew(path, dim, k)
}

// ExportCenters returns a flat copy of the K*D center floats.
func (idx *Index) ExportCenters() ([]float32, int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.centers.export()
}

// ImportCenters overwrites the index's centers from a flat K*D buffer and
// switches routing to k-means, since imported centers are assumed learned.
func (idx *Index) ImportCenters(flat []float32, k int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.centers.importFlat(flat, k); err != nil {
		return wrapError("import_centers", err)
	}
	idx.usingKMeans = true
	if idx.policyHNSW {
		idx.maybeRebuildHNSW()
	}
	return nil
}

// ComputeAdaptiveClusterCount is the exported form of the adaptive-K helper,
// usable by callers deciding what K to pass to New.
func ComputeAdaptiveClusterCount(n int) int {
	return computeAdaptiveClusterCount(n)
}
