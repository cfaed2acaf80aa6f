package progindex

import "fmt"

// Tunable constants relied upon by the lifecycle controller and query
// planner. Values mirror the progressive-index reference this package is
// built from.
const (
	// DefaultClusters is the fallback cluster count for an empty corpus.
	DefaultClusters = 64
	// MinClusters is the lower bound enforced by the adaptive-K helper.
	MinClusters = 16
	// MaxClusters is the upper bound enforced by the adaptive-K helper.
	MaxClusters = 256

	// PQSubspaces is the number of independent sub-spaces (M) the product
	// quantizer splits an embedding into.
	PQSubspaces = 8
	// PQCentroidsPerSubspace is the number of centroids per sub-space (C),
	// fixed at 256 so a code fits in one byte.
	PQCentroidsPerSubspace = 256

	// MinTrainingSamples is the minimum reservoir size required to train
	// the product quantizer.
	MinTrainingSamples = 256
	// OnlineKMeansThreshold is the total-inserts count at which routing
	// switches from LSH to nearest-center.
	OnlineKMeansThreshold = 100
	// MinNodesForHNSW is the minimum K at which an HNSW cluster graph is
	// built at all.
	MinNodesForHNSW = 64
	// MaxReservoirSize is the cap on the reservoir sample (R).
	MaxReservoirSize = 10000
	// ImbalanceRatioThreshold triggers a rebalance when the largest
	// non-empty cluster is at least this many times the smallest.
	ImbalanceRatioThreshold = 100
	// AutoRebalanceCheckInterval is how many inserts elapse between
	// automatic imbalance checks.
	AutoRebalanceCheckInterval = 100
	// HealthThresholdNeedsWork is the limit on the cluster-size standard
	// deviation divided by the mean per-cluster size (total/K) above which
	// HealthMetrics reports NeedsWork.
	HealthThresholdNeedsWork = 0.2
	// CenterBlendFactor is the blend weight used by Improve's randomized
	// re-centering step. Fixed rather than adaptive: a health-driven blend
	// would need a feedback loop whose stability isn't established here.
	CenterBlendFactor = 0.1

	// persistenceSchemaVersion is the only version this build accepts.
	persistenceSchemaVersion = 1
)

// Config configures a new Index. Zero-value fields are replaced by
// DefaultConfig's defaults in NewWithConfig.
type Config struct {
	// Dim is the embedding dimension. Required, must be > 0 and divisible
	// by PQSubspaces if quantization is ever enabled.
	Dim int

	// Clusters is K, the number of clusters. Zero selects DefaultClusters;
	// any other value is rounded up to the next power of two.
	Clusters int

	// Seed, if non-zero, makes LSH hyperplane construction deterministic.
	// Use WithSeed-style construction when reproducibility matters.
	Seed uint64
	hasSeed bool

	// EnableQuantization sets the initial quantization policy flag.
	EnableQuantization bool
	// EnableHNSW sets the initial HNSW policy flag.
	EnableHNSW bool

	// Device is accepted for interface compatibility with environments
	// that enumerate accelerator devices, but is never interpreted: this
	// index is CPU-only.
	Device string

	// HNSWM and HNSWEfConstruction tune the underlying cluster graph.
	HNSWM              int
	HNSWEfConstruction int
	HNSWEfSearch       int

	// Logger receives structured log lines from background optimization
	// paths and lifecycle transitions. Defaults to NopLogger().
	Logger Logger
}

// DefaultConfig returns a Config for dimension dim with K defaulted and no
// optional stages enabled.
func DefaultConfig(dim int) Config {
	return Config{
		Dim:                dim,
		Clusters:           DefaultClusters,
		EnableQuantization: false,
		EnableHNSW:         false,
		HNSWM:              16,
		HNSWEfConstruction: 200,
		HNSWEfSearch:       64,
		Logger:             NopLogger(),
	}
}

func (c *Config) validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, c.Dim)
	}
	if c.EnableQuantization && c.Dim%PQSubspaces != 0 {
		return fmt.Errorf("%w: dimension %d must be divisible by %d subspaces", ErrInvalidConfig, c.Dim, PQSubspaces)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Seed != 0 {
		c.hasSeed = true
	}
	if c.Clusters == 0 {
		c.Clusters = DefaultClusters
	}
	c.Clusters = nextPow2(c.Clusters)
	if c.HNSWM == 0 {
		c.HNSWM = 16
	}
	if c.HNSWEfConstruction == 0 {
		c.HNSWEfConstruction = 200
	}
	if c.HNSWEfSearch == 0 {
		c.HNSWEfSearch = 64
	}
	if c.Logger == nil {
		c.Logger = NopLogger()
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// computeAdaptiveClusterCount picks a cluster count from an expected corpus
// size n: K = clamp(next_pow2(ceil(sqrt(n))), MinClusters, MaxClusters),
// with DefaultClusters as the n=0 fallback.
func computeAdaptiveClusterCount(n int) int {
	if n <= 0 {
		return DefaultClusters
	}
	sq := 1
	for sq*sq < n {
		sq++
	}
	k := nextPow2(sq)
	if k < MinClusters {
		k = MinClusters
	}
	if k > MaxClusters {
		k = MaxClusters
	}
	return k
}
