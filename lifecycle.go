package progindex

// stage enumerates the monotonic lifecycle states the index passes through
// as it accumulates data. The controller never downgrades a stage.
type stage int

const (
	stageLSHOnly stage = iota
	stageWarmingKMeans
	stageKMeansRouting
	stageKMeansPlusPQ
	stagePlusHNSW
)

func (s stage) String() string {
	switch s {
	case stageLSHOnly:
		return "lsh-only"
	case stageWarmingKMeans:
		return "lsh+kmeans-warming"
	case stageKMeansRouting:
		return "kmeans-routing"
	case stageKMeansPlusPQ:
		return "kmeans+pq"
	case stagePlusHNSW:
		return "kmeans+pq+hnsw"
	default:
		return "unknown"
	}
}

// maybeAdvanceOnInsert checks the insert-time transition conditions,
// advancing usingKMeans and triggering PQ training when thresholds are
// crossed. Called with the write lock held.
func (idx *Index) maybeAdvanceOnInsert() {
	before := idx.currentStage()

	if !idx.usingKMeans && idx.reservoir.totalSeen >= OnlineKMeansThreshold {
		idx.usingKMeans = true
	}

	if idx.policyQuantization && idx.reservoir.size() >= MinTrainingSamples {
		if pq := idx.ensurePQ(); pq != nil && !pq.trained {
			if err := idx.trainAndMigrate(); err != nil {
				idx.logger.Debug("deferred pq training", "error", err)
			}
		}
	}

	after := idx.currentStage()
	if after != before {
		idx.logger.Info("stage transition", "from", before.String(), "to", after.String(), "total_seen", idx.reservoir.totalSeen)
	}
}

// trainAndMigrate trains the product quantizer from the reservoir and
// migrates every existing full-precision bucket entry into quantized form.
func (idx *Index) trainAndMigrate() error {
	if err := idx.pq.train(idx.reservoir.samples); err != nil {
		return err
	}
	if err := idx.buckets.migrateToQuantized(idx.pq); err != nil {
		return err
	}
	return nil
}

// currentStage reports the lifecycle stage implied by the current flags,
// for logging and for the monotonicity invariant in tests.
func (idx *Index) currentStage() stage {
	switch {
	case idx.hnswEnabled():
		return stagePlusHNSW
	case idx.pq != nil && idx.pq.trained && idx.policyQuantization:
		return stageKMeansPlusPQ
	case idx.usingKMeans:
		return stageKMeansRouting
	case idx.reservoir.totalSeen > 0:
		return stageWarmingKMeans
	default:
		return stageLSHOnly
	}
}

func (idx *Index) hnswEnabled() bool {
	return idx.policyHNSW && idx.graph.built()
}

// maybeRebuildHNSW builds (or rebuilds) the cluster graph once K qualifies
// and the HNSW policy is on. Called after any material center shift.
func (idx *Index) maybeRebuildHNSW() {
	if !idx.policyHNSW || idx.k < MinNodesForHNSW {
		return
	}
	idx.graph.rebuild(idx.centers.vectors)
}
