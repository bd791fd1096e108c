package replay

import (
	"fmt"
	"math"
)

// strata partitions the rank range [1, size] into batch contiguous
// segments of approximately equal cumulative mass under the power-law
// distribution p(rank) ∝ rank^-alpha. One rank is drawn uniformly from
// each segment per sampled batch.
//
// Building strata is linear in the store size, so the caller caches a
// strata value and only rebuilds when the store size changes
// materially rather than on every sample.
type strata struct {
	size  int
	batch int
	alpha float64

	// boundaries[i] is the first rank of segment i; segment i covers
	// ranks [boundaries[i], boundaries[i+1]). len(boundaries) = batch+1
	// and boundaries[batch] = size+1.
	boundaries []int

	// total is the normalizing constant Σ_{r=1..size} r^-alpha
	total float64
}

// newStrata partitions ranks [1, size] into batch segments under
// exponent alpha. size must be at least batch so every segment is
// non-empty.
func newStrata(size, batch int, alpha float64) (*strata, error) {
	if size < batch {
		return nil, fmt.Errorf("newstrata: cannot partition %v ranks into "+
			"%v segments", size, batch)
	}

	total := 0.0
	for r := 1; r <= size; r++ {
		total += math.Pow(float64(r), -alpha)
	}

	boundaries := make([]int, batch+1)
	boundaries[0] = 1
	segment := 1
	cumulative := 0.0
	for r := 1; r <= size && segment < batch; r++ {
		cumulative += math.Pow(float64(r), -alpha)
		if cumulative >= total*float64(segment)/float64(batch) {
			boundaries[segment] = r + 1
			segment++
		}
	}

	// Mass-based boundaries can collapse trailing segments when alpha
	// is large and the head ranks dominate. Force every segment to be
	// non-empty, stealing ranks from the tail.
	for i := segment; i < batch; i++ {
		boundaries[i] = boundaries[i-1] + 1
	}
	boundaries[batch] = size + 1
	for i := batch - 1; i > 0; i-- {
		if boundaries[i] >= boundaries[i+1] {
			boundaries[i] = boundaries[i+1] - 1
		}
	}

	return &strata{
		size:       size,
		batch:      batch,
		alpha:      alpha,
		boundaries: boundaries,
		total:      total,
	}, nil
}

// segment returns the inclusive rank bounds [lo, hi] of segment i
func (s *strata) segment(i int) (lo, hi int) {
	return s.boundaries[i], s.boundaries[i+1] - 1
}

// probability returns P(rank) = rank^-alpha / Σ r^-alpha
func (s *strata) probability(rank int) float64 {
	return math.Pow(float64(rank), -s.alpha) / s.total
}

// stale reports whether the strata should be rebuilt for a store that
// now holds size transitions. Boundaries are recomputed lazily: only
// when the size has changed by at least one percent since the strata
// were built.
func (s *strata) stale(size int) bool {
	if size == s.size {
		return false
	}
	diff := math.Abs(float64(size - s.size))
	return diff/float64(s.size) >= 0.01
}

// importanceWeights computes the importance-sampling correction
// weights for a batch of ranks: w(i) = (n · P(i))^-beta, normalized so
// the largest weight in the batch is exactly 1.
func (s *strata) importanceWeights(ranks []int, beta float64) []float64 {
	weights := make([]float64, len(ranks))
	maxWeight := 0.0
	for i, rank := range ranks {
		weights[i] = math.Pow(float64(s.size)*s.probability(rank), -beta)
		if weights[i] > maxWeight {
			maxWeight = weights[i]
		}
	}
	for i := range weights {
		weights[i] /= maxWeight
	}
	return weights
}
