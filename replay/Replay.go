// Package replay implements a fixed-capacity experience replay buffer
// with rank-based prioritized sampling and importance-sampling weight
// computation.
//
// The buffer is composed of a circular transition store and a parallel
// priority index keyed by the same slot numbers. New transitions enter
// with the maximal priority seen so far, so every transition is
// sampled at least once before its TD error is known. After a learning
// step, the caller feeds the clipped TD-error magnitudes back through
// UpdatePriorities.
package replay

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/godrl/dqn/timestep"
)

// defaultRebalanceInterval is the number of priority mutations between
// full re-sorts of the priority index.
const defaultRebalanceInterval = 1000

// initialPriority seeds the running maximum priority before any TD
// error has been observed.
const initialPriority = 1.0

// Config implements a specific configuration of a Replay buffer
type Config struct {
	Mode              Mode
	Capacity          int
	BatchSize         int
	Alpha             float64 // Priority exponent
	PriorityEpsilon   float64 // Added to |δ| to avoid zero-probability starvation
	RebalanceInterval int     // Priority mutations between index re-sorts
}

// Create creates and returns the Replay buffer with the specified
// Config. States stored in the buffer have featureSize features.
func (c Config) Create(featureSize int, seed uint64) (*Replay, error) {
	return New(c.Mode, c.Capacity, featureSize, c.BatchSize, c.Alpha,
		c.PriorityEpsilon, c.RebalanceInterval, seed)
}

// Replay implements an experience replay buffer with prioritized
// sampling
type Replay struct {
	store *store
	index *priorityIndex

	mode      Mode
	alpha     float64
	batchSize int

	priorityEpsilon   float64
	maxSeenPriority   float64
	rebalanceInterval int
	mutations         int

	strata *strata
	rng    *rand.Rand
}

// New creates and returns a new Replay buffer. The mode parameter
// determines how batches are drawn; Proportional must be downgraded to
// Rank by the configuration layer before a buffer is constructed and
// is rejected here.
func New(mode Mode, capacity, featureSize, batchSize int, alpha,
	priorityEpsilon float64, rebalanceInterval int,
	seed uint64) (*Replay, error) {
	if mode != None && mode != Rank {
		return nil, &BufferError{
			Op:  fmt.Sprintf("new: mode %q", mode),
			Err: errInvalidPriorityMode,
		}
	}
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("new: batch size must be >= 1")
	}
	if capacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > "+
			"capacity (%v)", batchSize, capacity)
	}
	if alpha < 0 {
		return nil, fmt.Errorf("new: priority exponent must be >= 0 "+
			"\n\thave(%v)", alpha)
	}
	if rebalanceInterval < 1 {
		rebalanceInterval = defaultRebalanceInterval
	}

	return &Replay{
		store:             newStore(capacity, featureSize),
		index:             newPriorityIndex(capacity),
		mode:              mode,
		alpha:             alpha,
		batchSize:         batchSize,
		priorityEpsilon:   priorityEpsilon,
		maxSeenPriority:   initialPriority,
		rebalanceInterval: rebalanceInterval,
		rng:               rand.New(rand.NewSource(seed)),
	}, nil
}

// Size returns the current number of transitions in the buffer
func (r *Replay) Size() int {
	return r.store.size()
}

// Capacity returns the maximum number of transitions the buffer holds
func (r *Replay) Capacity() int {
	return r.store.capacity
}

// BatchSize returns the number of indices returned by Sample()
func (r *Replay) BatchSize() int {
	return r.batchSize
}

// Add stores a transition, overwriting the oldest one once the buffer
// is at capacity. The new transition enters the priority index with
// the maximal priority seen so far. An evicted transition leaves the
// priority index in the same step, so the index never holds dangling
// slots.
func (r *Replay) Add(t timestep.Transition) error {
	slot, evicted, err := r.store.add(t)
	if err != nil {
		return err
	}

	if evicted {
		r.index.remove(slot)
	}
	r.index.insert(slot, r.maxSeenPriority)

	r.maybeRebalance()
	return nil
}

// Sample draws a batch of store indices under the configured sampling
// mode and returns them together with the importance-sampling
// correction weight of each. The beta parameter is the current
// importance-sampling exponent; it is ignored in mode None, where all
// weights are 1.
func (r *Replay) Sample(beta float64) ([]int, []float64, error) {
	if r.Size() < r.batchSize {
		return nil, nil, &BufferError{
			Op:  fmt.Sprintf("sample: have %v, need %v", r.Size(), r.batchSize),
			Err: errInsufficientExperience,
		}
	}

	switch r.mode {
	case None:
		return r.sampleUniform()
	case Rank:
		return r.sampleRank(beta)
	default:
		return nil, nil, &BufferError{
			Op:  fmt.Sprintf("sample: mode %q", r.mode),
			Err: errInvalidPriorityMode,
		}
	}
}

// Retrieve gathers the transitions at the argument indices into a
// Batch. Indices must come from a Sample call with no intervening
// eviction; anything else fails with an index-out-of-range fault.
func (r *Replay) Retrieve(indices []int) (*Batch, error) {
	return r.store.retrieve(indices)
}

// UpdatePriorities sets the priority of each sampled index to the
// magnitude of its TD error plus a small constant, then re-ranks the
// affected entries.
func (r *Replay) UpdatePriorities(indices []int, tdErrors []float64) error {
	if len(indices) != len(tdErrors) {
		return fmt.Errorf("updatepriorities: have %v indices but %v errors",
			len(indices), len(tdErrors))
	}

	for i, index := range indices {
		if !r.index.contains(index) {
			return &BufferError{
				Op:  fmt.Sprintf("updatepriorities: slot %v", index),
				Err: errIndexOutOfRange,
			}
		}
		priority := math.Abs(tdErrors[i]) + r.priorityEpsilon
		r.index.update(index, priority)
		if priority > r.maxSeenPriority {
			r.maxSeenPriority = priority
		}
	}

	r.maybeRebalance()
	return nil
}

// sampleUniform draws batchSize indices uniformly at random without
// replacement from the valid slot range
func (r *Replay) sampleUniform() ([]int, []float64, error) {
	perm := r.rng.Perm(r.Size())
	indices := make([]int, r.batchSize)
	copy(indices, perm)

	weights := make([]float64, r.batchSize)
	for i := range weights {
		weights[i] = 1.0
	}
	return indices, weights, nil
}

// sampleRank draws one rank uniformly from each of batchSize
// equal-mass rank segments and maps each rank to its store slot
func (r *Replay) sampleRank(beta float64) ([]int, []float64, error) {
	if r.strata == nil || r.strata.stale(r.Size()) ||
		r.strata.batch != r.batchSize {
		var err error
		r.strata, err = newStrata(r.Size(), r.batchSize, r.alpha)
		if err != nil {
			return nil, nil, fmt.Errorf("sample: %v", err)
		}
	}

	ranks := make([]int, r.batchSize)
	indices := make([]int, r.batchSize)
	for i := 0; i < r.batchSize; i++ {
		lo, hi := r.strata.segment(i)
		rank := lo + r.rng.Intn(hi-lo+1)
		slot, err := r.index.slotAtRank(rank)
		if err != nil {
			return nil, nil, fmt.Errorf("sample: %v", err)
		}
		ranks[i] = rank
		indices[i] = slot
	}

	return indices, r.strata.importanceWeights(ranks, beta), nil
}

// maybeRebalance re-sorts the priority index into exact rank order
// once enough priorities have changed since the last sort
func (r *Replay) maybeRebalance() {
	r.mutations++
	if r.mutations >= r.rebalanceInterval {
		r.index.rebalance()
		r.mutations = 0
		r.strata = nil
	}
}
