package replay

import (
	"fmt"

	"github.com/godrl/dqn/timestep"
	"github.com/godrl/dqn/utils/intutils"
)

// store implements a fixed-capacity circular buffer of transitions
// backed by flat caches. A write cursor advances modulo the capacity,
// overwriting the oldest slot once the buffer is full. Valid
// transitions occupy slots [0, min(writes, capacity)).
//
// Pixel observations should be flattened before adding to the buffer.
type store struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	nextStateCache []float64
	terminalCache  []bool

	capacity    int
	featureSize int
	cursor      int
	writes      int
}

// Batch holds a retrieved batch of transitions. States and NextStates
// are stored in row-major order with one row of FeatureSize values per
// transition.
type Batch struct {
	States      []float64
	Actions     []int
	Rewards     []float64
	NextStates  []float64
	Terminals   []bool
	FeatureSize int
}

// Len returns the number of transitions in the Batch
func (b *Batch) Len() int {
	return len(b.Actions)
}

// State returns the i'th state row of the Batch
func (b *Batch) State(i int) []float64 {
	return b.States[i*b.FeatureSize : (i+1)*b.FeatureSize]
}

// NextState returns the i'th next state row of the Batch
func (b *Batch) NextState(i int) []float64 {
	return b.NextStates[i*b.FeatureSize : (i+1)*b.FeatureSize]
}

// newStore returns a new store holding at most capacity transitions of
// featureSize state features each.
func newStore(capacity, featureSize int) *store {
	return &store{
		stateCache:     make([]float64, capacity*featureSize),
		actionCache:    make([]int, capacity),
		rewardCache:    make([]float64, capacity),
		nextStateCache: make([]float64, capacity*featureSize),
		terminalCache:  make([]bool, capacity),
		capacity:       capacity,
		featureSize:    featureSize,
	}
}

// size returns the number of valid transitions in the store
func (s *store) size() int {
	return intutils.Min(s.writes, s.capacity)
}

// full returns whether the store has reached capacity
func (s *store) full() bool {
	return s.writes >= s.capacity
}

// add writes a transition at the cursor slot, advancing the cursor
// circularly. It returns the slot written to and whether an existing
// transition was overwritten.
func (s *store) add(t timestep.Transition) (slot int, evicted bool, err error) {
	if t.State.Len() != s.featureSize || t.NextState.Len() != s.featureSize {
		return 0, false, fmt.Errorf("add: invalid feature size "+
			"\n\twant(%v)\n\thave(%v)", s.featureSize, t.State.Len())
	}

	slot = s.cursor
	evicted = s.full()

	stateInd := slot * s.featureSize
	for i := 0; i < s.featureSize; i++ {
		s.stateCache[stateInd+i] = t.State.AtVec(i)
		s.nextStateCache[stateInd+i] = t.NextState.AtVec(i)
	}
	s.actionCache[slot] = t.Action
	s.rewardCache[slot] = t.Reward
	s.terminalCache[slot] = t.Terminal

	s.cursor = (s.cursor + 1) % s.capacity
	s.writes++

	return slot, evicted, nil
}

// retrieve gathers the transitions at the argument slots into a Batch.
// Any slot outside the valid range is a logic fault in the caller and
// fails the whole retrieval.
func (s *store) retrieve(indices []int) (*Batch, error) {
	batch := &Batch{
		States:      make([]float64, len(indices)*s.featureSize),
		Actions:     make([]int, len(indices)),
		Rewards:     make([]float64, len(indices)),
		NextStates:  make([]float64, len(indices)*s.featureSize),
		Terminals:   make([]bool, len(indices)),
		FeatureSize: s.featureSize,
	}

	for i, index := range indices {
		if index < 0 || index >= s.size() {
			return nil, &BufferError{
				Op:  fmt.Sprintf("retrieve: slot %v of %v", index, s.size()),
				Err: errIndexOutOfRange,
			}
		}

		batchStartInd := i * s.featureSize
		expStartInd := index * s.featureSize
		copy(batch.States[batchStartInd:batchStartInd+s.featureSize],
			s.stateCache[expStartInd:expStartInd+s.featureSize])
		copy(batch.NextStates[batchStartInd:batchStartInd+s.featureSize],
			s.nextStateCache[expStartInd:expStartInd+s.featureSize])

		batch.Actions[i] = s.actionCache[index]
		batch.Rewards[i] = s.rewardCache[index]
		batch.Terminals[i] = s.terminalCache[index]
	}

	return batch, nil
}
