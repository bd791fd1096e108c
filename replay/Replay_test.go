package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/godrl/dqn/timestep"
)

const testFeatures = 2

// transition returns a transition whose state features, action, and
// reward all encode id, so tests can recognize which transition came
// back out of the buffer.
func transition(id int) timestep.Transition {
	v := float64(id)
	return timestep.Transition{
		State:     mat.NewVecDense(testFeatures, []float64{v, v + 0.5}),
		Action:    id,
		Reward:    v,
		NextState: mat.NewVecDense(testFeatures, []float64{v + 1, v + 1.5}),
		Terminal:  false,
	}
}

func newTestReplay(t *testing.T, mode Mode, capacity, batchSize int,
	alpha float64) *Replay {
	t.Helper()
	r, err := New(mode, capacity, testFeatures, batchSize, alpha, 1e-6,
		1000, 42)
	require.NoError(t, err)
	return r
}

func TestNewRejectsProportional(t *testing.T) {
	_, err := New(Proportional, 10, testFeatures, 2, 0.7, 1e-6, 1000, 42)
	assert.Error(t, err)
	assert.True(t, IsInvalidPriorityMode(err))
}

func TestNewRejectsBatchLargerThanCapacity(t *testing.T) {
	_, err := New(Rank, 4, testFeatures, 8, 0.7, 1e-6, 1000, 42)
	assert.Error(t, err)
}

func TestSizeTracksFillLevel(t *testing.T) {
	const capacity = 5
	r := newTestReplay(t, Rank, capacity, 2, 0.7)

	for i := 0; i < 2*capacity; i++ {
		expected := i
		if expected > capacity {
			expected = capacity
		}
		assert.Equal(t, expected, r.Size())
		require.NoError(t, r.Add(transition(i)))
	}
	assert.Equal(t, capacity, r.Size())
}

func TestAddOverwritesOldest(t *testing.T) {
	const capacity = 3
	r := newTestReplay(t, Rank, capacity, 1, 0.7)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	// Slots 0 and 1 were overwritten by transitions 3 and 4; slot 2
	// still holds transition 2.
	batch, err := r.Retrieve([]int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 2}, batch.Actions)
	assert.Equal(t, []float64{3, 4, 2}, batch.Rewards)

	// The priority index holds exactly one entry per live slot even
	// after evictions.
	assert.Equal(t, capacity, r.index.len())
	for slot := 0; slot < capacity; slot++ {
		assert.True(t, r.index.contains(slot))
	}
}

func TestAddRejectsWrongFeatureSize(t *testing.T) {
	r := newTestReplay(t, Rank, 5, 1, 0.7)

	err := r.Add(timestep.Transition{
		State:     mat.NewVecDense(3, nil),
		NextState: mat.NewVecDense(3, nil),
	})
	assert.Error(t, err)
}

func TestSampleInsufficientExperience(t *testing.T) {
	r := newTestReplay(t, Rank, 10, 4, 0.7)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Add(transition(i)))

		_, _, err := r.Sample(0.5)
		assert.Error(t, err)
		assert.True(t, IsInsufficientExperience(err))
	}

	require.NoError(t, r.Add(transition(3)))
	_, _, err := r.Sample(0.5)
	assert.NoError(t, err)
}

func TestRetrieveIndexOutOfRange(t *testing.T) {
	r := newTestReplay(t, Rank, 10, 2, 0.7)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	tests := []int{-1, 4, 10}
	for _, index := range tests {
		_, err := r.Retrieve([]int{0, index})
		assert.Error(t, err)
		assert.True(t, IsIndexOutOfRange(err))
	}
}

func TestRetrieveGathersRows(t *testing.T) {
	r := newTestReplay(t, Rank, 10, 2, 0.7)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	batch, err := r.Retrieve([]int{4, 1})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Len())
	assert.Equal(t, []float64{4, 4.5}, batch.State(0))
	assert.Equal(t, []float64{5, 5.5}, batch.NextState(0))
	assert.Equal(t, []float64{1, 1.5}, batch.State(1))
	assert.Equal(t, 4, batch.Actions[0])
	assert.Equal(t, 1, batch.Actions[1])
}

func TestSampleUniformWeightsAreOne(t *testing.T) {
	r := newTestReplay(t, None, 20, 4, 0.0)
	for i := 0; i < 20; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	indices, weights, err := r.Sample(0.5)
	require.NoError(t, err)
	require.Len(t, indices, 4)
	require.Len(t, weights, 4)

	seen := make(map[int]bool)
	for i, index := range indices {
		assert.Equal(t, 1.0, weights[i])
		assert.GreaterOrEqual(t, index, 0)
		assert.Less(t, index, 20)
		assert.False(t, seen[index], "uniform sampling drew slot %v twice",
			index)
		seen[index] = true
	}
}

// TestSampleRankAlphaZeroIsUniform checks that with the priority
// exponent at zero, rank-based sampling degenerates to a uniform
// distribution over the stored transitions.
func TestSampleRankAlphaZeroIsUniform(t *testing.T) {
	const (
		size      = 100
		batchSize = 4
		draws     = 1000
	)
	r := newTestReplay(t, Rank, size, batchSize, 0.0)
	for i := 0; i < size; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	counts := make([]float64, size)
	for d := 0; d < draws; d++ {
		indices, weights, err := r.Sample(0.5)
		require.NoError(t, err)
		for _, index := range indices {
			counts[index]++
		}
		for _, w := range weights {
			assert.Equal(t, 1.0, w)
		}
	}

	// Each slot is expected (draws * batchSize / size) = 40 times. The
	// chi-square statistic against the uniform expectation has size-1 =
	// 99 degrees of freedom; 140 is beyond the 0.995 quantile.
	expected := make([]float64, size)
	for i := range expected {
		expected[i] = float64(draws*batchSize) / float64(size)
	}
	assert.Less(t, stat.ChiSquare(counts, expected), 140.0)

	for slot, count := range counts {
		assert.Greater(t, count, 0.0, "slot %v never drawn", slot)
	}
}

func TestSampleRankImportanceWeights(t *testing.T) {
	const size, batchSize = 50, 8
	r := newTestReplay(t, Rank, size, batchSize, 0.7)
	for i := 0; i < size; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	// Spread the priorities so the ranks differ
	indices := make([]int, size)
	tdErrors := make([]float64, size)
	for i := range indices {
		indices[i] = i
		tdErrors[i] = float64(i) * 0.1
	}
	require.NoError(t, r.UpdatePriorities(indices, tdErrors))

	for draw := 0; draw < 10; draw++ {
		_, weights, err := r.Sample(0.4)
		require.NoError(t, err)

		maxWeight := 0.0
		for _, w := range weights {
			assert.Greater(t, w, 0.0)
			assert.LessOrEqual(t, w, 1.0)
			if w > maxWeight {
				maxWeight = w
			}
		}
		assert.Equal(t, 1.0, maxWeight)
	}
}

func TestUpdatePrioritiesReRanks(t *testing.T) {
	const size = 10
	r := newTestReplay(t, Rank, size, 2, 0.7)
	for i := 0; i < size; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	require.NoError(t, r.UpdatePriorities(
		[]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		[]float64{1, 2, 3, 4, 5, 6, 7, 99, 9, 10},
	))

	// Rank 1 is the exact maximum of the index
	slot, err := r.index.slotAtRank(1)
	require.NoError(t, err)
	assert.Equal(t, 7, slot)
	assert.InDelta(t, 99+r.priorityEpsilon, r.index.priorityOf(7), 1e-12)
}

func TestUpdatePrioritiesUnknownSlot(t *testing.T) {
	r := newTestReplay(t, Rank, 10, 2, 0.7)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	err := r.UpdatePriorities([]int{8}, []float64{1.0})
	assert.Error(t, err)
	assert.True(t, IsIndexOutOfRange(err))
}

func TestUpdatePrioritiesLengthMismatch(t *testing.T) {
	r := newTestReplay(t, Rank, 10, 2, 0.7)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Add(transition(i)))
	}

	err := r.UpdatePriorities([]int{0, 1}, []float64{1.0})
	assert.Error(t, err)
}

// TestNewTransitionsEnterAtMaxPriority checks that a transition added
// after a large TD error has been observed inherits the running
// maximum priority, so it cannot be starved before its first sample.
func TestNewTransitionsEnterAtMaxPriority(t *testing.T) {
	r := newTestReplay(t, Rank, 10, 2, 0.7)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Add(transition(i)))
	}
	require.NoError(t, r.UpdatePriorities([]int{2}, []float64{50}))

	require.NoError(t, r.Add(transition(4)))
	assert.InDelta(t, 50+r.priorityEpsilon, r.index.priorityOf(4), 1e-12)
}

func TestRebalanceSortsIndexByPriority(t *testing.T) {
	// A rebalance interval of 1 forces a full sort after every
	// mutation, so every rank lookup is exact.
	r, err := New(Rank, 10, testFeatures, 2, 0.7, 1e-6, 1, 42)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Add(transition(i)))
	}
	require.NoError(t, r.UpdatePriorities(
		[]int{0, 1, 2, 3, 4},
		[]float64{3, 1, 5, 2, 4},
	))

	wantSlots := []int{2, 4, 0, 3, 1}
	for rank, want := range wantSlots {
		slot, err := r.index.slotAtRank(rank + 1)
		require.NoError(t, err)
		assert.Equal(t, want, slot, "wrong slot at rank %v", rank+1)
	}
}
