package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEGreedyRejectsNoActions(t *testing.T) {
	_, err := NewEGreedy(0, 42)
	assert.Error(t, err)
}

func TestSelectActionGreedyWhenEpsilonZero(t *testing.T) {
	p, err := NewEGreedy(4, 42)
	require.NoError(t, err)

	tests := []struct {
		qValues []float64
		want    int
	}{
		{qValues: []float64{0.1, 0.9, 0.3, 0.2}, want: 1},
		{qValues: []float64{5, 1, 2, 3}, want: 0},
		{qValues: []float64{-4, -3, -2, -1}, want: 3},
		// Ties break toward the first occurrence
		{qValues: []float64{0.5, 0.5, 0.5, 0.5}, want: 0},
		{qValues: []float64{0.1, 0.7, 0.7, 0.2}, want: 1},
	}

	for _, test := range tests {
		for i := 0; i < 25; i++ {
			action, err := p.SelectAction(test.qValues, 0.0)
			require.NoError(t, err)
			assert.Equal(t, test.want, action)
		}
	}
}

func TestSelectActionExploresWhenEpsilonOne(t *testing.T) {
	const numActions = 4
	p, err := NewEGreedy(numActions, 42)
	require.NoError(t, err)

	// With epsilon of one the greedy action carries no special weight
	qValues := []float64{100, 0, 0, 0}
	counts := make([]int, numActions)
	for i := 0; i < 4000; i++ {
		action, err := p.SelectAction(qValues, 1.0)
		require.NoError(t, err)
		counts[action]++
	}

	for action, count := range counts {
		assert.Greater(t, count, 800, "action %v selected too rarely", action)
		assert.Less(t, count, 1200, "action %v selected too often", action)
	}
}

func TestSelectActionRejectsWrongValueCount(t *testing.T) {
	p, err := NewEGreedy(4, 42)
	require.NoError(t, err)

	_, err = p.SelectAction([]float64{0.1, 0.2}, 0.0)
	assert.Error(t, err)
}
