package deepq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"

	"github.com/godrl/dqn/initwfn"
	"github.com/godrl/dqn/network"
)

// syncTestNet builds a small value network with every weight set to a
// constant, so two networks built with different constants are
// guaranteed to differ parameter-for-parameter.
func syncTestNet(t *testing.T, value float64) network.NeuralNet {
	t.Helper()
	init, err := initwfn.NewConstant(value)
	require.NoError(t, err)

	net, err := network.NewQNet(4, 1, 2, G.NewGraph(), []int{8},
		[]bool{true}, init.InitWFn(), []*network.Activation{network.ReLU()})
	require.NoError(t, err)
	return net
}

func TestNewSynchronizerRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []int{0, -1} {
		_, err := NewSynchronizer(interval)
		assert.Error(t, err)
	}
}

// TestMaybeSyncSchedule checks that with an interval of 10 the target
// network still differs from the policy network after 9 learning steps
// and is bit-identical to it after the 10th.
func TestMaybeSyncSchedule(t *testing.T) {
	sync, err := NewSynchronizer(10)
	require.NoError(t, err)

	target := syncTestNet(t, 0.0)
	policy := syncTestNet(t, 0.5)
	require.NotEqual(t, policy.Parameters(), target.Parameters())

	// Learning step 0 is "no steps taken yet", never a sync point
	synced, err := sync.MaybeSync(0, target, policy)
	require.NoError(t, err)
	assert.False(t, synced)

	for learnSteps := 1; learnSteps <= 9; learnSteps++ {
		synced, err := sync.MaybeSync(learnSteps, target, policy)
		require.NoError(t, err)
		assert.False(t, synced, "unexpected sync at learning step %v",
			learnSteps)
		assert.NotEqual(t, policy.Parameters(), target.Parameters())
	}

	synced, err = sync.MaybeSync(10, target, policy)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, policy.Parameters(), target.Parameters())
}

func TestMaybeSyncRepeatsEveryInterval(t *testing.T) {
	sync, err := NewSynchronizer(3)
	require.NoError(t, err)

	target := syncTestNet(t, 0.0)
	policy := syncTestNet(t, 1.0)

	syncedAt := []int{}
	for learnSteps := 1; learnSteps <= 9; learnSteps++ {
		synced, err := sync.MaybeSync(learnSteps, target, policy)
		require.NoError(t, err)
		if synced {
			syncedAt = append(syncedAt, learnSteps)
		}
	}
	assert.Equal(t, []int{3, 6, 9}, syncedAt)
}

// TestSyncIsHardCopy checks that synchronization is a full overwrite,
// not a partial or averaged update.
func TestSyncIsHardCopy(t *testing.T) {
	sync, err := NewSynchronizer(1)
	require.NoError(t, err)

	target := syncTestNet(t, -2.0)
	policy := syncTestNet(t, 3.0)

	synced, err := sync.MaybeSync(1, target, policy)
	require.NoError(t, err)
	require.True(t, synced)

	params := target.Parameters()
	require.Equal(t, policy.Parameters(), params)

	// Later policy changes must not leak into the target between syncs
	require.NoError(t, policy.SetParameters(make([]float64,
		len(params))))
	assert.Equal(t, params, target.Parameters())
}
