package deepq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godrl/dqn/config"
	"github.com/godrl/dqn/environment/randomwalk"
	"github.com/godrl/dqn/replay"
)

// testConfig returns a sanitized configuration small enough to train
// against the random walk in a test.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	conf := config.Default()
	conf.MemSize = 64
	conf.BatchSize = 4
	conf.LearnStart = 4
	conf.Steps = 100
	conf.EpsilonSteps = 50
	conf.Tau = 2
	conf.HiddenSizes = []int{8}
	conf.Biases = []bool{true}
	conf.Activations = []string{"relu"}

	conf, err := conf.Sanitized(zap.NewNop())
	require.NoError(t, err)
	return conf
}

func newTestAgent(t *testing.T) *DeepQ {
	t.Helper()
	env, err := randomwalk.New(5, 100)
	require.NoError(t, err)

	agent, err := New(env, testConfig(t), 42)
	require.NoError(t, err)
	return agent
}

func TestObserveClampsStoredReward(t *testing.T) {
	env, err := randomwalk.New(5, 100)
	require.NoError(t, err)

	conf := testConfig(t)
	conf.RewardClip = 0.25

	agent, err := New(env, conf, 42)
	require.NoError(t, err)

	step := env.Reset()
	agent.ObserveFirst(step)

	// Walk off the right end for the +1 reward
	for !step.Last() {
		step, err = env.Step(randomwalk.Right)
		require.NoError(t, err)
		require.NoError(t, agent.Observe(randomwalk.Right, step))
	}

	// The terminal transition entered the buffer with its reward
	// already clamped
	batch, err := agent.buffer.Retrieve([]int{agent.buffer.Size() - 1})
	require.NoError(t, err)
	assert.Equal(t, 0.25, batch.Rewards[0])
	assert.True(t, batch.Terminals[0])
}

func TestStepBeforeFullBatchFails(t *testing.T) {
	agent := newTestAgent(t)

	err := agent.Step()
	assert.Error(t, err)
	assert.True(t, replay.IsInsufficientExperience(err))
	assert.Equal(t, 0, agent.LearnSteps())
}

// TestTrainingStepProtocol drives the agent through enough environment
// interaction to learn, checking the learning-step accounting and the
// target network synchronization schedule along the way.
func TestTrainingStepProtocol(t *testing.T) {
	env, err := randomwalk.New(5, 100)
	require.NoError(t, err)

	conf := testConfig(t) // Tau of 2
	agent, err := New(env, conf, 42)
	require.NoError(t, err)

	step := env.Reset()
	agent.ObserveFirst(step)
	for i := 0; i < conf.LearnStart; i++ {
		action, err := agent.SelectAction(step)
		require.NoError(t, err)
		step, err = env.Step(action)
		require.NoError(t, err)
		require.NoError(t, agent.Observe(action, step))
		if step.Last() {
			step = env.Reset()
			agent.ObserveFirst(step)
		}
	}
	require.Equal(t, conf.LearnStart, agent.BufferSize())

	// First learning step: parameters move, no sync yet
	before := agent.TargetParameters()
	require.NoError(t, agent.Step())
	assert.Equal(t, 1, agent.LearnSteps())
	assert.Equal(t, before, agent.TargetParameters())
	assert.NotEqual(t, agent.Parameters(), agent.TargetParameters())

	// Second learning step lands on the sync interval
	require.NoError(t, agent.Step())
	assert.Equal(t, 2, agent.LearnSteps())
	assert.Equal(t, agent.Parameters(), agent.TargetParameters())
}

func TestEvalMode(t *testing.T) {
	agent := newTestAgent(t)

	assert.False(t, agent.IsEval())
	agent.Eval()
	assert.True(t, agent.IsEval())
	agent.Train()
	assert.False(t, agent.IsEval())
}

func TestSetParametersPropagatesToAllCopies(t *testing.T) {
	agent := newTestAgent(t)

	params := agent.Parameters()
	for i := range params {
		params[i] = 0.125
	}
	require.NoError(t, agent.SetParameters(params))

	assert.Equal(t, params, agent.Parameters())
	assert.Equal(t, params, agent.TargetParameters())
	assert.Equal(t, params, agent.behaviourNet.Parameters())
	assert.Equal(t, params, agent.selectionNet.Parameters())
}

func TestSetParametersRejectsWrongLength(t *testing.T) {
	agent := newTestAgent(t)

	err := agent.SetParameters([]float64{1, 2, 3})
	assert.Error(t, err)
}
