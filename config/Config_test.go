package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/godrl/dqn/replay"
)

func TestDefaultIsValid(t *testing.T) {
	conf, err := Default().Sanitized(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, replay.Rank, conf.Mode())
}

func TestSanitizedRejectsInvalidMode(t *testing.T) {
	conf := Default()
	conf.SampleMode = "sumtree"

	_, err := conf.Sanitized(zap.NewNop())
	assert.Error(t, err)
	assert.True(t, replay.IsInvalidPriorityMode(err))
}

// TestSanitizedDowngradesProportional checks that a proportional
// sampling mode is accepted but downgraded to rank with exactly one
// recorded warning.
func TestSanitizedDowngradesProportional(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	conf := Default()
	conf.SampleMode = string(replay.Proportional)

	conf, err := conf.Sanitized(log)
	require.NoError(t, err)
	assert.Equal(t, replay.Rank, conf.Mode())
	assert.Equal(t, string(replay.Rank), conf.SampleMode)
	assert.Equal(t, 1, logs.Len())
}

func TestSanitizedDoesNotWarnForValidModes(t *testing.T) {
	for _, mode := range []replay.Mode{replay.None, replay.Rank} {
		core, logs := observer.New(zapcore.WarnLevel)

		conf := Default()
		conf.SampleMode = string(mode)

		conf, err := conf.Sanitized(zap.New(core))
		require.NoError(t, err)
		assert.Equal(t, mode, conf.Mode())
		assert.Equal(t, 0, logs.Len())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.MemSize = 0 }},
		{"batch larger than capacity", func(c *Config) {
			c.MemSize = 8
			c.BatchSize = 16
		}},
		{"negative alpha", func(c *Config) { c.Alpha = -0.1 }},
		{"beta above one", func(c *Config) { c.BetaZero = 1.5 }},
		{"gamma above one", func(c *Config) { c.Gamma = 1.01 }},
		{"negative reward clip", func(c *Config) { c.RewardClip = -1 }},
		{"negative td clip", func(c *Config) { c.TDClip = -1 }},
		{"zero steps", func(c *Config) { c.Steps = 0 }},
		{"learn start before full batch", func(c *Config) {
			c.BatchSize = 32
			c.LearnStart = 16
		}},
		{"zero tau", func(c *Config) { c.Tau = 0 }},
		{"epsilon steps beyond horizon", func(c *Config) {
			c.Steps = 100
			c.EpsilonSteps = 200
		}},
		{"eval epsilon above one", func(c *Config) { c.EvalEpsilon = 2 }},
		{"negative eval interval", func(c *Config) { c.EvalInterval = -1 }},
		{"eval enabled without episodes", func(c *Config) {
			c.EvalInterval = 5000
			c.EvalEpisodes = 0
		}},
		{"mismatched biases", func(c *Config) { c.Biases = []bool{true} }},
		{"mismatched activations", func(c *Config) {
			c.Activations = []string{"relu"}
		}},
		{"unknown backend", func(c *Config) { c.NumericBackend = "tpu" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf := Default()
			test.modify(&conf)

			_, err := conf.Sanitized(zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestReplayConfig(t *testing.T) {
	conf, err := Default().Sanitized(zap.NewNop())
	require.NoError(t, err)

	rc := conf.Replay()
	assert.Equal(t, replay.Rank, rc.Mode)
	assert.Equal(t, conf.MemSize, rc.Capacity)
	assert.Equal(t, conf.BatchSize, rc.BatchSize)
	assert.Equal(t, conf.Alpha, rc.Alpha)
	assert.Equal(t, conf.PriorityEpsilon, rc.PriorityEpsilon)
	assert.Equal(t, conf.RebalanceInterval, rc.RebalanceInterval)
}
