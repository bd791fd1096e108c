// Package config defines the configuration surface of the training
// system. A Config is an explicit immutable value constructed once at
// startup and passed into each component's constructor; no component
// reads global state.
package config

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/godrl/dqn/replay"
)

// Backend names the numeric backend used to run network graphs
type Backend string

const (
	// CPU is the default gorgonia tape machine backend
	CPU Backend = "cpu"

	// CUDA requests an accelerated backend. When unavailable at
	// startup, training proceeds on CPU with a logged note.
	CUDA Backend = "cuda"
)

// Config holds every value the learning system consumes. Zero values
// are not meaningful defaults; construct with Default() and override.
type Config struct {
	// Experience replay
	MemSize           int     `mapstructure:"memSize"`
	SampleMode        string  `mapstructure:"sampleMode"` // none|rank|proportional
	Alpha             float64 `mapstructure:"alpha"`      // Priority exponent
	BetaZero          float64 `mapstructure:"betaZero"`   // Initial IS exponent
	PriorityEpsilon   float64 `mapstructure:"priorityEpsilon"`
	RebalanceInterval int     `mapstructure:"rebalanceInterval"`
	BatchSize         int     `mapstructure:"batchSize"`

	// Learning update
	Gamma      float64 `mapstructure:"gamma"`
	RewardClip float64 `mapstructure:"rewardClip"` // 0 disables
	TDClip     float64 `mapstructure:"tdClip"`     // 0 disables
	PALpha     float64 `mapstructure:"palAlpha"`   // 0 disables the PAL term
	DoubleQ    bool    `mapstructure:"doubleQ"`

	// Dueling selects the dueling head layout. It is consumed by the
	// network collaborator, not by the learning system itself.
	Dueling bool `mapstructure:"dueling"`

	// Schedules and horizon
	Steps        int     `mapstructure:"steps"`
	LearnStart   int     `mapstructure:"learnStart"`
	Tau          int     `mapstructure:"tau"` // Steps between target syncs
	EpsilonStart float64 `mapstructure:"epsilonStart"`
	EpsilonEnd   float64 `mapstructure:"epsilonEnd"`
	EpsilonSteps int     `mapstructure:"epsilonSteps"`
	EvalEpsilon  float64 `mapstructure:"evalEpsilon"`

	// Network
	HiddenSizes []int    `mapstructure:"hiddenSizes"`
	Biases      []bool   `mapstructure:"biases"`
	Activations []string `mapstructure:"activations"`
	InitWFn     string   `mapstructure:"initWFn"`
	InitGain    float64  `mapstructure:"initGain"`

	// Optimizer
	Solver        string  `mapstructure:"solver"` // Adam|RMSProp|Vanilla
	StepSize      float64 `mapstructure:"stepSize"`
	SolverEpsilon float64 `mapstructure:"solverEpsilon"`
	Beta1         float64 `mapstructure:"beta1"`
	Beta2         float64 `mapstructure:"beta2"`
	Rho           float64 `mapstructure:"rho"`
	GradClip      float64 `mapstructure:"gradClip"` // 0 disables

	// Trainer
	EvalInterval   int     `mapstructure:"evalInterval"`
	EvalEpisodes   int     `mapstructure:"evalEpisodes"`
	CheckpointPath string  `mapstructure:"checkpointPath"`
	NetworkPath    string  `mapstructure:"networkPath"` // Explicit resume path
	NumericBackend Backend `mapstructure:"backend"`
	Seed           uint64  `mapstructure:"seed"`
}

// Default returns a Config with working defaults for a small discrete
// control problem.
func Default() Config {
	return Config{
		MemSize:           10000,
		SampleMode:        string(replay.Rank),
		Alpha:             0.7,
		BetaZero:          0.5,
		PriorityEpsilon:   1e-6,
		RebalanceInterval: 1000,
		BatchSize:         32,

		Gamma:      0.99,
		RewardClip: 1.0,
		TDClip:     1.0,
		PALpha:     0,
		DoubleQ:    true,

		Steps:        100000,
		LearnStart:   1000,
		Tau:          1000,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.01,
		EpsilonSteps: 50000,
		EvalEpsilon:  0.001,

		HiddenSizes: []int{64, 64},
		Biases:      []bool{true, true},
		Activations: []string{"relu", "relu"},
		InitWFn:     "GlorotU",
		InitGain:    1.0,

		Solver:        "Adam",
		StepSize:      0.0001,
		SolverEpsilon: 1e-8,
		Beta1:         0.9,
		Beta2:         0.999,
		GradClip:      0,

		EvalInterval:   5000,
		EvalEpisodes:   10,
		CheckpointPath: "checkpoint.db",
		NumericBackend: CPU,
		Seed:           192382,
	}
}

// Mode returns the parsed sampling mode. Call only after Sanitized has
// run, when SampleMode is guaranteed to be valid and downgraded.
func (c Config) Mode() replay.Mode {
	mode, err := replay.ParseMode(c.SampleMode)
	if err != nil {
		panic(fmt.Sprintf("mode: config not sanitized: %v", err))
	}
	return mode
}

// Replay returns the replay buffer configuration described by the
// Config
func (c Config) Replay() replay.Config {
	return replay.Config{
		Mode:              c.Mode(),
		Capacity:          c.MemSize,
		BatchSize:         c.BatchSize,
		Alpha:             c.Alpha,
		PriorityEpsilon:   c.PriorityEpsilon,
		RebalanceInterval: c.RebalanceInterval,
	}
}

// Sanitized validates the Config and applies the recoverable
// configuration downgrades, returning the adjusted copy. An invalid
// sampling mode is a fatal configuration error. A proportional
// sampling mode is downgraded to rank with a single recorded warning:
// proportional (sum-tree) prioritization is not implemented, and
// silently treating it as uniform would be worse than refusing.
func (c Config) Sanitized(log *zap.Logger) (Config, error) {
	mode, err := replay.ParseMode(c.SampleMode)
	if err != nil {
		return c, err
	}
	if mode == replay.Proportional {
		log.Warn("proportional prioritization is not implemented; "+
			"downgrading to rank-based sampling",
			zap.String("requested", string(replay.Proportional)),
			zap.String("using", string(replay.Rank)),
		)
		c.SampleMode = string(replay.Rank)
	}

	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

// validate checks every remaining configuration invariant
func (c Config) validate() error {
	if c.MemSize < 1 {
		return fmt.Errorf("validate: replay capacity must be positive "+
			"\n\thave(%v)", c.MemSize)
	}
	if c.BatchSize < 1 || c.BatchSize > c.MemSize {
		return fmt.Errorf("validate: batch size must be in [1, memSize] "+
			"\n\thave(%v)", c.BatchSize)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("validate: priority exponent must be >= 0 "+
			"\n\thave(%v)", c.Alpha)
	}
	if c.BetaZero < 0 || c.BetaZero > 1 {
		return fmt.Errorf("validate: betaZero must be in [0, 1] "+
			"\n\thave(%v)", c.BetaZero)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", c.Gamma)
	}
	if c.RewardClip < 0 {
		return fmt.Errorf("validate: reward clip must be >= 0 "+
			"\n\thave(%v)", c.RewardClip)
	}
	if c.TDClip < 0 {
		return fmt.Errorf("validate: TD-error clip must be >= 0 "+
			"\n\thave(%v)", c.TDClip)
	}
	if c.Steps < 1 {
		return fmt.Errorf("validate: training steps must be positive "+
			"\n\thave(%v)", c.Steps)
	}
	if c.LearnStart < c.BatchSize {
		return fmt.Errorf("validate: learning cannot start before a full "+
			"batch of experience exists \n\twant(>=%v) \n\thave(%v)",
			c.BatchSize, c.LearnStart)
	}
	if c.Tau < 1 {
		return fmt.Errorf("validate: target networks must be synchronized "+
			"at positive timestep intervals \n\thave(%v)", c.Tau)
	}
	if c.EpsilonSteps < 1 || c.EpsilonSteps > c.Steps {
		return fmt.Errorf("validate: epsilon decay length must be in "+
			"[1, steps] \n\thave(%v)", c.EpsilonSteps)
	}
	if c.EvalEpsilon < 0 || c.EvalEpsilon > 1 {
		return fmt.Errorf("validate: evaluation epsilon must be in [0, 1] "+
			"\n\thave(%v)", c.EvalEpsilon)
	}
	if c.EvalInterval < 0 {
		return fmt.Errorf("validate: evaluation interval must be >= 0 "+
			"\n\thave(%v)", c.EvalInterval)
	}
	if c.EvalInterval > 0 && c.EvalEpisodes < 1 {
		return fmt.Errorf("validate: evaluation requires at least one "+
			"episode per evaluation \n\thave(%v)", c.EvalEpisodes)
	}
	if len(c.HiddenSizes) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases \n\twant(%v)"+
			"\n\thave(%v)", len(c.HiddenSizes), len(c.Biases))
	}
	if len(c.HiddenSizes) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations "+
			"\n\twant(%v)\n\thave(%v)", len(c.HiddenSizes),
			len(c.Activations))
	}
	if c.NumericBackend != CPU && c.NumericBackend != CUDA {
		return fmt.Errorf("validate: unknown numeric backend %q",
			c.NumericBackend)
	}
	return nil
}
