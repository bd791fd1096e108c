// Package randomwalk implements a linear chain environment with
// discrete actions. The agent starts in the middle of a chain of
// states and can move left or right. Walking off the right end of the
// chain gives a reward of +1 and ends the episode. Walking off the
// left end gives a reward of 0 and ends the episode. All other
// rewards are 0.
//
// The environment is intentionally small. It exists to exercise the
// full training stack end-to-end; real training environments are
// external collaborators implementing environment.Environment.
package randomwalk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/godrl/dqn/environment"
	"github.com/godrl/dqn/timestep"
)

// Actions available in the random walk
const (
	Left int = iota
	Right
)

// RandomWalk implements the linear chain environment
type RandomWalk struct {
	numStates int
	position  int
	stepLimit int
	steps     int
}

// New returns a new RandomWalk with numStates chain states and a
// per-episode step limit of stepLimit.
func New(numStates, stepLimit int) (*RandomWalk, error) {
	if numStates < 3 {
		return nil, fmt.Errorf("new: need at least 3 states \n\thave(%v)",
			numStates)
	}
	if stepLimit < 1 {
		return nil, fmt.Errorf("new: step limit must be positive "+
			"\n\thave(%v)", stepLimit)
	}

	return &RandomWalk{
		numStates: numStates,
		position:  numStates / 2,
		stepLimit: stepLimit,
	}, nil
}

// Reset resets the environment to the middle of the chain and returns
// the first timestep of the new episode.
func (r *RandomWalk) Reset() timestep.TimeStep {
	r.position = r.numStates / 2
	r.steps = 0
	return timestep.New(timestep.First, 0, r.observation(), 0)
}

// Step takes an action in the environment and returns the next
// timestep.
func (r *RandomWalk) Step(action int) (timestep.TimeStep, error) {
	switch action {
	case Left:
		r.position--
	case Right:
		r.position++
	default:
		return timestep.TimeStep{}, fmt.Errorf("step: illegal action %v",
			action)
	}
	r.steps++

	stepType := timestep.Mid
	reward := 0.0
	if r.position >= r.numStates {
		stepType = timestep.Last
		reward = 1.0
		r.position = r.numStates - 1
	} else if r.position < 0 {
		stepType = timestep.Last
		r.position = 0
	} else if r.steps >= r.stepLimit {
		stepType = timestep.Last
	}

	return timestep.New(stepType, reward, r.observation(), r.steps), nil
}

// ObservationSpec returns the observation specification of the
// environment. Observations are one-hot encodings of the chain
// position.
func (r *RandomWalk) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(r.numStates, nil)
	lowerBound := mat.NewVecDense(r.numStates, nil)
	upperBound := ones(r.numStates)

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Discrete)
}

// ActionSpec returns the action specification of the environment
func (r *RandomWalk) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{float64(Left)})
	upperBound := mat.NewVecDense(1, []float64{float64(Right)})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Discrete)
}

// observation returns the one-hot encoding of the current position
func (r *RandomWalk) observation() mat.Vector {
	obs := mat.NewVecDense(r.numStates, nil)
	obs.SetVec(r.position, 1.0)
	return obs
}

func ones(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1.0
	}
	return mat.NewVecDense(n, data)
}
