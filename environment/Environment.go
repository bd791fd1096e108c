// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/godrl/dqn/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Environment implements a simulated environment with a discrete
// action set. Actions are enumerated 0, 1, ..., NumActions()-1.
//
// The environment is an external collaborator of the learning system:
// the trainer only ever calls Reset, Step, and the two Spec methods.
type Environment interface {
	Reset() timestep.TimeStep // Resets between episodes
	Step(action int) (timestep.TimeStep, error)
	ObservationSpec() Spec
	ActionSpec() Spec
}
