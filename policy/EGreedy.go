// Package policy implements action selection for value-based agents
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/godrl/dqn/utils/floatutils"
)

// EGreedy implements an ε-greedy action selection rule over externally
// computed action values. With probability ε a uniformly random action
// is selected; otherwise the highest-valued action is selected, with
// ties broken by the first occurrence.
//
// The struct holds no epsilon of its own: the exploration schedule
// owns the per-step ε and passes it in on every call. In evaluation
// mode callers pass a fixed small ε instead of the schedule value,
// preserving a minimum exploration floor at test time.
type EGreedy struct {
	numActions int
	rng        *rand.Rand
}

// NewEGreedy returns a new EGreedy selection rule over numActions
// discrete actions.
func NewEGreedy(numActions int, seed uint64) (*EGreedy, error) {
	if numActions < 1 {
		return nil, fmt.Errorf("newegreedy: need at least one action "+
			"\n\thave(%v)", numActions)
	}

	return &EGreedy{
		numActions: numActions,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// NumActions returns the number of actions the rule selects between
func (e *EGreedy) NumActions() int {
	return e.numActions
}

// SelectAction selects an action given the current action value
// estimates and the exploration rate epsilon.
func (e *EGreedy) SelectAction(qValues []float64, epsilon float64) (int,
	error) {
	if len(qValues) != e.numActions {
		return 0, fmt.Errorf("selectaction: invalid number of action values"+
			"\n\twant(%v)\n\thave(%v)", e.numActions, len(qValues))
	}

	if e.rng.Float64() < epsilon {
		return e.rng.Intn(e.numActions), nil
	}
	return floatutils.ArgMax(qValues), nil
}
