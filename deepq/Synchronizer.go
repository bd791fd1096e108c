package deepq

import (
	"fmt"

	"github.com/godrl/dqn/network"
)

// Synchronizer periodically overwrites the target network's parameters
// with the policy network's parameters. The copy is a hard update: a
// full overwrite, not an exponential moving average, and afterwards
// the two parameter vectors are bit-identical.
//
// The target network is mutated only here, never by the learner
// directly.
type Synchronizer struct {
	interval int
}

// NewSynchronizer returns a new Synchronizer that syncs every interval
// learning steps.
func NewSynchronizer(interval int) (*Synchronizer, error) {
	if interval < 1 {
		return nil, fmt.Errorf("newsynchronizer: target networks must be "+
			"synchronized at positive timestep intervals \n\thave(%v)",
			interval)
	}
	return &Synchronizer{interval: interval}, nil
}

// MaybeSync copies the policy network's parameters into the target
// network if learnSteps completed learning steps is a (non-zero)
// multiple of the sync interval. It returns whether a sync occurred.
// Learning steps only begin once the learn-start threshold is reached,
// so the schedule is implicitly offset by it.
func (s *Synchronizer) MaybeSync(learnSteps int, target,
	policy network.NeuralNet) (bool, error) {
	if learnSteps == 0 || learnSteps%s.interval != 0 {
		return false, nil
	}
	if err := target.Set(policy); err != nil {
		return false, fmt.Errorf("maybesync: could not copy parameters: %v",
			err)
	}
	return true, nil
}
