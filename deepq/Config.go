package deepq

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/godrl/dqn/config"
	"github.com/godrl/dqn/initwfn"
	"github.com/godrl/dqn/network"
	"github.com/godrl/dqn/solver"
)

// newInitWFn constructs the weight initializer named by the
// configuration
func newInitWFn(conf config.Config) (G.InitWFn, error) {
	w, err := initwfn.New(initwfn.Type(conf.InitWFn), conf.InitGain)
	if err != nil {
		return nil, fmt.Errorf("new: could not create weight initializer: %v",
			err)
	}
	return w.InitWFn(), nil
}

// parseActivations converts the configured activation names into
// network activations
func parseActivations(names []string) ([]*network.Activation, error) {
	activations := make([]*network.Activation, len(names))
	for i, name := range names {
		act, err := network.ParseActivation(name)
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
		activations[i] = act
	}
	return activations, nil
}

// newSolver constructs the gradient-based optimizer named by the
// configuration. The optimizer is selected by name and used through
// the single-call Step abstraction; its internals stay behind the
// solver package boundary.
func newSolver(conf config.Config) (*solver.Solver, error) {
	switch solver.Type(conf.Solver) {
	case solver.Adam:
		return solver.NewAdam(conf.StepSize, conf.SolverEpsilon, conf.Beta1,
			conf.Beta2, conf.BatchSize, conf.GradClip)
	case solver.RMSProp:
		return solver.NewRMSProp(conf.StepSize, conf.SolverEpsilon, conf.Rho,
			conf.BatchSize, conf.GradClip)
	case solver.Vanilla:
		return solver.NewVanilla(conf.StepSize, conf.BatchSize, conf.GradClip)
	default:
		return nil, fmt.Errorf("new: unknown solver %q", conf.Solver)
	}
}
