// Package deepq implements the DQN learning algorithm: Double
// Q-learning over a prioritized experience replay buffer, with a
// periodically synchronized target network.
package deepq

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/godrl/dqn/config"
	"github.com/godrl/dqn/environment"
	"github.com/godrl/dqn/network"
	"github.com/godrl/dqn/policy"
	"github.com/godrl/dqn/replay"
	"github.com/godrl/dqn/schedule"
	ts "github.com/godrl/dqn/timestep"
	"github.com/godrl/dqn/utils/floatutils"
)

// DeepQ implements the deep Q-learning algorithm with prioritized
// experience replay and Double Q-learning targets.
//
// Four networks share one set of logical parameters. trainNet learns
// the weights; its graph carries the error-signal input used to inject
// the per-action gradient target. selectionNet is a batch-sized
// forward-only copy used for next-state action selection and current
// value estimates. behaviourNet is a single-input copy used for
// epsilon-greedy action selection in the environment. targetNet
// provides bootstrap estimates and is only ever written to by the
// Synchronizer.
//
// All mutation happens sequentially within a single training step:
// store, sample, learn, priority update, parameter update, sync. There
// is no concurrency between steps.
type DeepQ struct {
	conf config.Config

	numActions  int
	numFeatures int
	batchSize   int

	behaviourNet network.NeuralNet
	behaviourVM  G.VM
	selectionNet network.NeuralNet
	selectionVM  G.VM
	targetNet    network.NeuralNet
	targetVM     G.VM

	trainNet  network.NeuralNet
	trainVM   G.VM
	solver    G.Solver
	errSignal *G.Node

	buffer   *replay.Replay
	selector *policy.EGreedy
	epsilon  *schedule.Annealing
	beta     *schedule.Annealing
	sync     *Synchronizer

	// Valid only during an in-progress training step
	lastStep ts.TimeStep

	step       int // Environment steps observed
	learnSteps int // Completed learning updates
	eval       bool
	lastLoss   float64
}

// New creates and returns a new DeepQ agent. The conf parameter must
// already be sanitized by the configuration layer.
func New(env environment.Environment, conf config.Config,
	seed uint64) (*DeepQ, error) {
	actionSpec := env.ActionSpec()
	if actionSpec.Cardinality != environment.Discrete {
		return nil, fmt.Errorf("new: cannot use non-discrete actions")
	}
	if actionSpec.Shape.Len() > 1 {
		return nil, fmt.Errorf("new: actions must be 1-dimensional")
	}
	if actionSpec.LowerBound.AtVec(0) != 0.0 {
		return nil, fmt.Errorf("new: actions must be enumerated starting " +
			"from 0")
	}

	numActions := actionSpec.NumActions()
	numFeatures := env.ObservationSpec().Shape.Len()
	batchSize := conf.BatchSize

	init, err := newInitWFn(conf)
	if err != nil {
		return nil, err
	}
	activations, err := parseActivations(conf.Activations)
	if err != nil {
		return nil, err
	}

	// Behaviour network for selecting single actions in the
	// environment
	g := G.NewGraph()
	behaviourNet, err := network.NewQNet(numFeatures, 1, numActions, g,
		conf.HiddenSizes, conf.Biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: %v",
			err)
	}
	behaviourVM := G.NewTapeMachine(behaviourNet.Graph())

	// Forward-only batch copy for next-state action selection and
	// current value estimates
	selectionNet, err := behaviourNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create selection network: %v",
			err)
	}
	selectionVM := G.NewTapeMachine(selectionNet.Graph())

	// Target network providing the bootstrap estimates
	targetNet, err := behaviourNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}
	targetVM := G.NewTapeMachine(targetNet.Graph())

	// Training network which learns the weights. Its cost is the sum
	// of the predicted action values multiplied elementwise by the
	// externally computed error signal, so the cost gradient at each
	// taken action is exactly the injected signal entry.
	trainNet, err := behaviourNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create training network: %v",
			err)
	}
	gTrain := trainNet.Graph()

	errSignal := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("errSignal"))
	cost := G.Must(G.Sum(G.Must(G.HadamardProd(trainNet.Prediction(),
		errSignal))))
	if _, err = G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}
	trainVM := G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	sol, err := newSolver(conf)
	if err != nil {
		return nil, err
	}

	buffer, err := conf.Replay().Create(numFeatures, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create replay buffer: %v", err)
	}

	selector, err := policy.NewEGreedy(numActions, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create action selector: %v",
			err)
	}

	epsilon, err := schedule.NewEpsilon(conf.EpsilonStart, conf.EpsilonEnd,
		conf.EpsilonSteps, conf.Steps)
	if err != nil {
		return nil, fmt.Errorf("new: could not create epsilon schedule: %v",
			err)
	}

	beta, err := schedule.NewBeta(conf.BetaZero, conf.Steps)
	if err != nil {
		return nil, fmt.Errorf("new: could not create beta schedule: %v", err)
	}

	syncer, err := NewSynchronizer(conf.Tau)
	if err != nil {
		return nil, err
	}

	return &DeepQ{
		conf:         conf,
		numActions:   numActions,
		numFeatures:  numFeatures,
		batchSize:    batchSize,
		behaviourNet: behaviourNet,
		behaviourVM:  behaviourVM,
		selectionNet: selectionNet,
		selectionVM:  selectionVM,
		targetNet:    targetNet,
		targetVM:     targetVM,
		trainNet:     trainNet,
		trainVM:      trainVM,
		solver:       sol.Solver,
		errSignal:    errSignal,
		buffer:       buffer,
		selector:     selector,
		epsilon:      epsilon,
		beta:         beta,
		sync:         syncer,
	}, nil
}

// ObserveFirst observes and records the first episodic timestep
func (d *DeepQ) ObserveFirst(t ts.TimeStep) {
	d.lastStep = t
}

// Observe records that an action led to some timestep. The resulting
// transition enters the replay buffer with its reward clamped to the
// configured clip bound, so stored experience already reflects the
// clipped reward.
func (d *DeepQ) Observe(action int, nextStep ts.TimeStep) error {
	transition := ts.NewTransition(d.lastStep, action, nextStep)
	transition.Reward = floatutils.ClipMagnitude(transition.Reward,
		d.conf.RewardClip)

	if err := d.buffer.Add(transition); err != nil {
		return fmt.Errorf("observe: could not store transition: %v", err)
	}

	d.lastStep = nextStep
	d.step++
	return nil
}

// SelectAction selects an action for the argument timestep using the
// epsilon-greedy rule over the behaviour network's action values. In
// training mode epsilon follows the precomputed schedule; in
// evaluation mode a fixed small epsilon preserves a minimum
// exploration floor.
func (d *DeepQ) SelectAction(t ts.TimeStep) (int, error) {
	obs := make([]float64, d.numFeatures)
	for i := range obs {
		obs[i] = t.Observation.AtVec(i)
	}
	if err := d.behaviourNet.SetInput(obs); err != nil {
		return 0, fmt.Errorf("selectaction: %v", err)
	}
	if err := d.behaviourVM.RunAll(); err != nil {
		return 0, fmt.Errorf("selectaction: could not run forward pass: %v",
			err)
	}
	qValues := make([]float64, d.numActions)
	copy(qValues, d.behaviourNet.Output().Data().([]float64))
	d.behaviourVM.Reset()

	epsilon := d.conf.EvalEpsilon
	if !d.eval {
		epsilon = d.epsilon.At(d.step)
	}
	return d.selector.SelectAction(qValues, epsilon)
}

// Step performs a single learning update: sample a prioritized batch,
// compute Double Q-learning targets against the target network, feed
// the clipped error magnitudes back as priorities, backpropagate the
// importance-weighted error signal, and apply one optimizer update.
// The step either completes fully or, on error, leaves no partial
// parameter update behind.
//
// The caller must not invoke Step before a full batch of experience
// exists; doing so fails with an insufficient-experience error.
func (d *DeepQ) Step() error {
	indices, weights, err := d.buffer.Sample(d.beta.At(d.step))
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	batch, err := d.buffer.Retrieve(indices)
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}

	// Policy network ranks next-state actions; target network
	// evaluates them. The two forward passes are ordered so the target
	// always reflects the most recent completed synchronization.
	nextPolicyQ, err := d.forward(d.selectionNet, d.selectionVM,
		batch.NextStates)
	if err != nil {
		return fmt.Errorf("step: next-state selection pass: %v", err)
	}
	nextTargetQ, err := d.forward(d.targetNet, d.targetVM, batch.NextStates)
	if err != nil {
		return fmt.Errorf("step: next-state target pass: %v", err)
	}
	currentQ, err := d.forward(d.selectionNet, d.selectionVM, batch.States)
	if err != nil {
		return fmt.Errorf("step: current-state pass: %v", err)
	}

	ys := targets(batch, d.conf.Gamma, nextPolicyQ, nextTargetQ,
		d.conf.DoubleQ)
	deltas := tdErrors(ys, currentQ, batch.Actions, d.conf.TDClip,
		d.conf.PALpha)
	d.lastLoss = loss(deltas)

	if err := d.buffer.UpdatePriorities(indices, deltas); err != nil {
		return fmt.Errorf("step: %w", err)
	}

	signal, err := errorSignal(batch.Actions, deltas, weights, d.numActions)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}
	signalTensor := tensor.New(
		tensor.WithShape(d.batchSize, d.numActions),
		tensor.WithBacking(signal),
	)
	if err := G.Let(d.errSignal, signalTensor); err != nil {
		return fmt.Errorf("step: could not set error signal: %v", err)
	}

	if err := d.trainNet.SetInput(batch.States); err != nil {
		return fmt.Errorf("step: could not set training input: %v", err)
	}
	if err := d.trainVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run training pass: %v", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return fmt.Errorf("step: could not apply update: %v", err)
	}
	d.trainVM.Reset()
	d.learnSteps++

	// Propagate the freshly learned weights to the forward-only copies
	if err := d.selectionNet.Set(d.trainNet); err != nil {
		return fmt.Errorf("step: could not update selection network: %v", err)
	}
	if err := d.behaviourNet.Set(d.trainNet); err != nil {
		return fmt.Errorf("step: could not update behaviour network: %v", err)
	}

	if _, err := d.sync.MaybeSync(d.learnSteps, d.targetNet,
		d.trainNet); err != nil {
		return fmt.Errorf("step: %v", err)
	}

	return nil
}

// forward runs one forward pass of net over a flat row-major batch of
// states and returns one slice of action values per batch row.
func (d *DeepQ) forward(net network.NeuralNet, vm G.VM,
	states []float64) ([][]float64, error) {
	if err := net.SetInput(states); err != nil {
		return nil, err
	}
	if err := vm.RunAll(); err != nil {
		return nil, err
	}
	data := make([]float64, d.batchSize*d.numActions)
	copy(data, net.Output().Data().([]float64))
	vm.Reset()

	return rows(data, d.batchSize, d.numActions)
}

// Eval sets the agent into evaluation mode
func (d *DeepQ) Eval() {
	d.eval = true
}

// Train sets the agent into training mode
func (d *DeepQ) Train() {
	d.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool {
	return d.eval
}

// EndEpisode performs cleanup at the end of an episode
func (d *DeepQ) EndEpisode() {}

// BufferSize returns the number of transitions currently stored in the
// replay buffer
func (d *DeepQ) BufferSize() int {
	return d.buffer.Size()
}

// LearnSteps returns the number of completed learning updates
func (d *DeepQ) LearnSteps() int {
	return d.learnSteps
}

// Loss returns the diagnostic loss of the most recent learning update:
// the mean of squared clipped TD errors.
func (d *DeepQ) Loss() float64 {
	return d.lastLoss
}

// Parameters returns a flat copy of the policy network's parameter
// vector
func (d *DeepQ) Parameters() []float64 {
	return d.trainNet.Parameters()
}

// SetParameters overwrites the parameters of every network copy from a
// flat vector produced by Parameters(). The target network is set to
// the same parameters, as if freshly synchronized.
func (d *DeepQ) SetParameters(params []float64) error {
	for _, net := range []network.NeuralNet{d.trainNet, d.selectionNet,
		d.behaviourNet, d.targetNet} {
		if err := net.SetParameters(params); err != nil {
			return fmt.Errorf("setparameters: %v", err)
		}
	}
	return nil
}

// TargetParameters returns a flat copy of the target network's
// parameter vector
func (d *DeepQ) TargetParameters() []float64 {
	return d.targetNet.Parameters()
}
