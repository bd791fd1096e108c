// Package trainer implements the training loop driving a DeepQ agent
// against an environment: experience collection, the learning
// schedule, periodic evaluation, checkpointing, and interrupt
// handling.
package trainer

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/godrl/dqn/config"
	"github.com/godrl/dqn/deepq"
	"github.com/godrl/dqn/environment"
	"github.com/godrl/dqn/utils/progressbar"
)

// recentReturnWindow is the number of completed episodes over which
// the running mean training return is reported.
const recentReturnWindow = 100

// Trainer runs a DeepQ agent on an environment for a fixed number of
// steps. One training step is strictly sequential: select action, step
// the environment, store the transition, learn, synchronize. An
// operator interrupt is observed only at step boundaries: the
// in-flight step always completes, then parameters and the step
// counter are saved together before the loop exits.
type Trainer struct {
	env   environment.Environment
	agent *deepq.DeepQ
	conf  config.Config
	log   *zap.Logger

	ckpt  *Checkpointer
	runID uuid.UUID

	interrupt chan os.Signal
	returns   *deque.Deque[float64]

	step      int
	startStep int // Step the current process started at, 0 unless resumed
	bestEval  float64
	hasEval   bool
}

// New creates and returns a new Trainer. If a checkpoint exists it is
// loaded and training resumes from the saved step: a checkpoint at the
// explicitly configured NetworkPath is required to load (corruption is
// fatal), while one merely discovered at the default CheckpointPath is
// optional and skipped with a note on error.
func New(env environment.Environment, agent *deepq.DeepQ,
	conf config.Config, log *zap.Logger) (*Trainer, error) {
	path := conf.CheckpointPath
	explicit := conf.NetworkPath != ""
	if explicit {
		path = conf.NetworkPath
		// Opening the database would create an empty file at the
		// requested path; a missing explicit checkpoint must fail
		// without leaving one behind.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("new: no checkpoint at requested path "+
				"%v: %v", path, err)
		}
	}

	ckpt, err := NewCheckpointer(path)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	t := &Trainer{
		env:       env,
		agent:     agent,
		conf:      conf,
		log:       log,
		ckpt:      ckpt,
		runID:     uuid.New(),
		interrupt: make(chan os.Signal, 1),
		returns:   deque.New[float64](),
	}

	if err := t.resume(explicit); err != nil {
		ckpt.Close()
		return nil, err
	}

	if conf.NumericBackend == config.CUDA {
		// Accelerated runs require a CUDA-enabled build of the
		// gorgonia tape machine. Fall back rather than refuse: for
		// small architectures the default backend is adequate.
		log.Warn("accelerated backend unavailable in this build; " +
			"proceeding on the default numeric backend")
	}

	signal.Notify(t.interrupt, os.Interrupt, syscall.SIGTERM)

	return t, nil
}

// resume loads a previous checkpoint if one exists
func (t *Trainer) resume(explicit bool) error {
	params, step, ok, err := t.ckpt.Load()
	if err != nil {
		if explicit {
			return fmt.Errorf("resume: requested checkpoint unusable: %v",
				err)
		}
		t.log.Warn("discovered checkpoint unusable; starting fresh",
			zap.Error(err))
		return nil
	}
	if !ok {
		if explicit {
			return fmt.Errorf("resume: no checkpoint at requested path %v",
				t.conf.NetworkPath)
		}
		return nil
	}

	if err := t.agent.SetParameters(params); err != nil {
		return fmt.Errorf("resume: %v", err)
	}
	t.step = step
	t.startStep = step
	t.log.Info("resumed from checkpoint", zap.Int("step", step))
	return nil
}

// learning reports whether enough experience has accumulated since
// this process started for learning updates to run. The replay buffer
// is not persisted, so after a resume the warmup repeats: the gate
// counts steps taken by this process, not the absolute step counter.
func (t *Trainer) learning() bool {
	return t.step-t.startStep >= t.conf.LearnStart
}

// Run runs the training loop until the configured number of steps have
// been taken or an interrupt is observed. It returns the number of
// steps completed.
func (t *Trainer) Run() (int, error) {
	t.log.Info("training",
		zap.String("runID", t.runID.String()),
		zap.Int("steps", t.conf.Steps),
		zap.Int("startStep", t.step),
		zap.String("sampleMode", t.conf.SampleMode),
	)

	bar := progressbar.New(50, t.conf.Steps)
	bar.Set(t.step)
	defer bar.Close()

	step := t.env.Reset()
	t.agent.ObserveFirst(step)
	episodeReturn := 0.0

	for t.step < t.conf.Steps {
		// Interrupts are only acted on between steps, never
		// mid-update
		select {
		case sig := <-t.interrupt:
			t.log.Info("interrupt received; saving before exit",
				zap.String("signal", sig.String()))
			if err := t.checkpoint(); err != nil {
				return t.step, err
			}
			return t.step, nil
		default:
		}

		action, err := t.agent.SelectAction(step)
		if err != nil {
			return t.step, fmt.Errorf("run: %v", err)
		}

		next, err := t.env.Step(action)
		if err != nil {
			return t.step, fmt.Errorf("run: %v", err)
		}

		if err := t.agent.Observe(action, next); err != nil {
			return t.step, fmt.Errorf("run: %v", err)
		}
		episodeReturn += next.Reward
		t.step++

		if t.learning() {
			if err := t.agent.Step(); err != nil {
				return t.step, fmt.Errorf("run: %v", err)
			}
		}

		if next.Last() {
			t.agent.EndEpisode()
			t.trackReturn(episodeReturn)
			episodeReturn = 0.0

			step = t.env.Reset()
			t.agent.ObserveFirst(step)
		} else {
			step = next
		}

		bar.Increment()
		if t.step%1000 == 0 {
			bar.Display()
		}

		if t.conf.EvalInterval > 0 && t.step%t.conf.EvalInterval == 0 &&
			t.learning() {
			if err := t.evaluate(); err != nil {
				return t.step, err
			}

			// Evaluation ended whatever episode was in flight
			step = t.env.Reset()
			t.agent.ObserveFirst(step)
			episodeReturn = 0.0
		}
	}

	if err := t.checkpoint(); err != nil {
		return t.step, err
	}
	t.log.Info("training complete", zap.Int("steps", t.step))
	return t.step, nil
}

// evaluate runs the configured number of greedy evaluation episodes
// and checkpoints on a new best mean return.
func (t *Trainer) evaluate() error {
	t.agent.Eval()
	defer t.agent.Train()

	total := 0.0
	for i := 0; i < t.conf.EvalEpisodes; i++ {
		episodeReturn, err := t.evalEpisode()
		if err != nil {
			return fmt.Errorf("evaluate: %v", err)
		}
		total += episodeReturn
	}
	mean := total / float64(t.conf.EvalEpisodes)

	t.log.Info("evaluation",
		zap.Int("step", t.step),
		zap.Float64("meanReturn", mean),
		zap.Float64("loss", t.agent.Loss()),
		zap.Float64("recentTrainReturn", t.meanRecentReturn()),
	)

	if !t.hasEval || mean > t.bestEval {
		t.bestEval = mean
		t.hasEval = true
		if err := t.checkpoint(); err != nil {
			return err
		}
		t.log.Info("new best evaluation score; checkpointed",
			zap.Float64("meanReturn", mean))
	}
	return nil
}

// evalEpisode runs a single evaluation episode without storing
// experience or learning
func (t *Trainer) evalEpisode() (float64, error) {
	step := t.env.Reset()
	episodeReturn := 0.0

	for !step.Last() {
		action, err := t.agent.SelectAction(step)
		if err != nil {
			return 0, err
		}
		step, err = t.env.Step(action)
		if err != nil {
			return 0, err
		}
		episodeReturn += step.Reward
	}
	return episodeReturn, nil
}

// checkpoint saves the policy parameters and step counter together
func (t *Trainer) checkpoint() error {
	err := t.ckpt.Save(t.agent.Parameters(), t.step, t.runID.String())
	if err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	return nil
}

// trackReturn records a completed training episode's return in the
// bounded recent-return window
func (t *Trainer) trackReturn(episodeReturn float64) {
	t.returns.PushBack(episodeReturn)
	for t.returns.Len() > recentReturnWindow {
		t.returns.PopFront()
	}
}

// meanRecentReturn reports the mean return over the recent-return
// window, or 0 before any episode has completed.
func (t *Trainer) meanRecentReturn() float64 {
	if t.returns.Len() == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < t.returns.Len(); i++ {
		total += t.returns.At(i)
	}
	return total / float64(t.returns.Len())
}

// Close releases the trainer's resources
func (t *Trainer) Close() error {
	signal.Stop(t.interrupt)
	return t.ckpt.Close()
}
