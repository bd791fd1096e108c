package deepq

import (
	"fmt"

	"github.com/godrl/dqn/replay"
	"github.com/godrl/dqn/utils/floatutils"
)

// The functions in this file compute the learning update on the host
// side: TD targets, per-sample errors, and the error signal
// backpropagated through the training network. They are pure functions
// of the sampled batch and the forward-pass outputs, so the whole
// update protocol is testable without running a gorgonia VM.

// targets computes the TD target for every transition in the batch:
//
//	Y = reward + gamma * bootstrap
//
// For terminal transitions Y is exactly the reward; no value is
// bootstrapped past the end of an episode.
//
// Under Double Q-learning the bootstrap value is the target network's
// estimate at the action the policy network ranks highest in the next
// state, decoupling action selection from action evaluation. Without
// it, the bootstrap is the target network's own maximum.
func targets(batch *replay.Batch, gamma float64, nextPolicyQ,
	nextTargetQ [][]float64, doubleQ bool) []float64 {
	ys := make([]float64, batch.Len())
	for i := range ys {
		if batch.Terminals[i] {
			ys[i] = batch.Rewards[i]
			continue
		}

		var bootstrap float64
		if doubleQ {
			aMaxPrime := floatutils.ArgMax(nextPolicyQ[i])
			bootstrap = nextTargetQ[i][aMaxPrime]
		} else {
			bootstrap = floatutils.Max(nextTargetQ[i]...)
		}
		ys[i] = batch.Rewards[i] + gamma*bootstrap
	}
	return ys
}

// tdErrors computes the clipped TD error of every sample:
//
//	δ = Y - Q(s, a), clipped to [-tdClip, tdClip] when tdClip > 0
//
// Clipping approximates the robustness of a Huber loss against outlier
// rewards and targets. A tdClip of 0 disables clipping.
//
// A non-zero palAlpha adds the Persistent Advantage Learning
// correction: the action gap V(s) - Q(s, a) under the current value
// estimates, scaled by palAlpha, is subtracted from the error before
// clipping. At palAlpha = 0 the term vanishes.
func tdErrors(ys []float64, currentQ [][]float64, actions []int,
	tdClip, palAlpha float64) []float64 {
	deltas := make([]float64, len(ys))
	for i := range deltas {
		qTaken := currentQ[i][actions[i]]
		delta := ys[i] - qTaken

		if palAlpha > 0 {
			gap := floatutils.Max(currentQ[i]...) - qTaken
			delta -= palAlpha * gap
		}

		deltas[i] = floatutils.ClipMagnitude(delta, tdClip)
	}
	return deltas
}

// errorSignal constructs the gradient target fed back through the
// training network: a batch-by-numActions matrix, zero everywhere
// except at each sample's taken action. The importance-sampling weight
// multiplies the backpropagated error directly, scaling gradient
// magnitude per sample rather than reweighting a mean loss.
//
// The training graph's cost is the sum of the predictions multiplied
// elementwise by this signal, so the cost gradient at the taken action
// is exactly the entry stored here. The entry is -weight*δ: descending
// that gradient moves Q(s, a) toward the target by weight*δ.
func errorSignal(actions []int, deltas, weights []float64,
	numActions int) ([]float64, error) {
	if len(actions) != len(deltas) || len(actions) != len(weights) {
		return nil, fmt.Errorf("errorsignal: mismatched batch lengths "+
			"\n\thave(%v actions, %v errors, %v weights)", len(actions),
			len(deltas), len(weights))
	}

	signal := make([]float64, len(actions)*numActions)
	for i := range actions {
		signal[i*numActions+actions[i]] = -weights[i] * deltas[i]
	}
	return signal, nil
}

// loss reports the mean of squared clipped TD errors. The value is
// diagnostic only: the gradient comes from errorSignal, not from this
// scalar.
func loss(deltas []float64) float64 {
	sum := 0.0
	for _, delta := range deltas {
		sum += delta * delta
	}
	return sum / float64(len(deltas))
}

// rows reshapes a flat row-major forward-pass output into one slice of
// cols action values per batch row.
func rows(data []float64, batch, cols int) ([][]float64, error) {
	if len(data) != batch*cols {
		return nil, fmt.Errorf("rows: invalid output size \n\twant(%v)"+
			"\n\thave(%v)", batch*cols, len(data))
	}
	out := make([][]float64, batch)
	for i := range out {
		out[i] = data[i*cols : (i+1)*cols]
	}
	return out, nil
}
