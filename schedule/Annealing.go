// Package schedule implements precomputed annealing schedules for
// exploration and importance-sampling correction.
package schedule

import "fmt"

// Annealing is a precomputed, read-only schedule of per-step values.
// Values interpolate linearly from a start to an end value over the
// first annealSteps entries and stay constant at the end value
// thereafter. Lookups are constant time.
type Annealing struct {
	values []float64
	end    float64
}

// NewAnnealing returns a schedule of length steps interpolating from
// start to end over the first annealSteps entries.
func NewAnnealing(start, end float64, annealSteps, steps int) (*Annealing,
	error) {
	if annealSteps < 1 {
		return nil, fmt.Errorf("newannealing: annealing length must be "+
			"positive \n\thave(%v)", annealSteps)
	}
	if steps < 1 {
		return nil, fmt.Errorf("newannealing: schedule length must be "+
			"positive \n\thave(%v)", steps)
	}

	values := make([]float64, steps)
	for i := range values {
		if i >= annealSteps {
			values[i] = end
			continue
		}
		fraction := float64(i) / float64(annealSteps)
		values[i] = start + (end-start)*fraction
	}

	return &Annealing{values: values, end: end}, nil
}

// NewEpsilon returns the exploration schedule: linear from
// epsilonStart to epsilonEnd over epsilonSteps, constant epsilonEnd
// for the remaining steps.
func NewEpsilon(epsilonStart, epsilonEnd float64, epsilonSteps,
	steps int) (*Annealing, error) {
	return NewAnnealing(epsilonStart, epsilonEnd, epsilonSteps, steps)
}

// NewBeta returns the importance-sampling exponent schedule: linear
// from betaZero to 1.0 over the full training horizon.
func NewBeta(betaZero float64, steps int) (*Annealing, error) {
	return NewAnnealing(betaZero, 1.0, steps, steps)
}

// At returns the schedule value at the argument step. Steps beyond the
// schedule length return the final (constant) value.
func (a *Annealing) At(step int) float64 {
	if step < 0 {
		return a.values[0]
	}
	if step >= len(a.values) {
		return a.end
	}
	return a.values[step]
}

// Len returns the length of the schedule
func (a *Annealing) Len() int {
	return len(a.values)
}
