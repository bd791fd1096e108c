// Package network implements Q-value function approximators on
// gorgonia computational graphs.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is the interface between the learning system and its
// function approximator. The network maps a batch of state feature
// vectors to a batch of action-value vectors. Running the forward (and
// backward) pass is the responsibility of an external gorgonia VM over
// Graph(); the learning system's contract ends at setting inputs and
// reading outputs.
type NeuralNet interface {
	// Graph returns the computational graph holding the network
	Graph() *G.ExprGraph

	// CloneWithBatch clones the network, and its current weights, into
	// a fresh graph with a new input batch size
	CloneWithBatch(int) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int

	// SetInput sets the value of the input node before the forward
	// pass is run. The input holds BatchSize() rows of Features()
	// state features in row-major order.
	SetInput([]float64) error

	// Set overwrites the network's weights with those of source. This
	// is a hard update: afterwards the weights are bit-identical.
	// Target networks are only ever updated this way; there is no
	// moving-average variant.
	Set(source NeuralNet) error

	// Learnables returns the weight nodes of the network
	Learnables() G.Nodes

	// Model returns the weight nodes with their gradients, as consumed
	// by a gorgonia Solver
	Model() []G.ValueGrad

	// Prediction returns the graph node holding the network output
	Prediction() *G.Node

	// Output returns the value of the Prediction node after the last
	// completed forward pass
	Output() G.Value

	// Parameters returns a flat copy of every weight in the network,
	// in Learnables() order
	Parameters() []float64

	// SetParameters overwrites every weight from a flat vector
	// produced by Parameters()
	SetParameters([]float64) error
}
