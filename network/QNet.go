package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// qNet implements a multi-layered perceptron mapping a batch of state
// feature vectors to one action value per discrete action. A final
// linear layer sized to the number of actions is always appended, so
// an empty hiddenSizes yields a linear function approximator.
type qNet struct {
	g         *G.ExprGraph
	layers    []*fcLayer
	input     *G.Node
	numInputs int
	numOutput int
	batchSize int

	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewQNet creates and returns a new action-value MLP with numOutput
// output heads, one per discrete action. The graph parameter g is
// populated with the network.
//
// The network has len(hiddenSizes) + 1 layers. For index i,
// hiddenSizes[i] is the number of units in hidden layer i, biases[i]
// is whether that layer has a bias unit, and activations[i] is its
// activation function. The final layer always has a bias and no
// activation. The init parameter determines the weight initialization
// scheme.
func NewQNet(features, batch, numOutput int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		return nil, fmt.Errorf("newqnet: invalid number of activations"+
			"\n\twant(%d)\n\thave(%d)", len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		return nil, fmt.Errorf("newqnet: invalid number of biases"+
			"\n\twant(%d)\n\thave(%d)", len(hiddenSizes), len(biases))
	}
	if features < 1 || batch < 1 || numOutput < 1 {
		return nil, fmt.Errorf("newqnet: features, batch, and outputs must "+
			"be positive \n\thave(%v, %v, %v)", features, batch, numOutput)
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	// Final linear layer producing one value per action
	sizes := append(append([]int{}, hiddenSizes...), numOutput)
	layerBiases := append(append([]bool{}, biases...), true)
	layerActivations := append(append([]*Activation{}, activations...),
		Identity())

	layers := addfcLayers(g, sizes, layerBiases, layerActivations, init,
		features, "")

	net := &qNet{
		g:           g,
		layers:      layers,
		input:       input,
		numInputs:   features,
		numOutput:   numOutput,
		batchSize:   batch,
		hiddenSizes: sizes,
		biases:      layerBiases,
		activations: layerActivations,
	}
	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newqnet: could not compute forward pass: %v",
			err)
	}

	return net, nil
}

// Graph returns the computational graph of the network
func (q *qNet) Graph() *G.ExprGraph {
	return q.g
}

// CloneWithBatch clones the network, and its current weights, into a
// fresh graph with a new input batch size.
func (q *qNet) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()
	input := G.NewMatrix(graph, tensor.Float64,
		G.WithShape(batchSize, q.numInputs), G.WithName("input"),
		G.WithInit(G.Zeroes()))

	layers := make([]*fcLayer, len(q.layers))
	for i := range q.layers {
		layers[i] = q.layers[i].cloneTo(graph)
	}

	net := &qNet{
		g:           graph,
		layers:      layers,
		input:       input,
		numInputs:   q.numInputs,
		numOutput:   q.numOutput,
		batchSize:   batchSize,
		hiddenSizes: q.hiddenSizes,
		biases:      q.biases,
		activations: q.activations,
	}
	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (q *qNet) BatchSize() int {
	return q.batchSize
}

// Features returns the number of features in a single state
// observation vector that the network takes as input.
func (q *qNet) Features() int {
	return q.numInputs
}

// Outputs returns the number of action values the network predicts per
// state
func (q *qNet) Outputs() int {
	return q.numOutput
}

// SetInput sets the value of the input node before running the forward
// pass.
func (q *qNet) SetInput(input []float64) error {
	if len(input) != q.numInputs*q.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", q.numInputs*q.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(q.input.Shape()...),
	)
	return G.Let(q.input, inputTensor)
}

// Set sets the weights of the network to be equal to the weights of
// another network
func (q *qNet) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: incompatible networks \n\twant(%v "+
			"learnables) \n\thave(%v)", len(nodes), len(sourceNodes))
	}
	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes in the network
func (q *qNet) Learnables() G.Nodes {
	// Lazy instantiation
	if q.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(q.layers))
		for i := range q.layers {
			learnables = append(learnables, q.layers[i].weights)
			if bias := q.layers[i].bias; bias != nil {
				learnables = append(learnables, bias)
			}
		}
		q.learnables = G.Nodes(learnables)
	}
	return q.learnables
}

// Model returns the learnable nodes with their gradients
func (q *qNet) Model() []G.ValueGrad {
	// Lazy instantiation
	if q.model == nil {
		model := make([]G.ValueGrad, 0, 2*len(q.layers))
		for _, node := range q.Learnables() {
			model = append(model, node)
		}
		q.model = model
	}
	return q.model
}

// Prediction returns the node of the computational graph that stores
// the output of the network
func (q *qNet) Prediction() *G.Node {
	return q.prediction
}

// Output returns the output of the network after the last completed
// forward pass
func (q *qNet) Output() G.Value {
	return q.predVal
}

// Parameters returns a flat copy of every weight in the network in
// Learnables() order
func (q *qNet) Parameters() []float64 {
	params := make([]float64, 0)
	for _, node := range q.Learnables() {
		data := node.Value().(*tensor.Dense).Data().([]float64)
		params = append(params, data...)
	}
	return params
}

// SetParameters overwrites every weight in the network from a flat
// vector produced by Parameters()
func (q *qNet) SetParameters(params []float64) error {
	offset := 0
	for _, node := range q.Learnables() {
		value := node.Value().(*tensor.Dense)
		size := value.Shape().TotalSize()
		if offset+size > len(params) {
			return fmt.Errorf("setparameters: parameter vector too short"+
				"\n\twant(>=%v)\n\thave(%v)", offset+size, len(params))
		}

		backing := make([]float64, size)
		copy(backing, params[offset:offset+size])
		newValue := tensor.New(
			tensor.WithBacking(backing),
			tensor.WithShape(value.Shape()...),
		)
		if err := G.Let(node, newValue); err != nil {
			return err
		}
		offset += size
	}

	if offset != len(params) {
		return fmt.Errorf("setparameters: parameter vector too long"+
			"\n\twant(%v)\n\thave(%v)", offset, len(params))
	}
	return nil
}

// fwd performs the forward pass of the network on the input node
func (q *qNet) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range q.layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	q.prediction = pred
	G.Read(q.prediction, &q.predVal)

	return pred, nil
}
