// Package nn implements the neural network building blocks used by the
// detector.
//
// This package provides:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable tensors with a gradient slot
//   - Linear, Conv2D: layers with learned weights
//   - MaxPool2D, GlobalAvgPool2D: spatial pooling
//   - ReLU, Sigmoid: activations
//   - Sequential: container for stacking layers
//   - CrossEntropyLoss, SmoothL1Loss: training objectives
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import "github.com/born-ml/boxnet/internal/tensor"

// Module is the base interface for all neural network components.
//
// Modules can be composed to build larger networks:
//
//	features := nn.NewSequential[B](
//	    nn.NewConv2D("conv1", 1, 16, 3, 1, 1, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewMaxPool2D[B](2, 2),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}

// CountParameters returns the total number of scalar values in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}
