// Package ops defines differentiable operations for the gradient tape.
//
// Each operation records its inputs and output during the forward pass and
// computes input gradients during the backward pass:
//   - AddOp, SubOp, MulOp, MulScalarOp: element-wise arithmetic with broadcasting
//   - MatMulOp, TransposeOp, ReshapeOp: linear algebra and shape plumbing
//   - Conv2DOp, MaxPool2DOp, GlobalAvgPool2DOp: convolutional feature extraction
//   - ReLUOp, SigmoidOp: activations
//   - SumOp: full reduction
//   - CrossEntropyOp, SmoothL1Op: fused losses producing a [1] scalar
package ops

import "github.com/born-ml/boxnet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs(); a nil entry means no
	// gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
