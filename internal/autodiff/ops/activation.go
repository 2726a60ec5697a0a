package ops

import "github.com/born-ml/boxnet/internal/tensor"

// ReLUOp represents output = max(0, x).
//
// Backward: grad_x = outputGrad where x > 0, else 0.
type ReLUOp struct {
	input, output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Backward masks the gradient with x > 0.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	x := op.input.AsFloat32()
	g := outputGrad.AsFloat32()
	dst := grad.AsFloat32()
	for i, v := range x {
		if v > 0 {
			dst[i] = g[i]
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns relu(x).
func (op *ReLUOp) Output() *tensor.RawTensor { return op.output }

// SigmoidOp represents output = 1 / (1 + exp(-x)).
//
// Backward uses the saved output: grad_x = outputGrad * y * (1 - y).
type SigmoidOp struct {
	input, output *tensor.RawTensor
}

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{input: input, output: output}
}

// Backward computes the sigmoid derivative from the output.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	y := op.output.AsFloat32()
	g := outputGrad.AsFloat32()
	dst := grad.AsFloat32()
	for i, v := range y {
		dst[i] = g[i] * v * (1 - v)
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *SigmoidOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns sigmoid(x).
func (op *SigmoidOp) Output() *tensor.RawTensor { return op.output }
