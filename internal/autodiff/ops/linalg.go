package ops

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/tensor"
)

// MatMulOp represents output = A @ B.
//
// Backward:
//   - dA = outputGrad @ Bᵀ
//   - dB = Aᵀ @ outputGrad
type MatMulOp struct {
	a, b, output *tensor.RawTensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{a: a, b: b, output: output}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradA := backend.MatMul(outputGrad, backend.Transpose(op.b))
	gradB := backend.MatMul(backend.Transpose(op.a), outputGrad)
	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns [A, B].
func (op *MatMulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }

// Output returns A @ B.
func (op *MatMulOp) Output() *tensor.RawTensor { return op.output }

// TransposeOp represents output = xᵀ for 2D x.
//
// The backend materializes a new tensor, so this op must be recorded for
// gradients to reach the original parameter (e.g. Linear's weight).
type TransposeOp struct {
	x, output *tensor.RawTensor
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(x, output *tensor.RawTensor) *TransposeOp {
	return &TransposeOp{x: x, output: output}
}

// Backward transposes the gradient back.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad)}
}

// Inputs returns [x].
func (op *TransposeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }

// Output returns xᵀ.
func (op *TransposeOp) Output() *tensor.RawTensor { return op.output }

// ReshapeOp represents output = reshape(x).
//
// Backward reshapes the gradient to the input shape. Needed for bias
// parameters that are reshaped for broadcasting ([C] -> [1, C, 1, 1]).
type ReshapeOp struct {
	x, output *tensor.RawTensor
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{x: x, output: output}
}

// Backward reshapes the gradient to x's shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := outputGrad.Clone().WithShape(op.x.Shape())
	if err != nil {
		panic(fmt.Sprintf("ReshapeOp.Backward: %v", err))
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }

// Output returns the reshaped tensor.
func (op *ReshapeOp) Output() *tensor.RawTensor { return op.output }
