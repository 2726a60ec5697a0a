// Package optim implements gradient-based optimizers for nn parameters.
package optim

import (
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/tensor"
)

// Optimizer updates model parameters from a map of gradients produced by
// a backward pass (raw parameter tensor -> gradient).
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradient stored on every parameter.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient looks up param's gradient and records it on the parameter.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	grad, ok := grads[param.Tensor().Raw()]
	if !ok {
		return nil
	}
	param.SetGrad(tensor.New[float32, B](grad, param.Tensor().Backend()))
	return grad
}
