package nn

import (
	"github.com/born-ml/boxnet/internal/autodiff/ops"
	"github.com/born-ml/boxnet/internal/tensor"
)

// CrossEntropyBackend is implemented by backends that record the fused
// cross-entropy loss for backpropagation (autodiff.AutodiffBackend).
type CrossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// SmoothL1Backend is implemented by backends that record the Smooth L1
// loss for backpropagation (autodiff.AutodiffBackend).
type SmoothL1Backend interface {
	SmoothL1(pred, target *tensor.RawTensor) *tensor.RawTensor
}

// CrossEntropyLoss computes softmax cross-entropy for multi-class
// classification, averaged over the batch.
//
//	Loss = mean(-log_softmax(logits)[target])
//
// Expects raw logits; the log-sum-exp trick keeps it stable for large values.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(logits, targets) // [B, classes], [B] int32 -> [1]
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward computes the mean cross-entropy loss.
//
// When the backend is autodiff-aware the operation is recorded on its tape.
// Other backends get the same value without gradient tracking.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	if adBackend, ok := any(c.backend).(CrossEntropyBackend); ok {
		return tensor.New[float32, B](adBackend.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}
	return tensor.New[float32, B](ops.CrossEntropyForward(logits.Raw(), targets.Raw()), c.backend)
}

// SmoothL1Loss computes the Smooth L1 (Huber, beta=1) regression loss
// averaged over every element:
//
//	l(d) = 0.5 * d²     if |d| < 1
//	l(d) = |d| - 0.5    otherwise
type SmoothL1Loss[B tensor.Backend] struct {
	backend B
}

// NewSmoothL1Loss creates a new Smooth L1 loss function.
func NewSmoothL1Loss[B tensor.Backend](backend B) *SmoothL1Loss[B] {
	return &SmoothL1Loss[B]{backend: backend}
}

// Forward computes the mean Smooth L1 loss between predictions and targets
// of identical shape.
func (s *SmoothL1Loss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if adBackend, ok := any(s.backend).(SmoothL1Backend); ok {
		return tensor.New[float32, B](adBackend.SmoothL1(predictions.Raw(), targets.Raw()), s.backend)
	}
	return tensor.New[float32, B](ops.SmoothL1Forward(predictions.Raw(), targets.Raw()), s.backend)
}
