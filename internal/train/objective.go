package train

import (
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/tensor"
)

// Loss holds the combined objective and its two terms, each of shape [1].
type Loss[B tensor.Backend] struct {
	Total *tensor.Tensor[float32, B]
	Class *tensor.Tensor[float32, B]
	Box   *tensor.Tensor[float32, B]
}

// Objective combines classification and box regression losses:
//
//	Total = CrossEntropy(logits, labels) + SmoothL1(boxes, targets)
//
// The two terms are weighted equally and the box term is not normalized by
// box scale.
type Objective[B tensor.Backend] struct {
	class *nn.CrossEntropyLoss[B]
	box   *nn.SmoothL1Loss[B]
}

// NewObjective creates the combined objective for backend.
func NewObjective[B tensor.Backend](backend B) *Objective[B] {
	return &Objective[B]{
		class: nn.NewCrossEntropyLoss(backend),
		box:   nn.NewSmoothL1Loss(backend),
	}
}

// Compute evaluates both loss terms and their sum.
func (o *Objective[B]) Compute(
	logits, boxes *tensor.Tensor[float32, B],
	labels *tensor.Tensor[int32, B],
	targets *tensor.Tensor[float32, B],
) Loss[B] {
	class := o.class.Forward(logits, labels)
	box := o.box.Forward(boxes, targets)
	return Loss[B]{
		Total: class.Add(box),
		Class: class,
		Box:   box,
	}
}
