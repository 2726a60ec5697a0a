package ops

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/boxnet/internal/tensor"
)

// SmoothL1Beta is the transition point between the quadratic and linear
// regions of the Smooth L1 loss.
const SmoothL1Beta = 1.0

// SmoothL1Op represents the element-wise Smooth L1 (Huber, beta=1) loss
// averaged over every element.
//
// Forward, with d = pred - target:
//
//	l(d) = 0.5 * d² / beta   if |d| < beta
//	l(d) = |d| - 0.5 * beta  otherwise
//
// Backward:
//
//	∂L/∂pred = clamp(d / beta, -1, 1) / numel
type SmoothL1Op struct {
	pred   *tensor.RawTensor
	target *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSmoothL1Op creates a new SmoothL1Op.
func NewSmoothL1Op(pred, target, output *tensor.RawTensor) *SmoothL1Op {
	return &SmoothL1Op{pred: pred, target: target, output: output}
}

// SmoothL1Forward computes the mean Smooth L1 loss between pred and target.
// Panics if the shapes differ.
func SmoothL1Forward(pred, target *tensor.RawTensor) *tensor.RawTensor {
	checkSameShape("SmoothL1", pred, target)
	p := pred.AsFloat32()
	t := target.AsFloat32()

	var total float64
	for i := range p {
		d := p[i] - t[i]
		ad := math32.Abs(d)
		if ad < SmoothL1Beta {
			total += float64(0.5 * d * d / SmoothL1Beta)
		} else {
			total += float64(ad - 0.5*SmoothL1Beta)
		}
	}

	out := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, pred.Device())
	out.AsFloat32()[0] = float32(total / float64(len(p)))
	return out
}

// Backward computes the gradient for both pred and target.
func (op *SmoothL1Op) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	p := op.pred.AsFloat32()
	t := op.target.AsFloat32()
	scale := scalarGrad(outputGrad) / float32(len(p))

	predGrad := tensor.MustNewRaw(op.pred.Shape(), tensor.Float32, op.pred.Device())
	targetGrad := tensor.MustNewRaw(op.target.Shape(), tensor.Float32, op.target.Device())
	pg := predGrad.AsFloat32()
	tg := targetGrad.AsFloat32()
	for i := range p {
		d := p[i] - t[i]
		var g float32
		switch {
		case d >= SmoothL1Beta:
			g = 1
		case d <= -SmoothL1Beta:
			g = -1
		default:
			g = d / SmoothL1Beta
		}
		pg[i] = scale * g
		tg[i] = -scale * g
	}
	return []*tensor.RawTensor{predGrad, targetGrad}
}

// Inputs returns [pred, target].
func (op *SmoothL1Op) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.pred, op.target} }

// Output returns the [1] loss.
func (op *SmoothL1Op) Output() *tensor.RawTensor { return op.output }

func checkSameShape(name string, a, b *tensor.RawTensor) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", name, a.Shape(), b.Shape()))
	}
}
