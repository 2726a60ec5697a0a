// Package infer runs a trained BoxNet on single images and measures batch
// throughput.
package infer

import (
	"fmt"
	"image"

	"github.com/born-ml/boxnet/internal/dataset"
	"github.com/born-ml/boxnet/internal/detector"
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/tensor"
)

// Prediction is the model output for one image.
type Prediction struct {
	Class int
	// Probabilities is the softmax over class logits.
	Probabilities []float32
	// Box is [x_center, y_center, width, height] in [0, 1].
	Box [4]float32
}

// Confidence returns the probability of the predicted class.
func (p Prediction) Confidence() float32 {
	return p.Probabilities[p.Class]
}

// noGradBackend is implemented by backends that can suspend gradient
// recording (autodiff.AutodiffBackend).
type noGradBackend interface {
	NoGrad(fn func())
}

// withoutGrad runs fn with gradient recording suspended when backend
// records, and directly otherwise.
func withoutGrad[B tensor.Backend](backend B, fn func()) {
	if ng, ok := any(backend).(noGradBackend); ok {
		ng.NoGrad(fn)
		return
	}
	fn()
}

// Predictor runs evaluation-mode forward passes without gradient tracking.
type Predictor[B tensor.Backend] struct {
	model *detector.BoxNet[B]
}

// NewPredictor creates a Predictor for model.
func NewPredictor[B tensor.Backend](model *detector.BoxNet[B]) *Predictor[B] {
	return &Predictor[B]{model: model}
}

// Predict classifies one preprocessed [C, H, W] image.
func (p *Predictor[B]) Predict(pixels []float32) (Prediction, error) {
	shape := p.model.InputShape()
	if len(pixels) != shape.NumElements() {
		return Prediction{}, fmt.Errorf("%w: image has %d values, want %d for %v",
			detector.ErrShapeMismatch, len(pixels), shape.NumElements(), shape)
	}
	images, err := tensor.FromSlice(pixels, append(tensor.Shape{1}, shape...), p.model.Backend())
	if err != nil {
		return Prediction{}, err
	}
	preds, err := p.PredictBatch(images)
	if err != nil {
		return Prediction{}, err
	}
	return preds[0], nil
}

// PredictBatch classifies every image of an [N, C, H, W] batch.
func (p *Predictor[B]) PredictBatch(images *tensor.Tensor[float32, B]) ([]Prediction, error) {
	var (
		logits, boxes *tensor.Tensor[float32, B]
		err           error
	)
	withoutGrad(p.model.Backend(), func() {
		logits, boxes, err = p.model.Forward(detector.ModeEval, images)
	})
	if err != nil {
		return nil, err
	}

	probs := nn.Softmax(logits)
	classes := nn.Argmax(logits)
	boxData := boxes.Data()

	preds := make([]Prediction, len(probs))
	for i := range preds {
		preds[i] = Prediction{
			Class:         classes[i],
			Probabilities: probs[i],
		}
		copy(preds[i].Box[:], boxData[i*4:(i+1)*4])
	}
	return preds, nil
}

// PredictImage resizes and converts img to the model input shape and
// classifies it.
func (p *Predictor[B]) PredictImage(img image.Image) (Prediction, error) {
	return p.Predict(dataset.Preprocess(img, p.model.InputShape()))
}

// PredictFile decodes the image at path and classifies it.
func (p *Predictor[B]) PredictFile(path string) (Prediction, image.Image, error) {
	img, err := dataset.DecodeImage(path)
	if err != nil {
		return Prediction{}, nil, err
	}
	pred, err := p.PredictImage(img)
	if err != nil {
		return Prediction{}, nil, err
	}
	return pred, img, nil
}
