// Package detector implements BoxNet, a small convolutional network that
// predicts one class label and one normalized bounding box per image.
//
// Architecture:
//
//	[N, C, H, W]
//	  -> Conv3x3(C→16) -> ReLU -> MaxPool2
//	  -> Conv3x3(16→32) -> ReLU -> MaxPool2
//	  -> Conv3x3(32→64) -> ReLU -> GlobalAvgPool
//	  -> [N, 64]
//	       ├─ Linear(64→classes)          -> logits [N, classes]
//	       └─ Linear(64→4) -> Sigmoid     -> box    [N, 4]
package detector

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/boxnet/internal/config"
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/tensor"
)

// ErrShapeMismatch is returned when an input batch does not match the
// configured [C, H, W].
var ErrShapeMismatch = errors.New("shape mismatch")

// FeatureDim is the width of the pooled feature vector shared by both heads.
const FeatureDim = 64

// Mode selects training or evaluation behaviour for a forward pass.
//
// No layer in BoxNet behaves differently between the two, but callers pass
// the mode on every call so layers such as dropout can be added later.
type Mode int

const (
	ModeTrain Mode = iota
	ModeEval
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeEval:
		return "eval"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// BoxNet is the joint classification and box regression model.
type BoxNet[B tensor.Backend] struct {
	features  *nn.Sequential[B]
	classHead *nn.Linear[B]
	boxHead   *nn.Linear[B]
	boxAct    *nn.Sigmoid[B]

	inputShape tensor.Shape
	numClasses int
	backend    B
}

// New builds a BoxNet for the configured input shape and class count.
//
// All weights are drawn from rng, so models built from identically seeded
// generators are identical. The backend must run on the configured device.
func New[B tensor.Backend](settings config.Settings, backend B, rng *rand.Rand) (*BoxNet[B], error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if backend.Device() != settings.Runtime.Device {
		return nil, fmt.Errorf("backend %s runs on %s, configured device is %s",
			backend.Name(), backend.Device(), settings.Runtime.Device)
	}

	m := settings.Model
	features := nn.NewSequential[B](
		nn.NewConv2D("features.conv1", m.Channels(), 16, 3, 1, 1, rng, backend),
		nn.NewReLU[B](),
		nn.NewMaxPool2D[B](2, 2),
		nn.NewConv2D("features.conv2", 16, 32, 3, 1, 1, rng, backend),
		nn.NewReLU[B](),
		nn.NewMaxPool2D[B](2, 2),
		nn.NewConv2D("features.conv3", 32, FeatureDim, 3, 1, 1, rng, backend),
		nn.NewReLU[B](),
		nn.NewGlobalAvgPool2D[B](),
	)

	return &BoxNet[B]{
		features:   features,
		classHead:  nn.NewLinear("class_head", FeatureDim, m.NumClasses, rng, backend),
		boxHead:    nn.NewLinear("box_head", FeatureDim, 4, rng, backend),
		boxAct:     nn.NewSigmoid[B](),
		inputShape: m.InputShape.Clone(),
		numClasses: m.NumClasses,
		backend:    backend,
	}, nil
}

// Forward runs a batch of images [N, C, H, W] through the network and
// returns class logits [N, classes] and boxes [N, 4] in (0, 1).
//
// The per-sample shape must equal the configured input shape exactly;
// otherwise the error wraps ErrShapeMismatch.
func (m *BoxNet[B]) Forward(mode Mode, images *tensor.Tensor[float32, B]) (logits, boxes *tensor.Tensor[float32, B], err error) {
	if mode != ModeTrain && mode != ModeEval {
		return nil, nil, fmt.Errorf("unknown mode %v", mode)
	}
	if err := m.CheckInput(images.Shape()); err != nil {
		return nil, nil, err
	}

	feats := m.features.Forward(images)
	logits = m.classHead.Forward(feats)
	boxes = m.boxAct.Forward(m.boxHead.Forward(feats))
	return logits, boxes, nil
}

// CheckInput validates a batch shape against the configured input shape.
func (m *BoxNet[B]) CheckInput(shape tensor.Shape) error {
	if len(shape) != 4 {
		return fmt.Errorf("%w: expected [N, %d, %d, %d], got %v",
			ErrShapeMismatch, m.inputShape[0], m.inputShape[1], m.inputShape[2], shape)
	}
	if shape[0] <= 0 {
		return fmt.Errorf("%w: empty batch %v", ErrShapeMismatch, shape)
	}
	if !shape[1:].Equal(m.inputShape) {
		return fmt.Errorf("%w: expected per-sample shape %v, got %v", ErrShapeMismatch, m.inputShape, shape[1:])
	}
	return nil
}

// Parameters returns every trainable parameter: the three convolution
// stages followed by the class and box heads.
func (m *BoxNet[B]) Parameters() []*nn.Parameter[B] {
	params := m.features.Parameters()
	params = append(params, m.classHead.Parameters()...)
	params = append(params, m.boxHead.Parameters()...)
	return params
}

// NumParameters returns the number of trainable scalars.
func (m *BoxNet[B]) NumParameters() int {
	return nn.CountParameters(m.Parameters())
}

// InputShape returns the configured per-sample [C, H, W].
func (m *BoxNet[B]) InputShape() tensor.Shape {
	return m.inputShape
}

// NumClasses returns the number of output classes.
func (m *BoxNet[B]) NumClasses() int {
	return m.numClasses
}

// Backend returns the backend the parameters live on.
func (m *BoxNet[B]) Backend() B {
	return m.backend
}

// String describes the architecture.
func (m *BoxNet[B]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BoxNet(input=%v, classes=%d, params=%d)\n", m.inputShape, m.numClasses, m.NumParameters())
	fmt.Fprintf(&sb, "  features: %v\n", m.features)
	fmt.Fprintf(&sb, "  class_head: %v\n", m.classHead)
	fmt.Fprintf(&sb, "  box_head: %v -> %v", m.boxHead, m.boxAct)
	return sb.String()
}
