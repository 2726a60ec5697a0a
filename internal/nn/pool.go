package nn

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/tensor"
)

// MaxPool2D applies 2D max pooling over [N, C, H, W] inputs.
//
// Output size is floor((H - kernel) / stride) + 1, so odd inputs drop the
// last row/column. No trainable parameters.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a new MaxPool2D layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel=%d stride=%d", kernelSize, stride))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride}
}

// Forward applies max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %v", input.Shape()))
	}
	backend := input.Backend()
	return tensor.New[float32, B](backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride), backend)
}

// Parameters returns nil.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a PyTorch-style description.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}

// GlobalAvgPool2D averages each channel plane: [N, C, H, W] -> [N, C].
//
// The output is already flat, so no separate flatten step follows it.
type GlobalAvgPool2D[B tensor.Backend] struct{}

// NewGlobalAvgPool2D creates a new GlobalAvgPool2D layer.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{}
}

// Forward averages over the spatial dimensions.
func (g *GlobalAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("globalavgpool2d: expected 4D input [N,C,H,W], got %v", input.Shape()))
	}
	backend := input.Backend()
	return tensor.New[float32, B](backend.GlobalAvgPool2D(input.Raw()), backend)
}

// Parameters returns nil.
func (g *GlobalAvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a PyTorch-style description.
func (g *GlobalAvgPool2D[B]) String() string {
	return "GlobalAvgPool2D()"
}
