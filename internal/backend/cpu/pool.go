package cpu

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/tensor"
)

// GlobalAvgPool2D averages each channel plane: [N, C, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("global_avg_pool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	N, C, area := shape[0], shape[1], shape[2]*shape[3]

	output := tensor.MustNewRaw(tensor.Shape{N, C}, tensor.Float32, cpu.device)
	src := input.AsFloat32()
	dst := output.AsFloat32()
	for i := 0; i < N*C; i++ {
		var sum float32
		for _, v := range src[i*area : (i+1)*area] {
			sum += v
		}
		dst[i] = sum / float32(area)
	}
	return output
}

// GlobalAvgPool2DBackward spreads grad [N, C] uniformly over each plane of
// inputShape [N, C, H, W].
func (cpu *CPUBackend) GlobalAvgPool2DBackward(grad *tensor.RawTensor, inputShape tensor.Shape) *tensor.RawTensor {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("global_avg_pool2d: expected 4D input shape, got %v", inputShape))
	}
	N, C, area := inputShape[0], inputShape[1], inputShape[2]*inputShape[3]

	inputGrad := tensor.MustNewRaw(inputShape, tensor.Float32, cpu.device)
	g := grad.AsFloat32()
	dst := inputGrad.AsFloat32()
	for i := 0; i < N*C; i++ {
		v := g[i] / float32(area)
		plane := dst[i*area : (i+1)*area]
		for j := range plane {
			plane[j] = v
		}
	}
	return inputGrad
}
