package cpu

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/boxnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	dst := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			dst[i] = v
		}
	}
	return result
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
//
// The two branches keep exp's argument non-positive, so large |x| saturate
// to 0 or 1 instead of overflowing.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	dst := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		dst[i] = sigmoid(v)
	}
	return result
}

func sigmoid(v float32) float32 {
	if v >= 0 {
		return 1 / (1 + math32.Exp(-v))
	}
	e := math32.Exp(v)
	return e / (1 + e)
}
