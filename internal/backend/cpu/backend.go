// Package cpu implements the pure-Go CPU backend.
//
// Kernels operate on contiguous row-major float32 tensors. Loops over
// independent batch or channel planes are spread with internal/parallel;
// every parallel iteration writes a disjoint output region, so results do
// not depend on the worker count.
package cpu

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/parallel"
	"github.com/born-ml/boxnet/internal/tensor"
)

var _ tensor.Backend = (*CPUBackend)(nil)

// CPUBackend implements tensor.Backend on the host CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a CPU backend using every available core.
func New() *CPUBackend {
	return NewWithWorkers(0)
}

// NewWithWorkers creates a CPU backend with a fixed kernel worker count.
// workers <= 0 selects runtime.NumCPU().
func NewWithWorkers(workers int) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.WithWorkers(workers),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the execution target.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the number of kernel workers.
func (cpu *CPUBackend) Workers() int {
	return cpu.par.NumWorkers
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	src := x.AsFloat32()
	dst := result.AsFloat32()
	for i, v := range src {
		dst[i] = v * scalar
	}
	return result
}

// Reshape returns a copy of t with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.Clone().WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose swaps the two axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got shape %v", shape))
	}
	rows, cols := shape[0], shape[1]

	result := tensor.MustNewRaw(tensor.Shape{cols, rows}, t.DType(), cpu.device)
	src := t.AsFloat32()
	dst := result.AsFloat32()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return result
}

// Sum reduces all elements to a tensor of shape [1].
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, cpu.device)
	var sum float64
	for _, v := range x.AsFloat32() {
		sum += float64(v)
	}
	result.AsFloat32()[0] = float32(sum)
	return result
}

// binary applies op element-wise over the broadcast of a and b.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, op func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	aData, bData, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()

	if !needsBroadcast {
		for i := range out {
			out[i] = op(aData[i], bData[i])
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	for i := range out {
		rem := i
		aIdx, bIdx := 0, 0
		for d, stride := range outStrides {
			coord := rem / stride
			rem %= stride
			aIdx += coord * aStrides[d]
			bIdx += coord * bStrides[d]
		}
		out[i] = op(aData[aIdx], bData[bIdx])
	}
	return result
}

// broadcastStrides returns strides of shape aligned to outShape, with 0 for
// broadcast (size-1 or missing) dimensions.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	src := shape.ComputeStrides()
	offset := len(outShape) - len(shape)
	for i := range shape {
		if shape[i] != 1 {
			strides[offset+i] = src[i]
		}
	}
	return strides
}
