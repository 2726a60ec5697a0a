package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/boxnet/internal/tensor"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

func TestAdd_Broadcast(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	bias := raw(t, []float32{10, 20, 30}, 1, 3)

	out := b.Add(a, bias)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
}

func TestAdd_ChannelBias4D(t *testing.T) {
	b := New()
	x := raw(t, make([]float32, 2*2*2*2), 2, 2, 2, 2)
	bias := raw(t, []float32{1, -1}, 1, 2, 1, 1)

	out := b.Add(x, bias).AsFloat32()
	for n := 0; n < 2; n++ {
		for i := 0; i < 4; i++ {
			assert.Equal(t, float32(1), out[n*8+i])
			assert.Equal(t, float32(-1), out[n*8+4+i])
		}
	}
}

func TestSubMulScalar(t *testing.T) {
	b := New()
	x := raw(t, []float32{3, 5}, 2)
	y := raw(t, []float32{1, 2}, 2)

	assert.Equal(t, []float32{2, 3}, b.Sub(x, y).AsFloat32())
	assert.Equal(t, []float32{3, 10}, b.Mul(x, y).AsFloat32())
	assert.Equal(t, []float32{1.5, 2.5}, b.MulScalar(x, 0.5).AsFloat32())
}

func TestMatMul(t *testing.T) {
	b := NewWithWorkers(2)
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	c := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	out := b.MatMul(a, c)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())
}

func TestMatMul_PanicsOnMismatch(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.MatMul(raw(t, seq(6), 2, 3), raw(t, seq(4), 2, 2))
	})
}

func TestTranspose(t *testing.T) {
	b := New()
	out := b.Transpose(raw(t, seq(6), 2, 3))
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())
}

func TestReshape_CopiesData(t *testing.T) {
	b := New()
	x := raw(t, seq(6), 2, 3)
	y := b.Reshape(x, tensor.Shape{3, 2})
	y.AsFloat32()[0] = 100
	assert.Equal(t, float32(1), x.AsFloat32()[0])
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{4}) })
}

func TestSum(t *testing.T) {
	out := New().Sum(raw(t, seq(4), 2, 2))
	assert.Equal(t, tensor.Shape{1}, out.Shape())
	assert.Equal(t, float32(10), out.AsFloat32()[0])
}

func TestReLUAndSigmoid(t *testing.T) {
	b := New()
	x := raw(t, []float32{-2, 0, 3, -100, 100}, 5)

	assert.Equal(t, []float32{0, 0, 3, 0, 100}, b.ReLU(x).AsFloat32())

	s := b.Sigmoid(x).AsFloat32()
	assert.InDelta(t, 0.5, s[1], 1e-6)
	assert.InDelta(t, 0.11920292, s[0], 1e-6)
	for _, v := range s {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestConv2D_KnownValues(t *testing.T) {
	b := New()
	// 1x1x3x3 input, single 2x2 kernel of ones, no padding.
	input := raw(t, seq(9), 1, 1, 3, 3)
	kernel := raw(t, []float32{1, 1, 1, 1}, 1, 1, 2, 2)

	out := b.Conv2D(input, kernel, 1, 0)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{12, 16, 24, 28}, out.AsFloat32())
}

func TestConv2D_SamePaddingKeepsSize(t *testing.T) {
	b := New()
	input := raw(t, seq(2*1*8*8), 2, 1, 8, 8)
	kernel := raw(t, make([]float32, 16*1*3*3), 16, 1, 3, 3)

	out := b.Conv2D(input, kernel, 1, 1)
	assert.Equal(t, tensor.Shape{2, 16, 8, 8}, out.Shape())
}

func TestConv2D_PaddingZeroFill(t *testing.T) {
	b := New()
	input := raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	kernel := raw(t, []float32{0, 0, 0, 0, 1, 0, 0, 0, 0}, 1, 1, 3, 3) // identity

	out := b.Conv2D(input, kernel, 1, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, out.AsFloat32())
}

func TestConv2D_WorkerCountDoesNotChangeResult(t *testing.T) {
	input := raw(t, seq(4*2*6*6), 4, 2, 6, 6)
	kernel := raw(t, seq(3*2*3*3), 3, 2, 3, 3)

	a := NewWithWorkers(1).Conv2D(input, kernel, 1, 1).AsFloat32()
	c := NewWithWorkers(8).Conv2D(input, kernel, 1, 1).AsFloat32()
	assert.Equal(t, a, c)
}

func TestConv2DBackward_Shapes(t *testing.T) {
	b := New()
	input := raw(t, seq(2*3*5*5), 2, 3, 5, 5)
	kernel := raw(t, seq(4*3*3*3), 4, 3, 3, 3)
	grad := raw(t, seq(2*4*5*5), 2, 4, 5, 5)

	assert.Equal(t, input.Shape(), b.Conv2DInputBackward(input, kernel, grad, 1, 1).Shape())
	assert.Equal(t, kernel.Shape(), b.Conv2DKernelBackward(input, kernel, grad, 1, 1).Shape())
}

func TestConv2DKernelBackward_KnownValues(t *testing.T) {
	b := New()
	input := raw(t, seq(9), 1, 1, 3, 3)
	kernel := raw(t, []float32{0, 0, 0, 0}, 1, 1, 2, 2)
	grad := raw(t, []float32{1, 1, 1, 1}, 1, 1, 2, 2)

	// Each kernel tap sees the sum of the 2x2 input block it slides over.
	out := b.Conv2DKernelBackward(input, kernel, grad, 1, 0)
	assert.Equal(t, []float32{12, 16, 24, 28}, out.AsFloat32())
}

func TestMaxPool2D_ForwardBackward(t *testing.T) {
	b := New()
	input := raw(t, seq(16), 1, 1, 4, 4)

	out := b.MaxPool2D(input, 2, 2)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 14, 16}, out.AsFloat32())

	grad := raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	inGrad := b.MaxPool2DBackward(input, grad, 2, 2).AsFloat32()
	want := make([]float32, 16)
	want[5], want[7], want[13], want[15] = 1, 2, 3, 4
	assert.Equal(t, want, inGrad)
}

func TestMaxPool2D_OddSizeFloors(t *testing.T) {
	out := New().MaxPool2D(raw(t, seq(2*5*5), 1, 2, 5, 5), 2, 2)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, out.Shape())
}

func TestGlobalAvgPool2D(t *testing.T) {
	b := New()
	input := raw(t, seq(8), 1, 2, 2, 2)

	out := b.GlobalAvgPool2D(input)
	assert.Equal(t, tensor.Shape{1, 2}, out.Shape())
	assert.Equal(t, []float32{2.5, 6.5}, out.AsFloat32())

	grad := raw(t, []float32{4, 8}, 1, 2)
	back := b.GlobalAvgPool2DBackward(grad, input.Shape()).AsFloat32()
	assert.Equal(t, []float32{1, 1, 1, 1, 2, 2, 2, 2}, back)
}
