package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/boxnet/internal/autodiff"
	"github.com/born-ml/boxnet/internal/backend/cpu"
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/tensor"
)

func TestParameter(t *testing.T) {
	backend := cpu.New()
	data, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	param := nn.NewParameter("test_param", data)
	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())

	param.SetGrad(data)
	assert.NotNil(t, param.Grad())
	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestXavier_BoundsAndSeeding(t *testing.T) {
	backend := cpu.New()
	a := nn.Xavier(64, 4, tensor.Shape{4, 64}, rand.New(rand.NewSource(3)), backend)
	b := nn.Xavier(64, 4, tensor.Shape{4, 64}, rand.New(rand.NewSource(3)), backend)
	assert.Equal(t, a.Data(), b.Data())

	bound := float32(0.2970443) // sqrt(6/68)
	for _, v := range a.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear("fc", 3, 2, rand.New(rand.NewSource(1)), backend)

	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -1})

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	y := layer.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2}, y.Shape())
	assert.Equal(t, []float32{1.5, 4, 4.5, 10}, y.Data())

	params := layer.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "fc.weight", params[0].Name())
	assert.Equal(t, "fc.bias", params[1].Name())
}

func TestLinear_PanicsOnWrongFeatures(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear("fc", 3, 2, rand.New(rand.NewSource(1)), backend)
	x := tensor.Zeros[float32](tensor.Shape{2, 4}, backend)
	assert.Panics(t, func() { layer.Forward(x) })
}

func TestConv2D_SamePaddingAndBias(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D("conv1", 1, 16, 3, 1, 1, rand.New(rand.NewSource(1)), backend)
	for i := range conv.Parameters()[1].Tensor().Data() {
		conv.Parameters()[1].Tensor().Data()[i] = float32(i)
	}

	x := tensor.Zeros[float32](tensor.Shape{2, 1, 8, 8}, backend)
	y := conv.Forward(x)
	assert.Equal(t, tensor.Shape{2, 16, 8, 8}, y.Shape())
	// Zero input leaves only the bias.
	assert.Equal(t, float32(5), y.At(1, 5, 3, 3))
	assert.Equal(t, 16, conv.OutChannels())
}

func TestSequential_FeatureExtractorShape(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	net := nn.NewSequential[*cpu.CPUBackend](
		nn.NewConv2D("c1", 1, 4, 3, 1, 1, rng, backend),
		nn.NewReLU[*cpu.CPUBackend](),
		nn.NewMaxPool2D[*cpu.CPUBackend](2, 2),
		nn.NewConv2D("c2", 4, 8, 3, 1, 1, rng, backend),
		nn.NewReLU[*cpu.CPUBackend](),
		nn.NewGlobalAvgPool2D[*cpu.CPUBackend](),
	)

	x := tensor.Rand(tensor.Shape{3, 1, 10, 10}, rng, backend)
	y := net.Forward(x)
	assert.Equal(t, tensor.Shape{3, 8}, y.Shape())
	assert.Equal(t, 6, net.Len())
	assert.Len(t, net.Parameters(), 4)
	assert.Equal(t, 4*9+4+8*4*9+8, nn.CountParameters(net.Parameters()))
	assert.Contains(t, net.String(), "MaxPool2D(kernel_size=2, stride=2)")
}

func TestSigmoid_RangeIsOpenUnitInterval(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-20, -1, 0, 1, 20}, tensor.Shape{5}, backend)
	require.NoError(t, err)
	for _, v := range nn.NewSigmoid[*cpu.CPUBackend]().Forward(x).Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestLosses_RecordOnAutodiffBackend(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	logits, err := tensor.FromSlice([]float32{2, 0, 0, 0, 2, 0}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	labels, err := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	ce := nn.NewCrossEntropyLoss(backend).Forward(logits, labels)
	assert.Equal(t, 1, backend.Tape().NumOps())

	pred, err := tensor.FromSlice([]float32{0.5, 0.5}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{0.5, 0.5}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	l1 := nn.NewSmoothL1Loss(backend).Forward(pred, target)
	assert.Equal(t, 2, backend.Tape().NumOps())
	assert.InDelta(t, 0.0, l1.Item(), 1e-7)
	assert.Greater(t, ce.Item(), float32(0))
}

func TestLosses_PlainBackendMatchesAutodiff(t *testing.T) {
	plain := cpu.New()
	ad := autodiff.New(cpu.New())
	data := []float32{0.3, -1.2, 2.2, 0.1, 0.0, -0.4}

	lp, err := tensor.FromSlice(data, tensor.Shape{2, 3}, plain)
	require.NoError(t, err)
	tp, err := tensor.FromSlice([]int32{2, 0}, tensor.Shape{2}, plain)
	require.NoError(t, err)
	la, err := tensor.FromSlice(data, tensor.Shape{2, 3}, ad)
	require.NoError(t, err)
	ta, err := tensor.FromSlice([]int32{2, 0}, tensor.Shape{2}, ad)
	require.NoError(t, err)

	assert.Equal(t,
		nn.NewCrossEntropyLoss(plain).Forward(lp, tp).Item(),
		nn.NewCrossEntropyLoss(ad).Forward(la, ta).Item())
}

func TestSoftmaxArgmaxAccuracy(t *testing.T) {
	backend := cpu.New()
	logits, err := tensor.FromSlice([]float32{
		1, 3, 2,
		5, 0, 0,
		0, 0, 0,
		-1, -2, 4,
	}, tensor.Shape{4, 3}, backend)
	require.NoError(t, err)
	labels, err := tensor.FromSlice([]int32{1, 0, 2, 2}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	probs := nn.Softmax(logits)
	require.Len(t, probs, 4)
	for _, row := range probs {
		var sum float32
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
	assert.InDelta(t, 1.0/3.0, probs[2][0], 1e-6)

	assert.Equal(t, []int{1, 0, 0, 2}, nn.Argmax(logits))
	assert.Equal(t, 3, nn.CountCorrect(logits, labels))
	assert.InDelta(t, 75.0, nn.Accuracy(logits, labels), 1e-6)
}
