// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/boxnet/autodiff"
	"github.com/born-ml/boxnet/backend/cpu"
	"github.com/born-ml/boxnet/nn"
	"github.com/born-ml/boxnet/optim"
	"github.com/born-ml/boxnet/tensor"
)

func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	assert.True(t, raw.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Len(t, raw.AsFloat32(), 6)

	d, err := tensor.ParseDevice("cpu")
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, d)
}

func TestTensorOnCPU(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	y := x.Add(tensor.Ones[float32](tensor.Shape{2, 2}, backend))
	assert.Equal(t, []float32{2, 3, 4, 5}, y.Data())
	assert.Equal(t, float32(10), x.Sum().Item())
	assert.Equal(t, []float32{7, 10, 15, 22}, x.MatMul(x).Data())
}

func TestTrainingStepThroughPublicAPI(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(1))

	model := nn.NewSequential[*autodiff.Backend[*cpu.Backend]](
		nn.NewLinear("fc1", 4, 8, rng, backend),
		nn.NewReLU[*autodiff.Backend[*cpu.Backend]](),
		nn.NewLinear("fc2", 8, 2, rng, backend),
	)
	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01})
	loss := nn.NewCrossEntropyLoss(backend)

	x := tensor.Randn(tensor.Shape{6, 4}, rng, backend)
	labels, err := tensor.FromSlice([]int32{0, 1, 0, 1, 0, 1}, tensor.Shape{6}, backend)
	require.NoError(t, err)

	step := func() float32 {
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		l := loss.Forward(model.Forward(x), labels)
		grads := backend.Backward(l.Raw())
		backend.Tape().StopRecording()
		opt.Step(grads)
		return l.Item()
	}

	first := step()
	var last float32
	for range 50 {
		last = step()
	}
	assert.Less(t, last, first)
	assert.Equal(t, 4, len(model.Parameters()))
}
