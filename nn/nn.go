// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public neural network building blocks: layers,
// parameters, losses and classification metrics.
package nn

import (
	"math/rand"

	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/tensor"
)

// Module is a layer with a forward pass and trainable parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Linear is a fully connected layer computing x @ W^T + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(name, inFeatures, outFeatures, rng, backend)
}

// Conv2D is a 2D convolution layer over [N, C, H, W] inputs.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a Conv2D layer with Xavier-initialized kernels.
func NewConv2D[B tensor.Backend](name string, inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2D(name, inChannels, outChannels, kernelSize, stride, padding, rng, backend)
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *nn.ReLU[B] {
	return nn.NewReLU[B]()
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int) *nn.MaxPool2D[B] {
	return nn.NewMaxPool2D[B](kernelSize, stride)
}

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend]() *nn.GlobalAvgPool2D[B] {
	return nn.NewGlobalAvgPool2D[B]()
}

// NewCrossEntropyLoss creates a mean softmax cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *nn.CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// NewSmoothL1Loss creates a mean smooth-L1 loss with beta = 1.
func NewSmoothL1Loss[B tensor.Backend](backend B) *nn.SmoothL1Loss[B] {
	return nn.NewSmoothL1Loss(backend)
}

// Accuracy returns the percentage of rows whose argmax equals the label.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B]) float32 {
	return nn.Accuracy(logits, labels)
}
