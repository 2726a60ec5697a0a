// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// New wraps any backend so that operations on its tensors are recorded on
// a gradient tape while recording is enabled.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := x.Mul(x).Sum()
//	grads := backend.Backward(y.Raw())
package autodiff

import (
	"github.com/born-ml/boxnet/internal/autodiff"
	"github.com/born-ml/boxnet/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates an autodiff backend wrapping backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape
