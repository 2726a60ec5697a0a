// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides gradient-based optimizers.
package optim

import (
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/optim"
	"github.com/born-ml/boxnet/tensor"
)

// Optimizer applies gradients to parameters.
type Optimizer = optim.Optimizer

// Adam is the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam. Zero fields take the defaults
// lr=0.001, betas=(0.9, 0.999), eps=1e-8.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over params.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	layer := nn.NewLinear("fc", 64, 3, rng, backend)
//	opt := optim.NewAdam(layer.Parameters(), optim.AdamConfig{LR: 0.001})
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	return optim.NewAdam(params, config)
}
