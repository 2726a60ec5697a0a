package cpu

import (
	"github.com/born-ml/boxnet/internal/parallel"
	"github.com/born-ml/boxnet/internal/tensor"
)

// Conv2DInputBackward computes ∂L/∂input for Conv2D.
//
// Per sample: colGrad = kernelᵀ @ grad, then col2im scatters colGrad back
// to input positions (transposed convolution).
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input.Shape(), kernel.Shape(), stride, padding)

	inputGrad := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	kernelData := kernel.AsFloat32()
	gradData := grad.AsFloat32()
	inputGradData := inputGrad.AsFloat32()

	parallel.For(g.N, func(n int) {
		colGrad := make([]float32, g.colRows*g.colCols)
		gradSample := gradData[n*g.outPlane : (n+1)*g.outPlane]

		for co := 0; co < g.COut; co++ {
			gRow := gradSample[co*g.colCols : (co+1)*g.colCols]
			kRow := kernelData[co*g.kernelRow : (co+1)*g.kernelRow]
			for k, kv := range kRow {
				if kv == 0 {
					continue
				}
				cRow := colGrad[k*g.colCols : (k+1)*g.colCols]
				for p, gv := range gRow {
					cRow[p] += kv * gv
				}
			}
		}

		col2im(inputGradData[n*g.inPlane:(n+1)*g.inPlane], colGrad, &g)
	}, cpu.par)

	return inputGrad
}

// Conv2DKernelBackward computes ∂L/∂kernel for Conv2D.
//
// kernelGrad[co, k] = Σ_n Σ_p grad[n, co, p] * im2col(input[n])[k, p].
// Per-sample partial sums are computed in parallel and reduced in sample
// order so the result is independent of scheduling.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input.Shape(), kernel.Shape(), stride, padding)

	kernelGrad := tensor.MustNewRaw(kernel.Shape(), tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	gradData := grad.AsFloat32()

	kernelSize := g.COut * g.kernelRow
	partials := make([][]float32, g.N)

	parallel.For(g.N, func(n int) {
		col := make([]float32, g.colRows*g.colCols)
		im2col(col, inputData[n*g.inPlane:(n+1)*g.inPlane], &g)

		part := make([]float32, kernelSize)
		gradSample := gradData[n*g.outPlane : (n+1)*g.outPlane]
		for co := 0; co < g.COut; co++ {
			gRow := gradSample[co*g.colCols : (co+1)*g.colCols]
			pRow := part[co*g.kernelRow : (co+1)*g.kernelRow]
			for k := range pRow {
				cRow := col[k*g.colCols : (k+1)*g.colCols]
				var sum float32
				for p, gv := range gRow {
					sum += gv * cRow[p]
				}
				pRow[k] = sum
			}
		}
		partials[n] = part
	}, cpu.par)

	out := kernelGrad.AsFloat32()
	for _, part := range partials {
		for i, v := range part {
			out[i] += v
		}
	}
	return kernelGrad
}
