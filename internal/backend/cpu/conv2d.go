package cpu

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/parallel"
	"github.com/born-ml/boxnet/internal/tensor"
)

// convGeometry holds the dimensions shared by the Conv2D kernels.
type convGeometry struct {
	N, CIn, H, W      int
	COut, KH, KW      int
	HOut, WOut        int
	stride, padding   int
	colRows, colCols  int // im2col matrix: [CIn*KH*KW, HOut*WOut]
	inPlane, outPlane int // elements per sample in input / output
	kernelRow         int // CIn*KH*KW
}

func newConvGeometry(inputShape, kernelShape tensor.Shape, stride, padding int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", inputShape[1], kernelShape[1]))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d", stride, padding))
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.HOut, g.WOut))
	}
	g.kernelRow = g.CIn * g.KH * g.KW
	g.colRows = g.kernelRow
	g.colCols = g.HOut * g.WOut
	g.inPlane = g.CIn * g.H * g.W
	g.outPlane = g.COut * g.HOut * g.WOut
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// where out = (in + 2*padding - k) / stride + 1.
//
// Each sample is lowered to a [C_in*K_h*K_w, H_out*W_out] column matrix and
// multiplied by the kernel viewed as [C_out, C_in*K_h*K_w]. Samples are
// processed in parallel.
//
// Reference: "High Performance Convolutional Neural Networks for Document
// Processing" (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input.Shape(), kernel.Shape(), stride, padding)

	output := tensor.MustNewRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	parallel.For(g.N, func(n int) {
		col := make([]float32, g.colRows*g.colCols)
		im2col(col, inputData[n*g.inPlane:(n+1)*g.inPlane], &g)

		out := outputData[n*g.outPlane : (n+1)*g.outPlane]
		for co := 0; co < g.COut; co++ {
			outRow := out[co*g.colCols : (co+1)*g.colCols]
			kRow := kernelData[co*g.kernelRow : (co+1)*g.kernelRow]
			for k, kv := range kRow {
				if kv == 0 {
					continue
				}
				colRow := col[k*g.colCols : (k+1)*g.colCols]
				for p, cv := range colRow {
					outRow[p] += kv * cv
				}
			}
		}
	}, cpu.par)

	return output
}

// im2col lowers one sample [C, H, W] into col [C*K_h*K_w, H_out*W_out].
// Out-of-bounds (padding) positions are zero.
func im2col(col, sample []float32, g *convGeometry) {
	for c := 0; c < g.CIn; c++ {
		plane := sample[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := col[((c*g.KH+kh)*g.KW+kw)*g.colCols:]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						idx := oh*g.WOut + ow
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							row[idx] = plane[h*g.W+w]
						} else {
							row[idx] = 0
						}
					}
				}
			}
		}
	}
}

// col2im scatters col [C*K_h*K_w, H_out*W_out] back into a zeroed sample
// [C, H, W], accumulating overlapping positions.
func col2im(sample, col []float32, g *convGeometry) {
	for c := 0; c < g.CIn; c++ {
		plane := sample[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := col[((c*g.KH+kh)*g.KW+kw)*g.colCols:]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						continue
					}
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w >= 0 && w < g.W {
							plane[h*g.W+w] += row[oh*g.WOut+ow]
						}
					}
				}
			}
		}
	}
}
