package cpu

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/boxnet/internal/parallel"
	"github.com/born-ml/boxnet/internal/tensor"
)

// poolGeometry validates a pooling window against a [N, C, H, W] input.
func poolGeometry(inputShape tensor.Shape, kernelSize, stride int) (n, c, h, w, hOut, wOut int) {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel=%d stride=%d", kernelSize, stride))
	}
	n, c, h, w = inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, h, w))
	}
	hOut = (h-kernelSize)/stride + 1
	wOut = (w-kernelSize)/stride + 1
	return n, c, h, w, hOut, wOut
}

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, (H-k)/s+1, (W-k)/s+1]
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolGeometry(input.Shape(), kernelSize, stride)

	output := tensor.MustNewRaw(tensor.Shape{N, C, HOut, WOut}, tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := inputData[(n*C+c)*H*W : (n*C+c+1)*H*W]
		out := outputData[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				out[oh*WOut+ow] = plane[argmaxWindow(plane, W, oh*stride, ow*stride, kernelSize)]
			}
		}
	}, cpu.par)

	return output
}

// MaxPool2DBackward routes each output gradient to the input position that
// held the window maximum. Ties resolve to the first position in row-major
// order, matching the forward pass.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolGeometry(input.Shape(), kernelSize, stride)

	inputGrad := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	inputData := input.AsFloat32()
	gradData := grad.AsFloat32()
	inputGradData := inputGrad.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := inputData[(n*C+c)*H*W : (n*C+c+1)*H*W]
		gPlane := gradData[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]
		dst := inputGradData[(n*C+c)*H*W : (n*C+c+1)*H*W]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				dst[argmaxWindow(plane, W, oh*stride, ow*stride, kernelSize)] += gPlane[oh*WOut+ow]
			}
		}
	}, cpu.par)

	return inputGrad
}

// argmaxWindow returns the flat plane index of the maximum in the k×k window
// starting at (h0, w0).
func argmaxWindow(plane []float32, width, h0, w0, k int) int {
	best := h0*width + w0
	bestVal := math32.Inf(-1)
	for kh := 0; kh < k; kh++ {
		row := (h0 + kh) * width
		for kw := 0; kw < k; kw++ {
			idx := row + w0 + kw
			if v := plane[idx]; v > bestVal {
				bestVal = v
				best = idx
			}
		}
	}
	return best
}
