package ops

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/tensor"
)

// reduceBroadcast reduces a gradient to targetShape by summing over the
// dimensions that were broadcast in the forward pass.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}
	if len(targetShape) > len(gradShape) {
		panic(fmt.Sprintf("reduceBroadcast: target %v has more dims than gradient %v", targetShape, gradShape))
	}

	// Align target to the gradient's rank with leading 1s.
	aligned := make(tensor.Shape, len(gradShape))
	offset := len(gradShape) - len(targetShape)
	for i := range aligned {
		if i < offset {
			aligned[i] = 1
		} else {
			aligned[i] = targetShape[i-offset]
		}
	}

	result := grad
	for d := range aligned {
		if aligned[d] == 1 && result.Shape()[d] > 1 {
			result = sumAlongDimension(result, d)
		}
	}

	view, err := result.WithShape(targetShape)
	if err != nil {
		panic(fmt.Sprintf("reduceBroadcast: %v", err))
	}
	return view
}

// sumAlongDimension sums t along dim, keeping it as size 1.
func sumAlongDimension(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	outShape := shape.Clone()
	outShape[dim] = 1

	result := tensor.MustNewRaw(outShape, tensor.Float32, t.Device())
	src := t.AsFloat32()
	dst := result.AsFloat32()

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	size := shape[dim]

	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			base := (o*size + k) * inner
			for i := 0; i < inner; i++ {
				dst[o*inner+i] += src[base+i]
			}
		}
	}
	return result
}

// scalarGrad reads the single value of a [1] output gradient.
func scalarGrad(outputGrad *tensor.RawTensor) float32 {
	if outputGrad == nil {
		return 1
	}
	return outputGrad.AsFloat32()[0]
}
