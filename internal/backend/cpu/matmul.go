package cpu

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/parallel"
	"github.com/born-ml/boxnet/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
//
// Rows of the output are independent and computed in parallel. The inner
// loops run i-k-j so the innermost access of b and out is sequential.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", aShape, bShape))
	}
	M, K, N := aShape[0], aShape[1], bShape[1]
	if bShape[0] != K {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", aShape, bShape))
	}

	result := tensor.MustNewRaw(tensor.Shape{M, N}, tensor.Float32, cpu.device)
	aData, bData, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()

	parallel.For(M, func(i int) {
		row := out[i*N : (i+1)*N]
		for k := 0; k < K; k++ {
			aik := aData[i*K+k]
			if aik == 0 {
				continue
			}
			bRow := bData[k*N : (k+1)*N]
			for j, bv := range bRow {
				row[j] += aik * bv
			}
		}
	}, cpu.par)
	return result
}
