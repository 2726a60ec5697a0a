package nn

import (
	"fmt"

	"github.com/born-ml/boxnet/internal/autodiff/ops"
	"github.com/born-ml/boxnet/internal/tensor"
)

// Softmax converts [batch, classes] logits into per-row probabilities.
func Softmax[B tensor.Backend](logits *tensor.Tensor[float32, B]) [][]float32 {
	batchSize, numClasses := logitsDims(logits)
	data := logits.Data()
	out := make([][]float32, batchSize)
	for b := range out {
		out[b] = ops.Softmax(data[b*numClasses : (b+1)*numClasses])
	}
	return out
}

// Argmax returns the index of the largest logit in each row. Ties resolve
// to the lowest index.
func Argmax[B tensor.Backend](logits *tensor.Tensor[float32, B]) []int {
	batchSize, numClasses := logitsDims(logits)
	data := logits.Data()
	out := make([]int, batchSize)
	for b := range out {
		row := data[b*numClasses : (b+1)*numClasses]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		out[b] = best
	}
	return out
}

// CountCorrect returns how many argmax predictions equal their label.
func CountCorrect[B tensor.Backend](logits *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B]) int {
	preds := Argmax(logits)
	targets := labels.Data()
	if len(targets) != len(preds) {
		panic(fmt.Sprintf("CountCorrect: %d labels for %d predictions", len(targets), len(preds)))
	}
	correct := 0
	for i, p := range preds {
		if int32(p) == targets[i] {
			correct++
		}
	}
	return correct
}

// Accuracy returns the percentage of correct predictions in [0, 100].
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B]) float32 {
	n := len(labels.Data())
	if n == 0 {
		return 0
	}
	return 100 * float32(CountCorrect(logits, labels)) / float32(n)
}

func logitsDims[B tensor.Backend](logits *tensor.Tensor[float32, B]) (int, int) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("expected 2D logits [batch, classes], got %v", shape))
	}
	return shape[0], shape[1]
}
