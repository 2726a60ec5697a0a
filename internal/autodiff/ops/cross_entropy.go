package ops

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/boxnet/internal/tensor"
)

// CrossEntropyOp represents the fused softmax + negative log-likelihood loss.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Assumptions:
//   - Logits shape: [batch_size, num_classes]
//   - Targets shape: [batch_size] int32 class indices
//   - Output: [1] mean loss
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a new cross-entropy operation.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// CrossEntropyForward computes the mean cross-entropy loss.
// Panics on shape misuse or out-of-range targets.
func CrossEntropyForward(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	batchSize, numClasses := crossEntropyDims(logits, targets)
	logitsData := logits.AsFloat32()
	targetData := targets.AsInt32()

	var total float64
	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		target := int(targetData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("CrossEntropy: target %d out of range [0, %d)", target, numClasses))
		}
		total += float64(logSumExp(row) - row[target])
	}

	out := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, logits.Device())
	out.AsFloat32()[0] = float32(total / float64(batchSize))
	return out
}

// Backward computes the gradient with respect to logits. Targets receive none.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	batchSize, numClasses := crossEntropyDims(op.logits, op.targets)
	grad := tensor.MustNewRaw(op.logits.Shape(), tensor.Float32, op.logits.Device())

	logitsData := op.logits.AsFloat32()
	targetData := op.targets.AsInt32()
	dst := grad.AsFloat32()
	scale := scalarGrad(outputGrad) / float32(batchSize)

	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		probs := Softmax(row)
		target := int(targetData[b])
		for i, p := range probs {
			if i == target {
				p--
			}
			dst[b*numClasses+i] = scale * p
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [logits].
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.logits} }

// Output returns the [1] loss.
func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.output }

// Softmax returns the numerically stable softmax of a single row.
func Softmax(row []float32) []float32 {
	maxVal := math32.Inf(-1)
	for _, v := range row {
		if v > maxVal {
			maxVal = v
		}
	}
	out := make([]float32, len(row))
	var sum float32
	for i, v := range row {
		out[i] = math32.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// logSumExp computes log(Σ exp(x)) using the max-shift trick.
func logSumExp(row []float32) float32 {
	maxVal := math32.Inf(-1)
	for _, v := range row {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float32
	for _, v := range row {
		sum += math32.Exp(v - maxVal)
	}
	return maxVal + math32.Log(sum)
}

func crossEntropyDims(logits, targets *tensor.RawTensor) (int, int) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("CrossEntropy: logits must be 2D [batch, classes], got %v", shape))
	}
	if targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("CrossEntropy: targets must be int32, got %s", targets.DType()))
	}
	if targets.NumElements() != shape[0] {
		panic(fmt.Sprintf("CrossEntropy: %d targets for batch of %d", targets.NumElements(), shape[0]))
	}
	return shape[0], shape[1]
}
