package tensor

// Backend defines the interface that compute backends implement.
// Backends own the numeric kernels; they panic on internal shape misuse,
// so public entry points validate shapes before calling into them.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels, optionally parallel
//   - autodiff.AutodiffBackend: decorator recording operations for backprop
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by scalar.
	MulScalar(x *RawTensor, scalar float32) *RawTensor

	// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor) *RawTensor // 2D only

	// Convolution and pooling over [N, C, H, W] inputs.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor
	GlobalAvgPool2D(input *RawTensor) *RawTensor
	GlobalAvgPool2DBackward(grad *RawTensor, inputShape Shape) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor

	// Sum reduces all elements to a tensor of shape [1].
	Sum(x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
