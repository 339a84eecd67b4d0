package tensor

// BatchNormStats carries the per-channel statistics used to normalize a
// [N, C, H, W] tensor.
//
// Batch reports whether Mean and Variance were computed from the tensor being
// normalized (training mode). The backward pass differentiates through the
// statistics only in that case.
type BatchNormStats struct {
	Mean     []float32
	Variance []float32 // Biased variance (divided by N*H*W)
	Eps      float32
	Batch    bool
}

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - CPU: Pure Go kernels with BLAS-backed GEMM (gonum, or netlib when built with the netlib tag)
//   - Autodiff: decorator over any Backend that records operations on a gradient tape
//
// Kernels panic on shape mismatches: a mismatch inside a forward pass is a
// programming error that construction-time validation is expected to rule out.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	MulScalar(x *RawTensor, scalar float32) *RawTensor

	// SumToShape reduces x over broadcast dimensions so the result has the given shape.
	// It is the adjoint of broadcasting and is used by backward passes.
	SumToShape(x *RawTensor, shape Shape) *RawTensor

	// Matrix operations (2D).
	MatMul(a, b *RawTensor) *RawTensor
	Transpose(t *RawTensor) *RawTensor

	// Reshape returns a view with the same number of elements.
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Activation functions.
	ReLU(x *RawTensor) *RawTensor

	// Convolutional operations.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Pooling.
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor
	GlobalAvgPool2D(input *RawTensor) *RawTensor

	// Normalization.
	ChannelMoments(x *RawTensor) (mean, variance []float32)
	BatchNorm2D(x, gamma, beta *RawTensor, stats BatchNormStats) *RawTensor
	BatchNorm2DBackward(x, gamma, grad *RawTensor, stats BatchNormStats) (dx, dgamma, dbeta *RawTensor)

	// WeightedSum computes Σ_i weights[:, i] * branches[i], broadcasting each
	// per-sample scalar over the remaining dimensions of its branch.
	WeightedSum(weights *RawTensor, branches []*RawTensor) *RawTensor

	// CrossEntropy returns the mean softmax cross-entropy of logits [N, C]
	// against integer class targets as a scalar tensor.
	CrossEntropy(logits *RawTensor, targets []int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
