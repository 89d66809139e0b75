package tensor

// Backend is the opaque operator engine the transform layer delegates to.
// Implementations own the numeric kernels; the transform layer treats every
// method as a correct primitive and only rewrites shapes and metadata around
// the calls.
//
// Kernels panic on structural misuse (rank/dtype/shape errors): by the time a
// call reaches the engine, argument validation is the caller's bug, not a
// recoverable condition.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Element-wise unary operations.
	Neg(x *RawTensor) *RawTensor
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, scalar any) *RawTensor
	MulScalar(x *RawTensor, scalar any) *RawTensor

	// Matrix operations. MatMul is strictly 2D; BatchMatMul treats the last
	// two dimensions as matrices and all leading dimensions as batch.
	MatMul(a, b *RawTensor) *RawTensor
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Shape operations.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor
	Squeeze(x *RawTensor, dim int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor

	// Manipulation.
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Stack(tensors []*RawTensor, dim int) *RawTensor
	Select(x *RawTensor, dim, index int) *RawTensor

	// Indexing. Index implements integer advanced indexing; nil entries in
	// indices mean "every element of that dimension". IndexPut writes values
	// into x at the selected positions, mutating and returning x.
	Gather(x *RawTensor, dim int, index *RawTensor) *RawTensor
	Scatter(x *RawTensor, dim int, index, src *RawTensor) *RawTensor
	ScatterAdd(x *RawTensor, dim int, index, src *RawTensor) *RawTensor
	Index(x *RawTensor, indices []*RawTensor) *RawTensor
	IndexPut(x *RawTensor, indices []*RawTensor, values *RawTensor, accumulate bool) *RawTensor

	// BatchNorm normalizes input [N, C, ...] per channel and returns
	// (output, mean, rstd). In training mode the batch statistics are
	// returned and the running stats (when non-nil) are updated in place;
	// in eval mode the running stats are used and mean/rstd are returned
	// as empty tensors of shape (0,).
	BatchNorm(input, runningMean, runningVar *RawTensor, training bool, momentum, eps float64) (*RawTensor, *RawTensor, *RawTensor)

	// Factory operations.
	Arange(n int, dtype DataType) *RawTensor
	OnesLike(x *RawTensor) *RawTensor
	ZerosLike(x *RawTensor) *RawTensor
	FullLike(x *RawTensor, value float64) *RawTensor
	NewZeros(x *RawTensor, shape Shape) *RawTensor
	NewOnes(x *RawTensor, shape Shape) *RawTensor
	NewFull(x *RawTensor, shape Shape, value float64) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
