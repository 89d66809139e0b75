package cpu

import (
	"github.com/warp-ml/warp/internal/tensor"
)

// OnesLike returns a tensor of ones matching x's shape and dtype.
func (cpu *CPUBackend) OnesLike(x *tensor.RawTensor) *tensor.RawTensor {
	return tensor.Ones(x.Shape().Clone(), x.DType(), cpu.device)
}

// ZerosLike returns a tensor of zeros matching x's shape and dtype.
func (cpu *CPUBackend) ZerosLike(x *tensor.RawTensor) *tensor.RawTensor {
	return tensor.Zeros(x.Shape().Clone(), x.DType(), cpu.device)
}

// FullLike returns a tensor filled with value, matching x's shape and dtype.
func (cpu *CPUBackend) FullLike(x *tensor.RawTensor, value float64) *tensor.RawTensor {
	return tensor.Full(x.Shape().Clone(), x.DType(), cpu.device, value)
}

// NewZeros returns a zero tensor of the given shape with x's dtype.
func (cpu *CPUBackend) NewZeros(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return tensor.Zeros(shape.Clone(), x.DType(), cpu.device)
}

// NewOnes returns a tensor of ones of the given shape with x's dtype.
func (cpu *CPUBackend) NewOnes(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return tensor.Ones(shape.Clone(), x.DType(), cpu.device)
}

// NewFull returns a tensor of the given shape with x's dtype, filled with
// value.
func (cpu *CPUBackend) NewFull(x *tensor.RawTensor, shape tensor.Shape, value float64) *tensor.RawTensor {
	return tensor.Full(shape.Clone(), x.DType(), cpu.device, value)
}
