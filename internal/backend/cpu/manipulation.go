package cpu

import (
	"fmt"

	"github.com/warp-ml/warp/internal/tensor"
)

// Cat concatenates tensors along dim. All inputs must share dtype and agree
// on every dimension except dim.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors given")
	}
	first := tensors[0]
	d := normDim("cat", dim, len(first.Shape()))

	total := 0
	for _, t := range tensors {
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: mixed dtypes %s and %s", first.DType(), t.DType()))
		}
		s := t.Shape()
		if len(s) != len(first.Shape()) {
			panic(fmt.Sprintf("cat: rank mismatch between %v and %v", first.Shape(), s))
		}
		for i := range s {
			if i != d && s[i] != first.Shape()[i] {
				panic(fmt.Sprintf("cat: shape mismatch between %v and %v along dim %d", first.Shape(), s, i))
			}
		}
		total += s[d]
	}

	outShape := first.Shape().Clone()
	outShape[d] = total
	result := tensor.MustNewRaw(outShape, first.DType(), cpu.device)

	// Concatenation along dim is a sequence of contiguous block copies: one
	// block per outer index per input tensor.
	outer := 1
	for i := 0; i < d; i++ {
		outer *= outShape[i]
	}
	inner := 1
	for i := d + 1; i < len(outShape); i++ {
		inner *= outShape[i]
	}
	es := first.DType().Size()
	dst := result.Data()

	rowBytes := total * inner * es
	offsetInRow := 0
	for _, t := range tensors {
		blockBytes := t.Shape()[d] * inner * es
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+offsetInRow:], src[o*blockBytes:(o+1)*blockBytes])
		}
		offsetInRow += blockBytes
	}
	return result
}

// Stack concatenates tensors along a new dimension inserted at dim. All
// inputs must have identical shapes.
func (cpu *CPUBackend) Stack(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("stack: no tensors given")
	}
	unsqueezed := make([]*tensor.RawTensor, len(tensors))
	for i, t := range tensors {
		if !t.Shape().Equal(tensors[0].Shape()) {
			panic(fmt.Sprintf("stack: shape mismatch between %v and %v", tensors[0].Shape(), t.Shape()))
		}
		unsqueezed[i] = cpu.Unsqueeze(t, dim)
	}
	return cpu.Cat(unsqueezed, dim)
}

// Select extracts the slice of x at the given index along dim, removing that
// dimension from the result.
func (cpu *CPUBackend) Select(x *tensor.RawTensor, dim, index int) *tensor.RawTensor {
	shape := x.Shape()
	d := normDim("select", dim, len(shape))
	idx := index
	if idx < 0 {
		idx += shape[d]
	}
	if idx < 0 || idx >= shape[d] {
		panic(fmt.Sprintf("select: index %d out of range for dim %d with size %d", index, d, shape[d]))
	}

	result := tensor.MustNewRaw(shape.Remove(d), x.DType(), cpu.device)

	outer := 1
	for i := 0; i < d; i++ {
		outer *= shape[i]
	}
	n := shape[d]
	inner := 1
	for i := d + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	es := x.DType().Size()
	src := x.Data()
	dst := result.Data()
	blockBytes := inner * es
	for o := 0; o < outer; o++ {
		srcOff := (o*n + idx) * blockBytes
		copy(dst[o*blockBytes:(o+1)*blockBytes], src[srcOff:srcOff+blockBytes])
	}
	return result
}

// Arange returns a rank-1 tensor holding 0, 1, ..., n-1.
func (cpu *CPUBackend) Arange(n int, dtype tensor.DataType) *tensor.RawTensor {
	if n < 0 {
		panic(fmt.Sprintf("arange: negative length %d", n))
	}
	result := tensor.MustNewRaw(tensor.Shape{n}, dtype, cpu.device)
	switch dtype {
	case tensor.Float32:
		fillRange(result.AsFloat32())
	case tensor.Float64:
		fillRange(result.AsFloat64())
	case tensor.Int32:
		fillRange(result.AsInt32())
	case tensor.Int64:
		fillRange(result.AsInt64())
	default:
		panic(fmt.Sprintf("arange: unsupported dtype %s", dtype))
	}
	return result
}

func fillRange[T number](dst []T) {
	for i := range dst {
		dst[i] = T(i)
	}
}
