package cpu

import (
	"fmt"

	"github.com/warp-ml/warp/internal/tensor"
)

// Reshape returns a tensor with the same data in a new shape. The element
// count must match.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if shape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			x.Shape(), x.NumElements(), shape, shape.NumElements()))
	}
	result := tensor.MustNewRaw(shape.Clone(), x.DType(), cpu.device)
	copy(result.Data(), x.Data())
	return result
}

// Transpose permutes the dimensions of x according to axes, which must be a
// permutation of [0, rank). With no axes the dimension order is reversed.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	if len(axes) == 0 {
		axes = make([]int, len(shape))
		for i := range axes {
			axes[i] = len(shape) - 1 - i
		}
	}
	if len(axes) != len(shape) {
		panic(fmt.Sprintf("transpose: axes %v do not match tensor rank %d", axes, len(shape)))
	}
	seen := make([]bool, len(axes))
	for _, a := range axes {
		if a < 0 || a >= len(axes) || seen[a] {
			panic(fmt.Sprintf("transpose: axes %v are not a permutation of [0, %d)", axes, len(axes)))
		}
		seen[a] = true
	}

	outShape := make(tensor.Shape, len(shape))
	for i, a := range axes {
		outShape[i] = shape[a]
	}
	result := tensor.MustNewRaw(outShape, x.DType(), cpu.device)

	srcStrides := x.Strides()
	outStrides := outShape.ComputeStrides()
	outCoords := make([]int, len(outShape))
	srcCoords := make([]int, len(shape))
	for i := 0; i < result.NumElements(); i++ {
		unravel(i, outStrides, outCoords)
		for d, a := range axes {
			srcCoords[a] = outCoords[d]
		}
		copyElem(result, x, i, ravel(srcCoords, srcStrides))
	}
	return result
}

// Unsqueeze inserts a size-1 dimension at dim. dim may range over
// [0, rank] inclusive.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d := dim
	if d < 0 {
		d += len(shape) + 1
	}
	if d < 0 || d > len(shape) {
		panic(fmt.Sprintf("unsqueeze: dim %d out of range for rank %d", dim, len(shape)))
	}
	result := tensor.MustNewRaw(shape.Insert(d, 1), x.DType(), cpu.device)
	copy(result.Data(), x.Data())
	return result
}

// Squeeze removes the dimension at dim, which must have size 1.
func (cpu *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d := normDim("squeeze", dim, len(shape))
	if shape[d] != 1 {
		panic(fmt.Sprintf("squeeze: dim %d has size %d, expected 1", d, shape[d]))
	}
	result := tensor.MustNewRaw(shape.Remove(d), x.DType(), cpu.device)
	copy(result.Data(), x.Data())
	return result
}

// Expand broadcasts x to shape. Size-1 dimensions of x may expand to any
// size; the target rank may exceed the source rank, with the new leading
// dimensions broadcast from nothing.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	srcShape := x.Shape()
	if len(shape) < len(srcShape) {
		panic(fmt.Sprintf("expand: target shape %v has lower rank than source %v", shape, srcShape))
	}
	off := len(shape) - len(srcShape)
	for i, s := range srcShape {
		if s != 1 && s != shape[off+i] {
			panic(fmt.Sprintf("expand: cannot expand %v to %v", srcShape, shape))
		}
	}

	result := tensor.MustNewRaw(shape.Clone(), x.DType(), cpu.device)
	outStrides := shape.ComputeStrides()
	outCoords := make([]int, len(shape))
	for i := 0; i < result.NumElements(); i++ {
		unravel(i, outStrides, outCoords)
		copyElem(result, x, i, broadcastIndex(outCoords, srcShape))
	}
	return result
}
