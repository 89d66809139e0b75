package cpu

import (
	"fmt"
	"math"

	"github.com/warp-ml/warp/internal/tensor"
)

// Sum reduces all elements to a scalar (rank-0) tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(tensor.Shape{}, x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumAll(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumAll(x.AsFloat64())
	case tensor.Int32:
		result.AsInt32()[0] = sumAll(x.AsInt32())
	case tensor.Int64:
		result.AsInt64()[0] = sumAll(x.AsInt64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

func sumAll[T number](xs []T) T {
	var total T
	for _, v := range xs {
		total += v
	}
	return total
}

// SumDim sums tensor elements along the specified dimension.
// Supports negative dim indexing (-1 = last dimension).
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages tensor elements along the specified dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	if !x.DType().IsFloat() {
		panic(fmt.Sprintf("meandim: unsupported dtype %s", x.DType()))
	}
	return cpu.reduceDim("meandim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	d := normDim(name, dim, len(shape))

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[d] = 1
	} else {
		outShape = shape.Remove(d)
	}
	result := tensor.MustNewRaw(outShape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		reduceDimSlice(result.AsFloat32(), x.AsFloat32(), shape, d, mean)
	case tensor.Float64:
		reduceDimSlice(result.AsFloat64(), x.AsFloat64(), shape, d, mean)
	case tensor.Int32:
		reduceDimSlice(result.AsInt32(), x.AsInt32(), shape, d, mean)
	case tensor.Int64:
		reduceDimSlice(result.AsInt64(), x.AsInt64(), shape, d, mean)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

// reduceDimSlice reduces src along dim. The output layout is identical for
// keepDim true/false, so dst is filled as the squeezed shape either way.
func reduceDimSlice[T number](dst, src []T, shape tensor.Shape, dim int, mean bool) {
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	n := shape[dim]
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var total T
			for i := 0; i < n; i++ {
				total += src[(o*n+i)*inner+in]
			}
			if mean && n > 0 {
				total /= T(n)
			}
			dst[o*inner+in] = total
		}
	}
}

// Softmax applies a numerically stable softmax along dim.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d := normDim("softmax", dim, len(shape))
	result := tensor.MustNewRaw(shape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		softmaxSlice(result.AsFloat32(), x.AsFloat32(), shape, d)
	case tensor.Float64:
		softmaxSlice(result.AsFloat64(), x.AsFloat64(), shape, d)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}
	return result
}

func softmaxSlice[T ~float32 | ~float64](dst, src []T, shape tensor.Shape, dim int) {
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	n := shape[dim]
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			at := func(i int) int { return (o*n+i)*inner + in }

			maxv := src[at(0)]
			for i := 1; i < n; i++ {
				if v := src[at(i)]; v > maxv {
					maxv = v
				}
			}
			var total T
			for i := 0; i < n; i++ {
				e := T(math.Exp(float64(src[at(i)] - maxv)))
				dst[at(i)] = e
				total += e
			}
			for i := 0; i < n; i++ {
				dst[at(i)] /= total
			}
		}
	}
}
