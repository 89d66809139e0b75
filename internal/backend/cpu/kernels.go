package cpu

import (
	"fmt"

	"github.com/warp-ml/warp/internal/tensor"
)

// number covers the dtypes arithmetic kernels operate on.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// sliceOf views a RawTensor's buffer as []T. The dtype/type match is the
// caller's responsibility (all callers dispatch on DType first).
func sliceOf[T number](r *tensor.RawTensor) []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(r.AsFloat32()).([]T)
	case float64:
		return any(r.AsFloat64()).([]T)
	case int32:
		return any(r.AsInt32()).([]T)
	case int64:
		return any(r.AsInt64()).([]T)
	default:
		panic("unsupported type")
	}
}

func mapSlice[T number](dst, src []T, f func(T) T) {
	for i, v := range src {
		dst[i] = f(v)
	}
}

// unravel converts a flat row-major index into coordinates.
func unravel(idx int, strides []int, coords []int) {
	for i := range strides {
		coords[i] = idx / strides[i]
		idx %= strides[i]
	}
}

// ravel converts coordinates into a flat row-major index.
func ravel(coords []int, strides []int) int {
	idx := 0
	for i, c := range coords {
		idx += c * strides[i]
	}
	return idx
}

// broadcastIndex maps output coordinates to a flat index into a tensor of
// the given shape under right-aligned broadcasting.
func broadcastIndex(outCoords []int, shape tensor.Shape) int {
	off := len(outCoords) - len(shape)
	idx := 0
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		c := outCoords[off+i]
		if shape[i] == 1 {
			c = 0
		}
		idx += c * stride
		stride *= shape[i]
	}
	return idx
}

// binaryBroadcast applies f element-wise, broadcasting a and b into result.
func binaryBroadcast[T number](result, a, b *tensor.RawTensor, f func(T, T) T) {
	dst := sliceOf[T](result)
	as := sliceOf[T](a)
	bs := sliceOf[T](b)

	if a.Shape().Equal(b.Shape()) {
		for i := range dst {
			dst[i] = f(as[i], bs[i])
		}
		return
	}

	outShape := result.Shape()
	outStrides := outShape.ComputeStrides()
	coords := make([]int, len(outShape))
	for i := range dst {
		unravel(i, outStrides, coords)
		dst[i] = f(as[broadcastIndex(coords, a.Shape())], bs[broadcastIndex(coords, b.Shape())])
	}
}

// copyElem copies one element between tensors of the same dtype by byte
// blocks, making pure data-movement kernels dtype-agnostic.
func copyElem(dst, src *tensor.RawTensor, dstIdx, srcIdx int) {
	es := dst.DType().Size()
	copy(dst.Data()[dstIdx*es:(dstIdx+1)*es], src.Data()[srcIdx*es:(srcIdx+1)*es])
}

// normDim normalizes a possibly negative dimension index against ndim.
func normDim(name string, dim, ndim int) int {
	d := dim
	if d < 0 {
		d += ndim
	}
	if d < 0 || d >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for %dD tensor", name, dim, ndim))
	}
	return d
}
