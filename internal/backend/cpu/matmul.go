package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/warp-ml/warp/internal/tensor"
)

// MatMul performs strict 2D matrix multiplication via gonum.
// [M, K] @ [K, N] -> [M, N]. Float32 inputs are computed in float64 and
// converted back.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: inputs must be 2D, got %dD and %dD", len(aShape), len(bShape)))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimension mismatch: %d vs %d", aShape[1], bShape[0]))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]
	result := tensor.MustNewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	matmul2d(result, a, b, m, k, n)
	return result
}

// BatchMatMul performs batched matrix multiplication. The last two
// dimensions are matrices; all leading dimensions are batch and must match.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	ndim := len(aShape)
	if ndim < 3 {
		panic(fmt.Sprintf("batchmatmul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batchmatmul: rank mismatch: %dD vs %dD", ndim, len(bShape)))
	}
	batch := 1
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
		batch *= aShape[i]
	}

	m, k, n := aShape[ndim-2], aShape[ndim-1], bShape[ndim-1]
	if bShape[ndim-2] != k {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch: %d vs %d", k, bShape[ndim-2]))
	}

	outShape := aShape.Clone()
	outShape[ndim-1] = n
	result := tensor.MustNewRaw(outShape, a.DType(), cpu.device)

	for i := 0; i < batch; i++ {
		aView := sliceView(a, i*m*k, tensor.Shape{m, k})
		bView := sliceView(b, i*k*n, tensor.Shape{k, n})
		outView := sliceView(result, i*m*n, tensor.Shape{m, n})
		matmul2d(outView, aView, bView, m, k, n)
		copy(result.Data()[i*m*n*a.DType().Size():], outView.Data())
	}
	return result
}

// sliceView copies a contiguous [offset, offset+shape.NumElements()) element
// range out of r into a fresh 2D tensor.
func sliceView(r *tensor.RawTensor, offset int, shape tensor.Shape) *tensor.RawTensor {
	out := tensor.MustNewRaw(shape, r.DType(), r.Device())
	es := r.DType().Size()
	copy(out.Data(), r.Data()[offset*es:(offset+shape.NumElements())*es])
	return out
}

// matmul2d multiplies two 2D tensors into result using gonum's mat.Dense.
func matmul2d(result, a, b *tensor.RawTensor, m, k, n int) {
	var out mat.Dense
	out.Mul(denseOf(a, m, k), denseOf(b, k, n))

	switch result.DType() {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				dst[i*n+j] = float32(out.At(i, j))
			}
		}
	case tensor.Float64:
		dst := result.AsFloat64()
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				dst[i*n+j] = out.At(i, j)
			}
		}
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", result.DType()))
	}
}

// denseOf wraps a tensor's data in a gonum dense matrix.
func denseOf(r *tensor.RawTensor, rows, cols int) *mat.Dense {
	switch r.DType() {
	case tensor.Float32:
		src := r.AsFloat32()
		data := make([]float64, len(src))
		for i, v := range src {
			data[i] = float64(v)
		}
		return mat.NewDense(rows, cols, data)
	case tensor.Float64:
		return mat.NewDense(rows, cols, append([]float64(nil), r.AsFloat64()...))
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", r.DType()))
	}
}
