package cpu

import (
	"fmt"

	"github.com/warp-ml/warp/internal/tensor"
)

// Gather picks elements of x along dim using an index tensor of the same
// rank. The result has the index tensor's shape.
func (cpu *CPUBackend) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	d := normDim("gather", dim, len(shape))
	if len(index.Shape()) != len(shape) {
		panic(fmt.Sprintf("gather: index rank %d does not match input rank %d", len(index.Shape()), len(shape)))
	}

	result := tensor.MustNewRaw(index.Shape().Clone(), x.DType(), cpu.device)
	outStrides := index.Shape().ComputeStrides()
	srcStrides := x.Strides()
	coords := make([]int, len(shape))
	for i := 0; i < result.NumElements(); i++ {
		unravel(i, outStrides, coords)
		v := indexValue("gather", index, i)
		if v < 0 {
			v += shape[d]
		}
		if v < 0 || v >= shape[d] {
			panic(fmt.Sprintf("gather: index %d out of range for dim %d with size %d", v, d, shape[d]))
		}
		coords[d] = v
		copyElem(result, x, i, ravel(coords, srcStrides))
	}
	return result
}

// Scatter writes src elements into a copy of x along dim at positions given
// by index, which must have the same shape as src.
func (cpu *CPUBackend) Scatter(x *tensor.RawTensor, dim int, index, src *tensor.RawTensor) *tensor.RawTensor {
	return cpu.scatterImpl("scatter", x, dim, index, src, false)
}

// ScatterAdd accumulates src elements into a copy of x along dim at
// positions given by index.
func (cpu *CPUBackend) ScatterAdd(x *tensor.RawTensor, dim int, index, src *tensor.RawTensor) *tensor.RawTensor {
	return cpu.scatterImpl("scatteradd", x, dim, index, src, true)
}

func (cpu *CPUBackend) scatterImpl(name string, x *tensor.RawTensor, dim int, index, src *tensor.RawTensor, accumulate bool) *tensor.RawTensor {
	shape := x.Shape()
	d := normDim(name, dim, len(shape))
	if !index.Shape().Equal(src.Shape()) {
		panic(fmt.Sprintf("%s: index shape %v does not match src shape %v", name, index.Shape(), src.Shape()))
	}
	if len(index.Shape()) != len(shape) {
		panic(fmt.Sprintf("%s: index rank %d does not match input rank %d", name, len(index.Shape()), len(shape)))
	}

	result := x.CloneDeep()
	srcStrides := index.Shape().ComputeStrides()
	dstStrides := x.Strides()
	coords := make([]int, len(shape))
	for i := 0; i < index.NumElements(); i++ {
		unravel(i, srcStrides, coords)
		v := indexValue(name, index, i)
		if v < 0 {
			v += shape[d]
		}
		if v < 0 || v >= shape[d] {
			panic(fmt.Sprintf("%s: index %d out of range for dim %d with size %d", name, v, d, shape[d]))
		}
		coords[d] = v
		dstIdx := ravel(coords, dstStrides)
		if accumulate {
			addElem(result, src, dstIdx, i)
		} else {
			copyElem(result, src, dstIdx, i)
		}
	}
	return result
}

// Index performs advanced integer indexing. Each entry of indices matches a
// dimension of x in order; nil entries keep the full slice. Integer index
// tensors broadcast against each other, and a rank-1 boolean mask stands for
// the int tensor of its true positions. When the indexed dimensions are
// contiguous the broadcast result replaces them in place, otherwise it moves
// to the front.
func (cpu *CPUBackend) Index(x *tensor.RawTensor, indices []*tensor.RawTensor) *tensor.RawTensor {
	ai := newAdvancedIndex("index", cpu, x, indices)
	result := tensor.MustNewRaw(ai.outShape, x.DType(), cpu.device)
	outStrides := ai.outShape.ComputeStrides()
	srcStrides := x.Strides()
	outCoords := make([]int, len(ai.outShape))
	srcCoords := make([]int, len(x.Shape()))
	for i := 0; i < result.NumElements(); i++ {
		unravel(i, outStrides, outCoords)
		ai.sourceCoords("index", outCoords, srcCoords)
		copyElem(result, x, i, ravel(srcCoords, srcStrides))
	}
	return result
}

// IndexPut writes values into x at the positions selected by indices,
// mutating and returning x. With accumulate the values are added instead of
// overwriting. The values tensor broadcasts to the indexed result shape.
func (cpu *CPUBackend) IndexPut(x *tensor.RawTensor, indices []*tensor.RawTensor, values *tensor.RawTensor, accumulate bool) *tensor.RawTensor {
	ai := newAdvancedIndex("indexput", cpu, x, indices)
	outStrides := ai.outShape.ComputeStrides()
	srcStrides := x.Strides()
	outCoords := make([]int, len(ai.outShape))
	srcCoords := make([]int, len(x.Shape()))
	n := ai.outShape.NumElements()
	for i := 0; i < n; i++ {
		unravel(i, outStrides, outCoords)
		ai.sourceCoords("indexput", outCoords, srcCoords)
		dstIdx := ravel(srcCoords, srcStrides)
		valIdx := broadcastIndex(outCoords, values.Shape())
		if accumulate {
			addElem(x, values, dstIdx, valIdx)
		} else {
			copyElem(x, values, dstIdx, valIdx)
		}
	}
	return x
}

// advancedIndex holds the resolved geometry of an advanced indexing
// operation, shared by Index and IndexPut.
type advancedIndex struct {
	x      *tensor.RawTensor
	idx    []*tensor.RawTensor // one per input dim, nil = full slice
	bshape tensor.Shape        // broadcast shape of the index tensors

	outShape tensor.Shape
	advPos   int   // where bshape sits within outShape
	freePos  []int // out coordinate position feeding each free input dim, -1 for indexed dims
}

func newAdvancedIndex(name string, cpu *CPUBackend, x *tensor.RawTensor, indices []*tensor.RawTensor) *advancedIndex {
	shape := x.Shape()
	if len(indices) > len(shape) {
		panic(fmt.Sprintf("%s: %d index tensors for rank-%d input", name, len(indices), len(shape)))
	}

	idx := make([]*tensor.RawTensor, len(shape))
	copy(idx, indices)
	for d, ind := range idx {
		if ind != nil && ind.DType() == tensor.Bool {
			idx[d] = cpu.maskToIndices(name, ind, shape[d])
		}
	}

	ai := &advancedIndex{x: x, idx: idx}

	first, last := -1, -1
	for d, ind := range idx {
		if ind == nil {
			continue
		}
		if first < 0 {
			first = d
		}
		last = d
		if ai.bshape == nil {
			ai.bshape = ind.Shape().Clone()
		} else {
			bs, _, err := tensor.BroadcastShapes(ai.bshape, ind.Shape())
			if err != nil {
				panic(fmt.Sprintf("%s: index shapes do not broadcast: %v", name, err))
			}
			ai.bshape = bs
		}
	}
	if first < 0 {
		// No index tensors at all: the operation covers the whole input.
		ai.bshape = tensor.Shape{}
		ai.outShape = shape.Clone()
		ai.advPos = len(shape)
		ai.freePos = make([]int, len(shape))
		for d := range ai.freePos {
			ai.freePos[d] = d
		}
		return ai
	}

	contiguous := true
	for d := first; d <= last; d++ {
		if idx[d] == nil {
			contiguous = false
			break
		}
	}

	ai.freePos = make([]int, len(shape))
	ai.outShape = tensor.Shape{}
	if contiguous {
		ai.advPos = first
		for d := 0; d < first; d++ {
			ai.freePos[d] = len(ai.outShape)
			ai.outShape = append(ai.outShape, shape[d])
		}
		ai.outShape = append(ai.outShape, ai.bshape...)
		for d := first; d <= last; d++ {
			ai.freePos[d] = -1
		}
		for d := last + 1; d < len(shape); d++ {
			ai.freePos[d] = len(ai.outShape)
			ai.outShape = append(ai.outShape, shape[d])
		}
	} else {
		ai.advPos = 0
		ai.outShape = append(ai.outShape, ai.bshape...)
		for d := 0; d < len(shape); d++ {
			if idx[d] != nil {
				ai.freePos[d] = -1
				continue
			}
			ai.freePos[d] = len(ai.outShape)
			ai.outShape = append(ai.outShape, shape[d])
		}
	}
	return ai
}

// sourceCoords fills srcCoords with the input coordinates selected by the
// given output coordinates.
func (ai *advancedIndex) sourceCoords(name string, outCoords, srcCoords []int) {
	shape := ai.x.Shape()
	b := outCoords[ai.advPos : ai.advPos+len(ai.bshape)]
	for d := range srcCoords {
		if ai.idx[d] == nil {
			srcCoords[d] = outCoords[ai.freePos[d]]
			continue
		}
		v := indexValue(name, ai.idx[d], broadcastIndex(b, ai.idx[d].Shape()))
		if v < 0 {
			v += shape[d]
		}
		if v < 0 || v >= shape[d] {
			panic(fmt.Sprintf("%s: index %d out of range for dim %d with size %d", name, v, d, shape[d]))
		}
		srcCoords[d] = v
	}
}

// maskToIndices converts a rank-1 boolean mask into the int64 tensor of its
// true positions.
func (cpu *CPUBackend) maskToIndices(name string, mask *tensor.RawTensor, dimSize int) *tensor.RawTensor {
	if len(mask.Shape()) != 1 || mask.Shape()[0] != dimSize {
		panic(fmt.Sprintf("%s: boolean mask shape %v does not match dim size %d", name, mask.Shape(), dimSize))
	}
	vals := mask.AsBool()
	var positions []int64
	for i, v := range vals {
		if v {
			positions = append(positions, int64(i))
		}
	}
	out := tensor.MustNewRaw(tensor.Shape{len(positions)}, tensor.Int64, cpu.device)
	copy(out.AsInt64(), positions)
	return out
}

func indexValue(name string, index *tensor.RawTensor, i int) int {
	switch index.DType() {
	case tensor.Int32:
		return int(index.AsInt32()[i])
	case tensor.Int64:
		return int(index.AsInt64()[i])
	default:
		panic(fmt.Sprintf("%s: index tensor must be int32 or int64, got %s", name, index.DType()))
	}
}

// addElem accumulates a single source element into the destination at the
// given flat positions.
func addElem(dst, src *tensor.RawTensor, dstIdx, srcIdx int) {
	switch dst.DType() {
	case tensor.Float32:
		dst.AsFloat32()[dstIdx] += src.AsFloat32()[srcIdx]
	case tensor.Float64:
		dst.AsFloat64()[dstIdx] += src.AsFloat64()[srcIdx]
	case tensor.Int32:
		dst.AsInt32()[dstIdx] += src.AsInt32()[srcIdx]
	case tensor.Int64:
		dst.AsInt64()[dstIdx] += src.AsInt64()[srcIdx]
	default:
		panic(fmt.Sprintf("accumulate: unsupported dtype %s", dst.DType()))
	}
}
