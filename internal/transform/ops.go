package transform

import "fmt"

// Op names an engine operation for dispatch. Every operation that can flow
// through a transform layer has an entry here.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpExp
	OpLog
	OpSqrt
	OpAddScalar
	OpMulScalar
	OpMatMul
	OpBatchMatMul
	OpSum
	OpSumDim
	OpMeanDim
	OpSoftmax
	OpReshape
	OpTranspose
	OpUnsqueeze
	OpSqueeze
	OpExpand
	OpCat
	OpStack
	OpSelect
	OpGather
	OpScatter
	OpScatterAdd
	OpIndex
	OpIndexPut
	OpBatchNorm
	OpOnesLike
	OpZerosLike
	OpFullLike
	OpNewZeros
	OpNewOnes
	OpNewFull
)

var opNames = map[Op]string{
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpNeg:         "neg",
	OpExp:         "exp",
	OpLog:         "log",
	OpSqrt:        "sqrt",
	OpAddScalar:   "add_scalar",
	OpMulScalar:   "mul_scalar",
	OpMatMul:      "matmul",
	OpBatchMatMul: "batch_matmul",
	OpSum:         "sum",
	OpSumDim:      "sum_dim",
	OpMeanDim:     "mean_dim",
	OpSoftmax:     "softmax",
	OpReshape:     "reshape",
	OpTranspose:   "transpose",
	OpUnsqueeze:   "unsqueeze",
	OpSqueeze:     "squeeze",
	OpExpand:      "expand",
	OpCat:         "cat",
	OpStack:       "stack",
	OpSelect:      "select",
	OpGather:      "gather",
	OpScatter:     "scatter",
	OpScatterAdd:  "scatter_add",
	OpIndex:       "index",
	OpIndexPut:    "index_put",
	OpBatchNorm:   "batch_norm",
	OpOnesLike:    "ones_like",
	OpZerosLike:   "zeros_like",
	OpFullLike:    "full_like",
	OpNewZeros:    "new_zeros",
	OpNewOnes:     "new_ones",
	OpNewFull:     "new_full",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// inPlace reports whether the operation mutates its first argument. The
// generic fallback refuses these.
func (op Op) inPlace() bool {
	return op == OpIndexPut
}

// Operation attributes. Tensors travel in the dispatch argument list; every
// non-tensor parameter rides in one of these.

type scalarAttrs struct {
	Value any
}

type dimAttrs struct {
	Dim     int
	KeepDim bool
}

type shapeAttrs struct {
	Shape []int
}

type transposeAttrs struct {
	Axes []int
}

type selectAttrs struct {
	Dim   int
	Index int
}

type gatherAttrs struct {
	Dim int
}

type indexPutAttrs struct {
	NumIndices int
	Accumulate bool
}

type batchNormAttrs struct {
	Training bool
	Momentum float64
	Eps      float64
}

type fullAttrs struct {
	Value float64
}

type newAttrs struct {
	Shape []int
	Value float64
}
