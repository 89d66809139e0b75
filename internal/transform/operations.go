package transform

import (
	"fmt"

	"github.com/warp-ml/warp/internal/tensor"
)

// Apply dispatches an operation through the active transform layers and
// returns its outputs. Most callers use the typed convenience methods below;
// Apply is the escape hatch that also surfaces dispatch errors, which the
// convenience methods turn into panics.
func (c *Context) Apply(op Op, args []*Tensor, attrs any) ([]*Tensor, error) {
	for _, a := range args {
		if a != nil {
			c.checkOwned(a)
		}
	}
	return c.dispatch(op, args, attrs)
}

func (c *Context) applyOne(op Op, args []*Tensor, attrs any) *Tensor {
	outs, err := c.Apply(op, args, attrs)
	if err != nil {
		panic(fmt.Sprintf("transform: %s: %v", op, err))
	}
	return outs[0]
}

func (c *Context) Add(a, b *Tensor) *Tensor { return c.applyOne(OpAdd, []*Tensor{a, b}, nil) }
func (c *Context) Sub(a, b *Tensor) *Tensor { return c.applyOne(OpSub, []*Tensor{a, b}, nil) }
func (c *Context) Mul(a, b *Tensor) *Tensor { return c.applyOne(OpMul, []*Tensor{a, b}, nil) }
func (c *Context) Div(a, b *Tensor) *Tensor { return c.applyOne(OpDiv, []*Tensor{a, b}, nil) }

func (c *Context) Neg(x *Tensor) *Tensor  { return c.applyOne(OpNeg, []*Tensor{x}, nil) }
func (c *Context) Exp(x *Tensor) *Tensor  { return c.applyOne(OpExp, []*Tensor{x}, nil) }
func (c *Context) Log(x *Tensor) *Tensor  { return c.applyOne(OpLog, []*Tensor{x}, nil) }
func (c *Context) Sqrt(x *Tensor) *Tensor { return c.applyOne(OpSqrt, []*Tensor{x}, nil) }

func (c *Context) AddScalar(x *Tensor, scalar any) *Tensor {
	return c.applyOne(OpAddScalar, []*Tensor{x}, scalarAttrs{Value: scalar})
}

func (c *Context) MulScalar(x *Tensor, scalar any) *Tensor {
	return c.applyOne(OpMulScalar, []*Tensor{x}, scalarAttrs{Value: scalar})
}

func (c *Context) MatMul(a, b *Tensor) *Tensor {
	return c.applyOne(OpMatMul, []*Tensor{a, b}, nil)
}

func (c *Context) BatchMatMul(a, b *Tensor) *Tensor {
	return c.applyOne(OpBatchMatMul, []*Tensor{a, b}, nil)
}

// Sum reduces the whole tensor to a scalar.
func (c *Context) Sum(x *Tensor) *Tensor { return c.applyOne(OpSum, []*Tensor{x}, nil) }

func (c *Context) SumDim(x *Tensor, dim int, keepDim bool) *Tensor {
	d := wrapDim("sum_dim", dim, x.Rank())
	return c.applyOne(OpSumDim, []*Tensor{x}, dimAttrs{Dim: d, KeepDim: keepDim})
}

func (c *Context) MeanDim(x *Tensor, dim int, keepDim bool) *Tensor {
	d := wrapDim("mean_dim", dim, x.Rank())
	return c.applyOne(OpMeanDim, []*Tensor{x}, dimAttrs{Dim: d, KeepDim: keepDim})
}

func (c *Context) Softmax(x *Tensor, dim int) *Tensor {
	d := wrapDim("softmax", dim, x.Rank())
	return c.applyOne(OpSoftmax, []*Tensor{x}, dimAttrs{Dim: d})
}

func (c *Context) Reshape(x *Tensor, shape tensor.Shape) *Tensor {
	return c.applyOne(OpReshape, []*Tensor{x}, shapeAttrs{Shape: shape})
}

// Transpose permutes logical dimensions. With no axes the order is
// reversed.
func (c *Context) Transpose(x *Tensor, axes ...int) *Tensor {
	rank := x.Rank()
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	} else {
		norm := make([]int, len(axes))
		for i, a := range axes {
			norm[i] = wrapDim("transpose", a, rank)
		}
		axes = norm
	}
	return c.applyOne(OpTranspose, []*Tensor{x}, transposeAttrs{Axes: axes})
}

func (c *Context) Unsqueeze(x *Tensor, dim int) *Tensor {
	d := normInsertDim("unsqueeze", dim, x.Rank())
	return c.applyOne(OpUnsqueeze, []*Tensor{x}, dimAttrs{Dim: d})
}

func (c *Context) Squeeze(x *Tensor, dim int) *Tensor {
	d := wrapDim("squeeze", dim, x.Rank())
	return c.applyOne(OpSqueeze, []*Tensor{x}, dimAttrs{Dim: d})
}

func (c *Context) Expand(x *Tensor, shape tensor.Shape) *Tensor {
	return c.applyOne(OpExpand, []*Tensor{x}, shapeAttrs{Shape: shape})
}

func (c *Context) Cat(tensors []*Tensor, dim int) *Tensor {
	if len(tensors) == 0 {
		panic("transform: cat of no tensors")
	}
	d := wrapDim("cat", dim, tensors[0].Rank())
	return c.applyOne(OpCat, tensors, dimAttrs{Dim: d})
}

func (c *Context) Stack(tensors []*Tensor, dim int) *Tensor {
	if len(tensors) == 0 {
		panic("transform: stack of no tensors")
	}
	d := normInsertDim("stack", dim, tensors[0].Rank())
	return c.applyOne(OpStack, tensors, dimAttrs{Dim: d})
}

// Select extracts the slice at index along dim, dropping that dimension.
func (c *Context) Select(x *Tensor, dim, index int) *Tensor {
	d := wrapDim("select", dim, x.Rank())
	return c.applyOne(OpSelect, []*Tensor{x}, selectAttrs{Dim: d, Index: index})
}

func (c *Context) Gather(x *Tensor, dim int, index *Tensor) *Tensor {
	// Rank-0 tensors admit dim 0, matching their rank-1 treatment in the
	// batching rule.
	d := wrapDim("gather", dim, max(x.Rank(), 1))
	return c.applyOne(OpGather, []*Tensor{x, index}, gatherAttrs{Dim: d})
}

func (c *Context) Scatter(x *Tensor, dim int, index, src *Tensor) *Tensor {
	d := wrapDim("scatter", dim, max(x.Rank(), 1))
	return c.applyOne(OpScatter, []*Tensor{x, index, src}, gatherAttrs{Dim: d})
}

func (c *Context) ScatterAdd(x *Tensor, dim int, index, src *Tensor) *Tensor {
	d := wrapDim("scatter_add", dim, max(x.Rank(), 1))
	return c.applyOne(OpScatterAdd, []*Tensor{x, index, src}, gatherAttrs{Dim: d})
}

// Index performs advanced indexing. Entries of indices match dimensions of
// x in order; nil keeps the full slice. Boolean masks are rejected when they
// carry a batch dimension.
func (c *Context) Index(x *Tensor, indices []*Tensor) (*Tensor, error) {
	args := append([]*Tensor{x}, indices...)
	outs, err := c.Apply(OpIndex, args, nil)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// IndexPut writes values into x at the positions selected by indices,
// mutating x's underlying storage. Under vmap the receiver must be batched
// whenever the indices or values are.
func (c *Context) IndexPut(x *Tensor, indices []*Tensor, values *Tensor, accumulate bool) (*Tensor, error) {
	args := append([]*Tensor{x}, indices...)
	args = append(args, values)
	outs, err := c.Apply(OpIndexPut, args, indexPutAttrs{NumIndices: len(indices), Accumulate: accumulate})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// BatchNorm normalizes input [N, C, ...] per channel, then applies the
// optional per-channel weight and bias. It returns the output and the saved
// mean and reciprocal std (empty `(0,)` tensors in eval mode). weight, bias
// and the running stats may be nil.
func (c *Context) BatchNorm(input, weight, bias, runningMean, runningVar *Tensor, training bool, momentum, eps float64) (*Tensor, *Tensor, *Tensor, error) {
	outs, err := c.Apply(OpBatchNorm, []*Tensor{input, runningMean, runningVar},
		batchNormAttrs{Training: training, Momentum: momentum, Eps: eps})
	if err != nil {
		return nil, nil, nil, err
	}
	out, mean, rstd := outs[0], outs[1], outs[2]

	// Affine parameters are per channel; broadcasting them against
	// [N, C, ...] needs trailing singleton dims. Going through context ops
	// keeps batched weights composing with active layers.
	if weight != nil || bias != nil {
		rank := input.Rank()
		chShape := make(tensor.Shape, rank-1)
		for i := range chShape {
			chShape[i] = 1
		}
		chShape[0] = input.Shape()[1]
		if weight != nil {
			out = c.Mul(out, c.Reshape(weight, chShape))
		}
		if bias != nil {
			out = c.Add(out, c.Reshape(bias, chShape))
		}
	}
	return out, mean, rstd, nil
}

func (c *Context) OnesLike(x *Tensor) *Tensor  { return c.applyOne(OpOnesLike, []*Tensor{x}, nil) }
func (c *Context) ZerosLike(x *Tensor) *Tensor { return c.applyOne(OpZerosLike, []*Tensor{x}, nil) }

func (c *Context) FullLike(x *Tensor, value float64) *Tensor {
	return c.applyOne(OpFullLike, []*Tensor{x}, fullAttrs{Value: value})
}

func (c *Context) NewZeros(x *Tensor, shape tensor.Shape) *Tensor {
	return c.applyOne(OpNewZeros, []*Tensor{x}, newAttrs{Shape: shape})
}

func (c *Context) NewOnes(x *Tensor, shape tensor.Shape) *Tensor {
	return c.applyOne(OpNewOnes, []*Tensor{x}, newAttrs{Shape: shape})
}

func (c *Context) NewFull(x *Tensor, shape tensor.Shape, value float64) *Tensor {
	return c.applyOne(OpNewFull, []*Tensor{x}, newAttrs{Shape: shape, Value: value})
}

// Arange returns a plain rank-1 tensor of 0..n-1. Factories with no tensor
// input have nothing to batch, so this calls the engine directly.
func (c *Context) Arange(n int, dtype tensor.DataType) *Tensor {
	return c.FromRaw(c.backend.Arange(n, dtype))
}

// MoveDim moves the dimension at from to position to, preserving the order
// of the others.
func (c *Context) MoveDim(x *Tensor, from, to int) *Tensor {
	rank := x.Rank()
	f := wrapDim("move_dim", from, rank)
	t := wrapDim("move_dim", to, rank)
	if f == t {
		return x
	}
	axes := make([]int, 0, rank)
	for i := 0; i < rank; i++ {
		if i != f {
			axes = append(axes, i)
		}
	}
	axes = append(axes[:t], append([]int{f}, axes[t:]...)...)
	return c.Transpose(x, axes...)
}

// ReshapeDimInto moves dimension src next to dst and merges the two.
func (c *Context) ReshapeDimInto(x *Tensor, src, dst int) *Tensor {
	rank := x.Rank()
	s := wrapDim("reshape_dim_into", src, rank)
	d := wrapDim("reshape_dim_into", dst, rank)
	if d > s {
		d--
	}
	moved := c.MoveDim(x, s, d)
	shape := moved.Shape()
	out := shape[:d].Clone()
	out = append(out, shape[d]*shape[d+1])
	out = append(out, shape[d+2:]...)
	return c.Reshape(moved, out)
}

// ReshapeDimOutOf splits dimension src into [size1, src/size1].
func (c *Context) ReshapeDimOutOf(x *Tensor, src, size1 int) *Tensor {
	rank := x.Rank()
	s := wrapDim("reshape_dim_outof", src, rank)
	shape := x.Shape()
	if size1 <= 0 || shape[s]%size1 != 0 {
		panic(fmt.Sprintf("reshape_dim_outof: cannot split dim of size %d by %d", shape[s], size1))
	}
	out := shape[:s].Clone()
	out = append(out, size1, shape[s]/size1)
	out = append(out, shape[s+1:]...)
	return c.Reshape(x, out)
}
