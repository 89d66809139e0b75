package transform

import (
	"fmt"

	"github.com/warp-ml/warp/internal/dynlayer"
	"github.com/warp-ml/warp/internal/tensor"
	"github.com/warp-ml/warp/internal/wrap"
)

// dispatch routes an operation through the innermost visible transform
// layer. Arguments wrapped at that layer's level are peeled, the layer is
// excluded for the duration of the layer's handling so that recursive calls
// see only the layers below, and outputs are rewrapped on the way out. With
// no visible layers left the call reaches the engine. A nil argument stands
// for an absent optional tensor and passes through untouched.
func (c *Context) dispatch(op Op, args []*Tensor, attrs any) ([]*Tensor, error) {
	layer, ok := c.stack.Current()
	if !ok {
		return c.invokeEngine(op, args, attrs), nil
	}

	tagged := false
	for _, a := range args {
		if a == nil {
			continue
		}
		lvl := c.arena.Level(a.h)
		if lvl > layer.Level {
			panic(fmt.Sprintf("transform: argument wrapped at level %d above current layer %d", lvl, layer.Level))
		}
		if lvl == layer.Level {
			c.checkWrapperKind(a, layer)
			tagged = true
		}
	}
	if !tagged {
		restore := c.stack.ExcludeTop()
		defer restore()
		return c.dispatch(op, args, attrs)
	}

	switch layer.Kind {
	case dynlayer.Vmap:
		return c.dispatchBatch(op, layer, args, attrs)
	case dynlayer.Grad:
		return c.dispatchGrad(op, layer, args, attrs)
	default:
		panic(fmt.Sprintf("transform: unknown layer kind %d", layer.Kind))
	}
}

func (c *Context) checkWrapperKind(t *Tensor, layer dynlayer.Layer) {
	kind := c.arena.Kind(t.h)
	switch layer.Kind {
	case dynlayer.Vmap:
		if kind != wrap.Batched {
			panic(fmt.Sprintf("transform: %s wrapper tagged at vmap level %d", kind, layer.Level))
		}
	case dynlayer.Grad:
		if kind != wrap.GradTracked {
			panic(fmt.Sprintf("transform: %s wrapper tagged at grad level %d", kind, layer.Level))
		}
	}
}

func (c *Context) dispatchBatch(op Op, layer dynlayer.Layer, args []*Tensor, attrs any) ([]*Tensor, error) {
	peeled := make([]*Tensor, len(args))
	bdims := make([]int, len(args))
	for i, a := range args {
		if a == nil {
			bdims[i] = NoDim
			continue
		}
		if c.arena.Level(a.h) == layer.Level {
			bdims[i] = c.arena.Bdim(a.h)
			peeled[i] = c.tensorFor(c.arena.Parent(a.h))
		} else {
			bdims[i] = NoDim
			peeled[i] = a
		}
	}

	restore := c.stack.ExcludeTop()
	defer restore()

	var (
		outs     []*Tensor
		outBdims []int
		err      error
	)
	if rule, ok := c.rules.Lookup(op); ok {
		outs, outBdims, err = rule(c, op, layer.BatchSize, peeled, bdims, attrs)
	} else {
		outs, outBdims, err = c.fallback(op, layer.BatchSize, peeled, bdims, attrs)
	}
	if err != nil {
		return nil, err
	}
	if len(outs) != len(outBdims) {
		panic(fmt.Sprintf("transform: %s rule returned %d outputs with %d batch dims", op, len(outs), len(outBdims)))
	}

	for i, out := range outs {
		if outBdims[i] == NoDim {
			continue
		}
		outs[i] = c.tensorFor(c.arena.NewBatched(out.h, layer.Level, outBdims[i]))
	}
	return outs, nil
}

func (c *Context) dispatchGrad(op Op, layer dynlayer.Layer, args []*Tensor, attrs any) ([]*Tensor, error) {
	peeled := make([]*Tensor, len(args))
	for i, a := range args {
		if a == nil {
			continue
		}
		peeled[i] = c.UnwrapGrad(a, layer.Level)
	}
	c.auto.Record(op.String(), layer.Level, len(args))

	restore := c.stack.ExcludeTop()
	defer restore()

	outs, err := c.dispatch(op, peeled, attrs)
	if err != nil {
		return nil, err
	}
	for i, out := range outs {
		outs[i] = c.tensorFor(c.arena.NewGradTracked(out.h, layer.Level))
	}
	return outs, nil
}

// invokeEngine performs the plain engine call. Every argument must have had
// all of its transform metadata peeled by the layers above.
func (c *Context) invokeEngine(op Op, args []*Tensor, attrs any) []*Tensor {
	raws := make([]*tensor.RawTensor, len(args))
	for i, a := range args {
		if a == nil {
			continue
		}
		if c.arena.Kind(a.h) != wrap.Plain {
			panic(fmt.Sprintf("transform: %s wrapper reached the engine in %s", c.arena.Kind(a.h), op))
		}
		raws[i] = c.arena.Raw(a.h)
	}
	b := c.backend

	var outs []*tensor.RawTensor
	switch op {
	case OpAdd:
		outs = []*tensor.RawTensor{b.Add(raws[0], raws[1])}
	case OpSub:
		outs = []*tensor.RawTensor{b.Sub(raws[0], raws[1])}
	case OpMul:
		outs = []*tensor.RawTensor{b.Mul(raws[0], raws[1])}
	case OpDiv:
		outs = []*tensor.RawTensor{b.Div(raws[0], raws[1])}
	case OpNeg:
		outs = []*tensor.RawTensor{b.Neg(raws[0])}
	case OpExp:
		outs = []*tensor.RawTensor{b.Exp(raws[0])}
	case OpLog:
		outs = []*tensor.RawTensor{b.Log(raws[0])}
	case OpSqrt:
		outs = []*tensor.RawTensor{b.Sqrt(raws[0])}
	case OpAddScalar:
		outs = []*tensor.RawTensor{b.AddScalar(raws[0], attrs.(scalarAttrs).Value)}
	case OpMulScalar:
		outs = []*tensor.RawTensor{b.MulScalar(raws[0], attrs.(scalarAttrs).Value)}
	case OpMatMul:
		outs = []*tensor.RawTensor{b.MatMul(raws[0], raws[1])}
	case OpBatchMatMul:
		outs = []*tensor.RawTensor{b.BatchMatMul(raws[0], raws[1])}
	case OpSum:
		outs = []*tensor.RawTensor{b.Sum(raws[0])}
	case OpSumDim:
		at := attrs.(dimAttrs)
		outs = []*tensor.RawTensor{b.SumDim(raws[0], at.Dim, at.KeepDim)}
	case OpMeanDim:
		at := attrs.(dimAttrs)
		outs = []*tensor.RawTensor{b.MeanDim(raws[0], at.Dim, at.KeepDim)}
	case OpSoftmax:
		outs = []*tensor.RawTensor{b.Softmax(raws[0], attrs.(dimAttrs).Dim)}
	case OpReshape:
		outs = []*tensor.RawTensor{b.Reshape(raws[0], tensor.Shape(attrs.(shapeAttrs).Shape))}
	case OpTranspose:
		outs = []*tensor.RawTensor{b.Transpose(raws[0], attrs.(transposeAttrs).Axes...)}
	case OpUnsqueeze:
		outs = []*tensor.RawTensor{b.Unsqueeze(raws[0], attrs.(dimAttrs).Dim)}
	case OpSqueeze:
		outs = []*tensor.RawTensor{b.Squeeze(raws[0], attrs.(dimAttrs).Dim)}
	case OpExpand:
		outs = []*tensor.RawTensor{b.Expand(raws[0], tensor.Shape(attrs.(shapeAttrs).Shape))}
	case OpCat:
		outs = []*tensor.RawTensor{b.Cat(raws, attrs.(dimAttrs).Dim)}
	case OpStack:
		outs = []*tensor.RawTensor{b.Stack(raws, attrs.(dimAttrs).Dim)}
	case OpSelect:
		at := attrs.(selectAttrs)
		outs = []*tensor.RawTensor{b.Select(raws[0], at.Dim, at.Index)}
	case OpGather:
		outs = []*tensor.RawTensor{b.Gather(raws[0], attrs.(gatherAttrs).Dim, raws[1])}
	case OpScatter:
		outs = []*tensor.RawTensor{b.Scatter(raws[0], attrs.(gatherAttrs).Dim, raws[1], raws[2])}
	case OpScatterAdd:
		outs = []*tensor.RawTensor{b.ScatterAdd(raws[0], attrs.(gatherAttrs).Dim, raws[1], raws[2])}
	case OpIndex:
		outs = []*tensor.RawTensor{b.Index(raws[0], raws[1:])}
	case OpIndexPut:
		at := attrs.(indexPutAttrs)
		outs = []*tensor.RawTensor{b.IndexPut(raws[0], raws[1:1+at.NumIndices], raws[1+at.NumIndices], at.Accumulate)}
	case OpBatchNorm:
		at := attrs.(batchNormAttrs)
		out, mean, rstd := b.BatchNorm(raws[0], raws[1], raws[2], at.Training, at.Momentum, at.Eps)
		outs = []*tensor.RawTensor{out, mean, rstd}
	case OpOnesLike:
		outs = []*tensor.RawTensor{b.OnesLike(raws[0])}
	case OpZerosLike:
		outs = []*tensor.RawTensor{b.ZerosLike(raws[0])}
	case OpFullLike:
		outs = []*tensor.RawTensor{b.FullLike(raws[0], attrs.(fullAttrs).Value)}
	case OpNewZeros:
		outs = []*tensor.RawTensor{b.NewZeros(raws[0], tensor.Shape(attrs.(newAttrs).Shape))}
	case OpNewOnes:
		outs = []*tensor.RawTensor{b.NewOnes(raws[0], tensor.Shape(attrs.(newAttrs).Shape))}
	case OpNewFull:
		at := attrs.(newAttrs)
		outs = []*tensor.RawTensor{b.NewFull(raws[0], tensor.Shape(at.Shape), at.Value)}
	default:
		panic(fmt.Sprintf("transform: no engine binding for %s", op))
	}

	result := make([]*Tensor, len(outs))
	for i, r := range outs {
		result[i] = c.FromRaw(r)
	}
	return result
}
