package transform

import "github.com/warp-ml/warp/internal/tensor"

// sumRule reduces everything except the batch dimension. The slices are
// flattened to one dimension first so a single engine reduction covers any
// logical rank, including rank 0, where each slice already is its own sum.
func sumRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	t := moveBatchDimToFront(c, args[0], bdims[0])
	if t.Rank() == 1 {
		// Rank-0 slices: the batched "scalar" is already the reduction.
		return []*Tensor{t}, []int{0}, nil
	}
	rest := t.Shape().NumElements() / batchSize
	t = c.Reshape(t, tensor.Shape{batchSize, rest})
	out := c.SumDim(t, 1, false)
	return []*Tensor{out}, []int{0}, nil
}

// reduceDimRule shifts the reduced dimension past the front batch
// dimension.
func reduceDimRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(dimAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	outs, err := c.dispatch(op, []*Tensor{t}, dimAttrs{Dim: physicalDim(at.Dim), KeepDim: at.KeepDim})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}
