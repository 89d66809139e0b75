package transform

import "github.com/warp-ml/warp/internal/tensor"

// reshapeRule prepends the batch size to the target shape.
func reshapeRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(shapeAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	shape := append(tensor.Shape{batchSize}, at.Shape...)
	outs, err := c.dispatch(op, []*Tensor{t}, shapeAttrs{Shape: shape})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// transposeRule pins the front batch dimension and shifts every axis of the
// logical permutation past it.
func transposeRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(transposeAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	axes := make([]int, 0, len(at.Axes)+1)
	axes = append(axes, 0)
	for _, a := range at.Axes {
		axes = append(axes, physicalDim(a))
	}
	outs, err := c.dispatch(op, []*Tensor{t}, transposeAttrs{Axes: axes})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

func unsqueezeRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(dimAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	outs, err := c.dispatch(op, []*Tensor{t}, dimAttrs{Dim: physicalDim(at.Dim)})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

func squeezeRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(dimAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	outs, err := c.dispatch(op, []*Tensor{t}, dimAttrs{Dim: physicalDim(at.Dim)})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// expandRule pads the input up to the target logical rank before expanding,
// so the front batch dimension stays clear of the broadcast.
func expandRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(shapeAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	t = padToLogicalRank(c, t, len(at.Shape))
	shape := append(tensor.Shape{batchSize}, at.Shape...)
	outs, err := c.dispatch(op, []*Tensor{t}, shapeAttrs{Shape: shape})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

func selectRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(selectAttrs)
	t := moveBatchDimToFront(c, args[0], bdims[0])
	outs, err := c.dispatch(op, []*Tensor{t}, selectAttrs{Dim: physicalDim(at.Dim), Index: at.Index})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}
