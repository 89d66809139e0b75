package transform

import "github.com/warp-ml/warp/internal/tensor"

// likeFactoryRule covers factories that mirror their input's physical
// layout: the batch dimension carries over untouched.
func likeFactoryRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	outs, err := c.dispatch(op, args, attrs)
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{bdims[0]}, nil
}

// newFactoryRule covers factories that take an explicit shape: the batch
// size is prepended so every slice gets its own fresh tensor.
func newFactoryRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(newAttrs)
	shape := append(tensor.Shape{batchSize}, at.Shape...)
	outs, err := c.dispatch(op, args, newAttrs{Shape: shape, Value: at.Value})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}
