package transform

// pointwiseBinaryRule batches broadcasting binary ops. Batched arguments
// move their batch dimension to the front and pad with singleton dimensions
// up to the common logical rank, so the batch dimension broadcasts against
// unbatched arguments instead of colliding with their leading dimensions.
func pointwiseBinaryRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	logicalRank := max(
		rankWithoutBatchDim(args[0], bdims[0]),
		rankWithoutBatchDim(args[1], bdims[1]))

	prepared := make([]*Tensor, len(args))
	for i, t := range args {
		if bdims[i] != NoDim {
			t = moveBatchDimToFront(c, t, bdims[i])
			t = padToLogicalRank(c, t, logicalRank)
		}
		prepared[i] = t
	}
	outs, err := c.dispatch(op, prepared, attrs)
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// unaryRule covers ops whose output layout matches their input: the batch
// dimension passes straight through.
func unaryRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	outs, err := c.dispatch(op, args, attrs)
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{bdims[0]}, nil
}

// matMulRule canonicalizes a 2D matmul under vmap into a batched matmul
// with both operands carrying a real leading batch dimension.
func matMulRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	a := ensureHasBdim(c, args[0], bdims[0], batchSize)
	b := ensureHasBdim(c, args[1], bdims[1], batchSize)
	outs, err := c.dispatch(OpBatchMatMul, []*Tensor{a, b}, nil)
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// batchMatMulRule adds one more leading batch dimension to an already
// batched matmul.
func batchMatMulRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	a := ensureHasBdim(c, args[0], bdims[0], batchSize)
	b := ensureHasBdim(c, args[1], bdims[1], batchSize)
	outs, err := c.dispatch(OpBatchMatMul, []*Tensor{a, b}, nil)
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}
