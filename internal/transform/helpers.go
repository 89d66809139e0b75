package transform

import "fmt"

// wrapDim normalizes a possibly negative dimension against rank.
func wrapDim(name string, dim, rank int) int {
	d := dim
	if d < 0 {
		d += rank
	}
	if d < 0 || d >= rank {
		panic(fmt.Sprintf("%s: dim %d out of range for rank %d", name, dim, rank))
	}
	return d
}

// normInsertDim normalizes an insertion position, which may equal rank.
func normInsertDim(name string, dim, rank int) int {
	d := dim
	if d < 0 {
		d += rank + 1
	}
	if d < 0 || d > rank {
		panic(fmt.Sprintf("%s: insert position %d out of range for rank %d", name, dim, rank))
	}
	return d
}

// physicalDim translates a logical dimension to its physical position when
// the batch dimension sits at the front.
func physicalDim(logicalDim int) int {
	return logicalDim + 1
}

// rankWithoutBatchDim is the argument's rank as the level above sees it.
func rankWithoutBatchDim(t *Tensor, bdim int) int {
	if bdim == NoDim {
		return t.Rank()
	}
	return t.Rank() - 1
}

// moveBatchDimToFront rearranges t so its batch dimension is dimension 0.
func moveBatchDimToFront(c *Context, t *Tensor, bdim int) *Tensor {
	if bdim == NoDim {
		panic("transform: moveBatchDimToFront on unbatched argument")
	}
	if bdim == 0 {
		return t
	}
	return c.MoveDim(t, bdim, 0)
}

// ensureHasBdim returns t with a real batch dimension at the front,
// broadcasting unbatched arguments up to the batch size.
func ensureHasBdim(c *Context, t *Tensor, bdim, batchSize int) *Tensor {
	if bdim != NoDim {
		return moveBatchDimToFront(c, t, bdim)
	}
	out := c.Unsqueeze(t, 0)
	shape := out.Shape().Clone()
	shape[0] = batchSize
	return c.Expand(out, shape)
}

// padToLogicalRank inserts size-1 dimensions after the front batch
// dimension until the rank below the batch dimension reaches logicalRank.
func padToLogicalRank(c *Context, t *Tensor, logicalRank int) *Tensor {
	for t.Rank()-1 < logicalRank {
		t = c.Unsqueeze(t, 1)
	}
	return t
}
