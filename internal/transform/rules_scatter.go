package transform

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/warp-ml/warp/internal/tensor"
)

// gatherRule batches gather by giving every operand a real front batch
// dimension and shifting the gather dim past it. Rank-0 slices are bumped
// to rank 1 around the call since the engine gathers into matching ranks.
func gatherRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(gatherAttrs)
	logicalRank := rankWithoutBatchDim(args[0], bdims[0])
	x := ensureHasBdim(c, args[0], bdims[0], batchSize)
	index := ensureHasBdim(c, args[1], bdims[1], batchSize)

	if logicalRank == 0 {
		x = c.Unsqueeze(x, 1)
		index = c.Unsqueeze(index, 1)
		outs, err := c.dispatch(op, []*Tensor{x, index}, gatherAttrs{Dim: 1})
		if err != nil {
			return nil, nil, err
		}
		return []*Tensor{c.Squeeze(outs[0], 1)}, []int{0}, nil
	}

	outs, err := c.dispatch(op, []*Tensor{x, index}, gatherAttrs{Dim: physicalDim(at.Dim)})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// scatterRule handles Scatter and ScatterAdd the same way.
func scatterRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(gatherAttrs)
	logicalRank := rankWithoutBatchDim(args[0], bdims[0])
	x := ensureHasBdim(c, args[0], bdims[0], batchSize)
	index := ensureHasBdim(c, args[1], bdims[1], batchSize)
	src := ensureHasBdim(c, args[2], bdims[2], batchSize)

	if logicalRank == 0 {
		x = c.Unsqueeze(x, 1)
		index = c.Unsqueeze(index, 1)
		src = c.Unsqueeze(src, 1)
		outs, err := c.dispatch(op, []*Tensor{x, index, src}, gatherAttrs{Dim: 1})
		if err != nil {
			return nil, nil, err
		}
		return []*Tensor{c.Squeeze(outs[0], 1)}, []int{0}, nil
	}

	outs, err := c.dispatch(op, []*Tensor{x, index, src}, gatherAttrs{Dim: physicalDim(at.Dim)})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// batchedIndexArgs is the result of rewriting an advanced-indexing argument
// list for one batch level.
type batchedIndexArgs struct {
	x       *Tensor   // receiver with batch dimension at the front (if batched)
	indices []*Tensor // rewritten index list
	outBdim int       // batch position in the indexing result
}

// batchIndices rewrites the index list of an advanced indexing operation so
// one engine call covers the whole batch. Three cases:
//
//  1. receiver batched, no index batched: a nil slot in front lets the
//     batch dimension pass through as a free dimension;
//  2. indices batched, receiver not: batched indices move their batch
//     dimension to the front, where it broadcasts across the index tensors;
//  3. both batched: an arange(batchSize) index, reshaped to broadcast
//     against the other indices, pairs slice i of the receiver with slice i
//     of each batched index.
//
// Boolean masks cannot carry a batch dimension: the number of selected
// elements would vary per slice.
func batchIndices(c *Context, batchSize int, x *Tensor, xBdim int, indices []*Tensor, indexBdims []int) (batchedIndexArgs, error) {
	var merr error
	indicesBatched := false
	maxLogicalRank := 0
	for j, ind := range indices {
		if ind == nil {
			continue
		}
		if r := rankWithoutBatchDim(ind, indexBdims[j]); r > maxLogicalRank {
			maxLogicalRank = r
		}
		if indexBdims[j] == NoDim {
			continue
		}
		indicesBatched = true
		if ind.DType() == tensor.Bool {
			merr = multierr.Append(merr, errors.Errorf(
				"vmap: cannot batch over advanced indexing with a batched boolean mask (index %d): the number of selected elements varies per batch slice", j))
		}
	}
	if merr != nil {
		return batchedIndexArgs{}, merr
	}

	moved := make([]*Tensor, len(indices))
	for j, ind := range indices {
		if ind == nil {
			continue
		}
		if indexBdims[j] == NoDim {
			moved[j] = ind
			continue
		}
		m := moveBatchDimToFront(c, ind, indexBdims[j])
		moved[j] = padToLogicalRank(c, m, maxLogicalRank)
	}

	out := batchedIndexArgs{}
	if xBdim != NoDim {
		out.x = moveBatchDimToFront(c, x, xBdim)
	} else {
		out.x = x
	}

	switch {
	case xBdim != NoDim && !indicesBatched:
		out.indices = append([]*Tensor{nil}, moved...)
	case xBdim == NoDim && indicesBatched:
		out.indices = moved
	default:
		arange := c.Arange(batchSize, tensor.Int64)
		for i := 0; i < maxLogicalRank; i++ {
			arange = c.Unsqueeze(arange, arange.Rank())
		}
		out.indices = append([]*Tensor{arange}, moved...)
	}

	out.outBdim = indexingBatchPos(out.indices, xBdim != NoDim, indicesBatched, maxLogicalRank)
	return out, nil
}

// indexingBatchPos locates the batch dimension in the result of advanced
// indexing: the broadcast block of index tensors replaces the indexed
// dimensions in place when they are contiguous, and moves to the front
// otherwise.
func indexingBatchPos(indices []*Tensor, xBatched, indicesBatched bool, maxLogicalRank int) int {
	first, last := -1, -1
	for j, ind := range indices {
		if ind == nil {
			continue
		}
		if first < 0 {
			first = j
		}
		last = j
	}
	contiguous := true
	for j := first; j <= last; j++ {
		if indices[j] == nil {
			contiguous = false
			break
		}
	}

	if indicesBatched {
		// The batch leads the broadcast block.
		if contiguous {
			return first
		}
		return 0
	}
	// Receiver-only batching: the batch is the first free dimension.
	if contiguous {
		return 0
	}
	return maxLogicalRank
}

// indexRule batches advanced indexing via batchIndices.
func indexRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	ba, err := batchIndices(c, batchSize, args[0], bdims[0], args[1:], bdims[1:])
	if err != nil {
		return nil, nil, err
	}
	outs, err := c.dispatch(op, append([]*Tensor{ba.x}, ba.indices...), nil)
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{ba.outBdim}, nil
}

// indexPutRule batches in-place advanced writes. An unbatched receiver
// cannot absorb per-slice values: each slice would overwrite the last.
func indexPutRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(indexPutAttrs)
	x, xBdim := args[0], bdims[0]
	indices := args[1 : 1+at.NumIndices]
	indexBdims := bdims[1 : 1+at.NumIndices]
	values, valuesBdim := args[1+at.NumIndices], bdims[1+at.NumIndices]

	if xBdim == NoDim {
		return nil, nil, errors.Errorf(
			"vmap: index_put: cannot write batched indices or values into an unbatched tensor; " +
				"the receiver must participate in the same vmap level")
	}

	ba, err := batchIndices(c, batchSize, x, xBdim, indices, indexBdims)
	if err != nil {
		return nil, nil, err
	}
	if ba.outBdim != 0 {
		return nil, nil, errors.Errorf(
			"vmap: index_put: unsupported index layout: the batch dimension does not lead the indexed region")
	}

	if valuesBdim != NoDim {
		// Broadcasting is right-aligned, so the batched values must reach
		// the full rank of the indexed region for their front batch
		// dimension to line up.
		outRank := indexedResultRank(ba.x, ba.indices)
		v := moveBatchDimToFront(c, values, valuesBdim)
		values = padToLogicalRank(c, v, outRank-1)
	}

	outs, err := c.dispatch(op,
		append(append([]*Tensor{ba.x}, ba.indices...), values),
		indexPutAttrs{NumIndices: len(ba.indices), Accumulate: at.Accumulate})
	if err != nil {
		return nil, nil, err
	}
	return outs, []int{0}, nil
}

// indexedResultRank computes the rank of the region an advanced indexing
// expression selects.
func indexedResultRank(x *Tensor, indices []*Tensor) int {
	bshapeRank := 0
	nonNil := 0
	for _, ind := range indices {
		if ind == nil {
			continue
		}
		nonNil++
		if r := ind.Rank(); r > bshapeRank {
			bshapeRank = r
		}
	}
	free := x.Rank() - nonNil
	return free + bshapeRank
}
