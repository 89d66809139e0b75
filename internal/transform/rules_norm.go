package transform

import (
	"github.com/pkg/errors"

	"github.com/warp-ml/warp/internal/tensor"
)

// batchNormRule folds the vmap batch into the channel dimension, so one
// engine call computes independent statistics per (slice, channel) pair.
// Physical input [B, N, C, ...] becomes [N, B*C, ...]; running stats flatten
// from [B, C] to [B*C] alongside it.
func batchNormRule(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	at := attrs.(batchNormAttrs)
	input, inputBdim := args[0], bdims[0]
	runningMean, rmBdim := args[1], bdims[1]
	runningVar, rvBdim := args[2], bdims[2]

	hasStats := runningMean != nil && runningVar != nil
	if rmBdim != rvBdim {
		return nil, nil, errors.New(
			"vmap: batch_norm: running_mean and running_var must either both be batched tensors or both be regular tensors")
	}
	if inputBdim != NoDim && hasStats && rmBdim == NoDim {
		return nil, nil, errors.New(
			"vmap: batch_norm: got a batched tensor as input while running_mean and running_var, which are updated in place, were not batched; batch the running stats as well")
	}

	x := ensureHasBdim(c, input, inputBdim, batchSize) // [B, N, C, ...]
	x = c.MoveDim(x, 0, 1)                             // [N, B, C, ...]
	x = c.ReshapeDimInto(x, 1, 2)                      // [N, B*C, ...]

	flattenStat := func(stat *Tensor, bdim int) *Tensor {
		if stat == nil {
			return nil
		}
		if bdim != NoDim {
			s := moveBatchDimToFront(c, stat, bdim) // [B, C]
			return c.ReshapeDimInto(s, 0, 1)        // [B*C]
		}
		// Unbatched stats serve every slice: repeat them batchSize times.
		s := c.Unsqueeze(stat, 0)
		s = c.Expand(s, tensor.Shape{batchSize, stat.Shape()[0]})
		return c.ReshapeDimInto(s, 0, 1)
	}
	rm := flattenStat(runningMean, rmBdim)
	rv := flattenStat(runningVar, rvBdim)

	outs, err := c.dispatch(op, []*Tensor{x, rm, rv}, at)
	if err != nil {
		return nil, nil, err
	}
	out, mean, rstd := outs[0], outs[1], outs[2]

	out = c.ReshapeDimOutOf(out, 1, batchSize) // [N, B, C, ...]
	out = c.MoveDim(out, 1, 0)                 // [B, N, C, ...]

	// Eval mode returns empty (0,)-shaped stats; they never interacted with
	// the batch and pass through unbatched.
	meanBdim, rstdBdim := NoDim, NoDim
	if mean.Shape().NumElements() > 0 {
		mean = c.ReshapeDimOutOf(mean, 0, batchSize) // [B, C]
		meanBdim = 0
	}
	if rstd.Shape().NumElements() > 0 {
		rstd = c.ReshapeDimOutOf(rstd, 0, batchSize)
		rstdBdim = 0
	}
	return []*Tensor{out, mean, rstd}, []int{0, meanBdim, rstdBdim}, nil
}
