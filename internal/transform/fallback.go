package transform

import (
	"log"

	"github.com/pkg/errors"
)

// fallback evaluates an op without a batching rule by slicing every batched
// argument along its batch dimension, dispatching the op once per slice, and
// stacking the results along a new leading dimension. Slice dispatch goes
// through the full dispatcher, so remaining transform layers still apply.
func (c *Context) fallback(op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error) {
	if op.inPlace() {
		return nil, nil, errors.Errorf(
			"vmap: %s: there is no per-slice fallback for operations that mutate their input", op)
	}
	if !c.fallbackEnabled {
		return nil, nil, errors.Errorf("vmap: no batching rule registered for %s and the fallback is disabled", op)
	}
	if c.fallbackWarnEnabled && !c.fallbackWarned[op] {
		c.fallbackWarned[op] = true
		log.Printf("warp: no batching rule for %s, falling back to a per-slice loop", op)
	}

	var perSlice [][]*Tensor
	sliced := make([]*Tensor, len(args))
	for i := 0; i < batchSize; i++ {
		for j, a := range args {
			if a == nil || bdims[j] == NoDim {
				sliced[j] = a
				continue
			}
			sliced[j] = c.Select(a, bdims[j], i)
		}
		outs, err := c.dispatch(op, sliced, attrs)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "vmap fallback for %s, slice %d", op, i)
		}
		perSlice = append(perSlice, outs)
	}

	numOuts := len(perSlice[0])
	outs := make([]*Tensor, numOuts)
	outBdims := make([]int, numOuts)
	parts := make([]*Tensor, batchSize)
	for j := 0; j < numOuts; j++ {
		for i := range perSlice {
			parts[i] = perSlice[i][j]
		}
		outs[j] = c.Stack(parts, 0)
		outBdims[j] = 0
	}
	return outs, outBdims, nil
}
