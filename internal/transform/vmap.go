package transform

import "fmt"

// Vmap runs fn once over the whole batch. Each input with an inDims entry
// other than NoDim is treated as a stack of slices along that dimension; fn
// sees the slice shapes, and its outputs come back with the batch
// materialized at outDim. Push, wrap, call, unwrap and pop in one motion.
func (c *Context) Vmap(fn func([]*Tensor) []*Tensor, inputs []*Tensor, inDims []int, outDim int) []*Tensor {
	if len(inputs) != len(inDims) {
		panic(fmt.Sprintf("vmap: %d inputs with %d in-dims", len(inputs), len(inDims)))
	}
	batchSize := -1
	for i, in := range inputs {
		if inDims[i] == NoDim {
			continue
		}
		d := wrapDim("vmap", inDims[i], in.Rank())
		size := in.Shape()[d]
		if batchSize < 0 {
			batchSize = size
		} else if size != batchSize {
			panic(fmt.Sprintf("vmap: inconsistent batch sizes %d and %d", batchSize, size))
		}
	}
	if batchSize < 0 {
		panic("vmap: no input carries a batch dimension")
	}

	level := c.PushBatchLayer(batchSize)
	defer c.PopBatchLayer()

	wrapped := make([]*Tensor, len(inputs))
	for i, in := range inputs {
		if inDims[i] == NoDim {
			wrapped[i] = in
			continue
		}
		wrapped[i] = c.AddBatchDim(in, wrapDim("vmap", inDims[i], in.Rank()), level)
	}

	outs := fn(wrapped)
	result := make([]*Tensor, len(outs))
	for i, out := range outs {
		result[i] = c.RemoveBatchDim(out, level, batchSize, outDim)
	}
	return result
}
