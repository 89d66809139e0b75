package transform

import (
	"sort"

	"golang.org/x/exp/maps"
)

// BatchingRule rewrites one operation so the engine evaluates every batch
// slice at once. Arguments arrive with their current-level batch wrapper
// peeled; bdims gives the physical batch dimension per argument, NoDim for
// unbatched ones. Rules return outputs in the same form. A rule runs with
// its layer excluded, so any operation it performs through the context
// composes with the remaining layers.
type BatchingRule func(c *Context, op Op, batchSize int, args []*Tensor, bdims []int, attrs any) ([]*Tensor, []int, error)

// Registry maps operations to batching rules. Operations without a rule go
// through the generic per-slice fallback.
type Registry struct {
	rules map[Op]BatchingRule
}

// NewRegistry returns an empty registry: every operation falls back.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[Op]BatchingRule)}
}

func (r *Registry) Register(op Op, rule BatchingRule) {
	r.rules[op] = rule
}

func (r *Registry) Lookup(op Op) (BatchingRule, bool) {
	rule, ok := r.rules[op]
	return rule, ok
}

// Ops lists the registered operations in ascending order.
func (r *Registry) Ops() []Op {
	ops := maps.Keys(r.rules)
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// DefaultRegistry returns the registry of hand-written batching rules.
// Softmax and Cat are deliberately left out: they exercise the fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, op := range []Op{OpAdd, OpSub, OpMul, OpDiv} {
		r.Register(op, pointwiseBinaryRule)
	}
	for _, op := range []Op{OpNeg, OpExp, OpLog, OpSqrt, OpAddScalar, OpMulScalar} {
		r.Register(op, unaryRule)
	}
	r.Register(OpMatMul, matMulRule)
	r.Register(OpBatchMatMul, batchMatMulRule)

	r.Register(OpSum, sumRule)
	r.Register(OpSumDim, reduceDimRule)
	r.Register(OpMeanDim, reduceDimRule)

	r.Register(OpReshape, reshapeRule)
	r.Register(OpTranspose, transposeRule)
	r.Register(OpUnsqueeze, unsqueezeRule)
	r.Register(OpSqueeze, squeezeRule)
	r.Register(OpExpand, expandRule)
	r.Register(OpSelect, selectRule)

	r.Register(OpGather, gatherRule)
	r.Register(OpScatter, scatterRule)
	r.Register(OpScatterAdd, scatterRule)
	r.Register(OpIndex, indexRule)
	r.Register(OpIndexPut, indexPutRule)

	r.Register(OpBatchNorm, batchNormRule)

	for _, op := range []Op{OpOnesLike, OpZerosLike, OpFullLike} {
		r.Register(op, likeFactoryRule)
	}
	for _, op := range []Op{OpNewZeros, OpNewOnes, OpNewFull} {
		r.Register(op, newFactoryRule)
	}
	return r
}
