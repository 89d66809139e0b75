// Copyright 2025 Warp ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package vmap

import (
	"github.com/warp-ml/warp/internal/transform"
)

// Context owns all transform state: the layer stack, tensor wrappers, the
// rule registry and the autodiff collaborator. A Context is not safe for
// concurrent use; create one per goroutine.
type Context = transform.Context

// Options configures a Context. The zero value selects the CPU engine and
// the default batching rules.
type Options = transform.Options

// Tensor is a logical tensor bound to a Context.
type Tensor = transform.Tensor

// Op names an engine operation for dispatch and rule registration.
type Op = transform.Op

// Registry maps operations to batching rules.
type Registry = transform.Registry

// BatchingRule rewrites one operation to evaluate a whole batch at once.
type BatchingRule = transform.BatchingRule

// NoDim marks the absence of a batch dimension.
const NoDim = transform.NoDim

// New creates a transform context.
func New(opts Options) *Context {
	return transform.New(opts)
}

// NewRegistry returns an empty rule registry: every op falls back to the
// per-slice loop.
func NewRegistry() *Registry {
	return transform.NewRegistry()
}

// DefaultRegistry returns the built-in batching rules.
func DefaultRegistry() *Registry {
	return transform.DefaultRegistry()
}

// Operation identifiers, for rule registration and Apply.
const (
	OpAdd         = transform.OpAdd
	OpSub         = transform.OpSub
	OpMul         = transform.OpMul
	OpDiv         = transform.OpDiv
	OpNeg         = transform.OpNeg
	OpExp         = transform.OpExp
	OpLog         = transform.OpLog
	OpSqrt        = transform.OpSqrt
	OpAddScalar   = transform.OpAddScalar
	OpMulScalar   = transform.OpMulScalar
	OpMatMul      = transform.OpMatMul
	OpBatchMatMul = transform.OpBatchMatMul
	OpSum         = transform.OpSum
	OpSumDim      = transform.OpSumDim
	OpMeanDim     = transform.OpMeanDim
	OpSoftmax     = transform.OpSoftmax
	OpReshape     = transform.OpReshape
	OpTranspose   = transform.OpTranspose
	OpUnsqueeze   = transform.OpUnsqueeze
	OpSqueeze     = transform.OpSqueeze
	OpExpand      = transform.OpExpand
	OpCat         = transform.OpCat
	OpStack       = transform.OpStack
	OpSelect      = transform.OpSelect
	OpGather      = transform.OpGather
	OpScatter     = transform.OpScatter
	OpScatterAdd  = transform.OpScatterAdd
	OpIndex       = transform.OpIndex
	OpIndexPut    = transform.OpIndexPut
	OpBatchNorm   = transform.OpBatchNorm
	OpOnesLike    = transform.OpOnesLike
	OpZerosLike   = transform.OpZerosLike
	OpFullLike    = transform.OpFullLike
	OpNewZeros    = transform.OpNewZeros
	OpNewOnes     = transform.OpNewOnes
	OpNewFull     = transform.OpNewFull
)
