// Copyright 2025 Warp ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vmap provides composable function transforms over the tensor
// engine: batched mapping and nested gradient tracking.
//
// # Overview
//
// A transform wraps a computation without touching the engine's operator
// kernels. Entering a transform pushes a layer onto the context's stack;
// tensors wrapped at that layer's level carry the transform's metadata, and
// every operation dispatched through the context peels one layer at a time
// until a plain engine call remains.
//
// Under a vmap layer, a hidden batch dimension rides along every wrapped
// tensor. Operations with a registered batching rule evaluate the whole
// batch in one engine call; the rest fall back to a per-slice loop.
//
// # Basic Usage
//
//	ctx := vmap.New(vmap.Options{})
//	xs := ctx.FromRaw(tensor.MustFromSlice(
//	    []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}, tensor.CPU))
//
//	outs := ctx.Vmap(func(args []*vmap.Tensor) []*vmap.Tensor {
//	    x := args[0] // logical shape (2,)
//	    return []*vmap.Tensor{ctx.MulScalar(x, float32(10))}
//	}, []*vmap.Tensor{xs}, []int{0}, 0)
//
// Transforms nest: calling Vmap inside fn batches over another dimension,
// and PushGradLayer/PopGradLayer interleave gradient tracking with
// batching in any order, LIFO.
package vmap
