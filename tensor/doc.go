// Copyright 2025 Warp ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor holds the data-plane types of Warp.
//
// # Overview
//
// A RawTensor is a dense row-major buffer with a shape, strides, a data
// type and a device. The Backend interface is the engine: a set of operator
// kernels over raw tensors that the transform layer (package vmap) treats
// as opaque primitives.
//
// # Basic Usage
//
//	import (
//	    "github.com/warp-ml/warp/backend/cpu"
//	    "github.com/warp-ml/warp/tensor"
//	)
//
//	func main() {
//	    engine := cpu.New()
//	    x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
//	    y := engine.Add(x, x)
//	    _ = y
//	}
//
// Transform-aware code should not call Backend methods directly; it goes
// through a vmap.Context so active transforms can intercept.
package tensor
