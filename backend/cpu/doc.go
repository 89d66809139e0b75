// Copyright 2025 Warp ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
//
// The backend implements tensor.Backend with straightforward Go kernels:
// per-dtype dispatch for arithmetic, gonum-backed matrix multiplication,
// and byte-level copies for data movement. Kernels panic on structural
// misuse; validation belongs to the caller.
package cpu
