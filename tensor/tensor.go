// Copyright 2025 Warp ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/warp-ml/warp/internal/tensor"
)

// DType is a constraint for tensor element types.
// Supported types: float32, float64, int32, int64, bool.
type DType = tensor.DType

// DataType identifies a tensor's element type at runtime.
type DataType = tensor.DataType

const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Bool    = tensor.Bool
)

// Shape describes tensor dimensions.
type Shape = tensor.Shape

// Device identifies where tensor data lives.
type Device = tensor.Device

const CPU = tensor.CPU

// RawTensor is the engine-level tensor: a refcounted byte buffer with
// shape, strides, dtype and device.
type RawTensor = tensor.RawTensor

// Backend is the operator engine interface implemented by compute backends.
type Backend = tensor.Backend

// NewRaw allocates an uninitialized tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// MustNewRaw is NewRaw panicking on invalid shapes.
func MustNewRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.MustNewRaw(shape, dtype, device)
}

// FromSlice builds a tensor from a Go slice in row-major order.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// MustFromSlice is FromSlice panicking on mismatched lengths.
func MustFromSlice[T DType](data []T, shape Shape, device Device) *RawTensor {
	return tensor.MustFromSlice(data, shape, device)
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Zeros(shape, dtype, device)
}

// Ones returns a one-filled tensor.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Ones(shape, dtype, device)
}

// Full returns a tensor filled with value.
func Full(shape Shape, dtype DataType, device Device, value float64) *RawTensor {
	return tensor.Full(shape, dtype, device, value)
}

// BroadcastShapes computes the NumPy-style broadcast of two shapes.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
