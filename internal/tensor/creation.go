package tensor

import "fmt"

// FromSlice creates a RawTensor from a Go slice. The slice is copied.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), device)
	if err != nil {
		return nil, err
	}
	copy(rawSlice[T](raw), data)
	return raw, nil
}

// MustFromSlice is FromSlice panicking on error. Used pervasively in tests.
func MustFromSlice[T DType](data []T, shape Shape, device Device) *RawTensor {
	raw, err := FromSlice(data, shape, device)
	if err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return raw
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	return MustNewRaw(shape, dtype, device)
}

// Full creates a tensor filled with a constant value.
func Full(shape Shape, dtype DataType, device Device, value float64) *RawTensor {
	r := MustNewRaw(shape, dtype, device)
	Fill(r, value)
	return r
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	return Full(shape, dtype, device, 1)
}

// Fill sets every element of r to value, converted to r's dtype.
func Fill(r *RawTensor, value float64) {
	switch r.DType() {
	case Float32:
		data := r.AsFloat32()
		for i := range data {
			data[i] = float32(value)
		}
	case Float64:
		data := r.AsFloat64()
		for i := range data {
			data[i] = value
		}
	case Int32:
		data := r.AsInt32()
		for i := range data {
			data[i] = int32(value)
		}
	case Int64:
		data := r.AsInt64()
		for i := range data {
			data[i] = int64(value)
		}
	case Bool:
		data := r.AsBool()
		for i := range data {
			data[i] = value != 0
		}
	default:
		panic(fmt.Sprintf("fill: unsupported dtype %s", r.DType()))
	}
}
