// Package cpu implements the CPU compute engine for warp.
//
// The transform layer treats this package as an opaque collaborator: every
// exported method is a primitive operator working on physical shapes.
package cpu

import (
	"fmt"
	"math"

	"github.com/warp-ml/warp/internal/tensor"
)

// CPUBackend implements tensor.Backend with pure Go kernels and
// gonum-backed matrix multiplication.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{device: tensor.CPU}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewBinary("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y },
		func(x, y int32) int32 { return x + y },
		func(x, y int64) int64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewBinary("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y },
		func(x, y int32) int32 { return x - y },
		func(x, y int64) int64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewBinary("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y },
		func(x, y int32) int32 { return x * y },
		func(x, y int64) int64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewBinary("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y },
		func(x, y int32) int32 { return x / y },
		func(x, y int64) int64 { return x / y })
}

// Neg negates every element.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewUnary("neg", x,
		func(v float32) float32 { return -v },
		func(v float64) float64 { return -v })
}

// Exp computes the element-wise exponential.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewUnary("exp", x,
		func(v float32) float32 { return float32(math.Exp(float64(v))) },
		math.Exp)
}

// Log computes the element-wise natural logarithm.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewUnary("log", x,
		func(v float32) float32 { return float32(math.Log(float64(v))) },
		math.Log)
}

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.ewUnary("sqrt", x,
		func(v float32) float32 { return float32(math.Sqrt(float64(v))) },
		math.Sqrt)
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("addscalar", scalar)
	return cpu.ewScalar("addscalar", x, s,
		func(v float32, s float32) float32 { return v + s },
		func(v float64, s float64) float64 { return v + s },
		func(v int32, s int32) int32 { return v + s },
		func(v int64, s int64) int64 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("mulscalar", scalar)
	return cpu.ewScalar("mulscalar", x, s,
		func(v float32, s float32) float32 { return v * s },
		func(v float64, s float64) float64 { return v * s },
		func(v int32, s int32) int32 { return v * s },
		func(v int64, s int64) int64 { return v * s })
}

func (cpu *CPUBackend) ewBinary(name string, a, b *tensor.RawTensor,
	f32 func(float32, float32) float32, f64 func(float64, float64) float64,
	i32 func(int32, int32) int32, i64 func(int64, int64) int64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	result := tensor.MustNewRaw(outShape, a.DType(), cpu.device)

	switch a.DType() {
	case tensor.Float32:
		binaryBroadcast(result, a, b, f32)
	case tensor.Float64:
		binaryBroadcast(result, a, b, f64)
	case tensor.Int32:
		binaryBroadcast(result, a, b, i32)
	case tensor.Int64:
		binaryBroadcast(result, a, b, i64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}

func (cpu *CPUBackend) ewUnary(name string, x *tensor.RawTensor,
	f32 func(float32) float32, f64 func(float64) float64,
) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		mapSlice(result.AsFloat32(), x.AsFloat32(), f32)
	case tensor.Float64:
		mapSlice(result.AsFloat64(), x.AsFloat64(), f64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

func (cpu *CPUBackend) ewScalar(name string, x *tensor.RawTensor, s float64,
	f32 func(float32, float32) float32, f64 func(float64, float64) float64,
	i32 func(int32, int32) int32, i64 func(int64, int64) int64,
) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		sv := float32(s)
		mapSlice(result.AsFloat32(), x.AsFloat32(), func(v float32) float32 { return f32(v, sv) })
	case tensor.Float64:
		mapSlice(result.AsFloat64(), x.AsFloat64(), func(v float64) float64 { return f64(v, s) })
	case tensor.Int32:
		sv := int32(s)
		mapSlice(result.AsInt32(), x.AsInt32(), func(v int32) int32 { return i32(v, sv) })
	case tensor.Int64:
		sv := int64(s)
		mapSlice(result.AsInt64(), x.AsInt64(), func(v int64) int64 { return i64(v, sv) })
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

func toFloat64(name string, scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	case int32:
		return float64(s)
	case int64:
		return float64(s)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
	}
}
