package cpu

import (
	"fmt"
	"math"

	"github.com/warp-ml/warp/internal/tensor"
)

// BatchNorm normalizes input over the batch and spatial dimensions, per
// channel. Input is laid out [N, C, ...]. In training mode the batch
// statistics are computed, the running stats (when given) are updated in
// place, and the saved mean and reciprocal std are returned with shape [C].
// In eval mode the running stats are used and the returned mean and rstd are
// empty tensors of shape (0,).
func (cpu *CPUBackend) BatchNorm(input, runningMean, runningVar *tensor.RawTensor, training bool, momentum, eps float64) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("batchnorm: input must have at least 2 dims, got shape %v", shape))
	}
	if !training && (runningMean == nil || runningVar == nil) {
		panic("batchnorm: running stats are required in eval mode")
	}

	switch input.DType() {
	case tensor.Float32:
		return batchNormImpl[float32](cpu, input, runningMean, runningVar, training, momentum, eps)
	case tensor.Float64:
		return batchNormImpl[float64](cpu, input, runningMean, runningVar, training, momentum, eps)
	default:
		panic(fmt.Sprintf("batchnorm: unsupported dtype %s", input.DType()))
	}
}

func batchNormImpl[T ~float32 | ~float64](cpu *CPUBackend, input, runningMean, runningVar *tensor.RawTensor, training bool, momentum, eps float64) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	shape := input.Shape()
	n := shape[0]
	c := shape[1]
	spatial := 1
	for i := 2; i < len(shape); i++ {
		spatial *= shape[i]
	}
	perChannel := n * spatial

	src := sliceOf[T](input)
	result := tensor.MustNewRaw(shape.Clone(), input.DType(), cpu.device)
	dst := sliceOf[T](result)

	mean := make([]float64, c)
	variance := make([]float64, c)
	if training {
		if perChannel == 0 {
			panic(fmt.Sprintf("batchnorm: cannot compute statistics over empty input %v", shape))
		}
		for ch := 0; ch < c; ch++ {
			var total float64
			forEachChannel(n, c, spatial, ch, func(i int) {
				total += float64(src[i])
			})
			mean[ch] = total / float64(perChannel)

			var sq float64
			forEachChannel(n, c, spatial, ch, func(i int) {
				d := float64(src[i]) - mean[ch]
				sq += d * d
			})
			variance[ch] = sq / float64(perChannel)
		}
		if runningMean != nil && runningVar != nil {
			// Running variance tracks the unbiased estimate.
			unbias := 1.0
			if perChannel > 1 {
				unbias = float64(perChannel) / float64(perChannel-1)
			}
			rm := sliceOf[T](runningMean)
			rv := sliceOf[T](runningVar)
			for ch := 0; ch < c; ch++ {
				rm[ch] = T((1-momentum)*float64(rm[ch]) + momentum*mean[ch])
				rv[ch] = T((1-momentum)*float64(rv[ch]) + momentum*variance[ch]*unbias)
			}
		}
	} else {
		rm := sliceOf[T](runningMean)
		rv := sliceOf[T](runningVar)
		for ch := 0; ch < c; ch++ {
			mean[ch] = float64(rm[ch])
			variance[ch] = float64(rv[ch])
		}
	}

	rstd := make([]float64, c)
	for ch := 0; ch < c; ch++ {
		rstd[ch] = 1.0 / math.Sqrt(variance[ch]+eps)
	}
	for ch := 0; ch < c; ch++ {
		forEachChannel(n, c, spatial, ch, func(i int) {
			dst[i] = T((float64(src[i]) - mean[ch]) * rstd[ch])
		})
	}

	if !training {
		empty := tensor.MustNewRaw(tensor.Shape{0}, input.DType(), cpu.device)
		return result, empty, tensor.MustNewRaw(tensor.Shape{0}, input.DType(), cpu.device)
	}

	savedMean := tensor.MustNewRaw(tensor.Shape{c}, input.DType(), cpu.device)
	savedRstd := tensor.MustNewRaw(tensor.Shape{c}, input.DType(), cpu.device)
	sm := sliceOf[T](savedMean)
	sr := sliceOf[T](savedRstd)
	for ch := 0; ch < c; ch++ {
		sm[ch] = T(mean[ch])
		sr[ch] = T(rstd[ch])
	}
	return result, savedMean, savedRstd
}

func forEachChannel(n, c, spatial, ch int, f func(i int)) {
	for b := 0; b < n; b++ {
		base := (b*c + ch) * spatial
		for s := 0; s < spatial; s++ {
			f(base + s)
		}
	}
}
