package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-ml/warp/internal/tensor"
)

func TestPointwiseBatchedPlusUnbatched(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
	}, 4, 3)
	y := fromF32(ctx, []float32{
		100, 100, 100,
		200, 200, 200,
		300, 300, 300,
		400, 400, 400,
		500, 500, 500,
	}, 5, 3)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Add(args[0], y)}
	}, []*Tensor{xs}, []int{0}, 0)

	out := outs[0]
	require.True(t, out.Shape().Equal(tensor.Shape{4, 5, 3}))
	xsRaw := xs.Raw().AsFloat32()
	yRaw := y.Raw().AsFloat32()
	got := out.Raw().AsFloat32()
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			for k := 0; k < 3; k++ {
				want := xsRaw[i*3+k] + yRaw[j*3+k]
				require.Equal(t, want, got[(i*5+j)*3+k], "out[%d][%d][%d]", i, j, k)
			}
		}
	}
}

func TestSumOverScalarSlices(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{3, 5, 7, 9}, 4)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Sum(args[0])}
	}, []*Tensor{xs}, []int{0}, 0)

	// Each slice is a scalar, so the batched sum is the identity.
	require.True(t, outs[0].Shape().Equal(tensor.Shape{4}))
	assert.Equal(t, []float32{3, 5, 7, 9}, outs[0].Raw().AsFloat32())
}

func TestSumRule(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Sum(args[0])}
	}, []*Tensor{xs}, []int{0}, 0)

	require.True(t, outs[0].Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, outs[0].Raw().AsFloat32())
}

// Every logical reduction dim must land on the right physical dim no matter
// where the batch dimension sits.
func TestReduceDimRemapping(t *testing.T) {
	dims := []int{3, 2, 4, 2, 3, 2}
	for rank := 1; rank <= len(dims); rank++ {
		for p := 0; p <= rank; p++ {
			shape := make(tensor.Shape, 0, rank+1)
			shape = append(shape, dims[:p]...)
			shape = append(shape, 2)
			shape = append(shape, dims[p:rank]...)
			n := shape.NumElements()
			data := make([]float32, n)
			for i := range data {
				data[i] = float32(i%13) - 6
			}
			for d := 0; d < rank; d++ {
				ctx := New(Options{})
				xs := ctx.FromRaw(tensor.MustFromSlice(data, shape, tensor.CPU))

				outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
					return []*Tensor{ctx.SumDim(args[0], d, false)}
				}, []*Tensor{xs}, []int{p}, 0)

				eng := ctx.Backend()
				parts := make([]*tensor.RawTensor, 2)
				for b := 0; b < 2; b++ {
					parts[b] = eng.SumDim(eng.Select(xs.Raw(), p, b), d, false)
				}
				want := eng.Stack(parts, 0)

				require.True(t, outs[0].Shape().Equal(want.Shape()), "rank %d batch pos %d dim %d", rank, p, d)
				if diff := cmp.Diff(want.AsFloat32(), outs[0].Raw().AsFloat32()); diff != "" {
					t.Fatalf("rank %d batch pos %d dim %d (-want +got):\n%s", rank, p, d, diff)
				}
			}
		}
	}
}

func TestMatMulRule(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{
		1, 2, 3,
		4, 5, 6,

		7, 8, 9,
		10, 11, 12,
	}, 2, 2, 3)
	w := fromF32(ctx, []float32{
		1, 0,
		0, 1,
		1, 1,
	}, 3, 2)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.MatMul(args[0], w)}
	}, []*Tensor{xs}, []int{0}, 0)

	out := outs[0]
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2, 2}))

	eng := ctx.Backend()
	parts := make([]*tensor.RawTensor, 2)
	for b := 0; b < 2; b++ {
		parts[b] = eng.MatMul(eng.Select(xs.Raw(), 0, b), w.Raw())
	}
	want := eng.Stack(parts, 0)
	assert.InDeltaSlice(t, want.AsFloat32(), out.Raw().AsFloat32(), 1e-6)
}

func TestReshapeRule(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 2, 6)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Reshape(args[0], tensor.Shape{3, 2})}
	}, []*Tensor{xs}, []int{0}, 0)

	require.True(t, outs[0].Shape().Equal(tensor.Shape{2, 3, 2}))
	// Row-major layout is unchanged by a per-slice reshape.
	assert.Equal(t, xs.Raw().AsFloat32(), outs[0].Raw().AsFloat32())
}

func TestTransposeRule(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 2, 2, 3)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Transpose(args[0])}
	}, []*Tensor{xs}, []int{0}, 0)

	out := outs[0]
	require.True(t, out.Shape().Equal(tensor.Shape{2, 3, 2}))
	xsRaw := xs.Raw().AsFloat32()
	got := out.Raw().AsFloat32()
	for b := 0; b < 2; b++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 2; i++ {
				require.Equal(t, xsRaw[(b*2+i)*3+j], got[(b*3+j)*2+i])
			}
		}
	}
}

func TestSelectRule(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Select(args[0], 0, 1)}
	}, []*Tensor{xs}, []int{0}, 0)

	require.True(t, outs[0].Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{2, 5}, outs[0].Raw().AsFloat32())
}

func TestUnsqueezeSqueezeExpandRules(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		y := ctx.Unsqueeze(args[0], 0)             // [1, 3]
		y = ctx.Expand(y, tensor.Shape{4, 3})      // [4, 3]
		z := ctx.Squeeze(ctx.Unsqueeze(args[0], 1), 1)
		return []*Tensor{y, z}
	}, []*Tensor{xs}, []int{0}, 0)

	require.True(t, outs[0].Shape().Equal(tensor.Shape{2, 4, 3}))
	got := outs[0].Raw().AsFloat32()
	xsRaw := xs.Raw().AsFloat32()
	for b := 0; b < 2; b++ {
		for r := 0; r < 4; r++ {
			assert.Equal(t, xsRaw[b*3:(b+1)*3], got[(b*4+r)*3:(b*4+r)*3+3])
		}
	}
	require.True(t, outs[1].Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, xsRaw, outs[1].Raw().AsFloat32())
}

func TestGatherRuleScalarSlices(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{5, 9}, 2)
	idx := fromI64(ctx, []int64{0, 0}, 2)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Gather(args[0], 0, args[1])}
	}, []*Tensor{xs, idx}, []int{0, 0}, 0)

	require.True(t, outs[0].Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{5, 9}, outs[0].Raw().AsFloat32())
}

func TestScatterRule(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	idx := fromI64(ctx, []int64{2, 0}, 2, 1)
	src := fromF32(ctx, []float32{-1, -2}, 2, 1)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		return []*Tensor{ctx.Scatter(args[0], 0, args[1], args[2])}
	}, []*Tensor{xs, idx, src}, []int{0, 0, 0}, 0)

	require.True(t, outs[0].Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{1, 2, -1, -2, 5, 6}, outs[0].Raw().AsFloat32())
}

func TestIndexBothBatched(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	idx := fromI64(ctx, []int64{2, 0}, 2)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		out, err := ctx.Index(args[0], []*Tensor{args[1]})
		require.NoError(t, err)
		return []*Tensor{out}
	}, []*Tensor{xs, idx}, []int{0, 0}, 0)

	// out[b] = xs[b, idx[b]]
	require.True(t, outs[0].Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{3, 4}, outs[0].Raw().AsFloat32())
}

func TestIndexReceiverOnlyBatched(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	idx := fromI64(ctx, []int64{2, 1}, 2)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		out, err := ctx.Index(args[0], []*Tensor{idx})
		require.NoError(t, err)
		return []*Tensor{out}
	}, []*Tensor{xs}, []int{0}, 0)

	// out[b][k] = xs[b, idx[k]]
	require.True(t, outs[0].Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{3, 2, 6, 5}, outs[0].Raw().AsFloat32())
}

func TestIndexIndicesOnlyBatched(t *testing.T) {
	ctx := New(Options{})
	x := fromF32(ctx, []float32{10, 20, 30}, 3)
	idx := fromI64(ctx, []int64{2, 0}, 2)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		out, err := ctx.Index(x, []*Tensor{args[0]})
		require.NoError(t, err)
		return []*Tensor{out}
	}, []*Tensor{idx}, []int{0}, 0)

	// out[b] = x[idx[b]]
	require.True(t, outs[0].Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{30, 10}, outs[0].Raw().AsFloat32())
}

func TestIndexBatchedBoolMaskRejected(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	mask := ctx.FromRaw(tensor.MustFromSlice(
		[]bool{true, false, true, false, true, false}, tensor.Shape{2, 3}, tensor.CPU))

	err := func() error {
		level := ctx.PushBatchLayer(2)
		defer ctx.PopBatchLayer()
		bx := ctx.AddBatchDim(xs, 0, level)
		bm := ctx.AddBatchDim(mask, 0, level)
		_, err := ctx.Index(bx, []*Tensor{bm})
		return err
	}()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean mask")
}

func TestIndexPutBatchedReceiver(t *testing.T) {
	ctx := New(Options{})
	xs := fromF32(ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	idx := fromI64(ctx, []int64{0}, 1)
	values := fromF32(ctx, []float32{9}, 1)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		out, err := ctx.IndexPut(args[0], []*Tensor{idx}, values, false)
		require.NoError(t, err)
		return []*Tensor{out}
	}, []*Tensor{xs}, []int{0}, 0)

	// Column 0 of every slice is overwritten.
	require.True(t, outs[0].Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{9, 2, 3, 9, 5, 6}, outs[0].Raw().AsFloat32())
}

func TestIndexPutUnbatchedReceiver(t *testing.T) {
	ctx := New(Options{})
	x := fromF32(ctx, []float32{1, 2, 3}, 3)
	idx := fromI64(ctx, []int64{0, 1}, 2)
	values := fromF32(ctx, []float32{7, 8}, 2)

	err := func() error {
		level := ctx.PushBatchLayer(2)
		defer ctx.PopBatchLayer()
		bi := ctx.AddBatchDim(idx, 0, level)
		_, err := ctx.IndexPut(x, []*Tensor{bi}, values, false)
		return err
	}()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbatched tensor")
}

func TestBatchNormRuleBatchedStats(t *testing.T) {
	ctx := New(Options{})
	// Two slices of [N=2, C=1].
	input := fromF32(ctx, []float32{1, 3, 2, 6}, 2, 2, 1)
	rm := fromF32(ctx, []float32{0, 0}, 2, 1)
	rv := fromF32(ctx, []float32{1, 1}, 2, 1)

	level := ctx.PushBatchLayer(2)
	bi := ctx.AddBatchDim(input, 0, level)
	brm := ctx.AddBatchDim(rm, 0, level)
	brv := ctx.AddBatchDim(rv, 0, level)

	out, mean, rstd, err := ctx.BatchNorm(bi, nil, nil, brm, brv, true, 0.1, 1e-5)
	require.NoError(t, err)

	outU := ctx.RemoveBatchDim(out, level, 2, 0)
	meanU := ctx.RemoveBatchDim(mean, level, 2, 0)
	rstdU := ctx.RemoveBatchDim(rstd, level, 2, 0)
	ctx.PopBatchLayer()

	require.True(t, outU.Shape().Equal(tensor.Shape{2, 2, 1}))
	assert.InDeltaSlice(t, []float32{-1, 1, -1, 1}, outU.Raw().AsFloat32(), 1e-2)
	require.True(t, meanU.Shape().Equal(tensor.Shape{2, 1}))
	assert.InDeltaSlice(t, []float32{2, 4}, meanU.Raw().AsFloat32(), 1e-6)
	require.True(t, rstdU.Shape().Equal(tensor.Shape{2, 1}))
	assert.InDeltaSlice(t, []float32{1, 0.5}, rstdU.Raw().AsFloat32(), 1e-2)
}

func TestBatchNormRuleAppliesWeightAndBias(t *testing.T) {
	ctx := New(Options{})
	input := fromF32(ctx, []float32{1, 3, 2, 6}, 2, 2, 1)
	weight := fromF32(ctx, []float32{2}, 1)
	bias := fromF32(ctx, []float32{1}, 1)

	outs := ctx.Vmap(func(args []*Tensor) []*Tensor {
		out, _, _, err := ctx.BatchNorm(args[0], weight, bias, nil, nil, true, 0.1, 1e-5)
		require.NoError(t, err)
		return []*Tensor{out}
	}, []*Tensor{input}, []int{0}, 0)

	assert.InDeltaSlice(t, []float32{-1, 3, -1, 3}, outs[0].Raw().AsFloat32(), 1e-2)
}

func TestBatchNormUnbatchedStatsRejected(t *testing.T) {
	ctx := New(Options{})
	input := fromF32(ctx, []float32{1, 3, 2, 6}, 2, 2, 1)
	rm := fromF32(ctx, []float32{0}, 1)
	rv := fromF32(ctx, []float32{1}, 1)

	// The running stats are updated in place, so a batched input with
	// unbatched stats is rejected in training and eval alike.
	for _, training := range []bool{true, false} {
		err := func() error {
			level := ctx.PushBatchLayer(2)
			defer ctx.PopBatchLayer()
			bi := ctx.AddBatchDim(input, 0, level)
			_, _, _, err := ctx.BatchNorm(bi, nil, nil, rm, rv, training, 0.1, 1e-5)
			return err
		}()

		require.Error(t, err, "training=%v", training)
		assert.Contains(t, err.Error(), "running", "training=%v", training)
	}
}

func TestBatchNormMixedStatBdimsRejected(t *testing.T) {
	ctx := New(Options{})
	input := fromF32(ctx, []float32{1, 3, 2, 6}, 2, 2, 1)
	rm := fromF32(ctx, []float32{0, 0}, 2, 1)
	rv := fromF32(ctx, []float32{1}, 1)

	err := func() error {
		level := ctx.PushBatchLayer(2)
		defer ctx.PopBatchLayer()
		bi := ctx.AddBatchDim(input, 0, level)
		brm := ctx.AddBatchDim(rm, 0, level)
		_, _, _, err := ctx.BatchNorm(bi, nil, nil, brm, rv, false, 0.1, 1e-5)
		return err
	}()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "both")
}

func TestBatchNormEvalEmptyStats(t *testing.T) {
	ctx := New(Options{})
	input := fromF32(ctx, []float32{1, 3, 2, 6}, 2, 2, 1)
	rm := fromF32(ctx, []float32{0, 0}, 2, 1)
	rv := fromF32(ctx, []float32{1, 1}, 2, 1)

	level := ctx.PushBatchLayer(2)
	bi := ctx.AddBatchDim(input, 0, level)
	brm := ctx.AddBatchDim(rm, 0, level)
	brv := ctx.AddBatchDim(rv, 0, level)

	out, mean, rstd, err := ctx.BatchNorm(bi, nil, nil, brm, brv, false, 0.1, 1e-5)
	require.NoError(t, err)

	// Eval with these stats normalizes every slice with mean 0, var 1.
	outU := ctx.RemoveBatchDim(out, level, 2, 0)
	assert.InDeltaSlice(t, []float32{1, 3, 2, 6}, outU.Raw().AsFloat32(), 1e-2)

	// The saved stats are empty in eval mode and stay unbatched.
	assert.False(t, mean.IsBatched())
	assert.False(t, rstd.IsBatched())
	assert.True(t, mean.Shape().Equal(tensor.Shape{0}))
	assert.True(t, rstd.Shape().Equal(tensor.Shape{0}))

	ctx.PopBatchLayer()
}

func TestFactoryRules(t *testing.T) {
	ctx := New(Options{})
	level := ctx.PushBatchLayer(4)
	defer ctx.PopBatchLayer()

	ref := ctx.AddBatchDim(fromF32(ctx, []float32{1, 2, 3, 4, 5, 6, 7, 8}, 4, 2), 0, level)

	z := ctx.NewZeros(ref, tensor.Shape{3})
	require.True(t, z.IsBatched())
	assert.True(t, z.Shape().Equal(tensor.Shape{3}))
	assert.True(t, z.Raw().Shape().Equal(tensor.Shape{4, 3}))
	assert.Equal(t, make([]float32, 12), z.Raw().AsFloat32())

	o := ctx.OnesLike(ref)
	require.True(t, o.IsBatched())
	assert.True(t, o.Raw().Shape().Equal(tensor.Shape{4, 2}))
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, o.Raw().AsFloat32())
}
