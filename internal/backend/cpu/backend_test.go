package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-ml/warp/internal/tensor"
)

func f32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	return tensor.MustFromSlice(data, shape, tensor.CPU)
}

func i64(t *testing.T, data []int64, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	return tensor.MustFromSlice(data, shape, tensor.CPU)
}

func TestAddBroadcast(t *testing.T) {
	b := New()
	a := f32(t, []float32{1, 2}, tensor.Shape{2, 1})
	c := f32(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	out := b.Add(a, c)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{11, 21, 31, 12, 22, 32}, out.AsFloat32())
}

func TestSubDivElementwise(t *testing.T) {
	b := New()
	a := f32(t, []float32{4, 9, 16, 25}, tensor.Shape{4})
	c := f32(t, []float32{2, 3, 4, 5}, tensor.Shape{4})

	assert.Equal(t, []float32{2, 6, 12, 20}, b.Sub(a, c).AsFloat32())
	assert.Equal(t, []float32{2, 3, 4, 5}, b.Div(a, c).AsFloat32())
}

func TestUnaryOps(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 4, 9}, tensor.Shape{3})

	assert.Equal(t, []float32{-1, -4, -9}, b.Neg(x).AsFloat32())
	assert.Equal(t, []float32{1, 2, 3}, b.Sqrt(x).AsFloat32())
	assert.InDeltaSlice(t, []float32{0, float32(math.Log(4)), float32(math.Log(9))}, b.Log(x).AsFloat32(), 1e-6)
}

func TestScalarOps(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3}, tensor.Shape{3})

	assert.Equal(t, []float32{11, 12, 13}, b.AddScalar(x, float32(10)).AsFloat32())
	assert.Equal(t, []float32{2, 4, 6}, b.MulScalar(x, 2).AsFloat32())
}

func TestMatMul(t *testing.T) {
	b := New()
	a := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	c := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})

	out := b.MatMul(a, c)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.InDeltaSlice(t, []float32{22, 28, 49, 64}, out.AsFloat32(), 1e-5)
}

func TestBatchMatMul(t *testing.T) {
	b := New()
	a := f32(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	c := f32(t, []float32{1, 0, 0, 1, 2, 0, 0, 2}, tensor.Shape{2, 2, 2})

	out := b.BatchMatMul(a, c)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2, 2}))
	assert.InDeltaSlice(t, []float32{1, 2, 3, 4, 10, 12, 14, 16}, out.AsFloat32(), 1e-5)
}

func TestSumAndSumDim(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	total := b.Sum(x)
	require.Equal(t, 0, len(total.Shape()))
	assert.Equal(t, float32(21), total.AsFloat32()[0])

	rows := b.SumDim(x, 1, false)
	require.True(t, rows.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, rows.AsFloat32())

	kept := b.SumDim(x, -1, true)
	require.True(t, kept.Shape().Equal(tensor.Shape{2, 1}))
	assert.Equal(t, []float32{6, 15}, kept.AsFloat32())
}

func TestMeanDim(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	cols := b.MeanDim(x, 0, false)
	require.True(t, cols.Shape().Equal(tensor.Shape{3}))
	assert.InDeltaSlice(t, []float32{2.5, 3.5, 4.5}, cols.AsFloat32(), 1e-6)
}

func TestSoftmax(t *testing.T) {
	b := New()
	x := f32(t, []float32{0, 0, 0, float32(math.Log(3))}, tensor.Shape{2, 2})

	out := b.Softmax(x, 1)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.25, 0.75}, out.AsFloat32(), 1e-6)
}

func TestReshapeAndTranspose(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	r := b.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, r.AsFloat32())

	tr := b.Transpose(x)
	require.True(t, tr.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, tr.AsFloat32())

	perm := b.Transpose(x, 1, 0)
	assert.Equal(t, tr.AsFloat32(), perm.AsFloat32())
}

func TestUnsqueezeSqueeze(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3}, tensor.Shape{3})

	u := b.Unsqueeze(x, 0)
	require.True(t, u.Shape().Equal(tensor.Shape{1, 3}))

	u2 := b.Unsqueeze(x, 1)
	require.True(t, u2.Shape().Equal(tensor.Shape{3, 1}))

	s := b.Squeeze(u, 0)
	require.True(t, s.Shape().Equal(tensor.Shape{3}))
	assert.Equal(t, []float32{1, 2, 3}, s.AsFloat32())
}

func TestExpand(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3}, tensor.Shape{1, 3})

	out := b.Expand(x, tensor.Shape{2, 3})
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3}, out.AsFloat32())

	// Rank can grow; the new leading dimension broadcasts.
	up := b.Expand(x, tensor.Shape{4, 1, 3})
	require.True(t, up.Shape().Equal(tensor.Shape{4, 1, 3}))
}

func TestCat(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := f32(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	d0 := b.Cat([]*tensor.RawTensor{x, y}, 0)
	require.True(t, d0.Shape().Equal(tensor.Shape{4, 2}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, d0.AsFloat32())

	d1 := b.Cat([]*tensor.RawTensor{x, y}, 1)
	require.True(t, d1.Shape().Equal(tensor.Shape{2, 4}))
	assert.Equal(t, []float32{1, 2, 5, 6, 3, 4, 7, 8}, d1.AsFloat32())
}

func TestStack(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2}, tensor.Shape{2})
	y := f32(t, []float32{3, 4}, tensor.Shape{2})

	out := b.Stack([]*tensor.RawTensor{x, y}, 0)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{1, 2, 3, 4}, out.AsFloat32())

	mid := b.Stack([]*tensor.RawTensor{x, y}, 1)
	require.True(t, mid.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{1, 3, 2, 4}, mid.AsFloat32())
}

func TestSelect(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	row := b.Select(x, 0, 1)
	require.True(t, row.Shape().Equal(tensor.Shape{3}))
	assert.Equal(t, []float32{4, 5, 6}, row.AsFloat32())

	col := b.Select(x, 1, 1)
	require.True(t, col.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{2, 5}, col.AsFloat32())
}

func TestArange(t *testing.T) {
	b := New()
	out := b.Arange(4, tensor.Int64)
	assert.Equal(t, []int64{0, 1, 2, 3}, out.AsInt64())
}

func TestGather(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	index := i64(t, []int64{1, 0, 0, 0}, tensor.Shape{2, 2})

	out := b.Gather(x, 1, index)
	assert.Equal(t, []float32{2, 1, 3, 3}, out.AsFloat32())
}

func TestScatter(t *testing.T) {
	b := New()
	x := tensor.Zeros(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	index := i64(t, []int64{2, 0}, tensor.Shape{1, 2})
	src := f32(t, []float32{9, 8}, tensor.Shape{1, 2})

	out := b.Scatter(x, 0, index, src)
	assert.Equal(t, []float32{0, 8, 0, 0, 9, 0}, out.AsFloat32())
	// Input is untouched.
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, x.AsFloat32())
}

func TestScatterAdd(t *testing.T) {
	b := New()
	x := tensor.Ones(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	index := i64(t, []int64{0, 0}, tensor.Shape{1, 2})
	src := f32(t, []float32{5, 7}, tensor.Shape{1, 2})

	out := b.ScatterAdd(x, 0, index, src)
	assert.Equal(t, []float32{6, 8, 1, 1}, out.AsFloat32())
}

func TestIndexBasic(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	rows := i64(t, []int64{2, 0}, tensor.Shape{2})

	out := b.Index(x, []*tensor.RawTensor{rows})
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{5, 6, 1, 2}, out.AsFloat32())
}

func TestIndexBoolMask(t *testing.T) {
	b := New()
	x := f32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	mask := tensor.MustFromSlice([]bool{true, false, true}, tensor.Shape{3}, tensor.CPU)

	out := b.Index(x, []*tensor.RawTensor{mask})
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{1, 2, 5, 6}, out.AsFloat32())
}

func TestIndexNonContiguousMovesToFront(t *testing.T) {
	b := New()
	x := f32(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, tensor.Shape{2, 2, 2})
	i0 := i64(t, []int64{0, 1}, tensor.Shape{2})
	i1 := i64(t, []int64{1, 0}, tensor.Shape{2})

	out := b.Index(x, []*tensor.RawTensor{i0, nil, i1})
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{1, 3, 4, 6}, out.AsFloat32())
}

func TestIndexPut(t *testing.T) {
	b := New()
	x := tensor.Zeros(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	idx := i64(t, []int64{0, 2}, tensor.Shape{2})
	values := f32(t, []float32{5, 7}, tensor.Shape{2})

	out := b.IndexPut(x, []*tensor.RawTensor{idx}, values, false)
	assert.Equal(t, []float32{5, 0, 7}, out.AsFloat32())

	b.IndexPut(x, []*tensor.RawTensor{idx}, values, true)
	assert.Equal(t, []float32{10, 0, 14}, x.AsFloat32())
}

func TestBatchNormTraining(t *testing.T) {
	b := New()
	input := f32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	rm := tensor.Zeros(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	rv := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)

	out, mean, rstd := b.BatchNorm(input, rm, rv, true, 0.1, 1e-5)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.InDeltaSlice(t, []float32{-1, -1, 1, 1}, out.AsFloat32(), 1e-3)

	require.True(t, mean.Shape().Equal(tensor.Shape{2}))
	assert.InDeltaSlice(t, []float32{2, 3}, mean.AsFloat32(), 1e-6)
	require.True(t, rstd.Shape().Equal(tensor.Shape{2}))

	// Running stats use momentum 0.1; variance is the unbiased estimate.
	assert.InDeltaSlice(t, []float32{0.2, 0.3}, rm.AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{1.1, 1.1}, rv.AsFloat32(), 1e-6)
}

func TestBatchNormEvalReturnsEmptyStats(t *testing.T) {
	b := New()
	input := f32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	rm := tensor.Zeros(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	rv := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)

	out, mean, rstd := b.BatchNorm(input, rm, rv, false, 0.1, 0)
	assert.InDeltaSlice(t, []float32{1, 2, 3, 4}, out.AsFloat32(), 1e-5)

	require.True(t, mean.Shape().Equal(tensor.Shape{0}))
	require.True(t, rstd.Shape().Equal(tensor.Shape{0}))
}
