// Package transform implements composable function transforms over an
// opaque tensor engine: vmap-style batching and nested gradient tracking.
// Every operation flows through a dispatcher that peels transform metadata
// layer by layer until a plain engine call remains. The engine's kernels are
// never modified; batching is expressed purely by rewriting shapes and
// arguments around them.
package transform

import (
	"fmt"

	"github.com/warp-ml/warp/internal/autodiff"
	"github.com/warp-ml/warp/internal/backend/cpu"
	"github.com/warp-ml/warp/internal/dynlayer"
	"github.com/warp-ml/warp/internal/tensor"
	"github.com/warp-ml/warp/internal/wrap"
)

// NoDim marks an argument that carries no batch dimension at the current
// level.
const NoDim = -1

// Options configures a Context. Zero values select the CPU engine, the
// default rule registry, and an enabled fallback.
type Options struct {
	Backend tensor.Backend
	Rules   *Registry

	// DisableFallback turns a missing batching rule into an error instead
	// of the per-slice loop.
	DisableFallback bool
}

// Context owns the transform state: the layer stack, the wrapper arena, the
// autodiff collaborator and the rule registry. All transform operations go
// through a Context, and tensors are bound to the Context that created them.
// A Context is not safe for concurrent use; independent Contexts are fully
// independent.
type Context struct {
	backend tensor.Backend
	arena   *wrap.Arena
	stack   *dynlayer.Stack
	auto    *autodiff.Engine
	rules   *Registry

	fallbackEnabled     bool
	fallbackWarnEnabled bool
	fallbackWarned      map[Op]bool
}

func New(opts Options) *Context {
	b := opts.Backend
	if b == nil {
		b = cpu.New()
	}
	r := opts.Rules
	if r == nil {
		r = DefaultRegistry()
	}
	return &Context{
		backend:             b,
		arena:               wrap.NewArena(),
		stack:               dynlayer.NewStack(),
		auto:                autodiff.NewEngine(),
		rules:               r,
		fallbackEnabled:     !opts.DisableFallback,
		fallbackWarnEnabled: true,
		fallbackWarned:      make(map[Op]bool),
	}
}

// Backend returns the engine this context dispatches to.
func (c *Context) Backend() tensor.Backend {
	return c.backend
}

// Autodiff returns the gradient-tracking collaborator.
func (c *Context) Autodiff() *autodiff.Engine {
	return c.auto
}

// SetFallbackEnabled toggles the per-slice fallback for ops without a
// batching rule and returns the previous setting.
func (c *Context) SetFallbackEnabled(on bool) bool {
	prev := c.fallbackEnabled
	c.fallbackEnabled = on
	return prev
}

// SetFallbackWarningEnabled toggles the one-time warning logged when an op
// without a batching rule takes the per-slice fallback, and returns the
// previous setting.
func (c *Context) SetFallbackWarningEnabled(on bool) bool {
	prev := c.fallbackWarnEnabled
	c.fallbackWarnEnabled = on
	return prev
}

// Tensor is a logical tensor within a Context: a wrapper chain over a plain
// engine tensor. Its shape hides every batch dimension owned by an active
// transform layer.
type Tensor struct {
	ctx *Context
	h   wrap.Handle
}

// FromRaw wraps an engine tensor with no transform metadata.
func (c *Context) FromRaw(r *tensor.RawTensor) *Tensor {
	return &Tensor{ctx: c, h: c.arena.NewPlain(r)}
}

func (c *Context) tensorFor(h wrap.Handle) *Tensor {
	return &Tensor{ctx: c, h: h}
}

// Shape returns the logical shape.
func (t *Tensor) Shape() tensor.Shape {
	return t.ctx.arena.LogicalShape(t.h)
}

// Rank returns the logical rank.
func (t *Tensor) Rank() int {
	return len(t.Shape())
}

func (t *Tensor) DType() tensor.DataType {
	return t.ctx.arena.Underlying(t.h).DType()
}

// Raw returns the underlying engine tensor at the base of the wrapper
// chain. For a wrapped tensor its shape includes the hidden dimensions.
func (t *Tensor) Raw() *tensor.RawTensor {
	return t.ctx.arena.Underlying(t.h)
}

// IsBatched reports whether the outermost wrapper is a batch wrapper.
func (t *Tensor) IsBatched() bool {
	return t.ctx.arena.Kind(t.h) == wrap.Batched
}

// IsGradTracked reports whether the outermost wrapper tracks gradients.
func (t *Tensor) IsGradTracked() bool {
	return t.ctx.arena.Kind(t.h) == wrap.GradTracked
}

// Level returns the outermost wrapper's transform level, 0 for plain
// tensors.
func (t *Tensor) Level() int {
	return t.ctx.arena.Level(t.h)
}

// Bdim returns the physical batch dimension of the outermost wrapper, or
// NoDim when the tensor is not batched.
func (t *Tensor) Bdim() int {
	if !t.IsBatched() {
		return NoDim
	}
	return t.ctx.arena.Bdim(t.h)
}

// String describes the full wrapper chain, outermost first.
func (t *Tensor) String() string {
	a := t.ctx.arena
	out := ""
	for _, h := range a.Chain(t.h) {
		switch a.Kind(h) {
		case wrap.Batched:
			out += fmt.Sprintf("Batched[lvl=%d bdim=%d]", a.Level(h), a.Bdim(h))
		case wrap.GradTracked:
			out += fmt.Sprintf("Grad[lvl=%d]", a.Level(h))
		default:
			out += a.Raw(h).String()
		}
	}
	return out
}

func (c *Context) checkOwned(t *Tensor) {
	if t.ctx != c {
		panic("transform: tensor used with a context other than its own")
	}
}

// PushBatchLayer enters a vmap transform and returns its level.
func (c *Context) PushBatchLayer(batchSize int) int {
	if batchSize <= 0 {
		panic(fmt.Sprintf("transform: batch size must be positive, got %d", batchSize))
	}
	return c.stack.PushVmap(batchSize).Level
}

// PopBatchLayer exits the innermost transform, which must be a vmap layer,
// and returns its level.
func (c *Context) PopBatchLayer() int {
	return c.stack.Pop(dynlayer.Vmap).Level
}

// PushGradLayer enters a grad transform and returns its level.
func (c *Context) PushGradLayer() int {
	prev := c.auto.SetGradMode(true)
	c.auto.EnterLevel()
	return c.stack.PushGrad(prev).Level
}

// PopGradLayer exits the innermost transform, which must be a grad layer,
// restores the prior grad mode, and returns the popped level.
func (c *Context) PopGradLayer() int {
	l := c.stack.Pop(dynlayer.Grad)
	c.auto.ExitLevel()
	c.auto.SetGradMode(l.PrevGradMode)
	return l.Level
}

// CurrentLevel returns the level of the innermost visible layer, or 0 when
// no transform is active.
func (c *Context) CurrentLevel() int {
	l, ok := c.stack.Current()
	if !ok {
		return 0
	}
	return l.Level
}

// TransformsActive reports whether any transform layer is on the stack.
func (c *Context) TransformsActive() bool {
	return c.stack.Depth() > 0
}

// AddBatchDim marks physical dimension bdim of t as the batch dimension
// owned by the given level. The dimension disappears from the logical shape.
func (c *Context) AddBatchDim(t *Tensor, bdim, level int) *Tensor {
	c.checkOwned(t)
	rank := t.Rank()
	if bdim < 0 || bdim >= rank {
		panic(fmt.Sprintf("transform: batch dim %d out of range for rank %d", bdim, rank))
	}
	return c.tensorFor(c.arena.NewBatched(t.h, level, bdim))
}

// RemoveBatchDim undoes AddBatchDim for the given level, materializing the
// batch dimension at outDim of the result. A tensor that never interacted
// with the level has no batch wrapper to remove; it is broadcast instead,
// gaining a batchSize-sized dimension at outDim.
func (c *Context) RemoveBatchDim(t *Tensor, level, batchSize, outDim int) *Tensor {
	c.checkOwned(t)
	if c.arena.Kind(t.h) == wrap.Batched && c.arena.Level(t.h) == level {
		inner := c.tensorFor(c.arena.Parent(t.h))
		bdim := c.arena.Bdim(t.h)
		if size := inner.Shape()[bdim]; size != batchSize {
			panic(fmt.Sprintf("transform: batch dim size %d does not match batch size %d", size, batchSize))
		}
		return c.MoveDim(inner, bdim, outDim)
	}
	out := c.Unsqueeze(t, outDim)
	shape := out.Shape().Clone()
	shape[normInsertDim("remove_batch_dim", outDim, t.Rank())] = batchSize
	return c.Expand(out, shape)
}

// WrapGrad marks t as gradient-tracked at the given level.
func (c *Context) WrapGrad(t *Tensor, level int) *Tensor {
	c.checkOwned(t)
	return c.tensorFor(c.arena.NewGradTracked(t.h, level))
}

// UnwrapGrad removes the grad wrapper for the given level. Tensors not
// tracked at that level pass through unchanged, so unwrapping is idempotent.
func (c *Context) UnwrapGrad(t *Tensor, level int) *Tensor {
	c.checkOwned(t)
	if c.arena.Kind(t.h) == wrap.GradTracked && c.arena.Level(t.h) == level {
		return c.tensorFor(c.arena.Parent(t.h))
	}
	return t
}
