// Package wrap stores tensor wrapper records. A logical tensor is a chain
// of wrappers over a plain tensor: batched wrappers mark a hidden batch
// dimension owned by a vmap level, grad wrappers mark participation in a
// grad level. Wrapper levels increase strictly from the plain tensor
// outward, mirroring the transform stack.
package wrap

import (
	"fmt"

	"github.com/warp-ml/warp/internal/tensor"
)

type Kind int

const (
	Plain Kind = iota
	Batched
	GradTracked
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Batched:
		return "batched"
	case GradTracked:
		return "grad"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Handle names a wrapper record within an Arena.
type Handle int32

const None Handle = -1

type record struct {
	kind   Kind
	level  int
	bdim   int
	parent Handle
	raw    *tensor.RawTensor
}

// Arena holds wrapper records for one transform context. Handles are only
// meaningful within the arena that issued them. An arena is not safe for
// concurrent use.
type Arena struct {
	records []record
}

func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) get(h Handle) *record {
	if h < 0 || int(h) >= len(a.records) {
		panic(fmt.Sprintf("wrap: invalid handle %d (arena holds %d records)", h, len(a.records)))
	}
	return &a.records[h]
}

func (a *Arena) add(r record) Handle {
	a.records = append(a.records, r)
	return Handle(len(a.records) - 1)
}

// NewPlain wraps a raw tensor with no transform metadata.
func (a *Arena) NewPlain(raw *tensor.RawTensor) Handle {
	if raw == nil {
		panic("wrap: nil raw tensor")
	}
	return a.add(record{kind: Plain, level: 0, bdim: -1, parent: None, raw: raw})
}

// NewBatched wraps parent with a batch dimension owned by the given level.
// bdim indexes into parent's logical shape. The level must exceed every
// level already present in the chain.
func (a *Arena) NewBatched(parent Handle, level, bdim int) Handle {
	p := a.get(parent)
	if level <= p.level {
		panic(fmt.Sprintf("wrap: batched level %d must exceed parent level %d", level, p.level))
	}
	rank := len(a.LogicalShape(parent))
	if bdim < 0 || bdim >= rank {
		panic(fmt.Sprintf("wrap: bdim %d out of range for rank %d", bdim, rank))
	}
	return a.add(record{kind: Batched, level: level, bdim: bdim, parent: parent})
}

// NewGradTracked wraps parent for gradient tracking at the given level.
func (a *Arena) NewGradTracked(parent Handle, level int) Handle {
	p := a.get(parent)
	if level <= p.level {
		panic(fmt.Sprintf("wrap: grad level %d must exceed parent level %d", level, p.level))
	}
	return a.add(record{kind: GradTracked, level: level, bdim: -1, parent: parent})
}

func (a *Arena) Kind(h Handle) Kind { return a.get(h).kind }

func (a *Arena) Level(h Handle) int { return a.get(h).level }

func (a *Arena) Parent(h Handle) Handle { return a.get(h).parent }

// Bdim returns the batch dimension of a batched wrapper.
func (a *Arena) Bdim(h Handle) int {
	r := a.get(h)
	if r.kind != Batched {
		panic(fmt.Sprintf("wrap: bdim of %s wrapper", r.kind))
	}
	return r.bdim
}

// Raw returns the raw tensor of a plain record.
func (a *Arena) Raw(h Handle) *tensor.RawTensor {
	r := a.get(h)
	if r.kind != Plain {
		panic(fmt.Sprintf("wrap: raw of %s wrapper", r.kind))
	}
	return r.raw
}

// Underlying walks the chain to the plain tensor at its base.
func (a *Arena) Underlying(h Handle) *tensor.RawTensor {
	r := a.get(h)
	for r.kind != Plain {
		r = a.get(r.parent)
	}
	return r.raw
}

// Chain returns the wrapper chain from h (outermost) down to and including
// the plain record.
func (a *Arena) Chain(h Handle) []Handle {
	var out []Handle
	for {
		out = append(out, h)
		r := a.get(h)
		if r.kind == Plain {
			return out
		}
		h = r.parent
	}
}

// LogicalShape is the shape a wrapper presents to the level above it: a
// batched wrapper hides its batch dimension, a grad wrapper is transparent.
func (a *Arena) LogicalShape(h Handle) tensor.Shape {
	r := a.get(h)
	switch r.kind {
	case Plain:
		return r.raw.Shape()
	case GradTracked:
		return a.LogicalShape(r.parent)
	case Batched:
		return a.LogicalShape(r.parent).Remove(r.bdim)
	default:
		panic(fmt.Sprintf("wrap: unknown kind %d", r.kind))
	}
}
