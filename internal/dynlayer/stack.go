// Package dynlayer tracks the stack of active transform layers. Each entry
// of a vmap or grad transform pushes a layer whose level is its 1-based
// depth, and tensors wrapped under a transform carry that level so dispatch
// can tell which layer owns them.
package dynlayer

import "fmt"

// Kind identifies what transform a layer belongs to.
type Kind int

const (
	Vmap Kind = iota
	Grad
)

func (k Kind) String() string {
	switch k {
	case Vmap:
		return "vmap"
	case Grad:
		return "grad"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Layer is one active transform on the stack.
type Layer struct {
	Level int
	Kind  Kind

	// BatchSize is set for Vmap layers.
	BatchSize int

	// PrevGradMode is set for Grad layers and restored on pop.
	PrevGradMode bool
}

// Stack is the dynamic layer stack. Levels are assigned LIFO: pushing onto a
// stack of depth n produces level n+1. While a rule executes, the top layer
// is temporarily excluded so that recursive dispatch only sees the layers
// below it.
type Stack struct {
	layers  []Layer
	visible int
}

func NewStack() *Stack {
	return &Stack{}
}

// Depth returns the number of layers currently visible to dispatch.
func (s *Stack) Depth() int {
	return s.visible
}

// PushVmap pushes a vmap layer and returns it.
func (s *Stack) PushVmap(batchSize int) Layer {
	return s.push(Layer{Kind: Vmap, BatchSize: batchSize})
}

// PushGrad pushes a grad layer and returns it.
func (s *Stack) PushGrad(prevGradMode bool) Layer {
	return s.push(Layer{Kind: Grad, PrevGradMode: prevGradMode})
}

func (s *Stack) push(l Layer) Layer {
	if s.visible != len(s.layers) {
		panic(fmt.Sprintf("dynlayer: push while top layer is excluded (visible %d, depth %d)", s.visible, len(s.layers)))
	}
	l.Level = len(s.layers) + 1
	s.layers = append(s.layers, l)
	s.visible = len(s.layers)
	return l
}

// Pop removes the top layer, which must have the expected kind. A mismatch
// means transform entry and exit got out of order, which is unrecoverable.
func (s *Stack) Pop(expect Kind) Layer {
	if s.visible != len(s.layers) {
		panic(fmt.Sprintf("dynlayer: pop while top layer is excluded (visible %d, depth %d)", s.visible, len(s.layers)))
	}
	if len(s.layers) == 0 {
		panic(fmt.Sprintf("dynlayer: pop %s on empty stack", expect))
	}
	top := s.layers[len(s.layers)-1]
	if top.Kind != expect {
		panic(fmt.Sprintf("dynlayer: pop expected %s layer at level %d, found %s", expect, top.Level, top.Kind))
	}
	s.layers = s.layers[:len(s.layers)-1]
	s.visible = len(s.layers)
	return top
}

// Current returns the top visible layer, if any.
func (s *Stack) Current() (Layer, bool) {
	if s.visible == 0 {
		return Layer{}, false
	}
	return s.layers[s.visible-1], true
}

// LayerAt returns the visible layer with the given level.
func (s *Stack) LayerAt(level int) (Layer, bool) {
	if level < 1 || level > s.visible {
		return Layer{}, false
	}
	return s.layers[level-1], true
}

// ExcludeTop hides the top visible layer from dispatch and returns a
// function restoring it. Exclusions nest, one layer at a time.
func (s *Stack) ExcludeTop() func() {
	if s.visible == 0 {
		panic("dynlayer: exclude on empty stack")
	}
	s.visible--
	restored := false
	return func() {
		if restored {
			panic("dynlayer: exclusion restored twice")
		}
		restored = true
		s.visible++
	}
}
