// Package autodiff carries the gradient-tracking state that grad transform
// layers collaborate with: the global grad mode, and a tape of operations
// observed at each grad level.
package autodiff

import "fmt"

// Entry records one operation that flowed through a grad layer.
type Entry struct {
	Op        string
	Level     int
	NumInputs int
}

// Engine is the per-context autodiff collaborator. It is not safe for
// concurrent use.
type Engine struct {
	gradMode bool
	depth    int
	tape     []Entry
}

func NewEngine() *Engine {
	return &Engine{gradMode: true}
}

// GradMode reports whether operations are currently recorded.
func (e *Engine) GradMode() bool {
	return e.gradMode
}

// SetGradMode flips grad mode and returns the previous value, so callers
// can restore it on exit.
func (e *Engine) SetGradMode(on bool) bool {
	prev := e.gradMode
	e.gradMode = on
	return prev
}

// EnterLevel marks entry into a grad transform layer.
func (e *Engine) EnterLevel() {
	e.depth++
}

// ExitLevel marks exit from a grad transform layer.
func (e *Engine) ExitLevel() {
	if e.depth == 0 {
		panic("autodiff: exit without matching enter")
	}
	e.depth--
}

// Depth returns the number of grad layers currently entered.
func (e *Engine) Depth() int {
	return e.depth
}

// Record adds a tape entry for an operation dispatched through the grad
// layer at the given level. Recording is skipped when grad mode is off.
func (e *Engine) Record(op string, level, numInputs int) {
	if !e.gradMode {
		return
	}
	if level < 1 {
		panic(fmt.Sprintf("autodiff: record at invalid level %d", level))
	}
	e.tape = append(e.tape, Entry{Op: op, Level: level, NumInputs: numInputs})
}

// Tape returns the recorded entries in dispatch order.
func (e *Engine) Tape() []Entry {
	return e.tape
}

// Reset clears the tape.
func (e *Engine) Reset() {
	e.tape = e.tape[:0]
}
