package autodiff

import "testing"

func TestEngineGradMode(t *testing.T) {
	e := NewEngine()
	if !e.GradMode() {
		t.Error("grad mode should start enabled")
	}
	if prev := e.SetGradMode(false); !prev {
		t.Errorf("SetGradMode returned %v, want true", prev)
	}
	if e.GradMode() {
		t.Error("grad mode should be off")
	}
}

func TestEngineLevelNesting(t *testing.T) {
	e := NewEngine()
	e.EnterLevel()
	e.EnterLevel()
	if d := e.Depth(); d != 2 {
		t.Errorf("depth = %d, want 2", d)
	}
	e.ExitLevel()
	e.ExitLevel()
	if d := e.Depth(); d != 0 {
		t.Errorf("depth = %d, want 0", d)
	}

	defer func() {
		if recover() == nil {
			t.Error("exit without enter should panic")
		}
	}()
	e.ExitLevel()
}

func TestEngineRecordAndReset(t *testing.T) {
	e := NewEngine()
	e.Record("add", 1, 2)
	e.Record("mul", 2, 2)
	tape := e.Tape()
	if len(tape) != 2 {
		t.Fatalf("tape length = %d, want 2", len(tape))
	}
	if tape[0] != (Entry{Op: "add", Level: 1, NumInputs: 2}) {
		t.Errorf("tape[0] = %+v", tape[0])
	}
	if tape[1] != (Entry{Op: "mul", Level: 2, NumInputs: 2}) {
		t.Errorf("tape[1] = %+v", tape[1])
	}

	// Records are dropped while grad mode is off.
	e.SetGradMode(false)
	e.Record("sub", 1, 2)
	if len(e.Tape()) != 2 {
		t.Errorf("tape grew with grad mode off: %d entries", len(e.Tape()))
	}

	e.Reset()
	if len(e.Tape()) != 0 {
		t.Errorf("tape not empty after reset: %d entries", len(e.Tape()))
	}
}
