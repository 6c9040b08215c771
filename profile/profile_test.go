package profile

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/macaw/vm"
)

func openTestRecorder(t *testing.T, dbPath string) *Recorder {
	t.Helper()
	r, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return r
}

func TestOpenCreatesSession(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "shapes.db"))
	defer r.Close()

	if !strings.HasPrefix(r.Session(), "prof_") {
		t.Errorf("Session() = %q, want a prof_ prefix", r.Session())
	}
	sessions, err := r.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != r.Session() {
		t.Errorf("Sessions() = %v, want [%s]", sessions, r.Session())
	}
}

func TestObserveFlushQuery(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "shapes.db"))
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.ObserveShape(vm.ShapeSample{Positionals: 2, Named: 0, Kinds: "II"})
	}
	r.ObserveShape(vm.ShapeSample{Positionals: 1, Named: 1, Kinds: "S"})

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	shapes, err := r.TopShapes(10)
	if err != nil {
		t.Fatalf("TopShapes failed: %v", err)
	}
	if len(shapes) != 2 {
		t.Fatalf("TopShapes returned %d shapes, want 2", len(shapes))
	}
	top := shapes[0]
	if top.Kinds != "II" || top.Calls != 3 {
		t.Errorf("top shape = %+v, want kinds II with 3 calls", top)
	}
	second := shapes[1]
	if second.Kinds != "S" || second.Named != 1 || second.Calls != 1 {
		t.Errorf("second shape = %+v, want kinds S, 1 named, 1 call", second)
	}
}

func TestFlushAggregatesRepeats(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "shapes.db"))
	defer r.Close()

	r.ObserveShape(vm.ShapeSample{Positionals: 1, Kinds: "I"})
	if err := r.Flush(); err != nil {
		t.Fatalf("first Flush failed: %v", err)
	}
	r.ObserveShape(vm.ShapeSample{Positionals: 1, Kinds: "I"})
	if err := r.Flush(); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}

	shapes, err := r.TopShapes(1)
	if err != nil {
		t.Fatalf("TopShapes failed: %v", err)
	}
	if len(shapes) != 1 || shapes[0].Calls != 2 {
		t.Errorf("shapes = %+v, want one row with 2 calls", shapes)
	}
}

func TestFlushNothingPending(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "shapes.db"))
	defer r.Close()
	if err := r.Flush(); err != nil {
		t.Errorf("Flush with nothing pending = %v, want nil", err)
	}
}

func TestRecorderObservesInterpreter(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "shapes.db"))
	defer r.Close()

	ip := vm.NewInterp()
	ip.SetShapeObserver(r)

	for i := 0; i < 5; i++ {
		sig := ip.NewSignature()
		sig.PushInteger(int64(i))
		sig.PushString(ip.Heap().NewString("arg"))
		sig.Free()
	}

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	shapes, err := r.TopShapes(5)
	if err != nil {
		t.Fatalf("TopShapes failed: %v", err)
	}
	if len(shapes) != 1 {
		t.Fatalf("TopShapes returned %d shapes, want 1", len(shapes))
	}
	if shapes[0].Kinds != "IS" || shapes[0].Calls != 5 {
		t.Errorf("recorded shape = %+v, want kinds IS with 5 calls", shapes[0])
	}
}

func TestSessionsAccumulateAcrossOpens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shapes.db")

	r1 := openTestRecorder(t, dbPath)
	r1.ObserveShape(vm.ShapeSample{Positionals: 1, Kinds: "I"})
	if err := r1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r2 := openTestRecorder(t, dbPath)
	defer r2.Close()
	r2.ObserveShape(vm.ShapeSample{Positionals: 1, Kinds: "I"})
	if err := r2.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	sessions, err := r2.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Sessions() has %d entries, want 2", len(sessions))
	}

	shapes, err := r2.TopShapes(1)
	if err != nil {
		t.Fatalf("TopShapes failed: %v", err)
	}
	if len(shapes) != 1 || shapes[0].Calls != 2 {
		t.Errorf("shapes = %+v, want 2 calls summed across sessions", shapes)
	}
}

func TestReadTopShapes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shapes.db")

	r := openTestRecorder(t, dbPath)
	r.ObserveShape(vm.ShapeSample{Positionals: 2, Kinds: "IN"})
	r.ObserveShape(vm.ShapeSample{Positionals: 2, Kinds: "IN"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	shapes, err := ReadTopShapes(dbPath, 10)
	if err != nil {
		t.Fatalf("ReadTopShapes failed: %v", err)
	}
	if len(shapes) != 1 || shapes[0].Kinds != "IN" || shapes[0].Calls != 2 {
		t.Errorf("ReadTopShapes = %+v, want one IN shape with 2 calls", shapes)
	}

	r2 := openTestRecorder(t, dbPath)
	defer r2.Close()
	sessions, err := r2.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Sessions() has %d entries, want 2: ReadTopShapes must not register a session", len(sessions))
	}
}

func TestClosedRecorder(t *testing.T) {
	r := openTestRecorder(t, filepath.Join(t.TempDir(), "shapes.db"))
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r.ObserveShape(vm.ShapeSample{Positionals: 1, Kinds: "I"})

	if err := r.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
	if _, err := r.TopShapes(1); !errors.Is(err, ErrClosed) {
		t.Errorf("TopShapes after Close = %v, want ErrClosed", err)
	}
	if err := r.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}
