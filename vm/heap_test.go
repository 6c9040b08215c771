package vm

import "testing"

// ---------------------------------------------------------------------------
// Heap and collector tests
// ---------------------------------------------------------------------------

func TestNewObjectIsLive(t *testing.T) {
	ip := NewInterp()
	o := ip.BoxInteger(5)
	if ip.Heap().IsDead(o) {
		t.Error("fresh object IsDead() = true")
	}
	if !ip.Heap().Live(o) {
		t.Error("fresh object Live() = false")
	}
}

func TestIsDeadNullObject(t *testing.T) {
	h := NewHeap()
	if h.IsDead(nil) {
		t.Error("IsDead(nil) = true, the null object is never dead")
	}
}

func TestNewObjectNilClassPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewObject(nil) did not panic")
		}
	}()
	NewHeap().NewObject(nil)
}

func TestCollectSweepsUnrootedObject(t *testing.T) {
	ip := NewInterp()
	o := ip.BoxInteger(5)

	cs := ip.Heap().Collect()
	if cs.SweptObjects != 1 {
		t.Fatalf("SweptObjects = %d, want 1", cs.SweptObjects)
	}
	if !ip.Heap().IsDead(o) {
		t.Error("swept object IsDead() = false")
	}
	if ip.Heap().Live(o) {
		t.Error("swept object Live() = true")
	}
}

func TestCollectKeepsRootedObject(t *testing.T) {
	ip := NewInterp()
	o := ip.BoxInteger(5)

	root := RootFunc(func(m Marker) { m.MarkObject(o) })
	cs := ip.Heap().Collect(root)
	if cs.SweptObjects != 0 {
		t.Fatalf("SweptObjects = %d, want 0", cs.SweptObjects)
	}
	if ip.Heap().IsDead(o) {
		t.Error("rooted object IsDead() = true")
	}
}

func TestCollectSweepsUnrootedString(t *testing.T) {
	h := NewHeap()
	h.NewString("doomed")
	kept := h.NewString("kept")

	root := RootFunc(func(m Marker) { m.MarkString(kept) })
	cs := h.Collect(root)
	if cs.SweptStrings != 1 {
		t.Errorf("SweptStrings = %d, want 1", cs.SweptStrings)
	}
	if cs.LiveStrings != 1 {
		t.Errorf("LiveStrings = %d, want 1", cs.LiveStrings)
	}
}

func TestInternedStringsSurviveCollection(t *testing.T) {
	h := NewHeap()
	s := h.Intern("immortal")

	h.Collect()
	if got := h.Intern("immortal"); got != s {
		t.Error("interned string did not survive an unrooted collection")
	}
}

func TestMarkingIsTransitive(t *testing.T) {
	ip := NewInterp()
	text := ip.Heap().NewString("payload")
	box := ip.BoxString(text)

	root := RootFunc(func(m Marker) { m.MarkObject(box) })
	cs := ip.Heap().Collect(root)
	if cs.SweptStrings != 0 {
		t.Errorf("SweptStrings = %d, want 0: boxed string payload must be reached through the box", cs.SweptStrings)
	}
	if cs.MarkedStrings != 1 {
		t.Errorf("MarkedStrings = %d, want 1", cs.MarkedStrings)
	}
}

func TestMarkingHandlesCycles(t *testing.T) {
	ip := NewInterp()
	links := make(map[*Object]*Object)
	pair := NewClass("Pair")
	pair.Mark = func(o *Object, m Marker) {
		if next := links[o]; next != nil {
			m.MarkObject(next)
		}
	}
	ip.RegisterClass(pair)

	a := ip.Heap().NewObject(pair)
	b := ip.Heap().NewObject(pair)
	links[a] = b
	links[b] = a

	root := RootFunc(func(m Marker) { m.MarkObject(a) })
	cs := ip.Heap().Collect(root)
	if cs.MarkedObjects != 2 {
		t.Errorf("MarkedObjects = %d, want 2", cs.MarkedObjects)
	}
	if cs.SweptObjects != 0 {
		t.Errorf("SweptObjects = %d, want 0", cs.SweptObjects)
	}
}

func TestSweptObjectIsRecycled(t *testing.T) {
	ip := NewInterp()
	o := ip.BoxInteger(1)
	ip.Heap().Collect()

	o2 := ip.BoxInteger(2)
	if o2 != o {
		t.Error("allocation after a sweep did not reuse the freed object")
	}
	if ip.Heap().IsDead(o2) {
		t.Error("recycled object IsDead() = true")
	}

	stats := ip.Heap().Stats()
	if stats.ObjectReuses != 1 {
		t.Errorf("ObjectReuses = %d, want 1", stats.ObjectReuses)
	}
}

func TestHeapStats(t *testing.T) {
	h := NewHeap()
	h.NewString("a")
	h.Intern("b")
	h.Intern("b")
	h.Collect()

	stats := h.Stats()
	if stats.StringAllocs != 2 {
		t.Errorf("StringAllocs = %d, want 2", stats.StringAllocs)
	}
	if stats.InternHits != 1 {
		t.Errorf("InternHits = %d, want 1", stats.InternHits)
	}
	if stats.Collections != 1 {
		t.Errorf("Collections = %d, want 1", stats.Collections)
	}
	if stats.StringsSwept != 1 {
		t.Errorf("StringsSwept = %d, want 1", stats.StringsSwept)
	}
}
