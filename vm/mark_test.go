package vm

import "testing"

// ---------------------------------------------------------------------------
// Signature marking tests
// ---------------------------------------------------------------------------

type collectingMarker struct {
	strings map[*String]int
	objects map[*Object]int
}

func newCollectingMarker() *collectingMarker {
	return &collectingMarker{
		strings: make(map[*String]int),
		objects: make(map[*Object]int),
	}
}

func (c *collectingMarker) MarkString(s *String) { c.strings[s]++ }
func (c *collectingMarker) MarkObject(o *Object) { c.objects[o]++ }

func TestMarkReachableReportsEveryReference(t *testing.T) {
	ip := NewInterp()
	h := ip.Heap()
	sig := ip.NewSignature()
	defer sig.Free()

	s1 := h.NewString("one")
	s2 := h.NewString("two")
	o1 := ip.BoxInteger(1)
	key := h.Intern("k")
	val := h.NewString("v")
	tt := ip.NewIntArray([]int64{1})
	ss := h.Intern("S->")

	sig.PushString(s1)
	sig.PushInteger(7)
	sig.PushString(s2)
	sig.PushObject(o1)
	sig.PushStringNamed(key, val)
	sig.SetMetadata(tt, ss, nil, nil)

	m := newCollectingMarker()
	sig.MarkReachable(m)

	wantStrings := []*String{s1, s2, key, val, ss}
	for _, s := range wantStrings {
		if m.strings[s] == 0 {
			t.Errorf("string %q was not reported", s.Text())
		}
	}
	if len(m.strings) != len(wantStrings) {
		t.Errorf("reported %d strings, want %d", len(m.strings), len(wantStrings))
	}

	wantObjects := []*Object{o1, tt}
	for _, o := range wantObjects {
		if m.objects[o] == 0 {
			t.Errorf("object %s was not reported", o.ClassName())
		}
	}
	if len(m.objects) != len(wantObjects) {
		t.Errorf("reported %d objects, want %d", len(m.objects), len(wantObjects))
	}
}

func TestMarkReachableSkipsStaleSlots(t *testing.T) {
	ip := NewInterp()
	sig := ip.NewSignature()
	defer sig.Free()

	sig.PushObject(ip.BoxInteger(1))
	sig.PushString(ip.Heap().NewString("stale"))
	sig.Reset()
	sig.PushInteger(5)

	m := newCollectingMarker()
	sig.MarkReachable(m)

	if len(m.objects) != 0 {
		t.Errorf("reported %d objects from stale slots, want 0", len(m.objects))
	}
	if len(m.strings) != 0 {
		t.Errorf("reported %d strings from stale slots, want 0", len(m.strings))
	}
}

func TestMarkReachableSkipsNullReferences(t *testing.T) {
	ip := NewInterp()
	sig := ip.NewSignature()
	defer sig.Free()

	sig.PushString(nil)
	sig.PushObject(nil)
	sig.PushObjectNamed(ip.Heap().Intern("k"), nil)

	m := newCollectingMarker()
	sig.MarkReachable(m)

	if len(m.objects) != 0 {
		t.Errorf("reported %d objects, want 0: null references are not marked", len(m.objects))
	}
	if len(m.strings) != 1 {
		t.Errorf("reported %d strings, want 1 (the named key)", len(m.strings))
	}
}

func TestDuplicateReferencesConvergeInMarkState(t *testing.T) {
	ip := NewInterp()
	h := ip.Heap()
	sig := ip.NewSignature()
	defer sig.Free()

	s := h.NewString("dup")
	sig.PushString(s)
	sig.PushString(s)
	sig.PushString(s)

	cs := ip.Collect()
	if cs.MarkedStrings != 1 {
		t.Errorf("MarkedStrings = %d, want 1: three cells reference one string", cs.MarkedStrings)
	}
	if cs.SweptStrings != 0 {
		t.Errorf("SweptStrings = %d, want 0", cs.SweptStrings)
	}
}

func TestLiveSignaturesAreCollectionRoots(t *testing.T) {
	ip := NewInterp()
	h := ip.Heap()

	sig := ip.NewSignature()
	kept := h.NewString("kept")
	sig.PushString(kept)
	doomed := h.NewString("doomed")
	_ = doomed

	cs := ip.Collect()
	if cs.SweptStrings != 1 {
		t.Errorf("SweptStrings = %d, want 1: only the unreferenced string dies", cs.SweptStrings)
	}
	if got := sig.GetString(0); got != kept {
		t.Error("signature-held string did not survive collection")
	}

	sig.Free()
	cs = ip.Collect()
	if cs.SweptStrings != 1 {
		t.Errorf("SweptStrings after Free = %d, want 1: freed signatures are no longer roots", cs.SweptStrings)
	}
}

func TestNamedKeysSurviveCollection(t *testing.T) {
	ip := NewInterp()
	h := ip.Heap()
	sig := ip.NewSignature()
	defer sig.Free()

	key := h.NewString("transient-key")
	sig.PushIntegerNamed(key, 3)

	cs := ip.Collect()
	if cs.SweptStrings != 0 {
		t.Errorf("SweptStrings = %d, want 0: named keys are held by the table", cs.SweptStrings)
	}
	if got := sig.GetIntegerNamed(h.NewString("transient-key")); got != 3 {
		t.Errorf("named entry after collection = %d, want 3", got)
	}
}

func TestMetadataSurvivesCollection(t *testing.T) {
	ip := NewInterp()
	sig := ip.NewSignature()
	defer sig.Free()

	tt := ip.NewIntArray([]int64{1, 2})
	ss := ip.Heap().NewString("II->")
	sig.SetMetadata(tt, ss, nil, nil)

	ip.Collect()
	if ip.Heap().IsDead(tt) {
		t.Error("TypeTuple was swept while installed on a live signature")
	}
	if got := sig.ShortSig(); got != ss {
		t.Error("ShortSig handle changed across collection")
	}
}

func TestStressModeKeepsRootedReferencesAlive(t *testing.T) {
	ip := NewInterpWithTuning(Tuning{GCStress: true})
	h := ip.Heap()
	sig := ip.NewSignature()
	defer sig.Free()

	for i := 0; i < 16; i++ {
		sig.PushString(h.NewString(FormatInt(int64(i))))
		sig.PushObject(ip.BoxInteger(int64(i)))
	}

	for i := 0; i < 16; i++ {
		if got := sig.GetString(2 * i).Text(); got != FormatInt(int64(i)) {
			t.Fatalf("positional %d = %q, want %q under stress collection", 2*i, got, FormatInt(int64(i)))
		}
		obj := sig.GetObject(2*i + 1)
		if h.IsDead(obj) {
			t.Fatalf("positional %d object died under stress collection", 2*i+1)
		}
	}

	if stats := h.Stats(); stats.Collections == 0 {
		t.Error("stress mode performed no collections")
	}
}
