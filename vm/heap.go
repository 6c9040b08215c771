package vm

import (
	"sync"

	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("macaw.gc")

// ---------------------------------------------------------------------------
// Marking interfaces
// ---------------------------------------------------------------------------

// Marker is the collector's trace-phase interface. During a collection every
// root reports the strings and objects it can reach; whatever goes
// unreported is swept. Marking an object also runs its class Mark slot, so
// reporting is transitive.
type Marker interface {
	MarkString(s *String)
	MarkObject(o *Object)
}

// Root is anything that can report its reachable heap references. Live
// signatures are the canonical roots; tests and embedders provide their own.
type Root interface {
	MarkReachable(m Marker)
}

// RootFunc adapts a function to the Root interface.
type RootFunc func(m Marker)

func (f RootFunc) MarkReachable(m Marker) { f(m) }

// ---------------------------------------------------------------------------
// Heap
// ---------------------------------------------------------------------------

// HeapStats is a snapshot of cumulative heap activity.
type HeapStats struct {
	ObjectAllocs uint64
	ObjectReuses uint64
	StringAllocs uint64
	InternHits   uint64
	Collections  uint64
	ObjectsSwept uint64
	StringsSwept uint64
}

// CollectStats describes one collection cycle.
type CollectStats struct {
	MarkedObjects int
	MarkedStrings int
	SweptObjects  int
	SweptStrings  int
	LiveObjects   int
	LiveStrings   int
}

// Heap owns every String and Object in an interpreter. Cells hold non-owning
// references into it; Collect reclaims whatever the given roots did not
// report. Swept objects go on a free list for reuse, which is what makes
// IsDead observable: pushing a reference to a reclaimed object is a bug in
// the caller, and the signature layer turns it into a panic.
type Heap struct {
	mu          sync.Mutex
	objects     map[*Object]struct{}
	freeObjects []*Object
	maxFree     int
	strings     map[*String]struct{}
	intern      map[string]*String
	trace       bool
	stressHook  func()
	stats       HeapStats
}

const defaultMaxFreeObjects = 256

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{
		objects: make(map[*Object]struct{}),
		maxFree: defaultMaxFreeObjects,
		strings: make(map[*String]struct{}),
		intern:  make(map[string]*String),
	}
}

// SetTrace enables debug logging of collection cycles on the macaw.gc
// logger.
func (h *Heap) SetTrace(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = on
}

// setStressHook installs a callback invoked before every fresh allocation.
// The interpreter uses it to force a collection per allocation in stress
// mode. The hook runs outside the heap lock.
func (h *Heap) setStressHook(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stressHook = fn
}

func (h *Heap) runStressHook() {
	h.mu.Lock()
	hook := h.stressHook
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// NewString allocates a collectable string holding text.
func (h *Heap) NewString(text string) *String {
	h.runStressHook()
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &String{data: text}
	h.strings[s] = struct{}{}
	h.stats.StringAllocs++
	return s
}

// Intern returns the canonical String for text, creating it on first use.
// Interned strings are immortal: the intern table keeps them alive across
// collections. Two Intern calls with equal text return the same pointer.
func (h *Heap) Intern(text string) *String {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.intern[text]; ok {
		h.stats.InternHits++
		return s
	}
	s := &String{data: text, interned: true}
	h.intern[text] = s
	h.strings[s] = struct{}{}
	h.stats.StringAllocs++
	return s
}

// NewObject allocates an instance of class, reusing a swept object when one
// is available. Panics if class is nil; the null object is a nil *Object,
// not an instance without behavior.
func (h *Heap) NewObject(class *Class) *Object {
	if class == nil {
		panic("Heap.NewObject: nil class")
	}
	h.runStressHook()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.ObjectAllocs++
	if n := len(h.freeObjects); n > 0 {
		o := h.freeObjects[n-1]
		h.freeObjects = h.freeObjects[:n-1]
		*o = Object{class: class}
		h.objects[o] = struct{}{}
		h.stats.ObjectReuses++
		return o
	}
	o := &Object{class: class}
	h.objects[o] = struct{}{}
	return o
}

// IsDead reports whether o has been reclaimed by the collector. The null
// object is not dead. A true result means the reference escaped the root
// set during an earlier collection; using it is a caller bug.
func (h *Heap) IsDead(o *Object) bool {
	if o == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return o.onFreeList
}

// Live reports whether the heap currently tracks o as allocated.
func (h *Heap) Live(o *Object) bool {
	if o == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.objects[o]
	return ok
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// markState implements Marker for one collection cycle. The visited sets
// double as the survivor sets for the sweep and deduplicate reports, which
// also keeps marking safe on cyclic object graphs.
type markState struct {
	strings map[*String]struct{}
	objects map[*Object]struct{}
}

func newMarkState() *markState {
	return &markState{
		strings: make(map[*String]struct{}),
		objects: make(map[*Object]struct{}),
	}
}

func (m *markState) MarkString(s *String) {
	if s == nil {
		return
	}
	m.strings[s] = struct{}{}
}

func (m *markState) MarkObject(o *Object) {
	if o == nil {
		return
	}
	if _, seen := m.objects[o]; seen {
		return
	}
	m.objects[o] = struct{}{}
	if o.class != nil && o.class.Mark != nil {
		o.class.Mark(o, m)
	}
}

// Collect runs one mark-sweep cycle over the given roots. Interned strings
// survive unconditionally. Swept objects are cleared, flagged dead and
// parked on the free list for reuse.
//
// The mark phase runs class Mark slots outside the heap lock; those slots
// must not allocate.
func (h *Heap) Collect(roots ...Root) CollectStats {
	ms := newMarkState()
	for _, r := range roots {
		if r != nil {
			r.MarkReachable(ms)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var cs CollectStats
	cs.MarkedObjects = len(ms.objects)
	cs.MarkedStrings = len(ms.strings)

	for o := range h.objects {
		if _, live := ms.objects[o]; live {
			continue
		}
		delete(h.objects, o)
		*o = Object{onFreeList: true}
		if len(h.freeObjects) < h.maxFree {
			h.freeObjects = append(h.freeObjects, o)
		}
		cs.SweptObjects++
	}
	for s := range h.strings {
		if s.interned {
			continue
		}
		if _, live := ms.strings[s]; live {
			continue
		}
		delete(h.strings, s)
		cs.SweptStrings++
	}

	cs.LiveObjects = len(h.objects)
	cs.LiveStrings = len(h.strings)
	h.stats.Collections++
	h.stats.ObjectsSwept += uint64(cs.SweptObjects)
	h.stats.StringsSwept += uint64(cs.SweptStrings)

	if h.trace {
		gcLog.Debugf("collect: marked %d objects / %d strings, swept %d objects / %d strings, live %d objects / %d strings",
			cs.MarkedObjects, cs.MarkedStrings, cs.SweptObjects, cs.SweptStrings, cs.LiveObjects, cs.LiveStrings)
	}
	return cs
}
