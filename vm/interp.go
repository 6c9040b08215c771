package vm

import "sync"

// ---------------------------------------------------------------------------
// Interpreter context
// ---------------------------------------------------------------------------

// DefaultSignatureFreeList caps how many freed signature aggregates the
// interpreter retains for reuse.
const DefaultSignatureFreeList = 32

// Tuning collects the runtime knobs for one interpreter. The zero value of
// a numeric field selects its default; a negative SignatureFreeList
// disables aggregate recycling.
type Tuning struct {
	// PoolSlotThreshold is the largest positional block served by the
	// pooled allocator tier, and the floor for a signature's first block.
	PoolSlotThreshold int

	// PoolMaxBlocks caps the allocator free lists.
	PoolMaxBlocks int

	// SignatureFreeList caps the signature aggregate free list.
	SignatureFreeList int

	// GCTrace logs every collection cycle on the macaw.gc logger.
	GCTrace bool

	// GCStress forces a full collection before every heap allocation. Slow;
	// meant for tests that shake out unreported references.
	GCStress bool
}

// DefaultTuning returns the tuning an interpreter uses when given none.
func DefaultTuning() Tuning {
	return Tuning{
		PoolSlotThreshold: DefaultPoolSlotThreshold,
		PoolMaxBlocks:     DefaultPoolMaxBlocks,
		SignatureFreeList: DefaultSignatureFreeList,
	}
}

// ShapeSample describes the argument shape of one completed call: how many
// positionals it carried, their kinds in push order as call-shape letters,
// and how many named entries existed.
type ShapeSample struct {
	Positionals int
	Named       int
	Kinds       string
}

// ShapeObserver receives a sample each time a signature is reset or freed.
// Observers must not call back into the signature being sampled.
type ShapeObserver interface {
	ObserveShape(ShapeSample)
}

// SignatureStats is a snapshot of signature aggregate recycling.
type SignatureStats struct {
	Allocs   uint64
	Reuses   uint64
	Releases uint64
}

// Interp owns the services the call layer depends on: the heap, the cell
// allocator, the class registry and the set of live signatures. Every
// signature is bound to the interpreter that built it.
//
// Signatures are not safe for concurrent mutation; the registries and
// allocators behind the interpreter are.
type Interp struct {
	heap  *Heap
	cells *CellAllocator

	ObjectClass   *Class
	IntegerClass  *Class
	FloatClass    *Class
	StringClass   *Class
	IntArrayClass *Class

	classesMu sync.RWMutex
	classes   map[string]*Class

	sigMu      sync.Mutex
	sigs       map[*Signature]struct{}
	sigFree    []*Signature
	sigFreeMax int
	sigStats   SignatureStats

	obsMu    sync.RWMutex
	observer ShapeObserver
}

// NewInterp returns an interpreter with default tuning.
func NewInterp() *Interp {
	return NewInterpWithTuning(DefaultTuning())
}

// NewInterpWithTuning returns an interpreter configured by t.
func NewInterpWithTuning(t Tuning) *Interp {
	sigFreeMax := t.SignatureFreeList
	if sigFreeMax == 0 {
		sigFreeMax = DefaultSignatureFreeList
	} else if sigFreeMax < 0 {
		sigFreeMax = 0
	}
	ip := &Interp{
		heap:       NewHeap(),
		cells:      NewCellAllocator(t.PoolSlotThreshold, t.PoolMaxBlocks),
		classes:    make(map[string]*Class),
		sigs:       make(map[*Signature]struct{}),
		sigFreeMax: sigFreeMax,
	}
	ip.bootstrapClasses()
	ip.heap.SetTrace(t.GCTrace)
	if t.GCStress {
		ip.heap.setStressHook(func() { ip.Collect() })
	}
	return ip
}

// Heap returns the interpreter's heap.
func (ip *Interp) Heap() *Heap {
	return ip.heap
}

// Allocator returns the interpreter's cell allocator.
func (ip *Interp) Allocator() *CellAllocator {
	return ip.cells
}

// RegisterClass adds c to the class registry, replacing any class with the
// same name.
func (ip *Interp) RegisterClass(c *Class) {
	ip.classesMu.Lock()
	defer ip.classesMu.Unlock()
	ip.classes[c.Name] = c
}

// LookupClass returns the registered class named name, or nil.
func (ip *Interp) LookupClass(name string) *Class {
	ip.classesMu.RLock()
	defer ip.classesMu.RUnlock()
	return ip.classes[name]
}

// SetShapeObserver installs the observer sampled on signature reset and
// free. A nil observer disables sampling.
func (ip *Interp) SetShapeObserver(o ShapeObserver) {
	ip.obsMu.Lock()
	defer ip.obsMu.Unlock()
	ip.observer = o
}

func (ip *Interp) shapeObserver() ShapeObserver {
	ip.obsMu.RLock()
	defer ip.obsMu.RUnlock()
	return ip.observer
}

// SignatureStats returns a snapshot of aggregate recycling counters.
func (ip *Interp) SignatureStats() SignatureStats {
	ip.sigMu.Lock()
	defer ip.sigMu.Unlock()
	return ip.sigStats
}

// LiveSignatures returns how many signatures are currently allocated and
// not yet freed.
func (ip *Interp) LiveSignatures() int {
	ip.sigMu.Lock()
	defer ip.sigMu.Unlock()
	return len(ip.sigs)
}

// Collect runs a garbage collection cycle using every live signature as a
// root, plus any extra roots the caller holds.
func (ip *Interp) Collect(extra ...Root) CollectStats {
	ip.sigMu.Lock()
	roots := make([]Root, 0, len(ip.sigs)+len(extra))
	for s := range ip.sigs {
		roots = append(roots, s)
	}
	ip.sigMu.Unlock()
	roots = append(roots, extra...)
	return ip.heap.Collect(roots...)
}
