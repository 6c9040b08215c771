package vm

import "errors"

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

// ErrDeadReference is the panic value raised when a reclaimed object
// reference is pushed into a signature.
var ErrDeadReference = errors.New("signature: push of reclaimed object reference")

type namedSlot struct {
	key  *String
	cell *Cell
}

// Signature carries the arguments of one call and, symmetrically, its
// return values. Positionals live in an ordered block drawn from the cell
// allocator; named entries live in a table created on first use; the
// metadata handles describe the call for dispatch machinery further up.
//
// A signature stays alive, and keeps everything its cells reference alive,
// until Free. Freed aggregates are recycled, so holding a signature across
// Free is a caller bug the same way holding a dead object reference is.
type Signature struct {
	interp *Interp

	positionals []Cell
	num         int

	named map[string]*namedSlot

	typeTuple   *Object
	shortSig    *String
	argFlags    *Object
	returnFlags *Object
}

// NewSignature returns an empty signature bound to the interpreter,
// recycling a freed aggregate when one is available. The new signature has
// no positional block, no named table and no metadata.
func (ip *Interp) NewSignature() *Signature {
	ip.sigMu.Lock()
	defer ip.sigMu.Unlock()
	ip.sigStats.Allocs++
	var s *Signature
	if n := len(ip.sigFree); n > 0 {
		s = ip.sigFree[n-1]
		ip.sigFree = ip.sigFree[:n-1]
		ip.sigStats.Reuses++
	} else {
		s = &Signature{}
	}
	s.interp = ip
	ip.sigs[s] = struct{}{}
	return s
}

// NumPositionals returns the count of live positional slots.
func (s *Signature) NumPositionals() int {
	return s.num
}

// Capacity returns how many positional slots the current block holds.
func (s *Signature) Capacity() int {
	return len(s.positionals)
}

// ensureStorage guarantees room for at least n positional slots, keeping
// the live prefix. The first block is floored at the pool threshold so
// small calls share pooled block sizes; beyond the threshold capacity grows
// geometrically, which keeps pushes amortized constant-time. Capacity never
// shrinks.
func (s *Signature) ensureStorage(n int) {
	if n <= len(s.positionals) {
		return
	}
	grow := n
	if threshold := s.interp.cells.Threshold(); grow < threshold {
		grow = threshold
	}
	if doubled := 2 * len(s.positionals); grow < doubled {
		grow = doubled
	}
	block := s.interp.cells.AcquireBlock(grow)
	copy(block, s.positionals[:s.num])
	if s.positionals != nil {
		s.interp.cells.ReleaseBlock(s.positionals)
	}
	s.positionals = block
}

// PushInteger appends a positional integer.
func (s *Signature) PushInteger(v int64) {
	s.ensureStorage(s.num + 1)
	s.positionals[s.num] = IntCell(v)
	s.num++
}

// PushFloat appends a positional float.
func (s *Signature) PushFloat(v float64) {
	s.ensureStorage(s.num + 1)
	s.positionals[s.num] = FloatCell(v)
	s.num++
}

// PushString appends a positional string reference.
func (s *Signature) PushString(str *String) {
	s.ensureStorage(s.num + 1)
	s.positionals[s.num] = StringCell(str)
	s.num++
}

// PushObject appends a positional object reference. Pushing a reference
// the collector has already reclaimed panics with ErrDeadReference: the
// reference escaped the root set earlier and can no longer be trusted.
func (s *Signature) PushObject(o *Object) {
	if s.interp.heap.IsDead(o) {
		panic(ErrDeadReference)
	}
	s.ensureStorage(s.num + 1)
	s.positionals[s.num] = ObjectCell(o)
	s.num++
}

// GetInteger returns positional idx as an integer, coercing when the cell
// holds another kind. Out-of-range reads yield 0.
func (s *Signature) GetInteger(idx int) int64 {
	if idx < 0 || idx >= s.num {
		return 0
	}
	return s.interp.autoboxInteger(&s.positionals[idx])
}

// GetNumber returns positional idx as a float. Out-of-range reads yield 0.
func (s *Signature) GetNumber(idx int) float64 {
	if idx < 0 || idx >= s.num {
		return 0
	}
	return s.interp.autoboxNumber(&s.positionals[idx])
}

// GetString returns positional idx as a string reference. Out-of-range
// reads yield the null string.
func (s *Signature) GetString(idx int) *String {
	if idx < 0 || idx >= s.num {
		return nil
	}
	return s.interp.autoboxString(&s.positionals[idx])
}

// GetObject returns positional idx as an object reference, boxing scalar
// cells. Out-of-range reads yield the null object.
func (s *Signature) GetObject(idx int) *Object {
	if idx < 0 || idx >= s.num {
		return nil
	}
	return s.interp.autoboxObject(&s.positionals[idx])
}

// Cells calls fn for each live positional cell in push order.
func (s *Signature) Cells(fn func(idx int, c Cell)) {
	for i := 0; i < s.num; i++ {
		fn(i, s.positionals[i])
	}
}

// getCellNamed is the single path that creates named entries: it returns
// the cell stored under key's text, adding a fresh entry when none exists.
// The entry retains the key handle it was created with; later writes under
// an equal key reuse the entry and keep the original handle.
func (s *Signature) getCellNamed(key *String) *Cell {
	if s.named == nil {
		s.named = make(map[string]*namedSlot)
	}
	k := key.Text()
	if slot, ok := s.named[k]; ok {
		return slot.cell
	}
	c := s.interp.cells.AcquireCell()
	s.named[k] = &namedSlot{key: key, cell: c}
	return c
}

// PushIntegerNamed stores an integer under key, overwriting any previous
// entry with equal text.
func (s *Signature) PushIntegerNamed(key *String, v int64) {
	*s.getCellNamed(key) = IntCell(v)
}

// PushFloatNamed stores a float under key.
func (s *Signature) PushFloatNamed(key *String, v float64) {
	*s.getCellNamed(key) = FloatCell(v)
}

// PushStringNamed stores a string reference under key.
func (s *Signature) PushStringNamed(key *String, str *String) {
	*s.getCellNamed(key) = StringCell(str)
}

// PushObjectNamed stores an object reference under key. Dead references
// panic with ErrDeadReference, as with PushObject.
func (s *Signature) PushObjectNamed(key *String, o *Object) {
	if s.interp.heap.IsDead(o) {
		panic(ErrDeadReference)
	}
	*s.getCellNamed(key) = ObjectCell(o)
}

func (s *Signature) lookupNamed(key *String) (*Cell, bool) {
	if s.named == nil {
		return nil, false
	}
	slot, ok := s.named[key.Text()]
	if !ok {
		return nil, false
	}
	return slot.cell, true
}

// GetIntegerNamed returns the entry under key as an integer, or 0 when no
// entry exists. A lookup never creates an entry.
func (s *Signature) GetIntegerNamed(key *String) int64 {
	c, ok := s.lookupNamed(key)
	if !ok {
		return 0
	}
	if c.kind == KindInt {
		return c.i
	}
	return s.interp.autoboxInteger(c)
}

// GetNumberNamed returns the entry under key as a float, or 0.
func (s *Signature) GetNumberNamed(key *String) float64 {
	c, ok := s.lookupNamed(key)
	if !ok {
		return 0
	}
	if c.kind == KindFloat {
		return c.n
	}
	return s.interp.autoboxNumber(c)
}

// GetStringNamed returns the entry under key as a string reference, or the
// null string.
func (s *Signature) GetStringNamed(key *String) *String {
	c, ok := s.lookupNamed(key)
	if !ok {
		return nil
	}
	if c.kind == KindString {
		return c.s
	}
	return s.interp.autoboxString(c)
}

// GetObjectNamed returns the entry under key as an object reference, or
// the null object.
func (s *Signature) GetObjectNamed(key *String) *Object {
	c, ok := s.lookupNamed(key)
	if !ok {
		return nil
	}
	return s.interp.autoboxObject(c)
}

// ExistsNamed reports whether an entry exists under key. An entry holding
// a zero value still exists.
func (s *Signature) ExistsNamed(key *String) bool {
	_, ok := s.lookupNamed(key)
	return ok
}

// NumNamed returns how many named entries the signature holds.
func (s *Signature) NumNamed() int {
	return len(s.named)
}

// NamedCells calls fn for each named entry. Iteration order is
// unspecified.
func (s *Signature) NamedCells(fn func(key *String, c Cell)) {
	for _, slot := range s.named {
		fn(slot.key, *slot.cell)
	}
}

// SetMetadata installs the pass-through call description: the argument
// type tuple, the short signature text, and the per-argument and
// per-return flag vectors. The handles travel as one unit; a call site
// provides all of them or none.
func (s *Signature) SetMetadata(typeTuple *Object, shortSig *String, argFlags, returnFlags *Object) {
	s.typeTuple = typeTuple
	s.shortSig = shortSig
	s.argFlags = argFlags
	s.returnFlags = returnFlags
}

// TypeTuple returns the argument type tuple handle.
func (s *Signature) TypeTuple() *Object { return s.typeTuple }

// ShortSig returns the short signature text handle.
func (s *Signature) ShortSig() *String { return s.shortSig }

// ArgFlags returns the per-argument flag vector handle.
func (s *Signature) ArgFlags() *Object { return s.argFlags }

// ReturnFlags returns the per-return flag vector handle.
func (s *Signature) ReturnFlags() *Object { return s.returnFlags }

// Reset clears the signature for reuse within the same call site: the
// positional count drops to zero while the block and its capacity stay,
// and the named store is destroyed. Metadata is untouched.
func (s *Signature) Reset() {
	s.observe()
	s.num = 0
	s.releaseNamed()
}

func (s *Signature) releaseNamed() {
	if s.named == nil {
		return
	}
	for _, slot := range s.named {
		s.interp.cells.ReleaseCell(slot.cell)
	}
	s.named = nil
}

// Free releases the signature's storage and recycles the aggregate. The
// signature must not be used afterwards.
func (s *Signature) Free() {
	ip := s.interp
	if ip == nil {
		panic("Signature.Free: already freed")
	}
	s.observe()
	if s.positionals != nil {
		ip.cells.ReleaseBlock(s.positionals)
		s.positionals = nil
	}
	s.releaseNamed()
	s.num = 0
	s.typeTuple = nil
	s.shortSig = nil
	s.argFlags = nil
	s.returnFlags = nil
	s.interp = nil

	ip.sigMu.Lock()
	defer ip.sigMu.Unlock()
	delete(ip.sigs, s)
	ip.sigStats.Releases++
	if len(ip.sigFree) < ip.sigFreeMax {
		ip.sigFree = append(ip.sigFree, s)
	}
}

// Clone returns an independent signature carrying the same contents: the
// live positionals are copied into a block sized for the count, the named
// store is duplicated entry by entry, object metadata is cloned through
// the class Clone slots and the short signature handle is shared, since
// strings are immutable.
func (s *Signature) Clone() *Signature {
	ip := s.interp
	dest := ip.NewSignature()
	if s.num > 0 {
		dest.ensureStorage(s.num)
		copy(dest.positionals, s.positionals[:s.num])
		dest.num = s.num
	}
	if s.named != nil {
		dest.named = make(map[string]*namedSlot, len(s.named))
		for k, slot := range s.named {
			c := ip.cells.AcquireCell()
			*c = *slot.cell
			dest.named[k] = &namedSlot{key: slot.key, cell: c}
		}
	}
	dest.typeTuple = ip.cloneObject(s.typeTuple)
	dest.shortSig = s.shortSig
	dest.argFlags = ip.cloneObject(s.argFlags)
	dest.returnFlags = ip.cloneObject(s.returnFlags)
	return dest
}

func (ip *Interp) cloneObject(o *Object) *Object {
	if o == nil {
		return nil
	}
	return o.class.Clone(ip, o)
}

// MarkReachable reports every heap reference the signature holds: live
// positional cells, named keys and cells, and the metadata handles. Slots
// beyond the live count are not reported even when the block retains stale
// contents.
func (s *Signature) MarkReachable(m Marker) {
	for i := 0; i < s.num; i++ {
		s.positionals[i].mark(m)
	}
	for _, slot := range s.named {
		if slot.key != nil {
			m.MarkString(slot.key)
		}
		slot.cell.mark(m)
	}
	if s.shortSig != nil {
		m.MarkString(s.shortSig)
	}
	if s.typeTuple != nil {
		m.MarkObject(s.typeTuple)
	}
	if s.argFlags != nil {
		m.MarkObject(s.argFlags)
	}
	if s.returnFlags != nil {
		m.MarkObject(s.returnFlags)
	}
}

func (s *Signature) kindLetters() string {
	if s.num == 0 {
		return ""
	}
	b := make([]byte, s.num)
	for i := 0; i < s.num; i++ {
		b[i] = s.positionals[i].kind.Letter()
	}
	return string(b)
}

func (s *Signature) observe() {
	obs := s.interp.shapeObserver()
	if obs == nil {
		return
	}
	obs.ObserveShape(ShapeSample{
		Positionals: s.num,
		Named:       len(s.named),
		Kinds:       s.kindLetters(),
	})
}
