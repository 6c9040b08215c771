package vm

import "fmt"

// ---------------------------------------------------------------------------
// Cells
// ---------------------------------------------------------------------------

// CellKind identifies which variant a Cell carries.
type CellKind uint8

const (
	KindInt CellKind = iota
	KindFloat
	KindString
	KindObject
)

func (k CellKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("CellKind(%d)", uint8(k))
}

// Letter returns the one-letter call-shape notation for the kind:
// I for integers, N for floats, S for strings, O for objects.
func (k CellKind) Letter() byte {
	switch k {
	case KindInt:
		return 'I'
	case KindFloat:
		return 'N'
	case KindString:
		return 'S'
	case KindObject:
		return 'O'
	}
	return '?'
}

// Cell is one tagged argument slot. The kind and payload always agree:
// cells are only built through the four constructors below, so a cell can
// never claim one kind while carrying another. The zero Cell is an integer
// cell holding 0.
//
// A cell holds at most one heap reference (its string or object payload).
// Cells do not own what they reference; the Heap does. Liveness is
// communicated to the collector through Signature.MarkReachable.
type Cell struct {
	kind CellKind
	i    int64
	n    float64
	s    *String
	o    *Object
}

// IntCell returns a cell holding the integer v.
func IntCell(v int64) Cell { return Cell{kind: KindInt, i: v} }

// FloatCell returns a cell holding the float v.
func FloatCell(v float64) Cell { return Cell{kind: KindFloat, n: v} }

// StringCell returns a cell referencing s. A nil s is the null string.
func StringCell(s *String) Cell { return Cell{kind: KindString, s: s} }

// ObjectCell returns a cell referencing o. A nil o is the null object.
func ObjectCell(o *Object) Cell { return Cell{kind: KindObject, o: o} }

// Kind returns the cell's variant tag.
func (c Cell) Kind() CellKind { return c.kind }

func (c Cell) IsInt() bool    { return c.kind == KindInt }
func (c Cell) IsFloat() bool  { return c.kind == KindFloat }
func (c Cell) IsString() bool { return c.kind == KindString }
func (c Cell) IsObject() bool { return c.kind == KindObject }

// Int returns the integer payload. Panics if the cell is not an integer
// cell; cross-kind reads go through the coercing accessors on Signature.
func (c Cell) Int() int64 {
	if c.kind != KindInt {
		panic("Cell.Int: not an integer cell")
	}
	return c.i
}

// Float returns the float payload. Panics if the cell is not a float cell.
func (c Cell) Float() float64 {
	if c.kind != KindFloat {
		panic("Cell.Float: not a float cell")
	}
	return c.n
}

// Str returns the string payload, possibly nil. Panics if the cell is not
// a string cell.
func (c Cell) Str() *String {
	if c.kind != KindString {
		panic("Cell.Str: not a string cell")
	}
	return c.s
}

// Obj returns the object payload, possibly nil. Panics if the cell is not
// an object cell.
func (c Cell) Obj() *Object {
	if c.kind != KindObject {
		panic("Cell.Obj: not an object cell")
	}
	return c.o
}

// String renders the cell for debug output and traces.
func (c Cell) String() string {
	switch c.kind {
	case KindInt:
		return fmt.Sprintf("int(%d)", c.i)
	case KindFloat:
		return fmt.Sprintf("float(%s)", FormatFloat(c.n))
	case KindString:
		if c.s == nil {
			return "string(nil)"
		}
		return fmt.Sprintf("string(%q)", c.s.Text())
	case KindObject:
		if c.o == nil {
			return "object(nil)"
		}
		return fmt.Sprintf("object(%s)", c.o.ClassName())
	}
	return "cell(?)"
}

// mark reports the cell's heap reference, if any, to the marker.
func (c *Cell) mark(m Marker) {
	switch c.kind {
	case KindString:
		if c.s != nil {
			m.MarkString(c.s)
		}
	case KindObject:
		if c.o != nil {
			m.MarkObject(c.o)
		}
	}
}
