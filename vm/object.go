package vm

// ---------------------------------------------------------------------------
// Classes and objects
// ---------------------------------------------------------------------------

// Class describes the behavior of a family of heap objects through
// function-valued dispatch slots. The coercion engine and Signature.Clone
// call through these slots rather than switching on class identity, so
// user-defined classes participate in autoboxing with no changes to the
// call machinery.
//
// NewClass installs a default for every slot; constructors of specialized
// classes overwrite the slots they care about. All slots are non-nil on a
// class built with NewClass.
type Class struct {
	// Name identifies the class in traces, snapshots and registries.
	Name string

	// GetInteger derives an integer from an instance.
	GetInteger func(ip *Interp, o *Object) int64

	// GetNumber derives a float from an instance.
	GetNumber func(ip *Interp, o *Object) float64

	// GetString derives a heap string from an instance. May return nil for
	// classes with no text rendering.
	GetString func(ip *Interp, o *Object) *String

	// Clone produces an independent duplicate of an instance.
	Clone func(ip *Interp, o *Object) *Object

	// Mark reports the heap references an instance holds. The collector
	// calls it during the trace phase; instances reachable only through
	// unreported references are swept.
	Mark func(o *Object, m Marker)
}

// NewClass returns a class whose slots hold the generic defaults: scalar
// derivations yield zero values, Clone copies the payload fields, and Mark
// reports the string payload.
func NewClass(name string) *Class {
	c := &Class{Name: name}
	c.GetInteger = func(*Interp, *Object) int64 { return 0 }
	c.GetNumber = func(*Interp, *Object) float64 { return 0 }
	c.GetString = func(*Interp, *Object) *String { return nil }
	c.Clone = func(ip *Interp, o *Object) *Object {
		dup := ip.heap.NewObject(o.class)
		dup.ival = o.ival
		dup.nval = o.nval
		dup.sval = o.sval
		if o.ints != nil {
			dup.ints = append([]int64(nil), o.ints...)
		}
		return dup
	}
	c.Mark = func(o *Object, m Marker) {
		if o.sval != nil {
			m.MarkString(o.sval)
		}
	}
	return c
}

// Object is a heap-managed instance of a Class. The payload fields cover
// the built-in classes: boxed scalars use ival, nval and sval; integer
// vectors use ints. Classes interpret the fields they use and ignore the
// rest.
type Object struct {
	class      *Class
	onFreeList bool

	ival int64
	nval float64
	sval *String
	ints []int64
}

// Class returns the object's class, or nil for the null object.
func (o *Object) Class() *Class {
	if o == nil {
		return nil
	}
	return o.class
}

// ClassName returns the class name, or "?" when it cannot be determined.
func (o *Object) ClassName() string {
	if o == nil || o.class == nil {
		return "?"
	}
	return o.class.Name
}
