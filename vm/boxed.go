package vm

import "strings"

// ---------------------------------------------------------------------------
// Built-in classes and boxing
// ---------------------------------------------------------------------------

// bootstrapClasses builds the classes the coercion engine boxes scalars
// into, plus the integer-vector class used for call metadata.
func (ip *Interp) bootstrapClasses() {
	object := NewClass("Object")

	integer := NewClass("Integer")
	integer.GetInteger = func(_ *Interp, o *Object) int64 { return o.ival }
	integer.GetNumber = func(_ *Interp, o *Object) float64 { return float64(o.ival) }
	integer.GetString = func(ip *Interp, o *Object) *String {
		return ip.heap.NewString(FormatInt(o.ival))
	}
	integer.Clone = func(ip *Interp, o *Object) *Object { return ip.BoxInteger(o.ival) }
	integer.Mark = func(*Object, Marker) {}

	float := NewClass("Float")
	float.GetInteger = func(_ *Interp, o *Object) int64 { return truncateToInt(o.nval) }
	float.GetNumber = func(_ *Interp, o *Object) float64 { return o.nval }
	float.GetString = func(ip *Interp, o *Object) *String {
		return ip.heap.NewString(FormatFloat(o.nval))
	}
	float.Clone = func(ip *Interp, o *Object) *Object { return ip.BoxFloat(o.nval) }
	float.Mark = func(*Object, Marker) {}

	str := NewClass("String")
	str.GetInteger = func(_ *Interp, o *Object) int64 { return ParseInt(o.sval.Text()) }
	str.GetNumber = func(_ *Interp, o *Object) float64 { return ParseFloat(o.sval.Text()) }
	str.GetString = func(_ *Interp, o *Object) *String { return o.sval }
	str.Clone = func(ip *Interp, o *Object) *Object { return ip.BoxString(o.sval) }

	intArray := NewClass("IntArray")
	intArray.GetInteger = func(_ *Interp, o *Object) int64 { return int64(len(o.ints)) }
	intArray.GetNumber = func(_ *Interp, o *Object) float64 { return float64(len(o.ints)) }
	intArray.GetString = func(ip *Interp, o *Object) *String {
		var b strings.Builder
		b.WriteByte('(')
		for i, v := range o.ints {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(FormatInt(v))
		}
		b.WriteByte(')')
		return ip.heap.NewString(b.String())
	}
	intArray.Clone = func(ip *Interp, o *Object) *Object { return ip.NewIntArray(o.ints) }
	intArray.Mark = func(*Object, Marker) {}

	ip.ObjectClass = object
	ip.IntegerClass = integer
	ip.FloatClass = float
	ip.StringClass = str
	ip.IntArrayClass = intArray
	for _, c := range []*Class{object, integer, float, str, intArray} {
		ip.RegisterClass(c)
	}
}

// BoxInteger wraps v in an Integer instance.
func (ip *Interp) BoxInteger(v int64) *Object {
	o := ip.heap.NewObject(ip.IntegerClass)
	o.ival = v
	return o
}

// BoxFloat wraps v in a Float instance.
func (ip *Interp) BoxFloat(v float64) *Object {
	o := ip.heap.NewObject(ip.FloatClass)
	o.nval = v
	return o
}

// BoxString wraps s in a String instance. The instance references s rather
// than copying it; boxing a nil string yields an instance that reads as
// empty text.
func (ip *Interp) BoxString(s *String) *Object {
	o := ip.heap.NewObject(ip.StringClass)
	o.sval = s
	return o
}

// NewIntArray builds an IntArray instance holding a copy of elems.
func (ip *Interp) NewIntArray(elems []int64) *Object {
	o := ip.heap.NewObject(ip.IntArrayClass)
	o.ints = append([]int64(nil), elems...)
	return o
}

// IntArrayElements returns a copy of o's elements when o is an IntArray
// instance, and reports whether it was one.
func (ip *Interp) IntArrayElements(o *Object) ([]int64, bool) {
	if o == nil || o.class != ip.IntArrayClass {
		return nil, false
	}
	return append([]int64(nil), o.ints...), true
}
