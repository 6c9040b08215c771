package vm

import "math"

// ---------------------------------------------------------------------------
// Autoboxing coercion engine
// ---------------------------------------------------------------------------
//
// Every accessor on Signature names a kind; when the stored cell's kind
// differs, the read value is derived here. Coercion is read-only: the cell
// keeps its kind and payload, and repeated reads re-derive. Object sources
// dispatch through their class slots, so user classes define their own
// scalar derivations. Null references read as zero values throughout.

// truncateToInt converts a float to an integer, truncating toward zero.
// NaN reads as 0 and out-of-range magnitudes saturate.
func truncateToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func (ip *Interp) autoboxInteger(c *Cell) int64 {
	switch c.kind {
	case KindInt:
		return c.i
	case KindFloat:
		return truncateToInt(c.n)
	case KindString:
		if c.s == nil {
			return 0
		}
		return ParseInt(c.s.data)
	case KindObject:
		if c.o == nil {
			return 0
		}
		return c.o.class.GetInteger(ip, c.o)
	}
	return 0
}

func (ip *Interp) autoboxNumber(c *Cell) float64 {
	switch c.kind {
	case KindInt:
		return float64(c.i)
	case KindFloat:
		return c.n
	case KindString:
		if c.s == nil {
			return 0
		}
		return ParseFloat(c.s.data)
	case KindObject:
		if c.o == nil {
			return 0
		}
		return c.o.class.GetNumber(ip, c.o)
	}
	return 0
}

func (ip *Interp) autoboxString(c *Cell) *String {
	switch c.kind {
	case KindInt:
		return ip.heap.NewString(FormatInt(c.i))
	case KindFloat:
		return ip.heap.NewString(FormatFloat(c.n))
	case KindString:
		return c.s
	case KindObject:
		if c.o == nil {
			return nil
		}
		return c.o.class.GetString(ip, c.o)
	}
	return nil
}

func (ip *Interp) autoboxObject(c *Cell) *Object {
	switch c.kind {
	case KindInt:
		return ip.BoxInteger(c.i)
	case KindFloat:
		return ip.BoxFloat(c.n)
	case KindString:
		return ip.BoxString(c.s)
	case KindObject:
		return c.o
	}
	return nil
}
