package vm

import (
	"errors"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Heap strings
// ---------------------------------------------------------------------------

// String is an immutable heap-managed text value. Cells and signatures hold
// *String references without owning them; the Heap that created a String
// decides when it dies. A nil *String is the null string and reads as empty.
type String struct {
	data     string
	interned bool
}

// Text returns the string's contents. The null string reads as "".
func (s *String) Text() string {
	if s == nil {
		return ""
	}
	return s.data
}

// Len returns the byte length of the contents.
func (s *String) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Interned reports whether the string lives in the heap's intern table.
// Interned strings survive every collection cycle.
func (s *String) Interned() bool {
	return s != nil && s.interned
}

// ---------------------------------------------------------------------------
// Numeric conversion primitives
// ---------------------------------------------------------------------------
//
// These implement the permissive text-to-number rules the coercion engine
// relies on: parse the longest valid numeric prefix and yield zero when no
// prefix exists. They never fail.

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

// ParseInt extracts the leading integer from text: optional whitespace, an
// optional sign, then decimal digits up to the first non-digit. Text with no
// leading integer yields 0. Values beyond the int64 range saturate.
func ParseInt(text string) int64 {
	i := 0
	for i < len(text) && isSpaceByte(text[i]) {
		i++
	}
	start := i
	if i < len(text) && (text[i] == '+' || text[i] == '-') {
		i++
	}
	digits := i
	for i < len(text) && isDigitByte(text[i]) {
		i++
	}
	if i == digits {
		return 0
	}
	v, err := strconv.ParseInt(text[start:i], 10, 64)
	if err != nil {
		if text[start] == '-' {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return v
}

// ParseFloat extracts the leading decimal float from text: optional
// whitespace and sign, digits with an optional fraction, and an exponent
// only when digits follow it. Text with no leading number yields 0.
func ParseFloat(text string) float64 {
	i := 0
	for i < len(text) && isSpaceByte(text[i]) {
		i++
	}
	start := i
	if i < len(text) && (text[i] == '+' || text[i] == '-') {
		i++
	}
	intDigits := 0
	for i < len(text) && isDigitByte(text[i]) {
		i++
		intDigits++
	}
	fracDigits := 0
	if i < len(text) && text[i] == '.' {
		j := i + 1
		for j < len(text) && isDigitByte(text[j]) {
			j++
			fracDigits++
		}
		if intDigits > 0 || fracDigits > 0 {
			i = j
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		j := i + 1
		if j < len(text) && (text[j] == '+' || text[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(text) && isDigitByte(text[j]) {
			j++
			expDigits++
		}
		if expDigits > 0 {
			i = j
		}
	}
	v, err := strconv.ParseFloat(text[start:i], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return v
}

// FormatInt renders v in decimal.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatFloat renders v with up to 15 significant digits, switching to
// exponent form only for very large or very small magnitudes.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 15, 64)
}
