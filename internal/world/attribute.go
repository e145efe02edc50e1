package world

import (
	"fmt"
	"strings"
)

// TypeMismatchError reports an attribute operation applied to a value of an
// incompatible type, such as multiplying a string.
type TypeMismatchError struct {
	Key   string
	Op    string
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot %s attribute %q: incompatible value of type %T", e.Op, e.Key, e.Value)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

func numericResult(f float64, wantInt bool) any {
	if wantInt && f == float64(int(f)) {
		return int(f)
	}
	return f
}

// SetAttribute stores a value, replacing whatever was there regardless of
// type.
func SetAttribute(attrs Attributes, key string, value any) {
	attrs[key] = value
}

// AddAttribute adds a numeric amount to an attribute. An absent key is
// seeded from zero, so the result is the amount itself.
func AddAttribute(attrs Attributes, key string, amount any) error {
	delta, ok := asNumber(amount)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "add", Value: amount}
	}
	prev, exists := attrs[key]
	if !exists {
		attrs[key] = amount
		return nil
	}
	base, ok := asNumber(prev)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "add", Value: prev}
	}
	attrs[key] = numericResult(base+delta, isInt(prev) && isInt(amount))
	return nil
}

// SubtractAttribute subtracts a numeric amount from an attribute. An absent
// key is seeded from zero, so the result is the negated amount.
func SubtractAttribute(attrs Attributes, key string, amount any) error {
	delta, ok := asNumber(amount)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "subtract", Value: amount}
	}
	prev, exists := attrs[key]
	if !exists {
		attrs[key] = numericResult(-delta, isInt(amount))
		return nil
	}
	base, ok := asNumber(prev)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "subtract", Value: prev}
	}
	attrs[key] = numericResult(base-delta, isInt(prev) && isInt(amount))
	return nil
}

// MultiplyAttribute multiplies an attribute by a numeric factor. An absent
// key yields zero, because the implicit base value is zero.
func MultiplyAttribute(attrs Attributes, key string, factor any) error {
	f, ok := asNumber(factor)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "multiply", Value: factor}
	}
	prev, exists := attrs[key]
	if !exists {
		attrs[key] = numericResult(0, isInt(factor))
		return nil
	}
	base, ok := asNumber(prev)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "multiply", Value: prev}
	}
	attrs[key] = numericResult(base*f, isInt(prev) && isInt(factor))
	return nil
}

// DivideAttribute divides an attribute by a numeric divisor. An absent key
// yields zero. Division always produces a float.
func DivideAttribute(attrs Attributes, key string, divisor any) error {
	d, ok := asNumber(divisor)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "divide", Value: divisor}
	}
	if d == 0 {
		return fmt.Errorf("cannot divide attribute %q by zero", key)
	}
	prev, exists := attrs[key]
	if !exists {
		attrs[key] = float64(0)
		return nil
	}
	base, ok := asNumber(prev)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "divide", Value: prev}
	}
	attrs[key] = base / d
	return nil
}

// AppendAttribute appends a suffix to a string attribute. An absent key is
// seeded from the empty string.
func AppendAttribute(attrs Attributes, key, suffix string) error {
	prev, exists := attrs[key]
	if !exists {
		attrs[key] = suffix
		return nil
	}
	s, ok := prev.(string)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "append", Value: prev}
	}
	attrs[key] = s + suffix
	return nil
}

// PrependAttribute prepends a prefix to a string attribute. An absent key is
// seeded from the empty string.
func PrependAttribute(attrs Attributes, key, prefix string) error {
	prev, exists := attrs[key]
	if !exists {
		attrs[key] = prefix
		return nil
	}
	s, ok := prev.(string)
	if !ok {
		return &TypeMismatchError{Key: key, Op: "prepend", Value: prev}
	}
	attrs[key] = prefix + s
	return nil
}

// NormalizeName canonicalizes an entity name for lookup: lowercase, trimmed
// of whitespace, surrounding quotes and trailing periods. Applying it twice
// gives the same result as applying it once.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	for {
		t := strings.TrimSpace(s)
		t = strings.Trim(t, `"'`)
		t = strings.TrimRight(t, ".")
		if t == s {
			return s
		}
		s = t
	}
}
