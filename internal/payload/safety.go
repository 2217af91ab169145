package payload

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Resource bounds applied to every payload.
const (
	DefaultMaxDepth = 32
	DefaultMaxBytes = 10 << 20
)

// ReservedKeys may not appear as object keys at any depth. Downstream
// consumers that merge payloads into prototype-based objects treat them
// specially.
var ReservedKeys = []string{"__proto__", "constructor", "prototype"}

var (
	ErrTooDeep     = errors.New("payload nesting too deep")
	ErrTooLarge    = errors.New("payload too large")
	ErrReservedKey = errors.New("payload contains reserved key")
	ErrInvalidText = errors.New("payload text must be NFC-normalized UTF-8")
)

// Limits bounds payload structure.
type Limits struct {
	MaxDepth int
	MaxBytes int
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{MaxDepth: DefaultMaxDepth, MaxBytes: DefaultMaxBytes}
}

// Depth returns the container nesting depth of v, descending no further than
// limit+1 levels so that hostile values cost O(limit) stack.
// Scalars have depth 0; an array or object has 1 + the depth of its deepest
// element.
func Depth(v Value, limit int) int {
	return depth(v, 0, limit+1)
}

func depth(v Value, level, stop int) int {
	var children []Value
	switch val := v.(type) {
	case Array:
		children = val
	case Object:
		children = make([]Value, 0, len(val))
		for _, c := range val {
			children = append(children, c)
		}
	default:
		return 0
	}
	if level+1 >= stop {
		return 1
	}
	deepest := 0
	for _, c := range children {
		if d := depth(c, level+1, stop); d > deepest {
			deepest = d
		}
	}
	return 1 + deepest
}

// FindReservedKey returns the first reserved key found in v and a dotted path
// to it.
func FindReservedKey(v Value) (string, bool) {
	switch val := v.(type) {
	case Object:
		for _, k := range val.SortedKeys() {
			for _, r := range ReservedKeys {
				if k == r {
					return k, true
				}
			}
			if p, ok := FindReservedKey(val[k]); ok {
				return k + "." + p, true
			}
		}
	case Array:
		for i, elem := range val {
			if p, ok := FindReservedKey(elem); ok {
				return fmt.Sprintf("[%d].%s", i, p), true
			}
		}
	}
	return "", false
}

// FindInvalidText returns a dotted path to the first string or key that is
// not valid UTF-8 or not in NFC. Such text would be rewritten by the
// canonical encoding, so two different payloads could share an id.
func FindInvalidText(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		if !validText(string(val)) {
			return "", true
		}
	case Object:
		for _, k := range val.SortedKeys() {
			if !validText(k) {
				return fmt.Sprintf("key %q", k), true
			}
			if p, ok := FindInvalidText(val[k]); ok {
				return joinPath(k, p), true
			}
		}
	case Array:
		for i, elem := range val {
			if p, ok := FindInvalidText(elem); ok {
				return joinPath(fmt.Sprintf("[%d]", i), p), true
			}
		}
	}
	return "", false
}

func validText(s string) bool {
	return utf8.ValidString(s) && norm.NFC.IsNormalString(s)
}

func joinPath(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + "." + tail
}

// CheckStructure verifies depth, then reserved keys, then text. It never
// serializes.
func CheckStructure(v Value, l Limits) error {
	if l.MaxDepth > 0 {
		if d := Depth(v, l.MaxDepth); d > l.MaxDepth {
			return fmt.Errorf("%w: exceeds %d levels", ErrTooDeep, l.MaxDepth)
		}
	}
	if p, ok := FindReservedKey(v); ok {
		return fmt.Errorf("%w: %s", ErrReservedKey, p)
	}
	if p, ok := FindInvalidText(v); ok {
		if p == "" {
			return ErrInvalidText
		}
		return fmt.Errorf("%w: at %s", ErrInvalidText, p)
	}
	return nil
}

// CheckSize verifies the serialized size.
func CheckSize(canonical []byte, l Limits) error {
	if l.MaxBytes > 0 && len(canonical) > l.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(canonical), l.MaxBytes)
	}
	return nil
}

// Encode runs the structural checks, serializes canonically and checks the
// size. It returns the canonical bytes and their content id.
func Encode(v Value, l Limits) ([]byte, string, error) {
	if err := CheckStructure(v, l); err != nil {
		return nil, "", err
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return nil, "", err
	}
	if err := CheckSize(canonical, l); err != nil {
		return nil, "", err
	}
	return canonical, HashBytes(canonical), nil
}
