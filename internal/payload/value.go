package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Value is a sealed interface over the allowed payload types.
// Only Null, String, Int, Bool, Array and Object implement it.
type Value interface {
	payloadValue()
}

// Null is the JSON null value.
type Null struct{}

func (Null) payloadValue() {}

// String is a string value.
type String string

func (String) payloadValue() {}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) payloadValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) payloadValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) payloadValue() {}

// Object maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) payloadValue() {}

// ErrFloat is returned when a float appears where only integers are allowed.
var ErrFloat = errors.New("floats are not allowed in payloads")

// ErrDuplicateKey is returned when a JSON object names the same key twice.
var ErrDuplicateKey = errors.New("duplicate object key")

// MarshalJSON encodes the object canonically.
func (o Object) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(o)
}

// MarshalJSON encodes the array canonically.
func (a Array) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(a)
}

// MarshalJSON encodes null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// supplementary-plane characters.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// GetString returns the string stored under key.
func (o Object) GetString(key string) (string, bool) {
	s, ok := o[key].(String)
	return string(s), ok
}

// GetInt returns the integer stored under key.
func (o Object) GetInt(key string) (int64, bool) {
	n, ok := o[key].(Int)
	return int64(n), ok
}

// GetStrings returns the array of strings stored under key. It fails if any
// element is not a string.
func (o Object) GetStrings(key string) ([]string, bool) {
	arr, ok := o[key].(Array)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(String)
		if !ok {
			return nil, false
		}
		out = append(out, string(s))
	}
	return out, true
}

// Strings builds an Array of String values.
func Strings(ss ...string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// Parse decodes JSON into a Value.
// Numbers must be integers; null decodes to Null. Trailing data, invalid
// UTF-8 and repeated object keys are rejected.
// maxDepth bounds container nesting during decoding; 0 means unbounded.
func Parse(data []byte, maxDepth int) (Value, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("decode: %w: input is not valid UTF-8", ErrInvalidText)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec, 0, maxDepth)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: trailing data after JSON value")
	}
	return v, nil
}

// parseValue reads one value token by token, so that a repeated key is seen
// instead of silently overwriting the earlier member.
func parseValue(dec *json.Decoder, depth, maxDepth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return convert(tok, depth, maxDepth)
	}
	if maxDepth > 0 && depth+1 > maxDepth {
		return nil, fmt.Errorf("%w: exceeds %d", ErrTooDeep, maxDepth)
	}

	switch delim {
	case '[':
		arr := Array{}
		for dec.More() {
			elem, err := parseValue(dec, depth+1, maxDepth)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", len(arr), err)
			}
			arr = append(arr, elem)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return arr, nil
	case '{':
		obj := Object{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("decode: %w", err)
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("decode: unexpected object key %v", tok)
			}
			if _, dup := obj[key]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
			elem, err := parseValue(dec, depth+1, maxDepth)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			obj[key] = elem
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("decode: unexpected delimiter %q", rune(delim))
	}
}

// FromAny converts plain Go values (as produced by encoding/json or written
// as literals in code) into a Value.
func FromAny(v any) (Value, error) {
	return convert(v, 0, 0)
}

func convert(v any, depth, maxDepth int) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("%w: %s", ErrFloat, s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float32, float64:
		return nil, fmt.Errorf("%w: %v", ErrFloat, val)
	case []string:
		return Strings(val...), nil
	case []any:
		if maxDepth > 0 && depth+1 > maxDepth {
			return nil, fmt.Errorf("%w: exceeds %d", ErrTooDeep, maxDepth)
		}
		arr := make(Array, len(val))
		for i, elem := range val {
			pv, err := convert(elem, depth+1, maxDepth)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = pv
		}
		return arr, nil
	case map[string]any:
		if maxDepth > 0 && depth+1 > maxDepth {
			return nil, fmt.Errorf("%w: exceeds %d", ErrTooDeep, maxDepth)
		}
		obj := make(Object, len(val))
		for k, elem := range val {
			pv, err := convert(elem, depth+1, maxDepth)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = pv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts a Value into plain Go values (map[string]any, []any,
// string, int64, bool, nil).
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
