package payload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nested builds n levels of {"n": {...}} around a scalar.
func nested(n int) Value {
	var v Value = String("leaf")
	for i := 0; i < n; i++ {
		v = Object{"n": v}
	}
	return v
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth(String("x"), 32))
	assert.Equal(t, 1, Depth(Object{}, 32))
	assert.Equal(t, 2, Depth(Array{Array{Int(1)}}, 32))
	assert.Equal(t, 32, Depth(nested(32), 32))
	assert.Equal(t, 33, Depth(nested(100), 32), "descent stops one level past the limit")
}

func TestCheckStructure_Depth(t *testing.T) {
	l := DefaultLimits()

	require.NoError(t, CheckStructure(nested(32), l))

	err := CheckStructure(nested(33), l)
	assert.ErrorIs(t, err, ErrTooDeep)

	err = CheckStructure(nested(100), l)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestCheckStructure_ReservedKeys(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		path  string
	}{
		{"top level", Object{"__proto__": Object{}}, "__proto__"},
		{"nested object", Object{"a": Object{"constructor": Int(1)}}, "a.constructor"},
		{"inside array", Object{"list": Array{Int(1), Object{"prototype": Null{}}}}, "list.[1].prototype"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStructure(tt.value, DefaultLimits())
			require.ErrorIs(t, err, ErrReservedKey)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestCheckStructure_ReservedWordsAsValuesAreFine(t *testing.T) {
	v := Object{"note": String("__proto__"), "words": Strings("constructor", "prototype")}
	assert.NoError(t, CheckStructure(v, DefaultLimits()))
}

func TestCheckStructure_Text(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		path  string
	}{
		{"decomposed string", Object{"name": String("e\u0301")}, "at name"},
		{"invalid utf-8", Object{"name": String("a\xff")}, "at name"},
		{"decomposed key", Object{"a": Object{"e\u0301": Int(1)}}, "at a.key"},
		{"inside array", Object{"list": Array{String("ok"), String("a\xfe")}}, "at list.[1]"},
		{"top-level string", String("a\xff"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStructure(tt.value, DefaultLimits())
			require.ErrorIs(t, err, ErrInvalidText)
			assert.Contains(t, err.Error(), tt.path)
		})
	}

	assert.NoError(t, CheckStructure(Object{"name": String("caf\u00e9"), "\ufb01": Strings("\U0001F600")}, DefaultLimits()))
}

func TestEncode_Size(t *testing.T) {
	l := Limits{MaxDepth: 32, MaxBytes: 64}

	_, _, err := Encode(Object{"s": String(strings.Repeat("x", 100))}, l)
	assert.ErrorIs(t, err, ErrTooLarge)

	canonical, id, err := Encode(Object{"s": String("ok")}, l)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"ok"}`, string(canonical))
	assert.Equal(t, HashBytes(canonical), id)
}

func TestEncode_DefaultLimitRejectsTenMegabytes(t *testing.T) {
	big := Object{"blob": String(strings.Repeat("a", DefaultMaxBytes))}
	_, _, err := Encode(big, DefaultLimits())
	assert.ErrorIs(t, err, ErrTooLarge)
}
