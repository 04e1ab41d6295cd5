// Package canonical implements the kernel's canonical value model: the only
// data shapes that may be hashed or signed. Canonicalization validates and
// rewrites arbitrary plain input into a Value; Stringify emits the unique
// byte form of a Value; SHA256Hex digests bytes. Two implementations of this
// package must produce byte-identical output for the same logical value or
// every downstream hash and signature diverges.
package canonical

import (
	"fmt"
	"math"
	"sort"
)

// maxSafeInt is the largest integer exactly representable as an IEEE-754
// double. Integers beyond it cannot survive a JSON round trip intact.
const maxSafeInt = 1<<53 - 1

// Kind discriminates the closed set of canonical value shapes.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Value is a canonicalized datum. The zero Value is null.
type Value struct {
	kind    Kind
	boolVal bool
	numVal  float64
	strVal  string
	list    []Value
	// entries are sorted ascending by key, keys unique.
	entries []MapEntry
}

// MapEntry is one key/value pair of a canonical map.
type MapEntry struct {
	Key   string
	Value Value
}

func (v Value) Kind() Kind { return v.kind }

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, boolVal: b} }
func String(s string) Value       { return Value{kind: KindString, strVal: s} }
func List(items []Value) Value    { return Value{kind: KindList, list: items} }
func mapValue(e []MapEntry) Value { return Value{kind: KindMap, entries: e} }

// Number builds a numeric value. The input must be finite and must not be
// float negative zero; Canonicalize enforces that before calling in.
func Number(f float64) Value { return Value{kind: KindNumber, numVal: f} }

// Int builds an integer value within the safe range.
func Int(i int64) Value { return Value{kind: KindNumber, numVal: float64(i)} }

func (v Value) BoolVal() bool       { return v.boolVal }
func (v Value) NumberVal() float64  { return v.numVal }
func (v Value) StringVal() string   { return v.strVal }
func (v Value) ListVal() []Value    { return v.list }
func (v Value) Entries() []MapEntry { return v.entries }

// PathError reports the first canonicalization violation together with a
// JSON-pointer-style path to the offending element.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s at %s", e.Reason, e.Path)
}

// Canonicalize validates and rewrites plain input into a Value. Input may be
// nil, bool, any Go integer or float, string, []any, map[string]any, a Value,
// or nested combinations of those. Anything else (structs, funcs, channels,
// cyclic graphs via unsupported containers) is rejected with the path of the
// first violation.
func Canonicalize(v any) (Value, error) {
	return canonicalize(v, "")
}

func canonicalize(v any, path string) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return canonicalizeFloat(t, path)
	case float32:
		return canonicalizeFloat(float64(t), path)
	case int:
		return canonicalizeInt(int64(t), path)
	case int8:
		return canonicalizeInt(int64(t), path)
	case int16:
		return canonicalizeInt(int64(t), path)
	case int32:
		return canonicalizeInt(int64(t), path)
	case int64:
		return canonicalizeInt(t, path)
	case uint:
		return canonicalizeUint(uint64(t), path)
	case uint8:
		return canonicalizeUint(uint64(t), path)
	case uint16:
		return canonicalizeUint(uint64(t), path)
	case uint32:
		return canonicalizeUint(uint64(t), path)
	case uint64:
		return canonicalizeUint(t, path)
	case []any:
		items := make([]Value, 0, len(t))
		for i, item := range t {
			cv, err := canonicalize(item, fmt.Sprintf("%s/%d", path, i))
			if err != nil {
				return Value{}, err
			}
			items = append(items, cv)
		}
		return List(items), nil
	case []Value:
		return List(t), nil
	case map[string]any:
		entries := make([]MapEntry, 0, len(t))
		for _, key := range sortedKeys(t) {
			cv, err := canonicalize(t[key], path+"/"+escapePointerToken(key))
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: key, Value: cv})
		}
		return mapValue(entries), nil
	default:
		return Value{}, &PathError{Path: path, Reason: fmt.Sprintf("unsupported value of type %T", v)}
	}
}

func canonicalizeFloat(f float64, path string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, &PathError{Path: path, Reason: "number must be finite"}
	}
	if f == 0 && math.Signbit(f) {
		return Value{}, &PathError{Path: path, Reason: "number must not be negative zero"}
	}
	if f == math.Trunc(f) && math.Abs(f) > maxSafeInt {
		return Value{}, &PathError{Path: path, Reason: "integer exceeds safe range"}
	}
	return Number(f), nil
}

func canonicalizeInt(i int64, path string) (Value, error) {
	if i > maxSafeInt || i < -maxSafeInt {
		return Value{}, &PathError{Path: path, Reason: "integer exceeds safe range"}
	}
	return Int(i), nil
}

func canonicalizeUint(u uint64, path string) (Value, error) {
	if u > maxSafeInt {
		return Value{}, &PathError{Path: path, Reason: "integer exceeds safe range"}
	}
	return Int(int64(u)), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escapePointerToken applies RFC 6901 token escaping for error paths.
func escapePointerToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
