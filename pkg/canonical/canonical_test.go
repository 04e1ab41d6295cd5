package canonical

import (
	"math"
	"strings"
	"testing"
)

func TestSumDeterministicAcrossKeyOrder(t *testing.T) {
	a := map[string]any{
		"b": 2,
		"a": map[string]any{"y": 2, "x": 1},
	}
	b := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": 2,
	}
	ha, _, err := Sum(a)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	hb, _, err := Sum(b)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected same hash, got %s vs %s", ha, hb)
	}
	if len(ha) != 64 || ha != strings.ToLower(ha) {
		t.Fatalf("expected 64-char lowercase hex, got %q", ha)
	}
}

func TestSumChangesWhenValueChanges(t *testing.T) {
	ha, _, _ := Sum(map[string]any{"a": 1})
	hb, _, _ := Sum(map[string]any{"a": 2})
	if ha == hb {
		t.Fatalf("expected different hashes")
	}
}

func TestStringifyCompactSortedForm(t *testing.T) {
	_, b, err := Sum(map[string]any{
		"z":  []any{1, "two", nil, true},
		"a":  "x",
		"m":  map[string]any{"k": false},
		"nø": "ü",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := `{"a":"x","m":{"k":false},"nø":"ü","z":[1,"two",null,true]}`
	if string(b) != want {
		t.Fatalf("canonical bytes mismatch:\n got %s\nwant %s", b, want)
	}
}

func TestStringifyEscapesControlCharacters(t *testing.T) {
	_, b, err := Sum(map[string]any{"s": "a\"b\\c\nd\x01"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := `{"s":"a\"b\\c\nd\u0001"}`
	if string(b) != want {
		t.Fatalf("escaping mismatch:\n got %s\nwant %s", b, want)
	}
}

func TestCanonicalizeRejectsNonFinite(t *testing.T) {
	_, err := Canonicalize(map[string]any{"n": math.NaN()})
	assertPathError(t, err, "/n", "finite")

	_, err = Canonicalize([]any{math.Inf(1)})
	assertPathError(t, err, "/0", "finite")
}

func TestCanonicalizeRejectsNegativeZero(t *testing.T) {
	negZero := math.Copysign(0, -1)
	_, err := Canonicalize(map[string]any{"n": negZero})
	assertPathError(t, err, "/n", "negative zero")
}

func TestCanonicalizeRejectsUnsafeIntegers(t *testing.T) {
	_, err := Canonicalize(int64(1) << 53)
	assertPathError(t, err, "", "safe range")
	if _, err := Canonicalize(int64(1)<<53 - 1); err != nil {
		t.Fatalf("max safe integer should canonicalize: %v", err)
	}
}

func TestCanonicalizeRejectsNonPlainValues(t *testing.T) {
	type box struct{ X int }
	_, err := Canonicalize(map[string]any{"outer": map[string]any{"inner": box{X: 1}}})
	assertPathError(t, err, "/outer/inner", "unsupported")

	_, err = Canonicalize(func() {})
	assertPathError(t, err, "", "unsupported")
}

func TestPointerPathEscaping(t *testing.T) {
	_, err := Canonicalize(map[string]any{"a/b~c": math.NaN()})
	assertPathError(t, err, "/a~1b~0c", "finite")
}

func assertPathError(t *testing.T, err error, path, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	pe, ok := err.(*PathError)
	if !ok {
		t.Fatalf("expected *PathError, got %T: %v", err, err)
	}
	if pe.Path != path {
		t.Fatalf("expected path %q, got %q", path, pe.Path)
	}
	if !strings.Contains(pe.Reason, reason) {
		t.Fatalf("expected reason containing %q, got %q", reason, pe.Reason)
	}
}
