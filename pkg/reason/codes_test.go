package reason

import "testing"

func TestDescribeKnownCode(t *testing.T) {
	d, ok := Describe(CodeWindowExpired)
	if !ok || d == "" {
		t.Fatalf("expected description for %s", CodeWindowExpired)
	}
}

func TestUnknownCode(t *testing.T) {
	if Known("NOT_A_CODE") {
		t.Fatalf("unexpected table entry")
	}
}
