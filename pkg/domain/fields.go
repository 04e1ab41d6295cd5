// Package domain holds the field-level validation vocabulary shared by every
// artifact type: identifier shapes, hash text form, reason codes, timestamp
// normalization, and currency rules. All validators fail fast and report the
// violated field, so builders never construct a partially valid artifact.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FieldError is a fail-fast construction/validation error scoped to one
// field. Callers must treat any FieldError as "do not persist this record".
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func Errf(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var (
	sha256HexPattern  = regexp.MustCompile(`^[0-9a-f]{64}$`)
	reasonCodePattern = regexp.MustCompile(`^[A-Z0-9_]{2,64}$`)
	currencyPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
)

// NonEmptyString trims v and requires it non-empty.
func NonEmptyString(v, field string) (string, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", Errf(field, "must be a non-empty string")
	}
	return trimmed, nil
}

// OptionalString trims v; empty collapses to "".
func OptionalString(v string) string {
	return strings.TrimSpace(v)
}

// SHA256Hex requires 64 lowercase hex characters. Uppercase input is
// lowered before checking, matching upstream tolerance for hex casing.
func SHA256Hex(v, field string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(v))
	if !sha256HexPattern.MatchString(raw) {
		return "", Errf(field, "must be sha256 lowercase hex")
	}
	return raw, nil
}

// ReasonCode normalizes to uppercase and requires ^[A-Z0-9_]{2,64}$.
func ReasonCode(v, field string) (string, error) {
	raw := strings.ToUpper(strings.TrimSpace(v))
	if !reasonCodePattern.MatchString(raw) {
		return "", Errf(field, "must match ^[A-Z0-9_]{2,64}$")
	}
	return raw, nil
}

// Timestamp parses v as RFC3339 and normalizes to UTC millisecond precision
// with a Z suffix. This is the only timestamp form that enters a hashable
// core.
func Timestamp(v, field string) (string, error) {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return "", Errf(field, "is required")
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", Errf(field, "must be an RFC3339 timestamp")
	}
	return FormatTimestamp(parsed), nil
}

// FormatTimestamp renders t in the canonical UTC millisecond Z form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Minor-unit exponents for the currencies the settlement plane accepts.
var minorUnitExponent = map[string]int{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
	"KRW": 0,
	"INR": 2,
	"CHF": 2,
	"CAD": 2,
	"AUD": 2,
}

// Currency requires an ISO-4217 uppercase code from the supported table.
func Currency(v, field string) (string, error) {
	ccy := strings.ToUpper(strings.TrimSpace(v))
	if !currencyPattern.MatchString(ccy) {
		return "", Errf(field, "must be ISO4217 uppercase 3 letters")
	}
	if _, ok := minorUnitExponent[ccy]; !ok {
		return "", Errf(field, "is not a supported currency")
	}
	return ccy, nil
}

// PositiveCents requires v > 0.
func PositiveCents(v int64, field string) (int64, error) {
	if v <= 0 {
		return 0, Errf(field, "must be a positive integer")
	}
	return v, nil
}

// NonNegativeCents requires v >= 0.
func NonNegativeCents(v int64, field string) (int64, error) {
	if v < 0 {
		return 0, Errf(field, "must be a non-negative integer")
	}
	return v, nil
}

// BasisPoints requires 0 <= v <= 10000.
func BasisPoints(v int64, field string) (int64, error) {
	if v < 0 || v > 10000 {
		return 0, Errf(field, "must be an integer within 0..10000")
	}
	return v, nil
}
