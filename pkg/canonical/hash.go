package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex digests bytes to 64-character lowercase hex.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Sum canonicalizes v, stringifies it, and digests the bytes. This is the
// one hashing entry point every artifact type goes through.
func Sum(v any) (hash string, canonical []byte, err error) {
	cv, err := Canonicalize(v)
	if err != nil {
		return "", nil, err
	}
	b := Stringify(cv)
	return SHA256Hex(b), b, nil
}

// MustSum is Sum for values the caller has already canonicalized once;
// it panics on canonicalization failure and exists for fixed descriptors
// built from literals.
func MustSum(v any) string {
	h, _, err := Sum(v)
	if err != nil {
		panic(err)
	}
	return h
}
