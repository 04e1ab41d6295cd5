package operator

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/nooterra/settld/pkg/domain"
)

const keyIDPrefix = "ed25519:"

var (
	ErrInvalidPublicKey  = errors.New("ed25519 public key must be 32 bytes")
	ErrInvalidPrivateKey = errors.New("ed25519 private key must be 64 bytes")
	ErrKeyPairMismatch   = errors.New("private key does not correspond to public key")
)

// KeyIDFromPublicKey derives the stable key identifier used in signature
// blocks: the raw public key, base64url without padding, behind an algorithm
// prefix. Verify derives the comparison key id the same way, so any other
// implementation must match this derivation bit for bit.
func KeyIDFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidPublicKey
	}
	return keyIDPrefix + base64.RawURLEncoding.EncodeToString(pub), nil
}

// Sign computes the action hash, signs its raw 32 digest bytes with Ed25519,
// and returns a new action carrying the signature block. Any signature
// already present on the input is discarded; re-signing produces a new
// artifact.
func Sign(a Action, signedAt time.Time, pub ed25519.PublicKey, priv ed25519.PrivateKey) (Action, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Action{}, ErrInvalidPrivateKey
	}
	keyID, err := KeyIDFromPublicKey(pub)
	if err != nil {
		return Action{}, err
	}
	derived, ok := priv.Public().(ed25519.PublicKey)
	if !ok || !derived.Equal(pub) {
		return Action{}, ErrKeyPairMismatch
	}

	unsigned := a
	unsigned.Signature = nil
	actionHash, err := Hash(unsigned)
	if err != nil {
		return Action{}, err
	}
	hashBytes, err := hex.DecodeString(actionHash)
	if err != nil {
		return Action{}, err
	}
	sig := ed25519.Sign(priv, hashBytes)

	signed := unsigned
	signed.Signature = &SignatureBlock{
		SchemaVersion: SignatureSchemaVersion,
		Algorithm:     SignatureAlgorithm,
		KeyID:         keyID,
		SignedAt:      domain.FormatTimestamp(signedAt),
		ActionHash:    actionHash,
		Signature:     base64.RawURLEncoding.EncodeToString(sig),
	}
	return signed, nil
}
