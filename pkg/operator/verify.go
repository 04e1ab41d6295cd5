package operator

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// VerifyCode names the first violated verification condition.
type VerifyCode string

const (
	CodeSchemaVersionMismatch   VerifyCode = "SCHEMA_VERSION_MISMATCH"
	CodeSignatureSchemaMismatch VerifyCode = "SIGNATURE_SCHEMA_MISMATCH"
	CodeSignatureMissing        VerifyCode = "SIGNATURE_MISSING"
	CodeKeyIDMismatch           VerifyCode = "KEY_ID_MISMATCH"
	CodeHashMismatch            VerifyCode = "HASH_MISMATCH"
	CodeSignatureInvalid        VerifyCode = "SIGNATURE_INVALID"
)

// VerificationResult is the non-throwing outcome of Verify. When OK, the
// hash, key id, and both action forms are populated; otherwise Code carries
// the first violated condition and Reason a diagnostic message.
type VerificationResult struct {
	OK           bool       `json:"ok"`
	Code         VerifyCode `json:"code,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	ActionHash   string     `json:"actionHash,omitempty"`
	KeyID        string     `json:"keyId,omitempty"`
	Action       *Action    `json:"action,omitempty"`
	SignedAction *Action    `json:"signedAction,omitempty"`
}

func verifyFail(code VerifyCode, reason string) VerificationResult {
	return VerificationResult{OK: false, Code: code, Reason: reason}
}

// Verify checks a signed action against a public key. It never returns an
// error: every failure mode, including mutated fields and malformed
// signature blocks, maps to a stable code. Checks run cheapest and most
// structural first so the reported code is always the first violated
// condition.
func Verify(a Action, pub ed25519.PublicKey) VerificationResult {
	if a.SchemaVersion != ActionSchemaVersion {
		return verifyFail(CodeSchemaVersionMismatch, "schemaVersion must be "+ActionSchemaVersion)
	}
	sig := a.Signature
	if sig == nil {
		return verifyFail(CodeSignatureMissing, "signature block is missing")
	}
	if sig.SchemaVersion != SignatureSchemaVersion || sig.Algorithm != SignatureAlgorithm {
		return verifyFail(CodeSignatureSchemaMismatch, "signature block must be "+SignatureSchemaVersion+"/"+SignatureAlgorithm)
	}
	storedHash := strings.TrimSpace(sig.ActionHash)
	if len(storedHash) != 64 || storedHash != strings.ToLower(storedHash) {
		return verifyFail(CodeSignatureMissing, "signature actionHash must be sha256 lowercase hex")
	}
	storedHashBytes, err := hex.DecodeString(storedHash)
	if err != nil {
		return verifyFail(CodeSignatureMissing, "signature actionHash must be sha256 lowercase hex")
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(sig.Signature))
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return verifyFail(CodeSignatureMissing, "signature bytes must be base64url ed25519")
	}

	expectedKeyID, err := KeyIDFromPublicKey(pub)
	if err != nil {
		return verifyFail(CodeKeyIDMismatch, "public key is not a valid ed25519 key")
	}
	if sig.KeyID != expectedKeyID {
		return verifyFail(CodeKeyIDMismatch, "signer key id does not match the supplied public key")
	}

	unsigned := a
	unsigned.Signature = nil
	actionHash, err := Hash(unsigned)
	if err != nil {
		return verifyFail(CodeHashMismatch, "action is not canonicalizable: "+err.Error())
	}
	actionHashBytes, _ := hex.DecodeString(actionHash)
	if subtle.ConstantTimeCompare(actionHashBytes, storedHashBytes) != 1 {
		return verifyFail(CodeHashMismatch, "action hash does not match the signed hash")
	}

	if !ed25519.Verify(pub, actionHashBytes, sigBytes) {
		return verifyFail(CodeSignatureInvalid, "ed25519 signature verification failed")
	}

	signed := a
	return VerificationResult{
		OK:           true,
		ActionHash:   actionHash,
		KeyID:        expectedKeyID,
		Action:       &unsigned,
		SignedAction: &signed,
	}
}
