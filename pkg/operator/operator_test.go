package operator

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nooterra/settld/pkg/domain"
)

func actionInput() ActionInput {
	return ActionInput{
		ActionID:          "act_test001",
		CaseRef:           CaseRef{Kind: CaseChallenge, CaseID: "case_001"},
		Action:            ActionApprove,
		JustificationCode: "WINDOW_EXPIRED",
		Justification:     "challenge window lapsed without contest",
		Actor:             Actor{OperatorID: "op_jordan", Role: "reviewer", TenantID: "ten_alpha"},
		ActedAt:           "2026-03-03T09:00:00Z",
		Metadata:          map[string]any{"queue": "tier1"},
	}
}

func mustKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return pub, priv
}

func TestBuildValidatesFields(t *testing.T) {
	if _, err := Build(actionInput()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	in := actionInput()
	in.CaseRef.Kind = "appeal"
	_, err := Build(in)
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "caseRef.kind" {
		t.Fatalf("expected caseRef.kind error, got %v", err)
	}

	in = actionInput()
	in.Action = "SHRUG"
	if _, err := Build(in); err == nil {
		t.Fatalf("expected rejection of unknown action")
	}

	in = actionInput()
	in.JustificationCode = "x"
	if _, err := Build(in); err == nil {
		t.Fatalf("expected rejection of malformed justification code")
	}

	in = actionInput()
	in.Justification = strings.Repeat("a", maxJustificationLength+1)
	if _, err := Build(in); err == nil {
		t.Fatalf("expected rejection of oversized justification")
	}

	// The limit is counted in characters, so a multibyte justification at
	// the limit is accepted even though it exceeds the limit in bytes.
	in = actionInput()
	in.Justification = strings.Repeat("ü", maxJustificationLength)
	if _, err := Build(in); err != nil {
		t.Fatalf("multibyte justification at the limit must pass: %v", err)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv := mustKeyPair(t)
	unsigned, err := Build(actionInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wantHash, err := Hash(unsigned)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	signed, err := Sign(unsigned, time.Date(2026, 3, 3, 9, 5, 0, 0, time.UTC), pub, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.Signature == nil || signed.Signature.SignedAt != "2026-03-03T09:05:00.000Z" {
		t.Fatalf("unexpected signature block: %+v", signed.Signature)
	}

	res := Verify(signed, pub)
	if !res.OK {
		t.Fatalf("Verify failed: %s %s", res.Code, res.Reason)
	}
	if res.ActionHash != wantHash || res.ActionHash != signed.Signature.ActionHash {
		t.Fatalf("action hash mismatch: %s vs %s", res.ActionHash, wantHash)
	}
	if res.Action.Signature != nil || res.SignedAction.Signature == nil {
		t.Fatalf("expected unsigned and signed views in the result")
	}
}

func TestVerifySurvivesJSONRoundTripWithEmptyMetadata(t *testing.T) {
	pub, priv := mustKeyPair(t)
	in := actionInput()
	in.Metadata = map[string]any{}
	in.Actor.Metadata = map[string]any{}
	unsigned, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	signed, err := Sign(unsigned, time.Now().UTC(), pub, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	raw, err := json.Marshal(signed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Action
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if res := Verify(decoded, pub); !res.OK {
		t.Fatalf("round-tripped action failed verify: %s %s", res.Code, res.Reason)
	}
}

func TestVerifyWrongKeyReportsKeyIDMismatch(t *testing.T) {
	pub, priv := mustKeyPair(t)
	otherPub, _ := mustKeyPair(t)
	unsigned, _ := Build(actionInput())
	signed, err := Sign(unsigned, time.Now().UTC(), pub, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	res := Verify(signed, otherPub)
	if res.OK || res.Code != CodeKeyIDMismatch {
		t.Fatalf("expected KEY_ID_MISMATCH, got %+v", res)
	}
}

func TestVerifyMutationReportsHashMismatch(t *testing.T) {
	pub, priv := mustKeyPair(t)
	unsigned, _ := Build(actionInput())
	signed, _ := Sign(unsigned, time.Now().UTC(), pub, priv)

	tampered := signed
	tampered.JustificationCode = "POLICY_BREACH"
	res := Verify(tampered, pub)
	if res.OK || res.Code != CodeHashMismatch {
		t.Fatalf("expected HASH_MISMATCH, got %+v", res)
	}
}

func TestVerifyForgedSignatureReportsInvalid(t *testing.T) {
	pub, priv := mustKeyPair(t)
	_, otherPriv := mustKeyPair(t)
	unsigned, _ := Build(actionInput())
	signed, _ := Sign(unsigned, time.Now().UTC(), pub, priv)

	forged, err := Sign(unsigned, time.Now().UTC(), pub, otherPriv)
	if err == nil {
		t.Fatalf("signing with a mismatched key pair must fail, got %+v", forged)
	}
	if !errors.Is(err, ErrKeyPairMismatch) {
		t.Fatalf("expected ErrKeyPairMismatch, got %v", err)
	}

	// Swap in a signature over different bytes to exercise the crypto check.
	other, _ := Sign(mutateCase(unsigned), time.Now().UTC(), pub, priv)
	tampered := signed
	block := *signed.Signature
	block.Signature = other.Signature.Signature
	tampered.Signature = &block
	res := Verify(tampered, pub)
	if res.OK || res.Code != CodeSignatureInvalid {
		t.Fatalf("expected SIGNATURE_INVALID, got %+v", res)
	}
}

func mutateCase(a Action) Action {
	out := a
	out.CaseRef.CaseID = a.CaseRef.CaseID + "_alt"
	return out
}

func TestVerifyStructuralCodesInOrder(t *testing.T) {
	pub, priv := mustKeyPair(t)
	unsigned, _ := Build(actionInput())
	signed, _ := Sign(unsigned, time.Now().UTC(), pub, priv)

	wrongSchema := signed
	wrongSchema.SchemaVersion = "settld.operator_action.v0"
	if res := Verify(wrongSchema, pub); res.Code != CodeSchemaVersionMismatch {
		t.Fatalf("expected SCHEMA_VERSION_MISMATCH, got %+v", res)
	}

	missing := signed
	missing.Signature = nil
	if res := Verify(missing, pub); res.Code != CodeSignatureMissing {
		t.Fatalf("expected SIGNATURE_MISSING, got %+v", res)
	}

	wrongSigSchema := signed
	block := *signed.Signature
	block.Algorithm = "rsa"
	wrongSigSchema.Signature = &block
	if res := Verify(wrongSigSchema, pub); res.Code != CodeSignatureSchemaMismatch {
		t.Fatalf("expected SIGNATURE_SCHEMA_MISMATCH, got %+v", res)
	}

	malformed := signed
	block = *signed.Signature
	block.Signature = "not base64url!!"
	malformed.Signature = &block
	if res := Verify(malformed, pub); res.Code != CodeSignatureMissing {
		t.Fatalf("expected SIGNATURE_MISSING for malformed bytes, got %+v", res)
	}
}

func TestKeyIDDerivationIsStable(t *testing.T) {
	pub, _ := mustKeyPair(t)
	a, err := KeyIDFromPublicKey(pub)
	if err != nil {
		t.Fatalf("KeyIDFromPublicKey: %v", err)
	}
	b, _ := KeyIDFromPublicKey(pub)
	if a != b || !strings.HasPrefix(a, "ed25519:") {
		t.Fatalf("unexpected key id derivation: %q vs %q", a, b)
	}
	if _, err := KeyIDFromPublicKey(pub[:31]); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}
