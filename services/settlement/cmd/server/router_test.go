package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nooterra/settld/pkg/operator"
)

// The stateless kernel endpoints must work without a database; the router is
// built with a nil store and only those routes are exercised here.
func postJSON(t *testing.T, handler http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var parsed map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return rec, parsed
}

func TestHashEndpointKeyOrderIndependent(t *testing.T) {
	r := newRouter(nil)
	_, a := postJSON(t, r, "/settlement/hash", map[string]any{"b": 2, "a": 1})
	_, b := postJSON(t, r, "/settlement/hash", map[string]any{"a": 1, "b": 2})
	if a["hash"] != b["hash"] {
		t.Fatalf("expected identical hashes, got %v vs %v", a["hash"], b["hash"])
	}
	if a["canonicalJson"] != `{"a":1,"b":2}` {
		t.Fatalf("unexpected canonical form: %v", a["canonicalJson"])
	}
}

func TestHoldValidationErrorNamesField(t *testing.T) {
	r := newRouter(nil)
	rec, body := postJSON(t, r, "/settlement/holds", map[string]any{"tenantId": ""})
	if rec.Code != 422 {
		t.Fatalf("unexpected status %d: %v", rec.Code, body)
	}
	errBody := body["error"].(map[string]any)
	if errBody["code"] != "FIELD_INVALID" || errBody["field"] != "tenantId" {
		t.Fatalf("expected a tenantId field error, got %v", errBody)
	}
}

func TestOperatorVerifyEndpoint(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	unsigned, err := operator.Build(operator.ActionInput{
		CaseRef:           operator.CaseRef{Kind: operator.CaseDispute, CaseID: "case_9"},
		Action:            operator.ActionOverrideAllow,
		JustificationCode: "MANUAL_REVIEW",
		Actor:             operator.Actor{OperatorID: "op_sam"},
		ActedAt:           "2026-03-03T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	signed, err := operator.Sign(unsigned, time.Now().UTC(), pub, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	r := newRouter(nil)
	rec, body := postJSON(t, r, "/settlement/operator-actions/verify", map[string]any{
		"action":    signed,
		"publicKey": base64.RawURLEncoding.EncodeToString(pub),
	})
	if rec.Code != 200 {
		t.Fatalf("unexpected status %d: %v", rec.Code, body)
	}
	result := body["result"].(map[string]any)
	if result["ok"] != true {
		t.Fatalf("expected ok verification, got %v", result)
	}
}

func TestVerifierEvaluateEndpoint(t *testing.T) {
	r := newRouter(nil)
	rec, body := postJSON(t, r, "/settlement/verifier/evaluate", map[string]any{
		"verificationMethod": map[string]any{
			"source": "https://verifiers.settld.dev/latency-threshold/",
		},
		"run": map[string]any{
			"status":  "completed",
			"metrics": map[string]any{"latencyMs": 250},
		},
		"verification": map[string]any{},
	})
	if rec.Code != 200 {
		t.Fatalf("unexpected status %d: %v", rec.Code, body)
	}
	result := body["result"].(map[string]any)
	if result["verificationStatus"] != "green" {
		t.Fatalf("expected green, got %v", result)
	}
}

func TestWalletResolveEndpoint(t *testing.T) {
	r := newRouter(nil)
	rec, body := postJSON(t, r, "/settlement/wallet-assignments/resolve", map[string]any{
		"tenantId":   "ten_alpha",
		"profileRef": "spo_1",
		"policies": []map[string]any{
			{"sponsorRef": "spo_1", "sponsorWalletRef": "wal_1", "policyRef": "pol_1", "policyVersion": "3", "status": "active"},
			{"sponsorWalletRef": "wal_2", "policyRef": "pol_2", "policyVersion": "1", "status": "active"},
		},
	})
	if rec.Code != 200 {
		t.Fatalf("unexpected status %d: %v", rec.Code, body)
	}
	assignment := body["assignment"].(map[string]any)
	if assignment["policyRef"] != "pol_1" {
		t.Fatalf("expected sponsor-matched pol_1, got %v", assignment)
	}
}
