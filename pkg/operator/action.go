// Package operator builds, hashes, signs, and verifies operator decision
// records. Building and signing fail fast; verification never fails with an
// error and instead returns a tagged result whose code names the first
// violated condition, cheapest check first.
package operator

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nooterra/settld/pkg/canonical"
	"github.com/nooterra/settld/pkg/domain"
)

const (
	ActionSchemaVersion    = "settld.operator_action.v1"
	SignatureSchemaVersion = "settld.operator_action_signature.v1"
	SignatureAlgorithm     = "ed25519"

	maxJustificationLength = 2000
)

// CaseKind is the closed enum of case types an operator may act on.
type CaseKind string

const (
	CaseChallenge  CaseKind = "challenge"
	CaseDispute    CaseKind = "dispute"
	CaseEscalation CaseKind = "escalation"
)

var validCaseKinds = map[CaseKind]struct{}{
	CaseChallenge:  {},
	CaseDispute:    {},
	CaseEscalation: {},
}

// ActionType is the closed enum of operator decisions.
type ActionType string

const (
	ActionApprove       ActionType = "APPROVE"
	ActionReject        ActionType = "REJECT"
	ActionRequestInfo   ActionType = "REQUEST_INFO"
	ActionOverrideAllow ActionType = "OVERRIDE_ALLOW"
	ActionOverrideDeny  ActionType = "OVERRIDE_DENY"
)

var validActionTypes = map[ActionType]struct{}{
	ActionApprove:       {},
	ActionReject:        {},
	ActionRequestInfo:   {},
	ActionOverrideAllow: {},
	ActionOverrideDeny:  {},
}

// CaseRef names the case the operator acted on.
type CaseRef struct {
	Kind   CaseKind `json:"kind"`
	CaseID string   `json:"caseId"`
}

// Actor identifies the deciding operator.
type Actor struct {
	OperatorID string         `json:"operatorId"`
	Role       string         `json:"role,omitempty"`
	TenantID   string         `json:"tenantId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SignatureBlock is attached once an action is signed. The action itself is
// immutable from that point; re-signing produces a new artifact.
type SignatureBlock struct {
	SchemaVersion string `json:"schemaVersion"`
	Algorithm     string `json:"algorithm"`
	KeyID         string `json:"keyId"`
	SignedAt      string `json:"signedAt"`
	ActionHash    string `json:"actionHash"`
	Signature     string `json:"signature"`
}

// Action is an operator decision record. Signature is nil until signed.
type Action struct {
	SchemaVersion     string          `json:"schemaVersion"`
	ActionID          string          `json:"actionId"`
	CaseRef           CaseRef         `json:"caseRef"`
	Action            ActionType      `json:"action"`
	JustificationCode string          `json:"justificationCode"`
	Justification     string          `json:"justification,omitempty"`
	Actor             Actor           `json:"actor"`
	ActedAt           string          `json:"actedAt"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	Signature         *SignatureBlock `json:"signature,omitempty"`
}

// ActionInput carries the caller-supplied fields of a new action. ActionID
// is optional; a fresh identifier is generated when absent.
type ActionInput struct {
	ActionID          string
	CaseRef           CaseRef
	Action            ActionType
	JustificationCode string
	Justification     string
	Actor             Actor
	ActedAt           string
	Metadata          map[string]any
}

// Build validates the inputs and returns the unsigned action.
func Build(in ActionInput) (Action, error) {
	var (
		a   Action
		err error
	)
	a.SchemaVersion = ActionSchemaVersion
	a.ActionID = strings.TrimSpace(in.ActionID)
	if a.ActionID == "" {
		a.ActionID = "act_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if _, ok := validCaseKinds[in.CaseRef.Kind]; !ok {
		return Action{}, domain.Errf("caseRef.kind", "must be challenge, dispute, or escalation")
	}
	a.CaseRef.Kind = in.CaseRef.Kind
	if a.CaseRef.CaseID, err = domain.NonEmptyString(in.CaseRef.CaseID, "caseRef.caseId"); err != nil {
		return Action{}, err
	}
	if _, ok := validActionTypes[in.Action]; !ok {
		return Action{}, domain.Errf("action", "must be APPROVE, REJECT, REQUEST_INFO, OVERRIDE_ALLOW, or OVERRIDE_DENY")
	}
	a.Action = in.Action
	if a.JustificationCode, err = domain.ReasonCode(in.JustificationCode, "justificationCode"); err != nil {
		return Action{}, err
	}
	a.Justification = strings.TrimSpace(in.Justification)
	if utf8.RuneCountInString(a.Justification) > maxJustificationLength {
		return Action{}, domain.Errf("justification", "must not exceed %d characters", maxJustificationLength)
	}
	if a.Actor.OperatorID, err = domain.NonEmptyString(in.Actor.OperatorID, "actor.operatorId"); err != nil {
		return Action{}, err
	}
	a.Actor.Role = domain.OptionalString(in.Actor.Role)
	a.Actor.TenantID = domain.OptionalString(in.Actor.TenantID)
	a.Actor.SessionID = domain.OptionalString(in.Actor.SessionID)
	if err = checkCanonicalField(in.Actor.Metadata, "actor.metadata"); err != nil {
		return Action{}, err
	}
	if len(in.Actor.Metadata) > 0 {
		a.Actor.Metadata = in.Actor.Metadata
	}
	if a.ActedAt, err = domain.Timestamp(in.ActedAt, "actedAt"); err != nil {
		return Action{}, err
	}
	if err = checkCanonicalField(in.Metadata, "metadata"); err != nil {
		return Action{}, err
	}
	if len(in.Metadata) > 0 {
		a.Metadata = in.Metadata
	}
	return a, nil
}

// Hash digests the canonicalized unsigned action. A signed action hashes
// identically to its unsigned form; the signature block is never hashed.
func Hash(a Action) (string, error) {
	hash, _, err := canonical.Sum(actionCore(a))
	return hash, err
}

// actionCore is the hashable core: every field except the signature block.
func actionCore(a Action) map[string]any {
	actor := map[string]any{"operatorId": a.Actor.OperatorID}
	if a.Actor.Role != "" {
		actor["role"] = a.Actor.Role
	}
	if a.Actor.TenantID != "" {
		actor["tenantId"] = a.Actor.TenantID
	}
	if a.Actor.SessionID != "" {
		actor["sessionId"] = a.Actor.SessionID
	}
	// Empty maps hash as absent so that omitempty serialization cannot
	// change the digest across a decode/encode round trip.
	if len(a.Actor.Metadata) > 0 {
		actor["metadata"] = a.Actor.Metadata
	}
	core := map[string]any{
		"schemaVersion": a.SchemaVersion,
		"actionId":      a.ActionID,
		"caseRef": map[string]any{
			"kind":   string(a.CaseRef.Kind),
			"caseId": a.CaseRef.CaseID,
		},
		"action":            string(a.Action),
		"justificationCode": a.JustificationCode,
		"actor":             actor,
		"actedAt":           a.ActedAt,
	}
	if a.Justification != "" {
		core["justification"] = a.Justification
	}
	if len(a.Metadata) > 0 {
		core["metadata"] = a.Metadata
	}
	return core
}

func checkCanonicalField(v any, field string) error {
	if v == nil {
		return nil
	}
	if _, err := canonical.Canonicalize(v); err != nil {
		return domain.Errf(field, "%v", err)
	}
	return nil
}
