package settlement

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nooterra/settld/pkg/domain"
)

const ReputationEventSchemaVersion = "settld.reputation_event.v1"

// ReputationEventKind is the closed enum of settlement-lifecycle outcomes a
// reputation fact may record.
type ReputationEventKind string

const (
	ReputationHoldCreated        ReputationEventKind = "hold_created"
	ReputationSettlementReleased ReputationEventKind = "settlement_released"
	ReputationSettlementRefunded ReputationEventKind = "settlement_refunded"
	ReputationDisputeOpened      ReputationEventKind = "dispute_opened"
	ReputationDisputeResolved    ReputationEventKind = "dispute_resolved"
	ReputationVerificationGreen  ReputationEventKind = "verification_green"
	ReputationVerificationAmber  ReputationEventKind = "verification_amber"
	ReputationVerificationRed    ReputationEventKind = "verification_red"
)

var validReputationKinds = map[ReputationEventKind]struct{}{
	ReputationHoldCreated:        {},
	ReputationSettlementReleased: {},
	ReputationSettlementRefunded: {},
	ReputationDisputeOpened:      {},
	ReputationDisputeResolved:    {},
	ReputationVerificationGreen:  {},
	ReputationVerificationAmber:  {},
	ReputationVerificationRed:    {},
}

// sourceRefIdentityFields is the fixed set of stable identity fields, at
// least one of which every source reference must carry.
var sourceRefIdentityFields = []string{
	"artifactId",
	"sourceId",
	"contentHash",
	"agreementHash",
	"receiptHash",
	"holdHash",
	"decisionHash",
	"verdictHash",
	"runId",
	"settlementId",
	"disputeId",
	"caseId",
	"adjustmentId",
}

// ReputationSubject names the agent a fact is about.
type ReputationSubject struct {
	AgentID        string `json:"agentId"`
	ToolID         string `json:"toolId,omitempty"`
	CounterpartyID string `json:"counterpartyId,omitempty"`
	Role           string `json:"role,omitempty"`
}

// ReputationEvent is an append-only settlement-outcome fact. The event
// identifier is the artifact identifier; the record never transitions.
type ReputationEvent struct {
	SchemaVersion string              `json:"schemaVersion"`
	EventID       string              `json:"eventId"`
	TenantID      string              `json:"tenantId"`
	OccurredAt    string              `json:"occurredAt"`
	Kind          ReputationEventKind `json:"kind"`
	Subject       ReputationSubject   `json:"subject"`
	SourceRef     map[string]any      `json:"sourceRef"`
	Facts         map[string]any      `json:"facts,omitempty"`
	EventHash     string              `json:"eventHash"`
}

// ReputationEventInput carries the caller-supplied event fields. EventID is
// optional; a fresh identifier is generated when absent.
type ReputationEventInput struct {
	EventID    string
	TenantID   string
	OccurredAt string
	Kind       ReputationEventKind
	Subject    ReputationSubject
	SourceRef  map[string]any
	Facts      map[string]any
}

// reputationEventCore is the hashable core: every field except the hash.
// The event id is part of the core because it is the artifact identifier.
func reputationEventCore(e ReputationEvent) map[string]any {
	subject := map[string]any{"agentId": e.Subject.AgentID}
	if e.Subject.ToolID != "" {
		subject["toolId"] = e.Subject.ToolID
	}
	if e.Subject.CounterpartyID != "" {
		subject["counterpartyId"] = e.Subject.CounterpartyID
	}
	if e.Subject.Role != "" {
		subject["role"] = e.Subject.Role
	}
	core := map[string]any{
		"schemaVersion": e.SchemaVersion,
		"eventId":       e.EventID,
		"tenantId":      e.TenantID,
		"occurredAt":    e.OccurredAt,
		"kind":          string(e.Kind),
		"subject":       subject,
		"sourceRef":     e.SourceRef,
	}
	// Empty facts hash as absent so that omitempty serialization cannot
	// change the digest across a decode/encode round trip.
	if len(e.Facts) > 0 {
		core["facts"] = e.Facts
	}
	return core
}

func BuildReputationEvent(in ReputationEventInput) (ReputationEvent, error) {
	var (
		e   ReputationEvent
		err error
	)
	e.SchemaVersion = ReputationEventSchemaVersion
	e.EventID = strings.TrimSpace(in.EventID)
	if e.EventID == "" {
		e.EventID = "repev_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if e.TenantID, err = domain.NonEmptyString(in.TenantID, "tenantId"); err != nil {
		return ReputationEvent{}, err
	}
	if e.OccurredAt, err = domain.Timestamp(in.OccurredAt, "occurredAt"); err != nil {
		return ReputationEvent{}, err
	}
	if _, ok := validReputationKinds[in.Kind]; !ok {
		return ReputationEvent{}, domain.Errf("kind", "must be a known reputation event kind")
	}
	e.Kind = in.Kind
	if e.Subject.AgentID, err = domain.NonEmptyString(in.Subject.AgentID, "subject.agentId"); err != nil {
		return ReputationEvent{}, err
	}
	e.Subject.ToolID = domain.OptionalString(in.Subject.ToolID)
	e.Subject.CounterpartyID = domain.OptionalString(in.Subject.CounterpartyID)
	e.Subject.Role = domain.OptionalString(in.Subject.Role)

	if err = validateSourceRef(in.SourceRef); err != nil {
		return ReputationEvent{}, err
	}
	e.SourceRef = in.SourceRef
	if err = checkCanonical(in.Facts, "facts"); err != nil {
		return ReputationEvent{}, err
	}
	if len(in.Facts) > 0 {
		e.Facts = in.Facts
	}

	if e.EventHash, err = hashCore(reputationEventCore(e)); err != nil {
		return ReputationEvent{}, err
	}
	return e, nil
}

func ValidateReputationEvent(e ReputationEvent) error {
	if e.SchemaVersion != ReputationEventSchemaVersion {
		return domain.Errf("schemaVersion", "must be %s", ReputationEventSchemaVersion)
	}
	rebuilt, err := BuildReputationEvent(ReputationEventInput{
		EventID:    e.EventID,
		TenantID:   e.TenantID,
		OccurredAt: e.OccurredAt,
		Kind:       e.Kind,
		Subject:    e.Subject,
		SourceRef:  e.SourceRef,
		Facts:      e.Facts,
	})
	if err != nil {
		return err
	}
	if e.EventHash != rebuilt.EventHash {
		return integrityErr("eventHash")
	}
	return nil
}

func validateSourceRef(ref map[string]any) error {
	if len(ref) == 0 {
		return domain.Errf("sourceRef", "is required")
	}
	if err := checkCanonical(ref, "sourceRef"); err != nil {
		return err
	}
	for _, field := range sourceRefIdentityFields {
		if s, ok := ref[field].(string); ok && strings.TrimSpace(s) != "" {
			return nil
		}
	}
	return domain.Errf("sourceRef", "must carry at least one stable identity field")
}
