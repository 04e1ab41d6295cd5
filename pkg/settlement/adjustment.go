package settlement

import (
	"github.com/nooterra/settld/pkg/domain"
)

const AdjustmentSchemaVersion = "settld.settlement_adjustment.v1"

// AdjustmentKind is the closed holdback-adjustment enum.
type AdjustmentKind string

const (
	AdjustmentHoldbackRelease AdjustmentKind = "holdback_release"
	AdjustmentHoldbackRefund  AdjustmentKind = "holdback_refund"
)

var validAdjustmentKinds = map[AdjustmentKind]struct{}{
	AdjustmentHoldbackRelease: {},
	AdjustmentHoldbackRefund:  {},
}

// VerdictRef ties an adjustment back to the dispute verdict that caused it.
type VerdictRef struct {
	CaseID      string `json:"caseId"`
	VerdictHash string `json:"verdictHash"`
}

// SettlementAdjustment records money moved out of a holdback. Immutable once
// built; there is no transition operation.
type SettlementAdjustment struct {
	SchemaVersion  string         `json:"schemaVersion"`
	TenantID       string         `json:"tenantId"`
	AgreementHash  string         `json:"agreementHash"`
	ReceiptHash    string         `json:"receiptHash"`
	HoldHash       string         `json:"holdHash"`
	Kind           AdjustmentKind `json:"kind"`
	AmountCents    int64          `json:"amountCents"`
	Currency       string         `json:"currency"`
	CreatedAt      string         `json:"createdAt"`
	VerdictRef     *VerdictRef    `json:"verdictRef,omitempty"`
	AdjustmentHash string         `json:"adjustmentHash"`
}

// SettlementAdjustmentInput carries the caller-supplied adjustment fields.
type SettlementAdjustmentInput struct {
	TenantID      string
	AgreementHash string
	ReceiptHash   string
	HoldHash      string
	Kind          AdjustmentKind
	AmountCents   int64
	Currency      string
	CreatedAt     string
	VerdictRef    *VerdictRef
}

// adjustmentCore is the hashable core: every field except the hash itself.
func adjustmentCore(a SettlementAdjustment) map[string]any {
	core := map[string]any{
		"schemaVersion": a.SchemaVersion,
		"tenantId":      a.TenantID,
		"agreementHash": a.AgreementHash,
		"receiptHash":   a.ReceiptHash,
		"holdHash":      a.HoldHash,
		"kind":          string(a.Kind),
		"amountCents":   a.AmountCents,
		"currency":      a.Currency,
		"createdAt":     a.CreatedAt,
	}
	if a.VerdictRef != nil {
		core["verdictRef"] = map[string]any{
			"caseId":      a.VerdictRef.CaseID,
			"verdictHash": a.VerdictRef.VerdictHash,
		}
	}
	return core
}

func BuildSettlementAdjustment(in SettlementAdjustmentInput) (SettlementAdjustment, error) {
	var (
		a   SettlementAdjustment
		err error
	)
	a.SchemaVersion = AdjustmentSchemaVersion
	if a.TenantID, err = domain.NonEmptyString(in.TenantID, "tenantId"); err != nil {
		return SettlementAdjustment{}, err
	}
	if a.AgreementHash, err = domain.SHA256Hex(in.AgreementHash, "agreementHash"); err != nil {
		return SettlementAdjustment{}, err
	}
	if a.ReceiptHash, err = domain.SHA256Hex(in.ReceiptHash, "receiptHash"); err != nil {
		return SettlementAdjustment{}, err
	}
	if a.HoldHash, err = domain.SHA256Hex(in.HoldHash, "holdHash"); err != nil {
		return SettlementAdjustment{}, err
	}
	if _, ok := validAdjustmentKinds[in.Kind]; !ok {
		return SettlementAdjustment{}, domain.Errf("kind", "must be holdback_release or holdback_refund")
	}
	a.Kind = in.Kind
	if a.AmountCents, err = domain.NonNegativeCents(in.AmountCents, "amountCents"); err != nil {
		return SettlementAdjustment{}, err
	}
	if a.Currency, err = domain.Currency(in.Currency, "currency"); err != nil {
		return SettlementAdjustment{}, err
	}
	if a.CreatedAt, err = domain.Timestamp(in.CreatedAt, "createdAt"); err != nil {
		return SettlementAdjustment{}, err
	}
	if in.VerdictRef != nil {
		ref := VerdictRef{}
		if ref.CaseID, err = domain.NonEmptyString(in.VerdictRef.CaseID, "verdictRef.caseId"); err != nil {
			return SettlementAdjustment{}, err
		}
		if ref.VerdictHash, err = domain.SHA256Hex(in.VerdictRef.VerdictHash, "verdictRef.verdictHash"); err != nil {
			return SettlementAdjustment{}, err
		}
		a.VerdictRef = &ref
	}

	if a.AdjustmentHash, err = hashCore(adjustmentCore(a)); err != nil {
		return SettlementAdjustment{}, err
	}
	return a, nil
}

func ValidateSettlementAdjustment(a SettlementAdjustment) error {
	if a.SchemaVersion != AdjustmentSchemaVersion {
		return domain.Errf("schemaVersion", "must be %s", AdjustmentSchemaVersion)
	}
	rebuilt, err := BuildSettlementAdjustment(SettlementAdjustmentInput{
		TenantID:      a.TenantID,
		AgreementHash: a.AgreementHash,
		ReceiptHash:   a.ReceiptHash,
		HoldHash:      a.HoldHash,
		Kind:          a.Kind,
		AmountCents:   a.AmountCents,
		Currency:      a.Currency,
		CreatedAt:     a.CreatedAt,
		VerdictRef:    a.VerdictRef,
	})
	if err != nil {
		return err
	}
	if a.AdjustmentHash != rebuilt.AdjustmentHash {
		return integrityErr("adjustmentHash")
	}
	return nil
}
