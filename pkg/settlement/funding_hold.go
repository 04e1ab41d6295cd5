package settlement

import (
	"time"

	"github.com/nooterra/settld/pkg/domain"
)

const FundingHoldSchemaVersion = "settld.funding_hold.v1"

// HoldStatus is the closed funding-hold lifecycle enum.
type HoldStatus string

const (
	HoldHeld     HoldStatus = "held"
	HoldReleased HoldStatus = "released"
	HoldRefunded HoldStatus = "refunded"
)

var validHoldStatuses = map[HoldStatus]struct{}{
	HoldHeld:     {},
	HoldReleased: {},
	HoldRefunded: {},
}

// FundingHold is the escrow-style artifact parked against an agreement while
// its challenge window runs. Created in held, transitions exactly once to
// released or refunded, terminal thereafter.
type FundingHold struct {
	SchemaVersion          string         `json:"schemaVersion"`
	TenantID               string         `json:"tenantId"`
	AgreementHash          string         `json:"agreementHash"`
	ReceiptHash            string         `json:"receiptHash"`
	PayerID                string         `json:"payerId"`
	PayeeID                string         `json:"payeeId"`
	AmountCents            int64          `json:"amountCents"`
	HeldAmountCents        int64          `json:"heldAmountCents"`
	Currency               string         `json:"currency"`
	HoldbackBps            int64          `json:"holdbackBps"`
	ChallengeWindowSeconds int64          `json:"challengeWindowSeconds"`
	CreatedAt              string         `json:"createdAt"`
	HoldHash               string         `json:"holdHash"`
	Status                 HoldStatus     `json:"status"`
	Revision               int64          `json:"revision"`
	UpdatedAt              string         `json:"updatedAt"`
	ResolvedAt             string         `json:"resolvedAt,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
}

// FundingHoldInput carries the caller-supplied fields of a new hold.
type FundingHoldInput struct {
	TenantID               string
	AgreementHash          string
	ReceiptHash            string
	PayerID                string
	PayeeID                string
	AmountCents            int64
	HeldAmountCents        int64
	Currency               string
	HoldbackBps            int64
	ChallengeWindowSeconds int64
	CreatedAt              string
	Metadata               map[string]any
}

// fundingHoldCore is the hashable core: the hash field itself and the
// mutable lifecycle fields (status, revision, updatedAt, resolvedAt,
// metadata) are excluded.
func fundingHoldCore(h FundingHold) map[string]any {
	return map[string]any{
		"schemaVersion":          h.SchemaVersion,
		"tenantId":               h.TenantID,
		"agreementHash":          h.AgreementHash,
		"receiptHash":            h.ReceiptHash,
		"payerId":                h.PayerID,
		"payeeId":                h.PayeeID,
		"amountCents":            h.AmountCents,
		"heldAmountCents":        h.HeldAmountCents,
		"currency":               h.Currency,
		"holdbackBps":            h.HoldbackBps,
		"challengeWindowSeconds": h.ChallengeWindowSeconds,
		"createdAt":              h.CreatedAt,
	}
}

// BuildFundingHold validates every field, canonicalizes the hashable core,
// embeds the content hash, and sets the initial lifecycle fields.
func BuildFundingHold(in FundingHoldInput) (FundingHold, error) {
	var (
		h   FundingHold
		err error
	)
	h.SchemaVersion = FundingHoldSchemaVersion
	if h.TenantID, err = domain.NonEmptyString(in.TenantID, "tenantId"); err != nil {
		return FundingHold{}, err
	}
	if h.AgreementHash, err = domain.SHA256Hex(in.AgreementHash, "agreementHash"); err != nil {
		return FundingHold{}, err
	}
	if h.ReceiptHash, err = domain.SHA256Hex(in.ReceiptHash, "receiptHash"); err != nil {
		return FundingHold{}, err
	}
	if h.PayerID, err = domain.NonEmptyString(in.PayerID, "payerId"); err != nil {
		return FundingHold{}, err
	}
	if h.PayeeID, err = domain.NonEmptyString(in.PayeeID, "payeeId"); err != nil {
		return FundingHold{}, err
	}
	if h.AmountCents, err = domain.PositiveCents(in.AmountCents, "amountCents"); err != nil {
		return FundingHold{}, err
	}
	if h.HeldAmountCents, err = domain.NonNegativeCents(in.HeldAmountCents, "heldAmountCents"); err != nil {
		return FundingHold{}, err
	}
	if h.HeldAmountCents > h.AmountCents {
		return FundingHold{}, domain.Errf("heldAmountCents", "must not exceed amountCents")
	}
	if h.Currency, err = domain.Currency(in.Currency, "currency"); err != nil {
		return FundingHold{}, err
	}
	if h.HoldbackBps, err = domain.BasisPoints(in.HoldbackBps, "holdbackBps"); err != nil {
		return FundingHold{}, err
	}
	if h.ChallengeWindowSeconds, err = domain.PositiveCents(in.ChallengeWindowSeconds, "challengeWindowSeconds"); err != nil {
		return FundingHold{}, err
	}
	if h.CreatedAt, err = domain.Timestamp(in.CreatedAt, "createdAt"); err != nil {
		return FundingHold{}, err
	}
	if err = checkCanonical(in.Metadata, "metadata"); err != nil {
		return FundingHold{}, err
	}

	if h.HoldHash, err = hashCore(fundingHoldCore(h)); err != nil {
		return FundingHold{}, err
	}
	h.Status = HoldHeld
	h.Revision = 0
	h.UpdatedAt = h.CreatedAt
	if len(in.Metadata) > 0 {
		h.Metadata = mergeMetadata(in.Metadata, nil)
	}
	return h, nil
}

// ValidateFundingHold re-runs every field constraint against an existing
// record and requires the stored hash to equal the recomputed core hash.
func ValidateFundingHold(h FundingHold) error {
	if h.SchemaVersion != FundingHoldSchemaVersion {
		return domain.Errf("schemaVersion", "must be %s", FundingHoldSchemaVersion)
	}
	rebuilt, err := BuildFundingHold(FundingHoldInput{
		TenantID:               h.TenantID,
		AgreementHash:          h.AgreementHash,
		ReceiptHash:            h.ReceiptHash,
		PayerID:                h.PayerID,
		PayeeID:                h.PayeeID,
		AmountCents:            h.AmountCents,
		HeldAmountCents:        h.HeldAmountCents,
		Currency:               h.Currency,
		HoldbackBps:            h.HoldbackBps,
		ChallengeWindowSeconds: h.ChallengeWindowSeconds,
		CreatedAt:              h.CreatedAt,
		Metadata:               h.Metadata,
	})
	if err != nil {
		return err
	}
	if _, ok := validHoldStatuses[h.Status]; !ok {
		return domain.Errf("status", "must be one of held, released, refunded")
	}
	if h.Revision < 0 {
		return domain.Errf("revision", "must be a non-negative integer")
	}
	if h.Status == HoldHeld && h.ResolvedAt != "" {
		return domain.Errf("resolvedAt", "must be empty while status is held")
	}
	if h.Status != HoldHeld && h.ResolvedAt == "" {
		return domain.Errf("resolvedAt", "is required once the hold is resolved")
	}
	if _, err := domain.Timestamp(h.UpdatedAt, "updatedAt"); err != nil {
		return err
	}
	if h.ResolvedAt != "" {
		if _, err := domain.Timestamp(h.ResolvedAt, "resolvedAt"); err != nil {
			return err
		}
	}
	if h.HoldHash != rebuilt.HoldHash {
		return integrityErr("holdHash")
	}
	return nil
}

// ResolveFundingHold transitions a held hold to released or refunded.
// Resolving an already-terminal hold returns the input unchanged, which makes
// retried resolutions safe under at-least-once delivery. Concurrent distinct
// resolutions must be serialized by the caller's storage layer; this function
// performs no locking.
func ResolveFundingHold(h FundingHold, target HoldStatus, at time.Time, metadata map[string]any) (FundingHold, error) {
	if target != HoldReleased && target != HoldRefunded {
		return FundingHold{}, domain.Errf("targetStatus", "must be released or refunded")
	}
	if err := checkCanonical(metadata, "metadata"); err != nil {
		return FundingHold{}, err
	}
	if h.Status != HoldHeld {
		return h, nil
	}
	resolvedAt := domain.FormatTimestamp(at)
	out := h
	out.Status = target
	out.Revision = h.Revision + 1
	out.UpdatedAt = resolvedAt
	out.ResolvedAt = resolvedAt
	out.Metadata = mergeMetadata(h.Metadata, metadata)
	return out, nil
}
