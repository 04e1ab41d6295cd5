package settlement

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nooterra/settld/pkg/domain"
)

func hexOf(c byte) string { return strings.Repeat(string(c), 64) }

func holdInput() FundingHoldInput {
	return FundingHoldInput{
		TenantID:               "ten_alpha",
		AgreementHash:          hexOf('a'),
		ReceiptHash:            hexOf('b'),
		PayerID:                "agent_payer",
		PayeeID:                "agent_payee",
		AmountCents:            25000,
		HeldAmountCents:        2500,
		Currency:               "USD",
		HoldbackBps:            1000,
		ChallengeWindowSeconds: 86400,
		CreatedAt:              "2026-03-01T12:00:00Z",
	}
}

func TestBuildFundingHoldRoundTrip(t *testing.T) {
	h, err := BuildFundingHold(holdInput())
	if err != nil {
		t.Fatalf("BuildFundingHold: %v", err)
	}
	if h.Status != HoldHeld || h.Revision != 0 {
		t.Fatalf("expected fresh hold in held/0, got %s/%d", h.Status, h.Revision)
	}
	if h.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("expected normalized createdAt, got %q", h.CreatedAt)
	}
	if err := ValidateFundingHold(h); err != nil {
		t.Fatalf("ValidateFundingHold: %v", err)
	}
}

func TestBuildFundingHoldHeldAmountBounds(t *testing.T) {
	in := holdInput()
	in.HeldAmountCents = in.AmountCents
	if _, err := BuildFundingHold(in); err != nil {
		t.Fatalf("heldAmountCents == amountCents must build: %v", err)
	}

	in.HeldAmountCents = in.AmountCents + 1
	_, err := BuildFundingHold(in)
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "heldAmountCents" {
		t.Fatalf("expected heldAmountCents field error, got %v", err)
	}
}

func TestValidateFundingHoldDetectsTampering(t *testing.T) {
	h, err := BuildFundingHold(holdInput())
	if err != nil {
		t.Fatalf("BuildFundingHold: %v", err)
	}
	h.AmountCents++
	err = ValidateFundingHold(h)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestResolveFundingHoldTransitionsOnce(t *testing.T) {
	h, err := BuildFundingHold(holdInput())
	if err != nil {
		t.Fatalf("BuildFundingHold: %v", err)
	}
	at := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	released, err := ResolveFundingHold(h, HoldReleased, at, map[string]any{"resolvedBy": "maintenance"})
	if err != nil {
		t.Fatalf("ResolveFundingHold: %v", err)
	}
	if released.Status != HoldReleased || released.Revision != 1 {
		t.Fatalf("expected released/1, got %s/%d", released.Status, released.Revision)
	}
	if released.ResolvedAt != "2026-03-03T09:00:00.000Z" || released.UpdatedAt != released.ResolvedAt {
		t.Fatalf("unexpected resolution timestamps: %q / %q", released.ResolvedAt, released.UpdatedAt)
	}
	if released.HoldHash != h.HoldHash {
		t.Fatalf("resolution must not change the content hash")
	}
	if err := ValidateFundingHold(released); err != nil {
		t.Fatalf("resolved hold must stay valid: %v", err)
	}
}

func TestResolveFundingHoldIdempotentOnTerminal(t *testing.T) {
	h, _ := BuildFundingHold(holdInput())
	released, err := ResolveFundingHold(h, HoldReleased, time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("ResolveFundingHold: %v", err)
	}
	again, err := ResolveFundingHold(released, HoldRefunded, time.Now().UTC().Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("repeat ResolveFundingHold: %v", err)
	}
	if !reflect.DeepEqual(again, released) {
		t.Fatalf("terminal resolution must be a no-op:\n got %+v\nwant %+v", again, released)
	}
}

func TestResolveFundingHoldRejectsHeldTarget(t *testing.T) {
	h, _ := BuildFundingHold(holdInput())
	if _, err := ResolveFundingHold(h, HoldHeld, time.Now().UTC(), nil); err == nil {
		t.Fatalf("expected rejection of held target")
	}
}
