// Package store persists settlement artifacts and applies the serialized
// hold resolution the kernel delegates to storage: a resolve only lands when
// the persisted row is still in the revision/status the caller saw, so two
// racing distinct resolutions cannot both succeed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nooterra/settld/pkg/settlement"
)

var ErrNotFound = errors.New("record not found")

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// EnsureSchema creates the artifact tables. Records are stored as the full
// canonical JSON document; status and revision are lifted into columns for
// the resolution guard and for listing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS funding_holds (
  hold_hash text PRIMARY KEY,
  tenant_id text NOT NULL,
  status text NOT NULL,
  revision bigint NOT NULL,
  record jsonb NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS settlement_adjustments (
  adjustment_hash text PRIMARY KEY,
  tenant_id text NOT NULL,
  record jsonb NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS reputation_events (
  event_id text PRIMARY KEY,
  tenant_id text NOT NULL,
  record jsonb NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);`)
	return err
}

// InsertFundingHold stores a freshly built hold. Re-inserting the same hold
// hash is a no-op so retried submissions stay safe.
func (s *Store) InsertFundingHold(ctx context.Context, h settlement.FundingHold) error {
	record, err := json.Marshal(h)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO funding_holds(hold_hash, tenant_id, status, revision, record)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT (hold_hash) DO NOTHING`,
		h.HoldHash, h.TenantID, string(h.Status), h.Revision, record)
	return err
}

func (s *Store) GetFundingHold(ctx context.Context, holdHash string) (settlement.FundingHold, error) {
	var record []byte
	err := s.DB.QueryRow(ctx,
		`SELECT record FROM funding_holds WHERE hold_hash=$1`, holdHash).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return settlement.FundingHold{}, ErrNotFound
	}
	if err != nil {
		return settlement.FundingHold{}, err
	}
	var h settlement.FundingHold
	if err := json.Unmarshal(record, &h); err != nil {
		return settlement.FundingHold{}, err
	}
	return h, nil
}

// ResolveFundingHold loads the hold, applies the kernel transition, and
// lands it with a compare-and-swap on (status, revision). When the guard
// misses — a concurrent resolution won — the now-persisted record is
// returned instead, which matches the kernel's idempotent no-op semantics.
func (s *Store) ResolveFundingHold(ctx context.Context, holdHash string, target settlement.HoldStatus, at time.Time, metadata map[string]any) (settlement.FundingHold, error) {
	current, err := s.GetFundingHold(ctx, holdHash)
	if err != nil {
		return settlement.FundingHold{}, err
	}
	resolved, err := settlement.ResolveFundingHold(current, target, at, metadata)
	if err != nil {
		return settlement.FundingHold{}, err
	}
	if resolved.Revision == current.Revision {
		// Already terminal; nothing to persist.
		return resolved, nil
	}

	record, err := json.Marshal(resolved)
	if err != nil {
		return settlement.FundingHold{}, err
	}
	tag, err := s.DB.Exec(ctx, `
UPDATE funding_holds SET status=$1, revision=$2, record=$3
WHERE hold_hash=$4 AND status=$5 AND revision=$6`,
		string(resolved.Status), resolved.Revision, record,
		holdHash, string(settlement.HoldHeld), current.Revision)
	if err != nil {
		return settlement.FundingHold{}, err
	}
	if tag.RowsAffected() == 0 {
		return s.GetFundingHold(ctx, holdHash)
	}
	return resolved, nil
}

func (s *Store) InsertSettlementAdjustment(ctx context.Context, a settlement.SettlementAdjustment) error {
	record, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO settlement_adjustments(adjustment_hash, tenant_id, record)
VALUES($1,$2,$3)
ON CONFLICT (adjustment_hash) DO NOTHING`,
		a.AdjustmentHash, a.TenantID, record)
	return err
}

func (s *Store) InsertReputationEvent(ctx context.Context, e settlement.ReputationEvent) error {
	record, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO reputation_events(event_id, tenant_id, record)
VALUES($1,$2,$3)
ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.TenantID, record)
	return err
}

// ListReputationEvents returns a tenant's facts, newest first.
func (s *Store) ListReputationEvents(ctx context.Context, tenantID string, limit int) ([]settlement.ReputationEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `
SELECT record FROM reputation_events
WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.ReputationEvent
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var e settlement.ReputationEvent
		if err := json.Unmarshal(record, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
