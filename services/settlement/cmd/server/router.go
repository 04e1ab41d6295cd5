package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nooterra/settld/pkg/canonical"
	"github.com/nooterra/settld/pkg/httpx"
	"github.com/nooterra/settld/pkg/operator"
	"github.com/nooterra/settld/pkg/settlement"
	"github.com/nooterra/settld/pkg/verifier"
	"github.com/nooterra/settld/pkg/walletassign"
	"github.com/nooterra/settld/services/settlement/internal/store"
)

// newRouter wires the kernel behind HTTP. The kernel endpoints are pure;
// only the hold/adjustment/event routes touch the store.
func newRouter(st *store.Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/settlement", func(api chi.Router) {

		api.Post("/holds", func(w http.ResponseWriter, r *http.Request) {
			var req settlement.FundingHoldInput
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			h, err := settlement.BuildFundingHold(req)
			if err != nil {
				httpx.WriteFieldError(w, err)
				return
			}
			if err := st.InsertFundingHold(r.Context(), h); err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteEnvelope(w, 201, "hold", h)
		})

		api.Get("/holds/{hold_hash}", func(w http.ResponseWriter, r *http.Request) {
			h, err := st.GetFundingHold(r.Context(), chi.URLParam(r, "hold_hash"))
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, 404, "NOT_FOUND", "funding hold not found")
				return
			}
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			if err := settlement.ValidateFundingHold(h); err != nil {
				httpx.WriteError(w, 500, "INTEGRITY_ERROR", err.Error())
				return
			}
			httpx.WriteEnvelope(w, 200, "hold", h)
		})

		api.Post("/holds/{hold_hash}/resolve", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				TargetStatus string         `json:"targetStatus"`
				ResolvedAt   string         `json:"resolvedAt"`
				Metadata     map[string]any `json:"metadata"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			at := time.Now().UTC()
			if strings.TrimSpace(req.ResolvedAt) != "" {
				parsed, err := time.Parse(time.RFC3339Nano, req.ResolvedAt)
				if err != nil {
					httpx.WriteError(w, 422, "FIELD_INVALID", "resolvedAt must be an RFC3339 timestamp")
					return
				}
				at = parsed
			}
			h, err := st.ResolveFundingHold(r.Context(), chi.URLParam(r, "hold_hash"),
				settlement.HoldStatus(req.TargetStatus), at, req.Metadata)
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, 404, "NOT_FOUND", "funding hold not found")
				return
			}
			if err != nil {
				httpx.WriteFieldError(w, err)
				return
			}
			httpx.WriteEnvelope(w, 200, "hold", h)
		})

		api.Post("/adjustments", func(w http.ResponseWriter, r *http.Request) {
			var req settlement.SettlementAdjustmentInput
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			a, err := settlement.BuildSettlementAdjustment(req)
			if err != nil {
				httpx.WriteFieldError(w, err)
				return
			}
			if err := st.InsertSettlementAdjustment(r.Context(), a); err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteEnvelope(w, 201, "adjustment", a)
		})

		api.Post("/reputation-events", func(w http.ResponseWriter, r *http.Request) {
			var req settlement.ReputationEventInput
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			e, err := settlement.BuildReputationEvent(req)
			if err != nil {
				httpx.WriteFieldError(w, err)
				return
			}
			if err := st.InsertReputationEvent(r.Context(), e); err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteEnvelope(w, 201, "event", e)
		})

		api.Get("/reputation-events", func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.URL.Query().Get("tenantId"))
			if tenantID == "" {
				httpx.WriteError(w, 422, "FIELD_INVALID", "tenantId is required")
				return
			}
			events, err := st.ListReputationEvents(r.Context(), tenantID, 100)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteEnvelope(w, 200, "events", events)
		})

		api.Post("/operator-actions/verify", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Action    operator.Action `json:"action"`
				PublicKey string          `json:"publicKey"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			pub, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(req.PublicKey))
			if err != nil || len(pub) != ed25519.PublicKeySize {
				httpx.WriteError(w, 422, "FIELD_INVALID", "publicKey must be base64url ed25519")
				return
			}
			res := operator.Verify(req.Action, ed25519.PublicKey(pub))
			httpx.WriteEnvelope(w, 200, "result", res)
		})

		api.Post("/verifier/evaluate", func(w http.ResponseWriter, r *http.Request) {
			var req verifier.Input
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			res := verifier.Evaluate(req)
			httpx.WriteEnvelope(w, 200, "result", res)
		})

		api.Post("/wallet-assignments/resolve", func(w http.ResponseWriter, r *http.Request) {
			var req walletassign.Input
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			assignment := walletassign.Resolve(req)
			httpx.WriteEnvelope(w, 200, "assignment", assignment)
		})

		api.Post("/hash", func(w http.ResponseWriter, r *http.Request) {
			var payload any
			if err := httpx.ReadJSON(r, &payload); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			hash, canonicalBytes, err := canonical.Sum(payload)
			if err != nil {
				httpx.WriteError(w, 422, "NOT_CANONICAL", err.Error())
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"requestId":     httpx.NewRequestID(),
				"hash":          hash,
				"canonicalJson": string(canonicalBytes),
			})
		})
	})

	return r
}
