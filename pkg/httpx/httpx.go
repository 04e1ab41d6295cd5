// Package httpx holds the JSON plumbing shared by settld HTTP services:
// request ids, response envelopes, and the wire shape of field errors.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nooterra/settld/pkg/domain"
)

// ErrorBody is the error half of the response envelope. Field is present
// only for validation failures that name the offending field.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteEnvelope wraps a single named payload with a fresh request id.
func WriteEnvelope(w http.ResponseWriter, status int, key string, v any) {
	WriteJSON(w, status, map[string]any{"requestId": NewRequestID(), key: v})
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{
		"requestId": NewRequestID(),
		"error":     ErrorBody{Code: code, Message: message},
	})
}

// WriteFieldError renders a validation failure as 422; a wrapped
// *domain.FieldError carries the offending field onto the wire.
func WriteFieldError(w http.ResponseWriter, err error) {
	body := ErrorBody{Code: "FIELD_INVALID", Message: err.Error()}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		body.Field = fe.Field
	}
	WriteJSON(w, 422, map[string]any{"requestId": NewRequestID(), "error": body})
}
