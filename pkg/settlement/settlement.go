// Package settlement defines the content-addressed settlement artifacts:
// funding holds, settlement adjustments, and reputation events. Each artifact
// has an explicit hashable core — the fields covered by its embedded content
// hash — and a build/validate pair. Builders fail fast on the first violated
// field constraint and never return a partially valid artifact; validators
// additionally recompute the content hash and report a mismatch as an
// integrity error distinct from ordinary field errors.
package settlement

import (
	"errors"
	"fmt"

	"github.com/nooterra/settld/pkg/canonical"
)

// ErrIntegrity marks a stored content hash that does not match the artifact's
// recomputed hashable core. Field-constraint failures are *domain.FieldError;
// tampering surfaces as this sentinel.
var ErrIntegrity = errors.New("content hash does not match hashable core")

func integrityErr(field string) error {
	return fmt.Errorf("%s: %w", field, ErrIntegrity)
}

func hashCore(core map[string]any) (string, error) {
	hash, _, err := canonical.Sum(core)
	return hash, err
}

// checkCanonical rejects metadata/facts payloads that fall outside the
// canonical value model, carrying the artifact field as the error prefix.
func checkCanonical(v any, field string) error {
	if v == nil {
		return nil
	}
	if _, err := canonical.Canonicalize(v); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
