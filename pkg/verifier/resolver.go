// Package verifier maps policy-declared verification methods onto the fixed
// registry of deterministic verifier plugins and evaluates runs to a
// red/amber/green settlement-verification outcome. Resolution and evaluation
// are pure: same inputs, same outcome, forever.
package verifier

import (
	"strings"

	"github.com/nooterra/settld/pkg/canonical"
)

const RefSchemaVersion = "settld.verifier_ref.v1"

// Registry sources. The nooterra host is a legacy alias kept for
// backward compatibility with policies declared before the rename.
const (
	SourceLatencyThreshold  = "https://verifiers.settld.dev/latency-threshold"
	SourceSchemaCheck       = "https://verifiers.settld.dev/schema-check"
	SourceSchemaCheckLegacy = "https://verifiers.nooterra.dev/schema-check"
)

// VerificationMethod is the policy-declared method a caller wants resolved.
type VerificationMethod struct {
	Modality string `json:"modality,omitempty"`
	Source   string `json:"source"`
}

// Ref is the resolved, derived verifier reference. Plugin is nil for opaque
// sources the registry does not know.
type Ref struct {
	VerifierID      string  `json:"verifierId"`
	VerifierVersion string  `json:"verifierVersion"`
	VerifierHash    string  `json:"verifierHash"`
	Modality        string  `json:"modality,omitempty"`
	Source          string  `json:"source"`
	Plugin          *Plugin `json:"-"`
}

// NormalizeSource trims surrounding whitespace and trailing slashes. Query
// string and fragment are retained; plugin matching uses BaseSource.
func NormalizeSource(source string) string {
	s := strings.TrimSpace(source)
	for strings.HasSuffix(s, "/") {
		s = strings.TrimSuffix(s, "/")
	}
	return s
}

// BaseSource is the normalized source with query string and fragment
// stripped: the form plugins are registered under.
func BaseSource(source string) string {
	s := NormalizeSource(source)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return NormalizeSource(s)
}

// ResolveRef resolves a verification method to a verifier reference. The
// verifier hash is the digest of the canonical descriptor and serves as the
// method's stable fingerprint in audit trails.
func ResolveRef(method VerificationMethod) Ref {
	source := NormalizeSource(method.Source)
	plugin := registry[BaseSource(source)]

	ref := Ref{
		Modality: strings.TrimSpace(method.Modality),
		Source:   source,
		Plugin:   plugin,
	}
	if plugin != nil {
		ref.VerifierID = plugin.ID
		ref.VerifierVersion = plugin.Version
	} else {
		ref.VerifierID = "verifier_opaque"
		ref.VerifierVersion = "0"
	}
	ref.VerifierHash = canonical.MustSum(map[string]any{
		"schemaVersion":   RefSchemaVersion,
		"verifierId":      ref.VerifierID,
		"verifierVersion": ref.VerifierVersion,
		"source":          ref.Source,
	})
	return ref
}
