// Package reason holds the frozen settlement reason-code table. Codes are
// stable identifiers and MUST NOT change between releases; downstream
// tooling branches on them.
package reason

// Verifier evaluation reasons. Lowercase by contract: these travel inside
// evaluation summaries, not operator justification codes.
const (
	CodeRunFailed         = "run_failed"
	CodeLatencyMissing    = "latency_missing"
	CodeAboveRedThreshold = "above_red_threshold"
	CodeBetweenThresholds = "between_thresholds"
	CodeSchemaCheckFailed = "schema_check_failed"
)

// Operator justification codes.
const (
	CodeEvidenceInsufficient  = "EVIDENCE_INSUFFICIENT"
	CodePolicyBreach          = "POLICY_BREACH"
	CodeCounterpartyConfirmed = "COUNTERPARTY_CONFIRMED"
	CodeManualReview          = "MANUAL_REVIEW"
	CodeDuplicateSubmission   = "DUPLICATE_SUBMISSION"
	CodeWindowExpired         = "WINDOW_EXPIRED"
)

var descriptions = map[string]string{
	CodeRunFailed:         "the underlying run reported a failed status",
	CodeLatencyMissing:    "no latency metric was reported for the run",
	CodeAboveRedThreshold: "observed latency is at or above the red threshold",
	CodeBetweenThresholds: "observed latency falls between the green and red thresholds",
	CodeSchemaCheckFailed: "one or more schema-check requirements were violated",

	CodeEvidenceInsufficient:  "submitted evidence does not support the claim",
	CodePolicyBreach:          "the agreement's policy terms were breached",
	CodeCounterpartyConfirmed: "the counterparty confirmed the outcome",
	CodeManualReview:          "outcome decided by manual operator review",
	CodeDuplicateSubmission:   "the case duplicates an existing submission",
	CodeWindowExpired:         "the challenge window expired without contest",
}

// Describe returns the human description for a known code; ok reports
// whether the code is in the table.
func Describe(code string) (string, bool) {
	d, ok := descriptions[code]
	return d, ok
}

// Known reports whether code is in the frozen table.
func Known(code string) bool {
	_, ok := descriptions[code]
	return ok
}
