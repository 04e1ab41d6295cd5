package verifier

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nooterra/settld/pkg/reason"
)

// Status is the red/amber/green settlement-verification outcome.
type Status string

const (
	StatusGreen Status = "green"
	StatusAmber Status = "amber"
	StatusRed   Status = "red"
)

// Latency-threshold plugin constants, fixed for all time: changing them
// would silently re-grade historical runs.
const (
	latencyGreenMaxMs = 1000
	latencyRedMinMs   = 4000
)

// Schema-check defaults, overridable via the source query string.
const (
	schemaCheckDefaultMaxLatencyMs = 1200
)

// RunMetrics are the reported measurements of a run.
type RunMetrics struct {
	LatencyMs      *float64 `json:"latencyMs,omitempty"`
	ReleaseRatePct *float64 `json:"releaseRatePct,omitempty"`
}

// Run is the run under verification.
type Run struct {
	Status  string     `json:"status"`
	Metrics RunMetrics `json:"metrics"`
}

// Verification carries measurements taken by the verification pass itself.
type Verification struct {
	DurationMs *float64 `json:"durationMs,omitempty"`
}

// Input is one evaluation request.
type Input struct {
	Method       VerificationMethod `json:"verificationMethod"`
	Run          Run                `json:"run"`
	Verification Verification       `json:"verification"`
	// BaseStatus is the caller-supplied baseline returned untouched when no
	// plugin matches; empty defaults to amber.
	BaseStatus Status `json:"baseVerificationStatus,omitempty"`
}

// Evaluation explains a plugin's outcome.
type Evaluation struct {
	PluginID string         `json:"pluginId"`
	Reason   string         `json:"reason,omitempty"`
	Summary  map[string]any `json:"summary,omitempty"`
}

// Result is the evaluation outcome together with the resolved reference.
type Result struct {
	Status     Status      `json:"verificationStatus"`
	Ref        Ref         `json:"verifierRef"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// Plugin is one deterministic verifier in the fixed registry.
type Plugin struct {
	ID       string
	Version  string
	evaluate func(in Input, source string) (Status, Evaluation)
}

var latencyThresholdPlugin = &Plugin{
	ID:       "latency_threshold",
	Version:  "1",
	evaluate: evaluateLatencyThreshold,
}

var schemaCheckPlugin = &Plugin{
	ID:       "schema_check",
	Version:  "1",
	evaluate: evaluateSchemaCheck,
}

var registry = map[string]*Plugin{
	SourceLatencyThreshold:  latencyThresholdPlugin,
	SourceSchemaCheck:       schemaCheckPlugin,
	SourceSchemaCheckLegacy: schemaCheckPlugin,
}

// Evaluate resolves the method and runs the matched plugin. Unmatched
// sources return the caller's baseline status untouched (amber when absent).
func Evaluate(in Input) Result {
	ref := ResolveRef(in.Method)
	if ref.Plugin == nil {
		status := in.BaseStatus
		if status == "" {
			status = StatusAmber
		}
		return Result{Status: status, Ref: ref}
	}
	status, eval := ref.Plugin.evaluate(in, ref.Source)
	eval.PluginID = ref.Plugin.ID
	return Result{Status: status, Ref: ref, Evaluation: &eval}
}

// latencyMs derives the latency under judgment: run metrics win, then the
// verification pass duration.
func latencyMs(in Input) *float64 {
	if in.Run.Metrics.LatencyMs != nil {
		return in.Run.Metrics.LatencyMs
	}
	return in.Verification.DurationMs
}

func evaluateLatencyThreshold(in Input, _ string) (Status, Evaluation) {
	if in.Run.Status == "failed" {
		return StatusRed, Evaluation{Reason: reason.CodeRunFailed}
	}
	latency := latencyMs(in)
	if latency == nil {
		return StatusAmber, Evaluation{Reason: reason.CodeLatencyMissing}
	}
	summary := map[string]any{"latencyMs": *latency}
	switch {
	case *latency <= latencyGreenMaxMs:
		return StatusGreen, Evaluation{Summary: summary}
	case *latency >= latencyRedMinMs:
		return StatusRed, Evaluation{Reason: reason.CodeAboveRedThreshold, Summary: summary}
	default:
		return StatusAmber, Evaluation{Reason: reason.CodeBetweenThresholds, Summary: summary}
	}
}

type schemaCheckConfig struct {
	MaxLatencyMs       float64
	RequireReleaseRate bool
}

// parseSchemaCheckConfig reads plugin configuration from the source query
// string. Unparseable values fall back to the defaults.
func parseSchemaCheckConfig(source string) schemaCheckConfig {
	cfg := schemaCheckConfig{MaxLatencyMs: schemaCheckDefaultMaxLatencyMs}
	u, err := url.Parse(source)
	if err != nil {
		return cfg
	}
	q := u.Query()
	if raw := strings.TrimSpace(q.Get("maxLatencyMs")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			cfg.MaxLatencyMs = v
		}
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("requireReleaseRate"))) {
	case "1", "true", "yes":
		cfg.RequireReleaseRate = true
	}
	return cfg
}

// evaluateSchemaCheck collects every violation in one pass rather than
// stopping at the first, so operators see the full repair list.
func evaluateSchemaCheck(in Input, source string) (Status, Evaluation) {
	cfg := parseSchemaCheckConfig(source)
	var violations []any

	if in.Run.Status != "completed" {
		violations = append(violations, fmt.Sprintf("run status must be completed, got %q", in.Run.Status))
	}
	latency := latencyMs(in)
	switch {
	case latency == nil:
		violations = append(violations, "latencyMs is required")
	case *latency > cfg.MaxLatencyMs:
		violations = append(violations, fmt.Sprintf("latencyMs %v exceeds ceiling %v", *latency, cfg.MaxLatencyMs))
	}
	if cfg.RequireReleaseRate {
		switch rate := in.Run.Metrics.ReleaseRatePct; {
		case rate == nil:
			violations = append(violations, "releaseRatePct is required")
		case *rate > 100:
			violations = append(violations, fmt.Sprintf("releaseRatePct %v exceeds 100", *rate))
		}
	}

	if len(violations) > 0 {
		return StatusRed, Evaluation{
			Reason:  reason.CodeSchemaCheckFailed,
			Summary: map[string]any{"violations": violations},
		}
	}
	summary := map[string]any{"maxLatencyMs": cfg.MaxLatencyMs}
	if latency != nil {
		summary["latencyMs"] = *latency
	}
	if in.Run.Metrics.ReleaseRatePct != nil {
		summary["releaseRatePct"] = *in.Run.Metrics.ReleaseRatePct
	}
	return StatusGreen, Evaluation{Summary: summary}
}
