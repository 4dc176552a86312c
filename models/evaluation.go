package models

// RiskLevel classifies the severity of compliance findings
type RiskLevel string

const (
	RiskNone    RiskLevel = "None"
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// EvaluationResult is the structured compliance verdict for one route or
// regulation section. Compliant is nil when the evaluation itself failed,
// which is distinct from false (evaluated and found non-compliant).
type EvaluationResult struct {
	Compliant              *bool     `json:"compliant"`
	ComplianceScore        float64   `json:"compliance_score"`
	RiskLevel              RiskLevel `json:"risk_level"`
	Violations             []string  `json:"violations"`
	Reasons                []string  `json:"reasons"`
	Suggestions            []string  `json:"suggestions"`
	AdditionalRequirements []string  `json:"additional_requirements"`
	OfficerNotes           string    `json:"officer_notes"`
}

// Normalize back-fills any field the model left out so callers never see a
// missing key: list fields become empty slices, officer_notes an empty string.
func (r *EvaluationResult) Normalize() {
	if r.Violations == nil {
		r.Violations = []string{}
	}
	if r.Reasons == nil {
		r.Reasons = []string{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	if r.AdditionalRequirements == nil {
		r.AdditionalRequirements = []string{}
	}
	if r.RiskLevel == "" {
		r.RiskLevel = RiskUnknown
	}
}

// IsCompliant reports whether the evaluation succeeded and found the
// shipment compliant.
func (r *EvaluationResult) IsCompliant() bool {
	return r != nil && r.Compliant != nil && *r.Compliant
}

// SectionResult pairs one regulation section (or rule group) with its verdict.
// Error is set instead of Compliance when the section could not be evaluated
// at all.
type SectionResult struct {
	Section    string            `json:"section"`
	Compliance *EvaluationResult `json:"compliance,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// boolPtr is a convenience for literal results.
func boolPtr(b bool) *bool { return &b }

// GeneralComplianceResult is returned for routes that have no rules defined.
// No rules is a valid, reportable state rather than an error, but it does not
// guarantee compliance with all international regulations.
func GeneralComplianceResult() *EvaluationResult {
	return &EvaluationResult{
		Compliant:              boolPtr(true),
		ComplianceScore:        100,
		RiskLevel:              RiskLow,
		Violations:             []string{},
		Reasons:                []string{"No specific compliance rules found for this route"},
		Suggestions:            []string{},
		AdditionalRequirements: []string{},
		OfficerNotes:           "No specific compliance rules have been defined for this route. This does not guarantee compliance with all international regulations.",
	}
}

// FailedEvaluationResult builds the synthetic verdict used on every
// evaluation failure path: network error, blocked prompt, malformed reply.
// Compliant stays nil so callers can tell "failed" from "non-compliant".
func FailedEvaluationResult(reason string) *EvaluationResult {
	return &EvaluationResult{
		Compliant:              nil,
		ComplianceScore:        0,
		RiskLevel:              RiskUnknown,
		Violations:             []string{"Error in analysis"},
		Reasons:                []string{reason},
		Suggestions:            []string{"Please review manually"},
		AdditionalRequirements: []string{},
		OfficerNotes:           "Technical error occurred during compliance evaluation.",
	}
}
