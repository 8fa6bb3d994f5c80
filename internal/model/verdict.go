package model

import "fmt"

// AnalysisMethod enumerates the classification tiers. No other value
// is ever valid on a persisted item.
type AnalysisMethod string

const (
	MethodVIP     AnalysisMethod = "vip"
	MethodProfile AnalysisMethod = "profile"
	MethodRegex   AnalysisMethod = "regex"
	MethodHaiku   AnalysisMethod = "haiku"
)

// Tier confidence contract.
const (
	VIPConfidence     = 1.0
	ProfileConfidence = 0.85
	RegexConfidence   = 0.7
	HaikuConfidenceLo = 0.75
	HaikuConfidenceHi = 0.90
)

func (m AnalysisMethod) Valid() bool {
	switch m {
	case MethodVIP, MethodProfile, MethodRegex, MethodHaiku:
		return true
	}
	return false
}

// Verdict is a positive classification result. A nil *Verdict means
// "not actionable".
type Verdict struct {
	Method      AnalysisMethod `json:"analysis_method"`
	MatchedRole string         `json:"matched_role,omitempty"`
	Confidence  float64        `json:"confidence"`
	Rationale   string         `json:"rationale"`
}

// Validate enforces the pipeline output contract.
func (v *Verdict) Validate() error {
	if !v.Method.Valid() {
		return fmt.Errorf("%w: analysis method %q", ErrValidation, v.Method)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrValidation, v.Confidence)
	}
	return nil
}
