// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pouw

// PolicyType classifies a validation policy.
type PolicyType string

const (
	PolicySafety      PolicyType = "safety"
	PolicyAccuracy    PolicyType = "accuracy"
	PolicyConsistency PolicyType = "consistency"
)

// Policy is a named, weighted rule group. Weights across policies need
// not sum to 1; scores are normalized at validation time.
type Policy struct {
	Name   string     `json:"name"`
	Type   PolicyType `json:"type"`
	Rules  []RuleSpec `json:"rules"`
	Weight float64    `json:"weight"`
}

// DefaultPolicies returns the standard policy set.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Name:   "safety",
			Type:   PolicySafety,
			Weight: 0.4,
			Rules: []RuleSpec{
				{
					Check:    "no-harmful-intent",
					Kind:     CheckKeywordsAbsent,
					Severity: SeverityCritical,
					Keywords: []string{
						"how to harm",
						"build a weapon",
						"make explosives",
						"synthesize a pathogen",
					},
				},
				{
					Check:    "medical-disclaimer",
					Kind:     CheckConditionalKeywords,
					Severity: SeverityHigh,
					Triggers: []string{"diagnos", "symptom", "medication", "dosage", "treatment plan"},
					Keywords: []string{"consult", "doctor", "medical professional"},
				},
			},
		},
		{
			Name:   "accuracy",
			Type:   PolicyAccuracy,
			Weight: 0.35,
			Rules: []RuleSpec{
				{
					Check:    "output-min-length",
					Kind:     CheckMinLength,
					Severity: SeverityCritical,
					Min:      10,
				},
				{
					Check:    "min-word-count",
					Kind:     CheckMinWords,
					Severity: SeverityCritical,
					Min:      5,
				},
				{
					Check:    "reasoning-trace-marker",
					Kind:     CheckTraceMarker,
					Severity: SeverityCritical,
				},
			},
		},
		{
			Name:   "consistency",
			Type:   PolicyConsistency,
			Weight: 0.25,
			Rules: []RuleSpec{
				{
					// Reserved for contradiction detection.
					Check:    "no-contradictions",
					Kind:     CheckAlwaysPass,
					Severity: SeverityLow,
				},
			},
		},
	}
}
