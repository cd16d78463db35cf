// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pouw

import (
	"fmt"
	"strings"

	"github.com/luxfi/arbiter/types"
)

// Severity scales the score penalty applied when a rule fails.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Penalty returns the score deduction for a failing rule of this severity.
func (s Severity) Penalty() float64 {
	switch s {
	case SeverityCritical:
		return 0.3
	case SeverityHigh:
		return 0.2
	default:
		return 0.1
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// CheckKind selects the evaluator applied to a rule. Rules are data, not
// code: one generic evaluator interprets every kind.
type CheckKind string

const (
	// CheckKeywordsAbsent fails when the output contains any keyword.
	CheckKeywordsAbsent CheckKind = "keywords-absent"
	// CheckConditionalKeywords fails when a trigger term appears in the
	// output without any of the required keywords.
	CheckConditionalKeywords CheckKind = "conditional-keywords"
	// CheckMinLength fails unless the output is longer than Min bytes.
	CheckMinLength CheckKind = "min-length"
	// CheckMinWords fails unless the output has more than Min words.
	CheckMinWords CheckKind = "min-words"
	// CheckTraceMarker fails unless the reasoning trace (or, lacking one,
	// the output itself) carries a step/reason marker.
	CheckTraceMarker CheckKind = "trace-marker"
	// CheckAlwaysPass never fails. Reserved slots use it.
	CheckAlwaysPass CheckKind = "always-pass"
)

// Context carries the surrounding inference a rule may inspect.
type Context struct {
	Prompt string
	Trace  []types.LogicStep
}

// RuleSpec is a declarative validation rule.
type RuleSpec struct {
	Check    string    `json:"check"`
	Kind     CheckKind `json:"kind"`
	Severity Severity  `json:"severity"`

	// Parameters, interpreted per Kind.
	Keywords []string `json:"keywords,omitempty"`
	Triggers []string `json:"triggers,omitempty"`
	Min      int      `json:"min,omitempty"`
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Evaluate interprets the rule against the output. A false return means
// the rule failed; an error means the rule itself could not be evaluated,
// which callers must treat as a failure (fail-closed).
func (r *RuleSpec) Evaluate(output string, ctx Context) (bool, error) {
	lower := strings.ToLower(output)
	switch r.Kind {
	case CheckKeywordsAbsent:
		return !containsAny(lower, r.Keywords), nil
	case CheckConditionalKeywords:
		if !containsAny(lower, r.Triggers) {
			return true, nil
		}
		return containsAny(lower, r.Keywords), nil
	case CheckMinLength:
		return len(output) > r.Min, nil
	case CheckMinWords:
		return len(strings.Fields(output)) > r.Min, nil
	case CheckTraceMarker:
		for _, step := range ctx.Trace {
			if step.Reasoning != "" || step.Description != "" {
				return true, nil
			}
		}
		return strings.Contains(lower, "step") || strings.Contains(lower, "because"), nil
	case CheckAlwaysPass:
		return true, nil
	default:
		return false, fmt.Errorf("unknown check kind %q", r.Kind)
	}
}
