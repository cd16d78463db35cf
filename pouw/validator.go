// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pouw scores miner outputs against weighted rule groups,
// producing proof-of-useful-work records with a validity verdict and
// human-readable reasoning.
package pouw

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/arbiter/inference"
	"github.com/luxfi/arbiter/utils/timer/mockable"
)

const (
	// ValidThreshold is the overall score at or above which an output is
	// considered valid.
	ValidThreshold = 0.70

	// NetworkValidThreshold is the stricter cutoff applied when validity
	// is delegated to the network's own validator consensus.
	NetworkValidThreshold = 0.80
)

var (
	ErrNoPolicies      = errors.New("no validation policies registered")
	ErrUnknownPolicy   = errors.New("unknown policy")
	ErrNoNetworkClient = errors.New("no inference network client configured")
)

// PolicyResult is one policy's contribution to a proof.
type PolicyResult struct {
	Policy       string   `json:"policy"`
	Score        float64  `json:"score"`
	Passed       bool     `json:"passed"`
	FailedChecks []string `json:"failedChecks,omitempty"`
}

// Proof is the validator's output for a single request. It is derived,
// never stored as source of truth, and recomputed per validation.
type Proof struct {
	ID            ids.ID         `json:"id"`
	Output        string         `json:"output"`
	IsValid       bool           `json:"isValid"`
	PolicyResults []PolicyResult `json:"policyResults"`
	OverallScore  float64        `json:"overallScore"`
	Reasoning     string         `json:"reasoning"`
	Timestamp     time.Time      `json:"timestamp"`
	Signature     string         `json:"signature"`
}

// Validator holds a mutable policy registry and scores outputs against
// it. Construct one per composition root; there is no process-wide
// instance.
type Validator struct {
	log     log.Logger
	clock   *mockable.Clock
	network inference.Client

	mu       sync.RWMutex
	policies []Policy
}

// NewValidator returns a validator carrying the default policy set.
// network may be nil if ValidateWithNetwork is never used.
func NewValidator(logger log.Logger, network inference.Client) *Validator {
	return &Validator{
		log:      logger,
		clock:    &mockable.Clock{},
		network:  network,
		policies: DefaultPolicies(),
	}
}

// AddPolicy registers a custom policy, replacing any policy of the same
// name.
func (v *Validator) AddPolicy(p Policy) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.policies {
		if v.policies[i].Name == p.Name {
			v.policies[i] = p
			return
		}
	}
	v.policies = append(v.policies, p)
}

// RemovePolicy drops a policy from the registry.
func (v *Validator) RemovePolicy(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.policies {
		if v.policies[i].Name == name {
			v.policies = append(v.policies[:i], v.policies[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
}

// Policies returns the registered policy names in evaluation order.
func (v *Validator) Policies() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, len(v.policies))
	for i, p := range v.policies {
		names[i] = p.Name
	}
	return names
}

// ValidateOutput scores output against every registered policy. Each
// policy starts at 1.0 and loses a severity-scaled penalty per failing
// rule, clamped to [0,1]; the overall score is the weight-normalized sum.
// A rule whose evaluation errors counts as a failure and does not abort
// the remaining rules or policies.
func (v *Validator) ValidateOutput(output string, vctx Context) (*Proof, error) {
	v.mu.RLock()
	policies := make([]Policy, len(v.policies))
	copy(policies, v.policies)
	v.mu.RUnlock()

	if len(policies) == 0 {
		return nil, ErrNoPolicies
	}

	var (
		results     = make([]PolicyResult, 0, len(policies))
		totalWeight float64
		weighted    float64
		passed      []string
		failed      []string
	)
	for _, policy := range policies {
		res := v.evaluatePolicy(policy, output, vctx)
		results = append(results, res)
		totalWeight += policy.Weight
		weighted += res.Score * policy.Weight
		if res.Passed {
			passed = append(passed, policy.Name)
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", policy.Name, strings.Join(res.FailedChecks, ", ")))
		}
	}

	overall := weighted / totalWeight
	proof := &Proof{
		Output:        output,
		IsValid:       overall >= ValidThreshold,
		PolicyResults: results,
		OverallScore:  overall,
		Reasoning:     buildReasoning(passed, failed),
		Timestamp:     v.clock.Time(),
	}
	if err := v.seal(proof); err != nil {
		return nil, err
	}

	v.log.Debug("output validated",
		"proofID", proof.ID,
		"overallScore", overall,
		"isValid", proof.IsValid,
	)
	return proof, nil
}

// ValidateWithNetwork delegates validity to the inference network's own
// multi-validator consensus and maps the result into the same proof
// shape, with the stricter network cutoff.
func (v *Validator) ValidateWithNetwork(ctx context.Context, prompt, output string) (*Proof, error) {
	if v.network == nil {
		return nil, ErrNoNetworkClient
	}
	res, err := v.network.ValidateInference(ctx, inference.Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("network validation failed: %w", err)
	}

	overall := res.ConsensusScore * res.AverageConfidence
	proof := &Proof{
		Output:       output,
		IsValid:      overall >= NetworkValidThreshold,
		OverallScore: overall,
		PolicyResults: []PolicyResult{{
			Policy: "network-consensus",
			Score:  overall,
			Passed: overall >= NetworkValidThreshold,
		}},
		Reasoning: fmt.Sprintf(
			"network consensus %.2f with average confidence %.2f across %d validators",
			res.ConsensusScore, res.AverageConfidence, len(res.Results),
		),
		Timestamp: v.clock.Time(),
	}
	if err := v.seal(proof); err != nil {
		return nil, err
	}
	return proof, nil
}

func (v *Validator) evaluatePolicy(policy Policy, output string, vctx Context) PolicyResult {
	res := PolicyResult{Policy: policy.Name, Score: 1}
	for i := range policy.Rules {
		rule := &policy.Rules[i]
		ok, err := rule.Evaluate(output, vctx)
		if err != nil {
			// Fail closed: an unevaluable rule counts against the output.
			v.log.Warn("rule evaluation errored",
				"policy", policy.Name,
				"check", rule.Check,
				"error", err,
			)
			ok = false
		}
		if !ok {
			res.Score -= rule.Severity.Penalty()
			res.FailedChecks = append(res.FailedChecks, rule.Check)
		}
	}
	if res.Score < 0 {
		res.Score = 0
	} else if res.Score > 1 {
		res.Score = 1
	}
	res.Passed = len(res.FailedChecks) == 0
	return res
}

// seal derives the proof's ID and signature from its content.
func (v *Validator) seal(proof *Proof) error {
	body := fmt.Sprintf("%s|%.6f|%d", proof.Output, proof.OverallScore, proof.Timestamp.UnixNano())
	id, err := ids.ToID(sha256Bytes(body))
	if err != nil {
		return fmt.Errorf("failed to derive proof id: %w", err)
	}
	proof.ID = id
	proof.Signature = hex.EncodeToString(sha256Bytes(id.String() + "|" + body))
	return nil
}

func sha256Bytes(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func buildReasoning(passed, failed []string) string {
	var b strings.Builder
	if len(passed) > 0 {
		b.WriteString("passed: ")
		b.WriteString(strings.Join(passed, ", "))
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString("failed: ")
		b.WriteString(strings.Join(failed, "; "))
	}
	if b.Len() == 0 {
		return "no policies evaluated"
	}
	return b.String()
}
