// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verdict runs validation against disputed evidence and drives
// verdict submission and settlement.
package verdict

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/arbiter/ledger"
	"github.com/luxfi/arbiter/pouw"
	"github.com/luxfi/arbiter/store"
	"github.com/luxfi/arbiter/types"
	"github.com/luxfi/arbiter/utils/timer/mockable"
)

// Config tunes the orchestrator.
type Config struct {
	// SettlementDelay is the window registered with the scheduler when a
	// verdict is submitted for a dispute the queue is not yet tracking.
	SettlementDelay time.Duration `json:"settlementDelay"`
}

// DefaultConfig returns the default verdict configuration.
func DefaultConfig() Config {
	return Config{SettlementDelay: time.Hour}
}

// Scheduler registers disputes for settlement. AddDispute is idempotent,
// so re-registering a dispute the challenge path already scheduled is
// harmless.
type Scheduler interface {
	AddDispute(id ids.ID, windowDuration time.Duration)
}

// Judgment is the outcome of verdict generation.
type Judgment struct {
	Verdict    types.Verdict `json:"verdict"`
	Reasoning  string        `json:"reasoning"`
	Confidence float64       `json:"confidence"`
}

// SubmitResult is the structured outcome of a verdict submission or
// settlement. Errors are folded into Reason.
type SubmitResult struct {
	Success bool   `json:"success"`
	TxRef   ids.ID `json:"txRef,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// record is the verdict document pinned to the evidence store.
type record struct {
	DisputeID ids.ID    `json:"disputeId"`
	Verdict   string    `json:"verdict"`
	Reasoning string    `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
}

// Orchestrator generates, submits and settles verdicts.
type Orchestrator struct {
	log       log.Logger
	cfg       Config
	validator *pouw.Validator
	ledger    ledger.Client
	store     store.Store
	scheduler Scheduler
	clock     *mockable.Clock
	metrics   *verdictMetrics
}

// New wires a verdict orchestrator.
func New(
	logger log.Logger,
	cfg Config,
	validator *pouw.Validator,
	ledgerClient ledger.Client,
	evidenceStore store.Store,
	scheduler Scheduler,
	registerer metric.Registerer,
) (*Orchestrator, error) {
	if cfg.SettlementDelay <= 0 {
		cfg.SettlementDelay = DefaultConfig().SettlementDelay
	}
	metrics, err := newVerdictMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		log:       logger,
		cfg:       cfg,
		validator: validator,
		ledger:    ledgerClient,
		store:     evidenceStore,
		scheduler: scheduler,
		clock:     &mockable.Clock{},
		metrics:   metrics,
	}, nil
}

// GenerateVerdict scores the disputed output against the policy
// validator. The miner is correct iff the proof is valid.
func (o *Orchestrator) GenerateVerdict(disputeID ids.ID, evidence *types.EvidenceBundle, minerOutput string) (Judgment, error) {
	proof, err := o.validator.ValidateOutput(minerOutput, pouw.Context{
		Prompt: evidence.PromptHash,
		Trace:  evidence.LogicTrace,
	})
	if err != nil {
		return Judgment{}, fmt.Errorf("validation failed for dispute %s: %w", disputeID, err)
	}

	v := types.VerdictMinerWrong
	if proof.IsValid {
		v = types.VerdictMinerCorrect
	}
	o.log.Info("verdict generated",
		"disputeID", disputeID,
		"verdict", v,
		"confidence", proof.OverallScore,
	)
	return Judgment{
		Verdict:    v,
		Reasoning:  proof.Reasoning,
		Confidence: proof.OverallScore,
	}, nil
}

// SubmitVerdict pins the verdict record, submits it to the ledger and,
// on success, schedules settlement. A ledger failure is returned without
// partial-state cleanup; the pinned record is content-addressed and
// harmless to resubmit.
func (o *Orchestrator) SubmitVerdict(ctx context.Context, disputeID ids.ID, verdict types.Verdict, reasoning string) SubmitResult {
	raw, err := json.Marshal(record{
		DisputeID: disputeID,
		Verdict:   verdict.String(),
		Reasoning: reasoning,
		Timestamp: o.clock.Time(),
	})
	if err != nil {
		return SubmitResult{Reason: fmt.Sprintf("failed to encode verdict record: %s", err)}
	}
	ref, err := o.store.Pin(ctx, raw)
	if err != nil {
		return SubmitResult{Reason: fmt.Sprintf("failed to pin verdict record: %s", err)}
	}

	txRef, err := o.ledger.SubmitVerdict(ctx, disputeID, verdict, ref)
	if err != nil {
		return SubmitResult{Reason: fmt.Sprintf("ledger rejected verdict: %s", err)}
	}

	o.scheduler.AddDispute(disputeID, o.cfg.SettlementDelay)
	o.metrics.submitted.Inc()
	o.log.Info("verdict submitted",
		"disputeID", disputeID,
		"verdict", verdict,
		"txRef", txRef,
		"evidenceRef", ref.String(),
	)
	return SubmitResult{Success: true, TxRef: txRef}
}

// ExecuteFullWorkflow chains verdict generation and submission. A failed
// submission aborts with a descriptive result; generation is not retried.
func (o *Orchestrator) ExecuteFullWorkflow(ctx context.Context, disputeID ids.ID, evidence *types.EvidenceBundle) SubmitResult {
	judgment, err := o.GenerateVerdict(disputeID, evidence, evidence.MinerResult)
	if err != nil {
		return SubmitResult{Reason: err.Error()}
	}
	result := o.SubmitVerdict(ctx, disputeID, judgment.Verdict, judgment.Reasoning)
	if !result.Success {
		result.Reason = fmt.Sprintf("verdict %s generated but not submitted: %s", judgment.Verdict, result.Reason)
	}
	return result
}

// SettleDispute invokes the ledger's settlement entrypoint, which
// executes the reward/slash transfer. Idempotency is assumed on the
// ledger side, not enforced here.
func (o *Orchestrator) SettleDispute(ctx context.Context, disputeID ids.ID) SubmitResult {
	txRef, err := o.ledger.SettleDispute(ctx, disputeID)
	if err != nil {
		return SubmitResult{Reason: fmt.Sprintf("settlement failed: %s", err)}
	}
	o.metrics.settled.Inc()
	o.log.Info("dispute settled on ledger",
		"disputeID", disputeID,
		"txRef", txRef,
	)
	return SubmitResult{Success: true, TxRef: txRef}
}
