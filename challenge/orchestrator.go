// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package challenge decides whether to dispute a miner's output, sizes
// the economic bond, and initiates the dispute on the ledger.
package challenge

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	safemath "github.com/luxfi/math"
	"github.com/luxfi/metric"

	"github.com/luxfi/arbiter/inference"
	"github.com/luxfi/arbiter/ledger"
	"github.com/luxfi/arbiter/similarity"
	"github.com/luxfi/arbiter/store"
	"github.com/luxfi/arbiter/types"
)

// DefaultChallengeWindow is how long a dispute stays open before
// settlement fires.
const DefaultChallengeWindow = 24 * time.Hour

// Config tunes the orchestrator.
type Config struct {
	// Challenger is the address staking bonds for disputes this process
	// initiates.
	Challenger string `json:"challenger"`
	// ChallengeWindow is the settlement delay registered with the queue.
	ChallengeWindow time.Duration `json:"challengeWindow"`
	// MinBond and MaxBond bound the stake sized by perceived risk.
	MinBond uint64 `json:"minBond"`
	MaxBond uint64 `json:"maxBond"`
}

// DefaultConfig returns the default challenge configuration.
func DefaultConfig() Config {
	return Config{
		ChallengeWindow: DefaultChallengeWindow,
		MinBond:         100,
		MaxBond:         1000,
	}
}

// Scheduler registers disputes for settlement once their challenge
// window elapses.
type Scheduler interface {
	AddDispute(id ids.ID, windowDuration time.Duration)
}

// Result is the structured outcome of a challenge initiation. Errors are
// folded into Reason; nothing escapes the orchestration boundary.
type Result struct {
	DisputeID ids.ID `json:"disputeId"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
}

// MonitorReport summarizes a suspicion sweep over fresh miner outputs.
type MonitorReport struct {
	Suspicious     bool     `json:"isSuspicious"`
	OutlierMiners  []string `json:"outlierMiners,omitempty"`
	ConsensusScore float64  `json:"consensusScore"`
}

// AutoResult is the outcome of an auto-challenge sweep. Challenged is
// false when no suspicious divergence was found and no dispute opened.
type AutoResult struct {
	Challenged bool          `json:"challenged"`
	Bond       uint64        `json:"bond,omitempty"`
	Report     MonitorReport `json:"report"`
	Result     Result        `json:"result"`
}

// Orchestrator drives dispute initiation.
type Orchestrator struct {
	log        log.Logger
	cfg        Config
	ledger     ledger.Client
	store      store.Store
	network    inference.Client
	similarity *similarity.Engine
	scheduler  Scheduler
	metrics    *challengeMetrics
}

// New wires a challenge orchestrator. Every collaborator is injected;
// there is no process-wide state.
func New(
	logger log.Logger,
	cfg Config,
	ledgerClient ledger.Client,
	evidenceStore store.Store,
	network inference.Client,
	engine *similarity.Engine,
	scheduler Scheduler,
	registerer metric.Registerer,
) (*Orchestrator, error) {
	if cfg.ChallengeWindow <= 0 {
		cfg.ChallengeWindow = DefaultChallengeWindow
	}
	metrics, err := newChallengeMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		log:        logger,
		cfg:        cfg,
		ledger:     ledgerClient,
		store:      evidenceStore,
		network:    network,
		similarity: engine,
		scheduler:  scheduler,
		metrics:    metrics,
	}, nil
}

// InitiateChallenge validates the bundle, pins it to the evidence store,
// opens the dispute on the ledger and registers the challenge window.
// Structural validation failures are rejected locally before any network
// call; later step failures are surfaced without retry — the caller owns
// retry policy.
func (o *Orchestrator) InitiateChallenge(ctx context.Context, evidence *types.EvidenceBundle, bond uint64) Result {
	if err := evidence.Verify(); err != nil {
		return Result{Reason: err.Error()}
	}

	raw, err := evidence.Bytes()
	if err != nil {
		return Result{Reason: fmt.Sprintf("failed to encode evidence: %s", err)}
	}
	ref, err := o.store.Pin(ctx, raw)
	if err != nil {
		return Result{Reason: fmt.Sprintf("failed to pin evidence: %s", err)}
	}

	// Completes bundle construction; the bundle is immutable afterwards.
	pinned := *evidence
	pinned.ContentHash = ref.String()

	disputeID, err := o.ledger.InitiateChallenge(ctx, &pinned, o.cfg.Challenger, bond)
	if err != nil {
		return Result{Reason: fmt.Sprintf("ledger rejected challenge: %s", err)}
	}

	o.scheduler.AddDispute(disputeID, o.cfg.ChallengeWindow)
	o.metrics.initiated.Inc()
	o.log.Info("challenge initiated",
		"disputeID", disputeID,
		"miner", evidence.Miner,
		"bond", bond,
		"contentRef", pinned.ContentHash,
	)
	return Result{DisputeID: disputeID, Success: true}
}

// MonitorForSuspiciousOutputs runs the prompt through the network's
// validate endpoint and flags the response set as suspicious iff outlier
// detection finds divergent miners.
func (o *Orchestrator) MonitorForSuspiciousOutputs(ctx context.Context, prompt string, threshold float64) (MonitorReport, error) {
	res, err := o.network.ValidateInference(ctx, inference.Request{Prompt: prompt})
	if err != nil {
		return MonitorReport{}, fmt.Errorf("network validation failed: %w", err)
	}

	outputs := make(map[string]string, len(res.Results))
	for _, r := range res.Results {
		outputs[r.MinerID] = r.Output
	}
	report := o.similarity.DetectOutliers(outputs, threshold)
	if len(report.Outliers) > 0 {
		o.metrics.outliersFlagged.Add(float64(len(report.Outliers)))
	}
	return MonitorReport{
		Suspicious:     len(report.Outliers) > 0,
		OutlierMiners:  report.Outliers,
		ConsensusScore: res.ConsensusScore,
	}, nil
}

// AutoChallengeIfSuspicious monitors the prompt and opens a dispute with
// a risk-sized bond when divergent miners are found.
func (o *Orchestrator) AutoChallengeIfSuspicious(ctx context.Context, evidence *types.EvidenceBundle, minBond, maxBond uint64) AutoResult {
	report, err := o.MonitorForSuspiciousOutputs(ctx, evidence.PromptHash, 0)
	if err != nil {
		return AutoResult{Result: Result{Reason: err.Error()}}
	}
	if !report.Suspicious {
		return AutoResult{Report: report}
	}

	bond, err := ComputeBond(minBond, maxBond, report.ConsensusScore)
	if err != nil {
		return AutoResult{Report: report, Result: Result{Reason: err.Error()}}
	}

	result := o.InitiateChallenge(ctx, evidence, bond)
	return AutoResult{
		Challenged: result.Success,
		Bond:       bond,
		Report:     report,
		Result:     result,
	}
}

// ComputeBond sizes the challenge stake by perceived risk:
//
//	bond = min + (max-min) * floor(risk*100) / 100, risk = 1 - consensusScore
//
// The whole-percent floor and integer arithmetic are deliberate: on-chain
// amounts must not drift with float rounding.
func ComputeBond(minBond, maxBond uint64, consensusScore float64) (uint64, error) {
	if maxBond < minBond {
		return 0, fmt.Errorf("max bond %d below min bond %d", maxBond, minBond)
	}
	risk := 1 - consensusScore
	if risk < 0 {
		risk = 0
	} else if risk > 1 {
		risk = 1
	}
	riskPct := uint64(math.Floor(risk * 100))

	span, err := safemath.Sub(maxBond, minBond)
	if err != nil {
		return 0, err
	}
	scaled, err := safemath.Mul64(span, riskPct)
	if err != nil {
		return 0, err
	}
	return safemath.Add64(minBond, scaled/100)
}
