// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arbiter adjudicates disputes over outputs produced by miners in
// a decentralized inference network. It wires the similarity engine,
// consensus builder, policy validator, orchestrators and the dispute
// lifecycle queue into one explicitly constructed composition root; the
// HTTP layer above it consumes the facade methods and never sees an
// internal error escape as a panic.
package arbiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/version"

	"github.com/luxfi/arbiter/challenge"
	"github.com/luxfi/arbiter/consensus"
	"github.com/luxfi/arbiter/inference"
	"github.com/luxfi/arbiter/ledger"
	"github.com/luxfi/arbiter/pouw"
	"github.com/luxfi/arbiter/scheduler"
	"github.com/luxfi/arbiter/similarity"
	"github.com/luxfi/arbiter/store"
	"github.com/luxfi/arbiter/types"
	"github.com/luxfi/arbiter/utils/wrappers"
	"github.com/luxfi/arbiter/verdict"
)

// Version is the arbiter module version.
var Version = &version.Semantic{
	Major: 1,
	Minor: 0,
	Patch: 0,
}

// Arbiter is the dispute lifecycle and consensus-validation engine.
type Arbiter struct {
	log log.Logger
	cfg Config

	ledger  ledger.Client
	store   store.Store
	network inference.Client

	similarity *similarity.Engine
	consensus  *consensus.Builder
	validator  *pouw.Validator
	challenges *challenge.Orchestrator
	verdicts   *verdict.Orchestrator
	queue      *scheduler.Queue

	running bool
}

// New constructs an arbiter. Every collaborator is injected so tests can
// substitute fakes without process-wide state; db is only consulted when
// cfg.StoreKind selects the database-backed evidence store.
func New(
	cfg Config,
	logger log.Logger,
	registerer metric.Registerer,
	ledgerClient ledger.Client,
	network inference.Client,
	db database.Database,
) (*Arbiter, error) {
	evidenceStore, err := store.New(cfg.StoreKind, db)
	if err != nil {
		return nil, fmt.Errorf("failed to build evidence store: %w", err)
	}

	engine := similarity.New(logger, nil, cfg.EmbeddingCacheSize)
	validator := pouw.NewValidator(logger, network)
	builder := consensus.NewBuilder(logger, cfg.Consensus, engine, network)

	queue, err := scheduler.New(logger, cfg.Scheduler, registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to build dispute queue: %w", err)
	}

	errs := wrappers.Errs{}
	challenges, err := challenge.New(logger, cfg.Challenge, ledgerClient, evidenceStore, network, engine, queue, registerer)
	errs.Add(err)
	verdicts, err := verdict.New(logger, cfg.Verdict, validator, ledgerClient, evidenceStore, queue, registerer)
	errs.Add(err)
	if errs.Errored() {
		return nil, errs.Err
	}

	return &Arbiter{
		log:        logger,
		cfg:        cfg,
		ledger:     ledgerClient,
		store:      evidenceStore,
		network:    network,
		similarity: engine,
		consensus:  builder,
		validator:  validator,
		challenges: challenges,
		verdicts:   verdicts,
		queue:      queue,
	}, nil
}

// Start begins monitoring challenge windows. Settlement runs through the
// verdict orchestrator; the handler is idempotent because ledger
// settlement is.
func (a *Arbiter) Start(ctx context.Context) error {
	err := a.queue.Start(ctx, func(ctx context.Context, disputeID ids.ID) error {
		res := a.verdicts.SettleDispute(ctx, disputeID)
		if !res.Success {
			return errors.New(res.Reason)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.running = true
	a.log.Info("arbiter started",
		"version", Version,
		"storeKind", string(a.cfg.StoreKind),
		"challengeWindow", a.cfg.Challenge.ChallengeWindow,
	)
	return nil
}

// Shutdown stops the dispute queue. Open disputes remain on the ledger;
// their windows must be re-registered on restart.
func (a *Arbiter) Shutdown() {
	if !a.running {
		return
	}
	a.running = false
	a.queue.Stop()
	a.log.Info("arbiter stopped")
}

// Queue exposes the dispute lifecycle queue for hook registration.
func (a *Arbiter) Queue() *scheduler.Queue {
	return a.queue
}

// Validator exposes the policy validator registry.
func (a *Arbiter) Validator() *pouw.Validator {
	return a.validator
}

// InitiateChallenge opens a dispute over evidence with an explicit bond.
func (a *Arbiter) InitiateChallenge(ctx context.Context, evidence *types.EvidenceBundle, bond uint64) challenge.Result {
	return a.challenges.InitiateChallenge(ctx, evidence, bond)
}

// MonitorForSuspiciousOutputs sweeps fresh miner outputs for divergence.
func (a *Arbiter) MonitorForSuspiciousOutputs(ctx context.Context, prompt string, threshold float64) (challenge.MonitorReport, error) {
	return a.challenges.MonitorForSuspiciousOutputs(ctx, prompt, threshold)
}

// AutoChallengeIfSuspicious opens a risk-priced dispute when the monitor
// flags divergent miners.
func (a *Arbiter) AutoChallengeIfSuspicious(ctx context.Context, evidence *types.EvidenceBundle) challenge.AutoResult {
	return a.challenges.AutoChallengeIfSuspicious(ctx, evidence, a.cfg.Challenge.MinBond, a.cfg.Challenge.MaxBond)
}

// GenerateVerdict scores a disputed output.
func (a *Arbiter) GenerateVerdict(disputeID ids.ID, evidence *types.EvidenceBundle, minerOutput string) (verdict.Judgment, error) {
	return a.verdicts.GenerateVerdict(disputeID, evidence, minerOutput)
}

// SubmitVerdict records a verdict on the ledger and schedules settlement.
func (a *Arbiter) SubmitVerdict(ctx context.Context, disputeID ids.ID, v types.Verdict, reasoning string) verdict.SubmitResult {
	return a.verdicts.SubmitVerdict(ctx, disputeID, v, reasoning)
}

// ExecuteFullVerdictWorkflow generates and submits a verdict in one step.
func (a *Arbiter) ExecuteFullVerdictWorkflow(ctx context.Context, disputeID ids.ID, evidence *types.EvidenceBundle) verdict.SubmitResult {
	return a.verdicts.ExecuteFullWorkflow(ctx, disputeID, evidence)
}

// SettleDispute triggers the ledger's reward/slash transfer.
func (a *Arbiter) SettleDispute(ctx context.Context, disputeID ids.ID) verdict.SubmitResult {
	return a.verdicts.SettleDispute(ctx, disputeID)
}

// BuildConsensus aggregates a miner response set into one answer.
func (a *Arbiter) BuildConsensus(ctx context.Context, responses []types.MinerResponse) (types.ConsensusResult, error) {
	return a.consensus.Build(ctx, responses)
}

// ValidateOutput scores an output against the policy registry.
func (a *Arbiter) ValidateOutput(output string, vctx pouw.Context) (*pouw.Proof, error) {
	return a.validator.ValidateOutput(output, vctx)
}

// GetDispute returns the ledger's record for a dispute.
func (a *Arbiter) GetDispute(ctx context.Context, disputeID ids.ID) (*types.DisputeRecord, error) {
	return a.ledger.GetDispute(ctx, disputeID)
}

// GetMinerTrustScore returns a miner's ledger trust score.
func (a *Arbiter) GetMinerTrustScore(ctx context.Context, miner string) (float64, error) {
	return a.ledger.GetMinerTrustScore(ctx, miner)
}
