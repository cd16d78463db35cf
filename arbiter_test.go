// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arbiter

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/arbiter/inference"
	"github.com/luxfi/arbiter/ledger"
	"github.com/luxfi/arbiter/types"
)

// testEvidence builds a valid bundle over a disputed output that fails
// every accuracy check, so the generated verdict finds the miner wrong.
func testEvidence() *types.EvidenceBundle {
	return &types.EvidenceBundle{
		PromptHash:  "what is the capital of france",
		MinerResult: "bad",
		LogicTrace:  []types.LogicStep{{Step: 1, Confidence: 0.4}},
		PoIHash:     "poi-1",
		ModelID:     "m-1",
		Miner:       "lux1minerminerminerminer",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Signature:   "sig-1",
	}
}

func newTestArbiter(t *testing.T, ledgerClient ledger.Client) *Arbiter {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Challenge.Challenger = "lux1challengerchallenger"
	cfg.Challenge.ChallengeWindow = 20 * time.Millisecond
	cfg.Verdict.SettlementDelay = 20 * time.Millisecond
	cfg.Scheduler.RetryInterval = 20 * time.Millisecond

	a, err := New(cfg, log.NoLog{}, metric.NewRegistry(), ledgerClient, inference.NewStatic(nil, nil), memdb.New())
	require.NoError(t, err)
	return a
}

func TestDisputeLifecycleEndToEnd(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ledgerClient := ledger.NewMemory()
	ledgerClient.SetTrustScore("lux1minerminerminerminer", 0.8)
	a := newTestArbiter(t, ledgerClient)

	require.NoError(a.Start(ctx))
	defer a.Shutdown()

	evidence := testEvidence()
	result := a.InitiateChallenge(ctx, evidence, 100)
	require.True(result.Success, result.Reason)

	record, err := a.GetDispute(ctx, result.DisputeID)
	require.NoError(err)
	require.Equal(types.StatusChallenged, record.Status)

	// The disputed output fails the accuracy policy, so the workflow
	// finds the miner wrong.
	submit := a.ExecuteFullVerdictWorkflow(ctx, result.DisputeID, evidence)
	require.True(submit.Success, submit.Reason)

	// Once the challenge window elapses, the queue settles on the ledger.
	require.Eventually(func() bool {
		record, err := a.GetDispute(ctx, result.DisputeID)
		return err == nil && record.Status == types.StatusSettled
	}, 5*time.Second, 10*time.Millisecond)

	// Settlement slashed the miner and rewarded the challenger.
	minerScore, err := a.GetMinerTrustScore(ctx, "lux1minerminerminerminer")
	require.NoError(err)
	require.InDelta(0.7, minerScore, 1e-9)
	challengerScore, err := a.GetMinerTrustScore(ctx, "lux1challengerchallenger")
	require.NoError(err)
	require.InDelta(0.55, challengerScore, 1e-9)
}

func TestSettlementRetriesUntilVerdict(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ledgerClient := ledger.NewMemory()
	a := newTestArbiter(t, ledgerClient)

	require.NoError(a.Start(ctx))
	defer a.Shutdown()

	evidence := testEvidence()
	result := a.InitiateChallenge(ctx, evidence, 100)
	require.True(result.Success, result.Reason)

	// No verdict yet: the handler fails and the queue keeps retrying.
	time.Sleep(100 * time.Millisecond)
	record, err := a.GetDispute(ctx, result.DisputeID)
	require.NoError(err)
	require.Equal(types.StatusChallenged, record.Status)
	require.Equal(1, a.Queue().PendingCount())

	// The verdict unblocks the next retry.
	submit := a.SubmitVerdict(ctx, result.DisputeID, types.VerdictMinerWrong, "diverged from consensus")
	require.True(submit.Success, submit.Reason)
	require.Eventually(func() bool {
		record, err := a.GetDispute(ctx, result.DisputeID)
		return err == nil && record.Status == types.StatusSettled
	}, 5*time.Second, 10*time.Millisecond)
	require.Zero(a.Queue().PendingCount())
}

func TestBuildConsensusFacade(t *testing.T) {
	require := require.New(t)

	a := newTestArbiter(t, ledger.NewMemory())
	responses := []types.MinerResponse{
		{MinerID: "miner-a", Output: "paris", Confidence: 0.9},
		{MinerID: "miner-b", Output: "paris", Confidence: 0.85},
	}
	result, err := a.BuildConsensus(context.Background(), responses)
	require.NoError(err)
	require.Equal("paris", result.Answer)
	require.True(result.ConsensusReached)
}

func TestParseConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig(nil)
	require.NoError(err)
	require.Equal(DefaultConfig(), cfg)
}

func TestParseConfigOverlay(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig([]byte(`{
		"storeKind": "db",
		"challenger": "lux1overlayoverlayoverlay",
		"challengeWindow": "1h",
		"minBond": 50,
		"maxBond": 5000,
		"consensusThreshold": 0.9,
		"settlementDelay": "30m",
		"retryInterval": "5s"
	}`))
	require.NoError(err)
	require.Equal("db", string(cfg.StoreKind))
	require.Equal("lux1overlayoverlayoverlay", cfg.Challenge.Challenger)
	require.Equal(time.Hour, cfg.Challenge.ChallengeWindow)
	require.Equal(uint64(50), cfg.Challenge.MinBond)
	require.Equal(uint64(5000), cfg.Challenge.MaxBond)
	require.InDelta(0.9, cfg.Consensus.Threshold, 1e-9)
	require.Equal(30*time.Minute, cfg.Verdict.SettlementDelay)
	require.Equal(5*time.Second, cfg.Scheduler.RetryInterval)

	// Unspecified fields keep their defaults.
	require.Equal(DefaultConfig().EmbeddingCacheSize, cfg.EmbeddingCacheSize)

	_, err = ParseConfig([]byte(`{"challengeWindow": "soon"}`))
	require.ErrorContains(err, "invalid challengeWindow")

	_, err = ParseConfig([]byte(`not json`))
	require.Error(err)
}
