// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verdict

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/arbiter/ledger"
	"github.com/luxfi/arbiter/pouw"
	"github.com/luxfi/arbiter/store"
	"github.com/luxfi/arbiter/types"
)

// schedulerRecorder captures AddDispute calls.
type schedulerRecorder struct {
	added   []ids.ID
	windows []time.Duration
}

func (s *schedulerRecorder) AddDispute(id ids.ID, window time.Duration) {
	s.added = append(s.added, id)
	s.windows = append(s.windows, window)
}

type testHarness struct {
	orchestrator *Orchestrator
	ledger       *ledger.Memory
	store        store.Store
	scheduler    *schedulerRecorder
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		ledger:    ledger.NewMemory(),
		store:     store.NewMemory(),
		scheduler: &schedulerRecorder{},
	}
	validator := pouw.NewValidator(log.NoLog{}, nil)
	var err error
	h.orchestrator, err = New(log.NoLog{}, DefaultConfig(), validator, h.ledger, h.store, h.scheduler, nil)
	require.NoError(t, err)
	return h
}

// testEvidence builds a structurally valid bundle whose trace carries no
// step markers, so validity hinges entirely on the disputed output.
func testEvidence(result string) *types.EvidenceBundle {
	return &types.EvidenceBundle{
		PromptHash:  "what is the capital of france",
		MinerResult: result,
		LogicTrace:  []types.LogicStep{{Step: 1, Confidence: 0.8}},
		PoIHash:     "poi-3",
		ModelID:     "m-3",
		Miner:       "lux1minerminerminerminer",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Signature:   "sig-3",
	}
}

// openDispute seeds the ledger with a challenged dispute over evidence.
func (h *testHarness) openDispute(t *testing.T, evidence *types.EvidenceBundle) ids.ID {
	t.Helper()
	disputeID, err := h.ledger.InitiateChallenge(context.Background(), evidence, "lux1challengerchallenger", 100)
	require.NoError(t, err)
	return disputeID
}

func TestGenerateVerdictMapsValidity(t *testing.T) {
	require := require.New(t)

	h := newTestHarness(t)
	disputeID := ids.GenerateTestID()

	good := testEvidence("the capital of france is paris, because it has been the seat of government for centuries")
	judgment, err := h.orchestrator.GenerateVerdict(disputeID, good, good.MinerResult)
	require.NoError(err)
	require.Equal(types.VerdictMinerCorrect, judgment.Verdict)
	require.InDelta(1, judgment.Confidence, 1e-9)
	require.Contains(judgment.Reasoning, "passed")

	bad := testEvidence("bad")
	judgment, err = h.orchestrator.GenerateVerdict(disputeID, bad, bad.MinerResult)
	require.NoError(err)
	require.Equal(types.VerdictMinerWrong, judgment.Verdict)
	require.Contains(judgment.Reasoning, "accuracy")
}

func TestSubmitVerdict(t *testing.T) {
	require := require.New(t)

	h := newTestHarness(t)
	evidence := testEvidence("an answer under dispute")
	disputeID := h.openDispute(t, evidence)

	result := h.orchestrator.SubmitVerdict(context.Background(), disputeID, types.VerdictMinerWrong, "diverged from consensus")
	require.True(result.Success)
	require.NotZero(result.TxRef)

	record, err := h.ledger.GetDispute(context.Background(), disputeID)
	require.NoError(err)
	require.Equal(types.StatusVerdictReached, record.Status)
	require.Equal(types.VerdictMinerWrong, record.Verdict)

	// Settlement is scheduled with the configured delay.
	require.Equal([]ids.ID{disputeID}, h.scheduler.added)
	require.Equal([]time.Duration{DefaultConfig().SettlementDelay}, h.scheduler.windows)
}

func TestSubmitVerdictUnknownDispute(t *testing.T) {
	require := require.New(t)

	h := newTestHarness(t)
	result := h.orchestrator.SubmitVerdict(context.Background(), ids.GenerateTestID(), types.VerdictMinerWrong, "nope")
	require.False(result.Success)
	require.Contains(result.Reason, "ledger rejected verdict")
	require.Empty(h.scheduler.added)
}

func TestExecuteFullWorkflow(t *testing.T) {
	require := require.New(t)

	h := newTestHarness(t)
	evidence := testEvidence("bad")
	disputeID := h.openDispute(t, evidence)

	result := h.orchestrator.ExecuteFullWorkflow(context.Background(), disputeID, evidence)
	require.True(result.Success)

	record, err := h.ledger.GetDispute(context.Background(), disputeID)
	require.NoError(err)
	require.Equal(types.VerdictMinerWrong, record.Verdict)
}

func TestExecuteFullWorkflowAbortsOnLedgerFailure(t *testing.T) {
	require := require.New(t)

	h := newTestHarness(t)
	evidence := testEvidence("bad")

	// No dispute opened on the ledger: the verdict generates but cannot be
	// submitted, and the result says which verdict was lost.
	result := h.orchestrator.ExecuteFullWorkflow(context.Background(), ids.GenerateTestID(), evidence)
	require.False(result.Success)
	require.Contains(result.Reason, "verdict MINER_WRONG generated but not submitted")
}

func TestSettleDispute(t *testing.T) {
	require := require.New(t)

	h := newTestHarness(t)
	evidence := testEvidence("an answer under dispute")
	disputeID := h.openDispute(t, evidence)

	// Cannot settle before a verdict.
	result := h.orchestrator.SettleDispute(context.Background(), disputeID)
	require.False(result.Success)
	require.Contains(result.Reason, "settlement failed")

	h.orchestrator.SubmitVerdict(context.Background(), disputeID, types.VerdictMinerWrong, "diverged")
	result = h.orchestrator.SettleDispute(context.Background(), disputeID)
	require.True(result.Success)

	record, err := h.ledger.GetDispute(context.Background(), disputeID)
	require.NoError(err)
	require.Equal(types.StatusSettled, record.Status)
}
