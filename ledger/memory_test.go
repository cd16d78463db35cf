// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/arbiter/store"
	"github.com/luxfi/arbiter/types"
)

const (
	testMiner      = "lux1minerminerminerminer"
	testChallenger = "lux1challengerchallenger"
)

func testEvidence() *types.EvidenceBundle {
	return &types.EvidenceBundle{
		PromptHash:  "0xprompt",
		MinerResult: "an output somebody disagrees with",
		LogicTrace:  []types.LogicStep{{Step: 1, Description: "guess", Reasoning: "vibes", Confidence: 0.2}},
		PoIHash:     "poi-9",
		ModelID:     "m-9",
		Miner:       testMiner,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Signature:   "sig-9",
	}
}

func testRef(t *testing.T) cid.Cid {
	t.Helper()
	ref, err := store.Ref([]byte("verdict record"))
	require.NoError(t, err)
	return ref
}

func TestMemoryLedgerLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	m.Clock().Set(time.Unix(1700000100, 0))

	disputeID, err := m.InitiateChallenge(ctx, testEvidence(), testChallenger, 500)
	require.NoError(err)
	require.NotZero(disputeID)

	record, err := m.GetDispute(ctx, disputeID)
	require.NoError(err)
	require.Equal(types.StatusChallenged, record.Status)
	require.Equal(uint64(500), record.Bond)
	require.Equal(testChallenger, record.Challenger)
	require.Equal(time.Unix(1700000100, 0), record.StartTime)

	txRef, err := m.SubmitVerdict(ctx, disputeID, types.VerdictMinerWrong, testRef(t))
	require.NoError(err)
	require.NotZero(txRef)

	record, err = m.GetDispute(ctx, disputeID)
	require.NoError(err)
	require.Equal(types.StatusVerdictReached, record.Status)
	require.Equal(types.VerdictMinerWrong, record.Verdict)

	settleTx, err := m.SettleDispute(ctx, disputeID)
	require.NoError(err)
	require.NotZero(settleTx)

	record, err = m.GetDispute(ctx, disputeID)
	require.NoError(err)
	require.Equal(types.StatusSettled, record.Status)
	require.False(record.SettlementTime.IsZero())
}

func TestMemoryLedgerSettleIdempotent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	disputeID, err := m.InitiateChallenge(ctx, testEvidence(), testChallenger, 100)
	require.NoError(err)
	_, err = m.SubmitVerdict(ctx, disputeID, types.VerdictMinerCorrect, testRef(t))
	require.NoError(err)

	tx1, err := m.SettleDispute(ctx, disputeID)
	require.NoError(err)
	tx2, err := m.SettleDispute(ctx, disputeID)
	require.NoError(err)
	require.Equal(tx1, tx2)
}

func TestMemoryLedgerTrustAdjustments(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	m.SetTrustScore(testMiner, 0.8)
	m.SetTrustScore(testChallenger, 0.5)

	disputeID, err := m.InitiateChallenge(ctx, testEvidence(), testChallenger, 100)
	require.NoError(err)
	_, err = m.SubmitVerdict(ctx, disputeID, types.VerdictMinerWrong, testRef(t))
	require.NoError(err)
	_, err = m.SettleDispute(ctx, disputeID)
	require.NoError(err)

	minerScore, err := m.GetMinerTrustScore(ctx, testMiner)
	require.NoError(err)
	require.InDelta(0.7, minerScore, 1e-9)

	challengerScore, err := m.GetMinerTrustScore(ctx, testChallenger)
	require.NoError(err)
	require.InDelta(0.55, challengerScore, 1e-9)
}

func TestMemoryLedgerBadTransitions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	disputeID, err := m.InitiateChallenge(ctx, testEvidence(), testChallenger, 100)
	require.NoError(err)

	// Cannot settle before a verdict.
	_, err = m.SettleDispute(ctx, disputeID)
	require.ErrorIs(err, ErrBadTransition)

	// Cannot submit a verdict twice.
	_, err = m.SubmitVerdict(ctx, disputeID, types.VerdictMinerWrong, testRef(t))
	require.NoError(err)
	_, err = m.SubmitVerdict(ctx, disputeID, types.VerdictMinerWrong, testRef(t))
	require.ErrorIs(err, ErrBadTransition)
}

func TestMemoryLedgerRejections(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()

	// Invalid evidence is rejected.
	bad := testEvidence()
	bad.Signature = ""
	_, err := m.InitiateChallenge(ctx, bad, testChallenger, 100)
	require.ErrorIs(err, types.ErrInvalidBundle)

	// Zero bond is rejected.
	_, err = m.InitiateChallenge(ctx, testEvidence(), testChallenger, 0)
	require.ErrorIs(err, ErrInsufficientBond)

	// Unknown lookups fail cleanly.
	_, err = m.GetDispute(ctx, ids.GenerateTestID())
	require.ErrorIs(err, ErrDisputeNotFound)
	_, err = m.GetMinerTrustScore(ctx, "lux1nobody")
	require.ErrorIs(err, ErrUnknownMiner)

	// Duplicate challenges over the same evidence are rejected.
	_, err = m.InitiateChallenge(ctx, testEvidence(), testChallenger, 100)
	require.NoError(err)
	_, err = m.InitiateChallenge(ctx, testEvidence(), testChallenger, 100)
	require.Error(err)
}
