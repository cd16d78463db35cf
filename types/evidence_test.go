// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validBundle() *EvidenceBundle {
	return &EvidenceBundle{
		PromptHash:  "0xabc123",
		MinerResult: "the answer is 42 because the question demands it",
		LogicTrace: []LogicStep{
			{Step: 1, Description: "parse question", Reasoning: "identify the ask", Confidence: 0.9},
			{Step: 2, Description: "compute", Reasoning: "apply arithmetic", Confidence: 0.95},
		},
		PoIHash:   "poi-7f3a",
		ModelID:   "llama-3-70b",
		ModelName: "Llama 3 70B",
		Miner:     "lux1qy352eufqy352eufqy352eufqy35qqjx5xk",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Signature: "sig-deadbeef",
	}
}

func TestBundleVerify(t *testing.T) {
	require := require.New(t)

	bundle := validBundle()
	require.NoError(bundle.Verify())
	require.Empty(bundle.MissingFields())
}

func TestBundleMissingFields(t *testing.T) {
	bundle := validBundle()
	bundle.Miner = "cosmos1notlux"
	bundle.Signature = ""

	missing := bundle.MissingFields()
	require.Equal(t, []string{"miner", "signature"}, missing)

	err := bundle.Verify()
	require.ErrorIs(t, err, ErrInvalidBundle)
	require.ErrorContains(t, err, "miner, signature")
}

func TestBundleMissingFieldsEmpty(t *testing.T) {
	bundle := &EvidenceBundle{}
	require.Equal(t, []string{
		"promptHash",
		"minerResult",
		"logicTrace",
		"poiHash",
		"modelId",
		"miner",
		"timestamp",
		"signature",
	}, bundle.MissingFields())
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"lux1qy352eufqy352euf", true},
		{"lux1", false},
		{"", false},
		{"avax1qy352eufqy352euf", false},
		{"LUX1qy352eufqy352euf", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.valid, ValidAddress(tt.addr), tt.addr)
	}
}

func TestBundleCanonicalRoundTrip(t *testing.T) {
	require := require.New(t)

	bundle := validBundle()
	raw, err := bundle.Bytes()
	require.NoError(err)

	parsed, err := ParseBundle(raw)
	require.NoError(err)
	require.Equal(bundle, parsed)

	// Equal bundles hash to equal IDs.
	id1, err := bundle.ID()
	require.NoError(err)
	id2, err := parsed.ID()
	require.NoError(err)
	require.Equal(id1, id2)

	// Any mutation changes the ID.
	parsed.MinerResult += "!"
	id3, err := parsed.ID()
	require.NoError(err)
	require.NotEqual(id1, id3)
}

func TestDisputeStatusTransitions(t *testing.T) {
	require := require.New(t)

	require.True(StatusPending.CanTransitionTo(StatusChallenged))
	require.True(StatusChallenged.CanTransitionTo(StatusUnderReview))
	require.True(StatusChallenged.CanTransitionTo(StatusVerdictReached))
	require.True(StatusUnderReview.CanTransitionTo(StatusVerdictReached))
	require.True(StatusVerdictReached.CanTransitionTo(StatusSettled))
	require.True(StatusChallenged.CanTransitionTo(StatusDismissed))

	// Terminal states never transition.
	for _, terminal := range []DisputeStatus{StatusSettled, StatusDismissed} {
		require.True(terminal.Terminal())
		for next := StatusPending; next <= StatusDismissed; next++ {
			require.False(terminal.CanTransitionTo(next))
		}
	}

	require.False(StatusPending.CanTransitionTo(StatusSettled))
	require.False(StatusSettled.CanTransitionTo(StatusChallenged))
}

func TestDisputeStatusStrings(t *testing.T) {
	require := require.New(t)

	require.Equal("PENDING", StatusPending.String())
	require.Equal("SETTLED", StatusSettled.String())
	require.Equal("UNKNOWN", DisputeStatus(99).String())
	require.NoError(StatusDismissed.Valid())
	require.ErrorIs(DisputeStatus(99).Valid(), ErrUnknownStatus)

	require.Equal("MINER_CORRECT", VerdictMinerCorrect.String())
	require.Equal("MINER_WRONG", VerdictMinerWrong.String())
	require.Equal("NONE", VerdictNone.String())
}
