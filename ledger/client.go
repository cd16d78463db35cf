// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger is the boundary to the external ledger holding dispute
// records of truth. The contract ABI and transaction mechanics live below
// this interface; the core only sees dispute IDs, transaction references
// and records.
package ledger

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/luxfi/ids"

	"github.com/luxfi/arbiter/types"
)

var (
	ErrDisputeNotFound  = errors.New("dispute not found")
	ErrBadTransition    = errors.New("illegal dispute status transition")
	ErrUnknownMiner     = errors.New("unknown miner address")
	ErrInsufficientBond = errors.New("bond below ledger minimum")
)

// Client is the ledger surface consumed by the orchestrators. All calls
// are synchronous; callers own retry policy and should bound calls with
// context deadlines.
type Client interface {
	// InitiateChallenge opens a dispute over evidence, staking bond for
	// challenger, and returns the new dispute ID.
	InitiateChallenge(ctx context.Context, evidence *types.EvidenceBundle, challenger string, bond uint64) (ids.ID, error)

	// SubmitVerdict records a verdict with its evidence reference and
	// returns the transaction reference.
	SubmitVerdict(ctx context.Context, disputeID ids.ID, verdict types.Verdict, reasoningRef cid.Cid) (ids.ID, error)

	// SettleDispute executes the reward/slash transfer for a decided
	// dispute. Settlement is idempotent on the ledger side.
	SettleDispute(ctx context.Context, disputeID ids.ID) (ids.ID, error)

	// GetDispute returns the ledger's record for disputeID.
	GetDispute(ctx context.Context, disputeID ids.ID) (*types.DisputeRecord, error)

	// GetMinerTrustScore returns the miner's trust score in [0,1].
	GetMinerTrustScore(ctx context.Context, miner string) (float64, error)
}
