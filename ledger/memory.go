// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/luxfi/ids"

	"github.com/luxfi/arbiter/types"
	"github.com/luxfi/arbiter/utils/timer/mockable"
)

const (
	defaultTrustScore = 0.5

	// Trust adjustments applied at settlement.
	slashPenalty    = 0.1
	challengerBonus = 0.05
)

var _ Client = (*Memory)(nil)

// Memory is an in-process ledger for tests and local composition. It
// enforces the dispute status machine and applies reward/slash trust
// adjustments at settlement. Token approval and challenge submission are
// one atomic step here, so the dangling-approval state of the live chain
// cannot occur in this variant.
type Memory struct {
	clock *mockable.Clock

	mu         sync.RWMutex
	disputes   map[ids.ID]*types.DisputeRecord
	verdictRef map[ids.ID]cid.Cid
	settleTx   map[ids.ID]ids.ID
	trust      map[string]float64
	txCounter  uint64
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		clock:      &mockable.Clock{},
		disputes:   make(map[ids.ID]*types.DisputeRecord),
		verdictRef: make(map[ids.ID]cid.Cid),
		settleTx:   make(map[ids.ID]ids.ID),
		trust:      make(map[string]float64),
	}
}

// Clock exposes the ledger clock so tests can fake time.
func (m *Memory) Clock() *mockable.Clock {
	return m.clock
}

// SetTrustScore seeds a miner's trust score.
func (m *Memory) SetTrustScore(addr string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trust[addr] = score
}

func (m *Memory) nextTxRef() ids.ID {
	m.txCounter++
	ref, _ := ids.ToID(fmt.Appendf(nil, "ledger-tx-%d", m.txCounter))
	return ref
}

func (m *Memory) InitiateChallenge(ctx context.Context, evidence *types.EvidenceBundle, challenger string, bond uint64) (ids.ID, error) {
	if err := ctx.Err(); err != nil {
		return ids.Empty, err
	}
	if err := evidence.Verify(); err != nil {
		return ids.Empty, err
	}
	if bond == 0 {
		return ids.Empty, ErrInsufficientBond
	}

	disputeID, err := evidence.ID()
	if err != nil {
		return ids.Empty, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.disputes[disputeID]; ok {
		return ids.Empty, fmt.Errorf("dispute %s already open", disputeID)
	}
	m.disputes[disputeID] = &types.DisputeRecord{
		ID:         disputeID,
		Evidence:   *evidence,
		Challenger: challenger,
		Bond:       bond,
		Status:     types.StatusChallenged,
		StartTime:  m.clock.Time(),
	}
	return disputeID, nil
}

func (m *Memory) SubmitVerdict(ctx context.Context, disputeID ids.ID, verdict types.Verdict, reasoningRef cid.Cid) (ids.ID, error) {
	if err := ctx.Err(); err != nil {
		return ids.Empty, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.disputes[disputeID]
	if !ok {
		return ids.Empty, ErrDisputeNotFound
	}
	if !record.Status.CanTransitionTo(types.StatusVerdictReached) {
		return ids.Empty, fmt.Errorf("%w: %s -> %s", ErrBadTransition, record.Status, types.StatusVerdictReached)
	}
	record.Status = types.StatusVerdictReached
	record.Verdict = verdict
	record.Judge = "arbiter"
	m.verdictRef[disputeID] = reasoningRef
	return m.nextTxRef(), nil
}

func (m *Memory) SettleDispute(ctx context.Context, disputeID ids.ID) (ids.ID, error) {
	if err := ctx.Err(); err != nil {
		return ids.Empty, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.disputes[disputeID]
	if !ok {
		return ids.Empty, ErrDisputeNotFound
	}
	// Idempotent: settling a settled dispute returns the original tx.
	if record.Status == types.StatusSettled {
		return m.settleTx[disputeID], nil
	}
	if !record.Status.CanTransitionTo(types.StatusSettled) {
		return ids.Empty, fmt.Errorf("%w: %s -> %s", ErrBadTransition, record.Status, types.StatusSettled)
	}

	record.Status = types.StatusSettled
	record.SettlementTime = m.clock.Time()
	switch record.Verdict {
	case types.VerdictMinerWrong:
		m.adjustTrust(record.Evidence.Miner, -slashPenalty)
		m.adjustTrust(record.Challenger, challengerBonus)
	case types.VerdictMinerCorrect:
		// Challenger forfeits the bond; the miner keeps its score.
	}

	tx := m.nextTxRef()
	m.settleTx[disputeID] = tx
	return tx, nil
}

func (m *Memory) adjustTrust(addr string, delta float64) {
	score, ok := m.trust[addr]
	if !ok {
		score = defaultTrustScore
	}
	score += delta
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	m.trust[addr] = score
}

func (m *Memory) GetDispute(ctx context.Context, disputeID ids.ID) (*types.DisputeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.disputes[disputeID]
	if !ok {
		return nil, ErrDisputeNotFound
	}
	cp := *record
	return &cp, nil
}

func (m *Memory) GetMinerTrustScore(ctx context.Context, miner string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.trust[miner]
	if !ok {
		return 0, ErrUnknownMiner
	}
	return score, nil
}
