// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"time"

	"github.com/luxfi/ids"
)

var ErrUnknownStatus = errors.New("unknown dispute status")

// DisputeStatus is the ledger-level lifecycle of a dispute.
type DisputeStatus uint8

const (
	StatusPending DisputeStatus = iota
	StatusChallenged
	StatusUnderReview
	StatusVerdictReached
	StatusSettled
	StatusDismissed
)

func (s DisputeStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusChallenged:
		return "CHALLENGED"
	case StatusUnderReview:
		return "UNDER_REVIEW"
	case StatusVerdictReached:
		return "VERDICT_REACHED"
	case StatusSettled:
		return "SETTLED"
	case StatusDismissed:
		return "DISMISSED"
	default:
		return "UNKNOWN"
	}
}

// Valid returns nil if this is a known status.
func (s DisputeStatus) Valid() error {
	if s > StatusDismissed {
		return ErrUnknownStatus
	}
	return nil
}

// Terminal reports whether the dispute can no longer transition.
func (s DisputeStatus) Terminal() bool {
	return s == StatusSettled || s == StatusDismissed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusChallenged:
		return s == StatusPending
	case StatusUnderReview:
		return s == StatusChallenged
	case StatusVerdictReached:
		return s == StatusChallenged || s == StatusUnderReview
	case StatusSettled:
		return s == StatusVerdictReached
	case StatusDismissed:
		return true
	default:
		return false
	}
}

// Verdict is the outcome determination for a dispute.
type Verdict uint8

const (
	VerdictNone Verdict = iota
	VerdictMinerCorrect
	VerdictMinerWrong
)

func (v Verdict) String() string {
	switch v {
	case VerdictMinerCorrect:
		return "MINER_CORRECT"
	case VerdictMinerWrong:
		return "MINER_WRONG"
	default:
		return "NONE"
	}
}

// DisputeRecord tracks a challenge from initiation to settlement. The
// ledger owns the record of truth; the in-memory scheduler holds only a
// scheduling shadow of it.
type DisputeRecord struct {
	ID             ids.ID         `json:"id"`
	Evidence       EvidenceBundle `json:"evidence"`
	Challenger     string         `json:"challenger"`
	Bond           uint64         `json:"bond"`
	Status         DisputeStatus  `json:"status"`
	Verdict        Verdict        `json:"verdict"`
	Judge          string         `json:"judge,omitempty"`
	StartTime      time.Time      `json:"startTime"`
	SettlementTime time.Time      `json:"settlementTime,omitempty"`
}
