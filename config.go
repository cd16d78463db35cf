// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arbiter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/luxfi/arbiter/challenge"
	"github.com/luxfi/arbiter/consensus"
	"github.com/luxfi/arbiter/scheduler"
	"github.com/luxfi/arbiter/similarity"
	"github.com/luxfi/arbiter/store"
	"github.com/luxfi/arbiter/verdict"
)

// Config is the top-level arbiter configuration.
type Config struct {
	// StoreKind selects the evidence store variant once at construction.
	StoreKind store.Kind `json:"storeKind"`

	// EmbeddingCacheSize bounds the similarity engine's embedding cache.
	EmbeddingCacheSize int `json:"embeddingCacheSize"`

	Challenge challenge.Config `json:"challenge"`
	Consensus consensus.Config `json:"consensus"`
	Verdict   verdict.Config   `json:"verdict"`
	Scheduler scheduler.Config `json:"scheduler"`
}

// DefaultConfig returns the default arbiter configuration.
func DefaultConfig() Config {
	return Config{
		StoreKind:          store.KindMemory,
		EmbeddingCacheSize: similarity.DefaultCacheSize,
		Challenge:          challenge.DefaultConfig(),
		Consensus:          consensus.DefaultConfig(),
		Verdict:            verdict.DefaultConfig(),
		Scheduler:          scheduler.DefaultConfig(),
	}
}

// configJSON is the wire form of Config; durations are strings ("24h").
type configJSON struct {
	StoreKind          string  `json:"storeKind"`
	EmbeddingCacheSize int     `json:"embeddingCacheSize"`
	Challenger         string  `json:"challenger"`
	ChallengeWindow    string  `json:"challengeWindow"`
	MinBond            uint64  `json:"minBond"`
	MaxBond            uint64  `json:"maxBond"`
	ConsensusThreshold float64 `json:"consensusThreshold"`
	SettlementDelay    string  `json:"settlementDelay"`
	RetryInterval      string  `json:"retryInterval"`
}

// ParseConfig overlays JSON settings on the defaults. Empty raw yields
// the defaults.
func ParseConfig(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	var wire configJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if wire.StoreKind != "" {
		cfg.StoreKind = store.Kind(wire.StoreKind)
	}
	if wire.EmbeddingCacheSize > 0 {
		cfg.EmbeddingCacheSize = wire.EmbeddingCacheSize
	}
	if wire.Challenger != "" {
		cfg.Challenge.Challenger = wire.Challenger
	}
	if wire.MinBond > 0 {
		cfg.Challenge.MinBond = wire.MinBond
	}
	if wire.MaxBond > 0 {
		cfg.Challenge.MaxBond = wire.MaxBond
	}
	if wire.ConsensusThreshold > 0 {
		cfg.Consensus.Threshold = wire.ConsensusThreshold
	}

	var err error
	if cfg.Challenge.ChallengeWindow, err = overlayDuration(wire.ChallengeWindow, cfg.Challenge.ChallengeWindow); err != nil {
		return Config{}, fmt.Errorf("invalid challengeWindow: %w", err)
	}
	if cfg.Verdict.SettlementDelay, err = overlayDuration(wire.SettlementDelay, cfg.Verdict.SettlementDelay); err != nil {
		return Config{}, fmt.Errorf("invalid settlementDelay: %w", err)
	}
	if cfg.Scheduler.RetryInterval, err = overlayDuration(wire.RetryInterval, cfg.Scheduler.RetryInterval); err != nil {
		return Config{}, fmt.Errorf("invalid retryInterval: %w", err)
	}
	return cfg, nil
}

func overlayDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
