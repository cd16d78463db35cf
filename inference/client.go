// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inference defines the client surface of the inference network:
// running prompts against miners, multi-validator validation, and miner
// discovery. The wire protocol lives below this boundary.
package inference

import (
	"context"

	"github.com/luxfi/arbiter/types"
)

// Request describes an inference run against the network.
type Request struct {
	Prompt     string `json:"prompt"`
	ModelID    string `json:"modelId,omitempty"`
	MinerCount int    `json:"minerCount,omitempty"`
}

// ValidationResult is the network's multi-validator consensus answer for
// a prompt.
type ValidationResult struct {
	IsValid           bool                  `json:"isValid"`
	ConsensusScore    float64               `json:"consensusScore"`
	Results           []types.MinerResponse `json:"results"`
	AverageConfidence float64               `json:"averageConfidence"`
}

// MinerCriteria filters miner discovery.
type MinerCriteria struct {
	ModelID       string  `json:"modelId,omitempty"`
	MinReputation float64 `json:"minReputation,omitempty"`
}

// Miner is a network participant producing candidate outputs.
type Miner struct {
	ID         string  `json:"id"`
	Address    string  `json:"address"`
	ModelID    string  `json:"modelId"`
	Reputation float64 `json:"reputation"`
}

// Client is the inference network consumed by the adjudication core.
// Implementations must honor context cancellation on every call.
type Client interface {
	RunInference(ctx context.Context, req Request) (*types.MinerResponse, error)
	ValidateInference(ctx context.Context, req Request) (*ValidationResult, error)
	GetAvailableMiners(ctx context.Context, criteria MinerCriteria) ([]Miner, error)
	GetMinerReputation(ctx context.Context, minerID string) (float64, error)
}
