// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// MinerResponse is one miner's candidate output for a prompt, together
// with the miner's self-reported confidence.
type MinerResponse struct {
	MinerID    string  `json:"minerId"`
	Output     string  `json:"output"`
	Confidence float64 `json:"confidence"`
	LatencyMs  int64   `json:"latencyMs,omitempty"`
}

// StrategyResult is one consensus strategy's answer for a response set.
type StrategyResult struct {
	Answer     string  `json:"answer"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// ConsensusResult aggregates the answers of several independent scoring
// strategies over the same miner response set. Results are ephemeral and
// recomputed per query, never persisted.
type ConsensusResult struct {
	Answer           string                    `json:"answer"`
	ConsensusScore   float64                   `json:"consensusScore"`
	ConfidenceLevel  float64                   `json:"confidenceLevel"`
	AlgorithmResults map[string]StrategyResult `json:"algorithmResults"`
	ConsensusReached bool                      `json:"consensusReached"`
	Outliers         []string                  `json:"outliers"`
}
