// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus combines several independent scoring strategies over
// a set of miner responses into one aggregate answer and score.
package consensus

import (
	"context"
	"errors"

	"github.com/luxfi/log"

	"github.com/luxfi/arbiter/similarity"
	"github.com/luxfi/arbiter/types"
)

// DefaultThreshold is the aggregate score at or above which consensus is
// considered reached, unless the caller configures another cutoff.
const DefaultThreshold = 0.8

// Default strategy weights. They need not sum to 1; normalization happens
// when results are combined.
const (
	semanticWeight        = 0.3
	reputationWeight      = 0.25
	confidenceWeight      = 0.25
	outlierFilteredWeight = 0.2
)

var ErrNoViableConsensus = errors.New("no consensus strategy produced a result")

// Config tunes the consensus builder.
type Config struct {
	// Threshold is the aggregate score required for consensusReached.
	Threshold float64 `json:"threshold"`
}

// DefaultConfig returns the default builder configuration.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Builder runs every registered strategy over a response set and merges
// the per-strategy answers by weight.
type Builder struct {
	log        log.Logger
	cfg        Config
	engine     *similarity.Engine
	strategies []Strategy
}

// NewBuilder returns a builder with the four default strategies wired to
// the given similarity engine and reputation source.
func NewBuilder(logger log.Logger, cfg Config, engine *similarity.Engine, reputations ReputationSource) *Builder {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Builder{
		log:    logger,
		cfg:    cfg,
		engine: engine,
		strategies: []Strategy{
			&semanticLeader{engine: engine, weight: semanticWeight},
			&reputationMajority{reputations: reputations, weight: reputationWeight},
			&confidenceRanked{weight: confidenceWeight},
			&outlierFiltered{weight: outlierFilteredWeight},
		},
	}
}

// Build aggregates the response set. Each strategy that completes without
// error contributes its weighted answer; if every strategy fails the
// operation fails with ErrNoViableConsensus. No partial or degraded
// consensus is ever returned.
func (b *Builder) Build(ctx context.Context, responses []types.MinerResponse) (types.ConsensusResult, error) {
	result := types.ConsensusResult{
		AlgorithmResults: make(map[string]types.StrategyResult, len(b.strategies)),
	}

	var (
		totalWeight float64
		score       float64
		confidence  float64

		// Majority vote by weight over normalized answers. Discovery
		// order breaks ties.
		voteWeight = make(map[string]float64)
		voteAnswer = make(map[string]string)
		voteOrder  []string
	)
	for _, strategy := range b.strategies {
		res, err := strategy.Evaluate(ctx, responses)
		if err != nil {
			b.log.Warn("consensus strategy failed",
				"strategy", strategy.Name(),
				"error", err,
			)
			continue
		}
		result.AlgorithmResults[strategy.Name()] = res

		w := strategy.Weight()
		totalWeight += w
		score += res.Score * w
		confidence += res.Confidence * w

		key := normalizeAnswer(res.Answer)
		if _, ok := voteWeight[key]; !ok {
			voteOrder = append(voteOrder, key)
			voteAnswer[key] = res.Answer
		}
		voteWeight[key] += w
	}
	if totalWeight == 0 {
		return types.ConsensusResult{}, ErrNoViableConsensus
	}

	bestKey := voteOrder[0]
	for _, key := range voteOrder[1:] {
		if voteWeight[key] > voteWeight[bestKey] {
			bestKey = key
		}
	}

	result.Answer = voteAnswer[bestKey]
	result.ConsensusScore = score / totalWeight
	result.ConfidenceLevel = confidence / totalWeight
	result.ConsensusReached = result.ConsensusScore >= b.cfg.Threshold

	outputs := make(map[string]string, len(responses))
	for _, r := range responses {
		outputs[r.MinerID] = r.Output
	}
	result.Outliers = b.engine.DetectOutliers(outputs, 0).Outliers

	b.log.Debug("consensus built",
		"numResponses", len(responses),
		"score", result.ConsensusScore,
		"reached", result.ConsensusReached,
		"numOutliers", len(result.Outliers),
	)
	return result, nil
}
