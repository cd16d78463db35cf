// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/luxfi/arbiter/similarity"
	"github.com/luxfi/arbiter/types"
)

const (
	// normalizedAnswerLen truncates answers before grouping so trailing
	// boilerplate does not split otherwise identical responses.
	normalizedAnswerLen = 100

	// Filter bands for the outlier-filtered strategy.
	lengthDeviationLimit     = 0.5
	confidenceDeviationLimit = 0.3
	neutralScore             = 0.5
)

var (
	ErrNoResponses = errors.New("no responses to score")
	errNoSurvivors = errors.New("all responses filtered")
)

// ReputationSource resolves a miner's reputation in [0,1].
type ReputationSource interface {
	GetMinerReputation(ctx context.Context, minerID string) (float64, error)
}

// Strategy is one independent scoring algorithm over a miner response set.
type Strategy interface {
	Name() string
	Weight() float64
	Evaluate(ctx context.Context, responses []types.MinerResponse) (types.StrategyResult, error)
}

// normalizeAnswer canonicalizes an output for grouping and voting.
func normalizeAnswer(output string) string {
	s := strings.ToLower(strings.TrimSpace(output))
	if len(s) > normalizedAnswerLen {
		s = s[:normalizedAnswerLen]
	}
	return s
}

// semanticLeader picks the response with the highest average pairwise
// similarity to all others.
type semanticLeader struct {
	engine *similarity.Engine
	weight float64
}

func (*semanticLeader) Name() string      { return "semantic-similarity" }
func (s *semanticLeader) Weight() float64 { return s.weight }

func (s *semanticLeader) Evaluate(_ context.Context, responses []types.MinerResponse) (types.StrategyResult, error) {
	if len(responses) == 0 {
		return types.StrategyResult{}, ErrNoResponses
	}
	if len(responses) == 1 {
		return types.StrategyResult{
			Answer:     responses[0].Output,
			Score:      1,
			Confidence: responses[0].Confidence,
		}, nil
	}

	vectors := make([][]float64, len(responses))
	for i, r := range responses {
		vectors[i] = s.engine.Embed(r.Output)
	}

	best, bestScore := 0, math.Inf(-1)
	for i := range responses {
		var sum float64
		for j := range responses {
			if i == j {
				continue
			}
			sim, err := similarity.CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				return types.StrategyResult{}, err
			}
			sum += sim
		}
		avg := sum / float64(len(responses)-1)
		if avg > bestScore {
			best, bestScore = i, avg
		}
	}
	return types.StrategyResult{
		Answer:     responses[best].Output,
		Score:      bestScore,
		Confidence: responses[best].Confidence,
	}, nil
}

// reputationMajority groups responses by normalized answer and picks the
// group carrying the most summed miner reputation.
type reputationMajority struct {
	reputations ReputationSource
	weight      float64
}

func (*reputationMajority) Name() string      { return "reputation-weighted" }
func (s *reputationMajority) Weight() float64 { return s.weight }

func (s *reputationMajority) Evaluate(ctx context.Context, responses []types.MinerResponse) (types.StrategyResult, error) {
	if len(responses) == 0 {
		return types.StrategyResult{}, ErrNoResponses
	}

	type group struct {
		answer     string
		reputation float64
	}
	groups := make(map[string]*group)
	order := make([]string, 0, len(responses))

	var total float64
	for _, r := range responses {
		rep, err := s.reputations.GetMinerReputation(ctx, r.MinerID)
		if err != nil {
			return types.StrategyResult{}, err
		}
		total += rep

		key := normalizeAnswer(r.Output)
		g, ok := groups[key]
		if !ok {
			g = &group{answer: r.Output}
			groups[key] = g
			order = append(order, key)
		}
		g.reputation += rep
	}
	if total == 0 {
		return types.StrategyResult{}, errors.New("no reputation among responders")
	}

	var winner *group
	for _, key := range order {
		if winner == nil || groups[key].reputation > winner.reputation {
			winner = groups[key]
		}
	}
	score := winner.reputation / total
	return types.StrategyResult{
		Answer:     winner.answer,
		Score:      score,
		Confidence: score,
	}, nil
}

// confidenceRanked picks the response with the highest self-reported
// confidence and reports the mean confidence of the whole set.
type confidenceRanked struct {
	weight float64
}

func (*confidenceRanked) Name() string      { return "confidence-ranked" }
func (s *confidenceRanked) Weight() float64 { return s.weight }

func (s *confidenceRanked) Evaluate(_ context.Context, responses []types.MinerResponse) (types.StrategyResult, error) {
	if len(responses) == 0 {
		return types.StrategyResult{}, ErrNoResponses
	}
	best := 0
	var sum float64
	for i, r := range responses {
		sum += r.Confidence
		if r.Confidence > responses[best].Confidence {
			best = i
		}
	}
	return types.StrategyResult{
		Answer:     responses[best].Output,
		Score:      responses[best].Confidence,
		Confidence: sum / float64(len(responses)),
	}, nil
}

// outlierFiltered drops responses whose length or confidence deviates too
// far from the mean, then picks the highest-confidence survivor. If the
// filter removes everything, the first response wins with a neutral score.
type outlierFiltered struct {
	weight float64
}

func (*outlierFiltered) Name() string      { return "outlier-filtered" }
func (s *outlierFiltered) Weight() float64 { return s.weight }

func (s *outlierFiltered) Evaluate(_ context.Context, responses []types.MinerResponse) (types.StrategyResult, error) {
	if len(responses) == 0 {
		return types.StrategyResult{}, ErrNoResponses
	}

	var meanLen, meanConf float64
	for _, r := range responses {
		meanLen += float64(len(r.Output))
		meanConf += r.Confidence
	}
	meanLen /= float64(len(responses))
	meanConf /= float64(len(responses))

	best, err := s.bestSurvivor(responses, meanLen, meanConf)
	if errors.Is(err, errNoSurvivors) {
		return types.StrategyResult{
			Answer:     responses[0].Output,
			Score:      neutralScore,
			Confidence: responses[0].Confidence,
		}, nil
	}
	if err != nil {
		return types.StrategyResult{}, err
	}
	return types.StrategyResult{
		Answer:     best.Output,
		Score:      best.Confidence,
		Confidence: best.Confidence,
	}, nil
}

func (*outlierFiltered) bestSurvivor(responses []types.MinerResponse, meanLen, meanConf float64) (types.MinerResponse, error) {
	var (
		best  types.MinerResponse
		found bool
	)
	for _, r := range responses {
		if meanLen > 0 && math.Abs(float64(len(r.Output))-meanLen)/meanLen > lengthDeviationLimit {
			continue
		}
		if meanConf > 0 && math.Abs(r.Confidence-meanConf)/meanConf > confidenceDeviationLimit {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best, found = r, true
		}
	}
	if !found {
		return types.MinerResponse{}, errNoSurvivors
	}
	return best, nil
}
