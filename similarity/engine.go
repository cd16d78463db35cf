// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package similarity computes vector similarity between miner outputs and
// flags statistical outliers among a candidate response set.
package similarity

import (
	"errors"
	"math"
	"sort"

	"github.com/luxfi/cache"
	"github.com/luxfi/log"
)

const (
	// DefaultCacheSize bounds the embedding cache.
	DefaultCacheSize = 4096

	// differenceThreshold is the fixed pairwise cutoff used by
	// CompareOutputs. It is independent of outlier detection.
	differenceThreshold = 0.95
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Engine embeds outputs and scores them against each other. Embeddings
// are cached per exact text, so repeated comparisons of the same output
// set are cheap.
type Engine struct {
	log      log.Logger
	embedder Embedder
	cache    *cache.LRU[string, []float64]
}

// New returns an engine using the given embedder. A nil embedder selects
// the deterministic hash embedder.
func New(logger log.Logger, embedder Embedder, cacheSize int) *Engine {
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultDimensions)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Engine{
		log:      logger,
		embedder: embedder,
		cache:    &cache.LRU[string, []float64]{Size: cacheSize},
	}
}

// Embed returns the vector for text, computing and caching it on first use.
func (e *Engine) Embed(text string) []float64 {
	if vec, ok := e.cache.Get(text); ok {
		return vec
	}
	vec := e.embedder.Embed(text)
	e.cache.Put(text, vec)
	return vec
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). Zero-magnitude vectors
// score 0 against everything. Vectors of unequal length fail with
// ErrDimensionMismatch.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// OutlierReport is the result of statistical outlier detection over a
// miner output set.
type OutlierReport struct {
	// Outliers are the miners whose outputs diverge from the rest.
	Outliers []string `json:"outliers"`
	// ConsensusGroup is every miner not flagged as an outlier.
	ConsensusGroup []string `json:"consensusGroup"`
	// Scores maps each miner to its mean similarity against all others.
	Scores map[string]float64 `json:"scores"`
}

// Comparison is the result of a direct pairwise output comparison.
type Comparison struct {
	Score       float64 `json:"score"`
	IsDifferent bool    `json:"isDifferent"`
}

// DetectOutliers flags miners whose output diverges from the rest of the
// set. Each miner is scored by its mean similarity to every other miner;
// a miner is an outlier iff its score falls below mean minus one
// population standard deviation of those scores.
//
// The rule is statistical, not an absolute cutoff: threshold is accepted
// for interface symmetry with pairwise comparison callers but does not
// gate the outlier decision. Fewer than 2 miners trivially form a
// consensus group with no outliers.
func (e *Engine) DetectOutliers(outputs map[string]string, threshold float64) OutlierReport {
	_ = threshold

	miners := make([]string, 0, len(outputs))
	for miner := range outputs {
		miners = append(miners, miner)
	}
	sort.Strings(miners)

	report := OutlierReport{Scores: make(map[string]float64, len(miners))}
	if len(miners) < 2 {
		report.ConsensusGroup = miners
		return report
	}

	vectors := make([][]float64, len(miners))
	for i, miner := range miners {
		vectors[i] = e.Embed(outputs[miner])
	}

	// Mean pairwise similarity per miner.
	for i, miner := range miners {
		var sum float64
		for j := range miners {
			if i == j {
				continue
			}
			sim, err := CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				e.log.Warn("skipping invalid vector pair",
					"miner", miner,
					"other", miners[j],
					"error", err,
				)
				continue
			}
			sum += sim
		}
		report.Scores[miner] = sum / float64(len(miners)-1)
	}

	var mean float64
	for _, miner := range miners {
		mean += report.Scores[miner]
	}
	mean /= float64(len(miners))

	var variance float64
	for _, miner := range miners {
		diff := report.Scores[miner] - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(miners)))

	cutoff := mean - stddev
	for _, miner := range miners {
		if report.Scores[miner] < cutoff {
			report.Outliers = append(report.Outliers, miner)
		} else {
			report.ConsensusGroup = append(report.ConsensusGroup, miner)
		}
	}
	if len(report.Outliers) > 0 {
		e.log.Info("outliers detected",
			"numMiners", len(miners),
			"numOutliers", len(report.Outliers),
			"meanScore", mean,
			"stddev", stddev,
		)
	}
	return report
}

// CompareOutputs scores two outputs directly. They are considered
// different when similarity falls below the fixed 0.95 cutoff.
func (e *Engine) CompareOutputs(a, b string) (Comparison, error) {
	score, err := CosineSimilarity(e.Embed(a), e.Embed(b))
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Score:       score,
		IsDifferent: score < differenceThreshold,
	}, nil
}
