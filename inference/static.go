// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/arbiter/types"
)

var (
	ErrNoMiners     = errors.New("no miners available")
	ErrUnknownMiner = errors.New("unknown miner")
)

var _ Client = (*Static)(nil)

// Responder produces the miner response set for a prompt. Static uses it
// to answer RunInference and ValidateInference.
type Responder func(prompt string) []types.MinerResponse

// Static is an in-process Client backed by a fixed miner set and a
// caller-supplied responder. It serves tests and local composition; the
// RPC-backed client lives with the network's transport layer.
type Static struct {
	mu      sync.RWMutex
	miners  map[string]Miner
	respond Responder
}

// NewStatic returns a static client over the given miners. A nil
// responder makes every miner echo the prompt with full confidence.
func NewStatic(miners []Miner, respond Responder) *Static {
	s := &Static{
		miners:  make(map[string]Miner, len(miners)),
		respond: respond,
	}
	for _, m := range miners {
		s.miners[m.ID] = m
	}
	if s.respond == nil {
		s.respond = s.echo
	}
	return s
}

func (s *Static) echo(prompt string) []types.MinerResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	responses := make([]types.MinerResponse, 0, len(s.miners))
	for id := range s.miners {
		responses = append(responses, types.MinerResponse{
			MinerID:    id,
			Output:     prompt,
			Confidence: 1,
		})
	}
	return responses
}

func (s *Static) responder() Responder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.respond
}

func (s *Static) RunInference(ctx context.Context, req Request) (*types.MinerResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	responses := s.responder()(req.Prompt)
	if len(responses) == 0 {
		return nil, ErrNoMiners
	}
	best := responses[0]
	for _, r := range responses[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return &best, nil
}

func (s *Static) ValidateInference(ctx context.Context, req Request) (*ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	responses := s.responder()(req.Prompt)
	if len(responses) == 0 {
		return nil, ErrNoMiners
	}

	// Agreement ratio over exact outputs stands in for the network's
	// validator consensus.
	counts := make(map[string]int, len(responses))
	var avgConfidence float64
	for _, r := range responses {
		counts[r.Output]++
		avgConfidence += r.Confidence
	}
	avgConfidence /= float64(len(responses))

	majority := 0
	for _, n := range counts {
		if n > majority {
			majority = n
		}
	}
	score := float64(majority) / float64(len(responses))
	return &ValidationResult{
		IsValid:           score >= 0.5,
		ConsensusScore:    score,
		Results:           responses,
		AverageConfidence: avgConfidence,
	}, nil
}

func (s *Static) GetAvailableMiners(ctx context.Context, criteria MinerCriteria) ([]Miner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Miner
	for _, m := range s.miners {
		if criteria.ModelID != "" && m.ModelID != criteria.ModelID {
			continue
		}
		if m.Reputation < criteria.MinReputation {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Static) GetMinerReputation(ctx context.Context, minerID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.miners[minerID]
	if !ok {
		return 0, ErrUnknownMiner
	}
	return m.Reputation, nil
}

// SetResponder swaps the canned responder. Intended for tests.
func (s *Static) SetResponder(respond Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = respond
}
