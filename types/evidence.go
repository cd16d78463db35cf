// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the canonical records the adjudication engine
// operates on: evidence bundles, dispute records and verdicts.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/ids"
)

// AddressHRP is the human readable prefix every miner address must carry.
const AddressHRP = "lux1"

var ErrInvalidBundle = errors.New("invalid evidence bundle")

// LogicStep is one entry of a miner's reasoning trace. Steps are ordered
// and append-only while the trace is being assembled.
type LogicStep struct {
	Step        int     `json:"step"`
	Description string  `json:"description"`
	Reasoning   string  `json:"reasoning"`
	Confidence  float64 `json:"confidence"`
}

// EvidenceBundle is the canonical, hashable record of a disputed inference.
// It is created at dispute-initiation time from a completed inference and
// must not be mutated afterwards; its integrity is checked before any
// network call is issued on its behalf.
type EvidenceBundle struct {
	PromptHash  string      `json:"promptHash"`
	MinerResult string      `json:"minerResult"`
	LogicTrace  []LogicStep `json:"logicTrace"`
	PoIHash     string      `json:"poiHash"`
	ContentHash string      `json:"contentHash,omitempty"`
	ModelID     string      `json:"modelId"`
	ModelName   string      `json:"modelName"`
	Miner       string      `json:"miner"`
	Timestamp   time.Time   `json:"timestamp"`
	Signature   string      `json:"signature"`
}

// ValidAddress reports whether addr looks like a chain address. Only the
// prefix and a non-empty payload are checked here; full checksum
// verification belongs to the ledger client.
func ValidAddress(addr string) bool {
	return strings.HasPrefix(addr, AddressHRP) && len(addr) > len(AddressHRP)
}

// MissingFields returns the names of required fields that are empty or
// malformed. ContentHash is excluded: it is assigned when the bundle is
// pinned to the evidence store.
func (b *EvidenceBundle) MissingFields() []string {
	var missing []string
	if b.PromptHash == "" {
		missing = append(missing, "promptHash")
	}
	if b.MinerResult == "" {
		missing = append(missing, "minerResult")
	}
	if len(b.LogicTrace) == 0 {
		missing = append(missing, "logicTrace")
	}
	if b.PoIHash == "" {
		missing = append(missing, "poiHash")
	}
	if b.ModelID == "" {
		missing = append(missing, "modelId")
	}
	if !ValidAddress(b.Miner) {
		missing = append(missing, "miner")
	}
	if b.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	if b.Signature == "" {
		missing = append(missing, "signature")
	}
	return missing
}

// Verify checks the bundle's structural integrity. The returned error
// names every missing or malformed field.
func (b *EvidenceBundle) Verify() error {
	if missing := b.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBundle, strings.Join(missing, ", "))
	}
	return nil
}

// Bytes returns the canonical JSON encoding of the bundle. Struct field
// order is fixed, so equal bundles encode to equal bytes.
func (b *EvidenceBundle) Bytes() ([]byte, error) {
	return json.Marshal(b)
}

// ID derives a stable identifier from the bundle's canonical bytes.
func (b *EvidenceBundle) ID() (ids.ID, error) {
	raw, err := b.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(raw)
}

// ParseBundle decodes a bundle from its canonical bytes.
func ParseBundle(raw []byte) (*EvidenceBundle, error) {
	bundle := &EvidenceBundle{}
	if err := json.Unmarshal(raw, bundle); err != nil {
		return nil, fmt.Errorf("failed to parse evidence bundle: %w", err)
	}
	return bundle, nil
}
