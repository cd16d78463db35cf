// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Pins do not survive a restart.
type Memory struct {
	mu   sync.RWMutex
	pins map[cid.Cid][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{pins: make(map[cid.Cid][]byte)}
}

func (m *Memory) Pin(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	ref, err := Ref(data)
	if err != nil {
		return cid.Undef, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[ref]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		m.pins[ref] = stored
	}
	return ref, nil
}

func (m *Memory) Retrieve(ctx context.Context, ref cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.pins[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotPinned
	}
	if err := verify(ref, data); err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) IsPinned(ctx context.Context, ref cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pins[ref]
	return ok, nil
}

func (m *Memory) Unpin(ctx context.Context, ref cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pins, ref)
	return nil
}
