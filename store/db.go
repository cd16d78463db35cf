// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/luxfi/database"
)

var _ Store = (*DB)(nil)

// DB is a Store persisting pins in a key-value database, keyed by the
// binary content reference.
type DB struct {
	db database.Database
}

// NewDB returns a store over db.
func NewDB(db database.Database) *DB {
	return &DB{db: db}
}

// New builds the store variant selected by kind. KindDB requires a
// database.
func New(kind Kind, db database.Database) (Store, error) {
	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindDB:
		if db == nil {
			return nil, errors.New("db store requires a database")
		}
		return NewDB(db), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (s *DB) Pin(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	ref, err := Ref(data)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.db.Put(ref.Bytes(), data); err != nil {
		return cid.Undef, fmt.Errorf("failed to pin content: %w", err)
	}
	return ref, nil
}

func (s *DB) Retrieve(ctx context.Context, ref cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.db.Get(ref.Bytes())
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotPinned
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve content: %w", err)
	}
	if err := verify(ref, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *DB) IsPinned(ctx context.Context, ref cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.db.Has(ref.Bytes())
}

func (s *DB) Unpin(ctx context.Context, ref cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Delete(ref.Bytes())
}
