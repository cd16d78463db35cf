// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store is the content-addressable evidence store consumed by the
// adjudication core. Content references are CIDv1 values (raw multicodec,
// sha2-256 multihash) over the pinned document bytes, so a reference both
// locates and authenticates its document. Transport details live below
// this boundary; two in-process variants are provided.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotPinned      = errors.New("content not pinned")
	ErrCorruptContent = errors.New("retrieved content does not match its reference")
	ErrUnknownKind    = errors.New("unknown store kind")
)

// Kind selects a store variant once at construction. There are no
// runtime environment checks.
type Kind string

const (
	KindMemory Kind = "memory"
	KindDB     Kind = "db"
)

// Store pins opaque documents and serves them back by content reference.
type Store interface {
	// Pin stores data and returns its content reference.
	Pin(ctx context.Context, data []byte) (cid.Cid, error)
	// Retrieve returns the document for ref, verifying it against the
	// reference before returning.
	Retrieve(ctx context.Context, ref cid.Cid) ([]byte, error)
	// IsPinned reports whether ref is held by this store.
	IsPinned(ctx context.Context, ref cid.Cid) (bool, error)
	// Unpin releases the document for ref. Unpinning an unknown ref is
	// not an error.
	Unpin(ctx context.Context, ref cid.Cid) error
}

// Ref derives the CIDv1 content reference for data.
func Ref(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// verify recomputes data's reference and checks it against ref.
func verify(ref cid.Cid, data []byte) error {
	actual, err := Ref(data)
	if err != nil {
		return err
	}
	if !actual.Equals(ref) {
		return ErrCorruptContent
	}
	return nil
}
