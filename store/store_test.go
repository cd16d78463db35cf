// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/arbiter/types"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemory(),
		"db":     NewDB(memdb.New()),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	bundle := &types.EvidenceBundle{
		PromptHash:  "0xfeed",
		MinerResult: "forty two",
		LogicTrace:  []types.LogicStep{{Step: 1, Description: "think", Reasoning: "hard", Confidence: 1}},
		PoIHash:     "poi-1",
		ModelID:     "m-1",
		Miner:       "lux1qy352eufqy352euf",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Signature:   "sig-1",
	}
	raw, err := bundle.Bytes()
	require.NoError(t, err)

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			ref, err := s.Pin(ctx, raw)
			require.NoError(err)

			pinned, err := s.IsPinned(ctx, ref)
			require.NoError(err)
			require.True(pinned)

			got, err := s.Retrieve(ctx, ref)
			require.NoError(err)
			require.Equal(raw, got)

			// Field-for-field identical after the round trip.
			parsed, err := types.ParseBundle(got)
			require.NoError(err)
			require.Equal(bundle, parsed)
		})
	}
}

func TestStoreRefDeterministic(t *testing.T) {
	require := require.New(t)

	a, err := Ref([]byte("same content"))
	require.NoError(err)
	b, err := Ref([]byte("same content"))
	require.NoError(err)
	require.True(a.Equals(b))

	c, err := Ref([]byte("other content"))
	require.NoError(err)
	require.False(a.Equals(c))
	require.NotEmpty(a.String())
}

func TestStorePinIdempotent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			ref1, err := s.Pin(ctx, []byte("doc"))
			require.NoError(err)
			ref2, err := s.Pin(ctx, []byte("doc"))
			require.NoError(err)
			require.True(ref1.Equals(ref2))
		})
	}
}

func TestStoreUnpin(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			ref, err := s.Pin(ctx, []byte("ephemeral"))
			require.NoError(err)
			require.NoError(s.Unpin(ctx, ref))

			pinned, err := s.IsPinned(ctx, ref)
			require.NoError(err)
			require.False(pinned)

			_, err = s.Retrieve(ctx, ref)
			require.ErrorIs(err, ErrNotPinned)
		})
	}
}

func TestStoreRetrieveUnknown(t *testing.T) {
	require := require.New(t)

	ref, err := Ref([]byte("never pinned"))
	require.NoError(err)

	for _, s := range testStores(t) {
		_, err := s.Retrieve(context.Background(), ref)
		require.ErrorIs(err, ErrNotPinned)
	}
}

func TestNewStoreKinds(t *testing.T) {
	require := require.New(t)

	s, err := New(KindMemory, nil)
	require.NoError(err)
	require.IsType(&Memory{}, s)

	s, err = New(KindDB, memdb.New())
	require.NoError(err)
	require.IsType(&DB{}, s)

	_, err = New(KindDB, nil)
	require.Error(err)

	_, err = New(Kind("s3"), nil)
	require.ErrorIs(err, ErrUnknownKind)
}
