// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package similarity

import (
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimensions is the vector size produced by the hash embedder.
const DefaultDimensions = 128

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic: the same text always embeds to the same vector.
type Embedder interface {
	Embed(text string) []float64
}

// HashEmbedder is a deterministic bag-of-words embedder. Each lowercased
// token is hashed into one of a fixed number of buckets and the resulting
// count vector is L2-normalized. It is not a semantic model, but mutually
// similar outputs share tokens and score high while unrelated outputs
// score near zero, which is what outlier detection needs.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder with the given vector size.
// Non-positive sizes fall back to DefaultDimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
