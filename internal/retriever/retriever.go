package retriever

import (
	"errors"
	"fmt"
	"sort"

	"docuchat/internal/model"
)

// ErrEmptyCandidateSet is returned when there are no chunks to rank. An
// explicit failure here keeps the caller from sending the generator an
// answer prompt with no grounding context at all.
var ErrEmptyCandidateSet = errors.New("no candidate chunks to rank")

// ErrDimensionMismatch is returned when a candidate vector does not have the
// query vector's dimensionality. A partial inner product over the shorter
// vector would hide the shape inconsistency behind a plausible score.
var ErrDimensionMismatch = errors.New("candidate vector dimensionality differs from query")

// ScoredChunk pairs a candidate chunk with its similarity score.
type ScoredChunk struct {
	Chunk model.Chunk
	Score float32
}

// Rank scores every candidate against the query vector by inner product and
// returns the k best, highest first. The embedder is expected to produce
// unit-norm vectors, which makes the inner product equal to cosine
// similarity; Rank does not renormalize. Ties keep the original candidate
// order so repeated calls over the same input return the same ranking.
// k is clamped to the candidate set size.
func Rank(query []float32, candidates []model.Chunk, k int) ([]ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}

	scored := make([]ScoredChunk, len(candidates))
	for i := range candidates {
		vec := candidates[i].EmbeddingVector()
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: candidate %d has %d dims, query has %d",
				ErrDimensionMismatch, candidates[i].ID, len(vec), len(query))
		}
		scored[i] = ScoredChunk{
			Chunk: candidates[i],
			Score: dot(query, vec),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k <= 0 || k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// DocumentOrder returns the document ids cited by the ranked chunks, each
// exactly once, ordered by the rank of its best chunk.
func DocumentOrder(ranked []ScoredChunk) []uint {
	seen := make(map[uint]bool, len(ranked))
	var order []uint
	for _, sc := range ranked {
		if seen[sc.Chunk.DocumentID] {
			continue
		}
		seen[sc.Chunk.DocumentID] = true
		order = append(order, sc.Chunk.DocumentID)
	}
	return order
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
