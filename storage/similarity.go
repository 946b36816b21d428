package storage

import (
	"fmt"
	"slices"
)

// DotProduct calculates the dot product of two vectors of equal length. For
// unit vectors this is their cosine similarity. It returns
// ErrDimensionMismatch when the lengths differ.
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// RankMatches sorts matches by score descending, ties by record ID, and
// keeps the first k. k <= 0 keeps all.
func RankMatches(matches []*Match, k int) []*Match {
	slices.SortFunc(matches, func(a, b *Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Record.ID < b.Record.ID {
			return -1
		}
		if a.Record.ID > b.Record.ID {
			return 1
		}
		return 0
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
