// Package vectorindex holds keyframe embeddings in memory and answers top-K
// inner-product queries. An Index is immutable once built.
package vectorindex

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Dimension is the embedding size produced by the keyframe encoder.
const Dimension = 512

var (
	// ErrNotBuilt is returned when searching an index that was never built.
	ErrNotBuilt = errors.New("index not built")

	// ErrDimensionMismatch is returned when vector lengths disagree.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateKey is returned when two entries share a key.
	ErrDuplicateKey = errors.New("duplicate key")
)

// IndexError wraps errors with operation context
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vectorindex: %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{Op: op, Err: err}
}

// Entry is a keyed vector to be indexed.
type Entry struct {
	Key    string
	Vector []float32
}

// Hit is a scored search result. Position is the entry's insertion order.
type Hit struct {
	Key      string
	Score    float32
	Position int
}

// Index is a flat inner-product index.
type Index struct {
	dim     int
	keys    []string
	vectors []float32
}

// Build copies entries into a new Index. Vectors are assumed unit length and
// are not renormalized. An empty entry list yields a valid, empty index.
func Build(entries []Entry) (*Index, error) {
	idx := &Index{}
	if len(entries) == 0 {
		return idx, nil
	}

	idx.dim = len(entries[0].Vector)
	if idx.dim == 0 {
		return nil, wrapError("build", fmt.Errorf("%w: entry %q has no components", ErrDimensionMismatch, entries[0].Key))
	}

	idx.keys = make([]string, 0, len(entries))
	idx.vectors = make([]float32, 0, len(entries)*idx.dim)
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Vector) != idx.dim {
			return nil, wrapError("build", fmt.Errorf("%w: entry %q has %d components, want %d", ErrDimensionMismatch, e.Key, len(e.Vector), idx.dim))
		}
		if _, ok := seen[e.Key]; ok {
			return nil, wrapError("build", fmt.Errorf("%w: %q", ErrDuplicateKey, e.Key))
		}
		seen[e.Key] = struct{}{}
		idx.keys = append(idx.keys, e.Key)
		idx.vectors = append(idx.vectors, e.Vector...)
	}

	return idx, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.keys)
}

// Dim returns the vector dimension, or 0 for an empty index.
func (idx *Index) Dim() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

// Empty reports whether the index holds no vectors.
func (idx *Index) Empty() bool {
	return idx.Len() == 0
}

// Search returns the k highest-scoring entries by inner product, in descending
// score order. Equal scores keep insertion order. The result has length
// min(k, Len()); an empty index returns an empty slice.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if idx == nil {
		return nil, wrapError("search", ErrNotBuilt)
	}
	if idx.Empty() || k <= 0 {
		return []Hit{}, nil
	}
	if len(query) != idx.dim {
		return nil, wrapError("search", fmt.Errorf("%w: query has %d components, want %d", ErrDimensionMismatch, len(query), idx.dim))
	}

	hits := make([]Hit, len(idx.keys))
	for i, key := range idx.keys {
		hits[i] = Hit{
			Key:      key,
			Score:    dot(query, idx.vectors[i*idx.dim:(i+1)*idx.dim]),
			Position: i,
		}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
