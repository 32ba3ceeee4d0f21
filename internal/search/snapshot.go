package search

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bdougie/shotsearch/internal/catalog"
	"github.com/bdougie/shotsearch/internal/models"
	"github.com/bdougie/shotsearch/internal/vectorindex"
)

// Snapshot pairs a catalog with the index built from its embeddings. Both
// are immutable; a reload builds a new Snapshot and swaps it in.
type Snapshot struct {
	Catalog    *catalog.Catalog
	Index      *vectorindex.Index
	Violations []catalog.Violation
	Dropped    []string
	BuiltAt    time.Time
}

// NewSnapshot validates the catalog, binds embeddings to shots and builds the
// index. Bad records are excluded and reported, never fatal.
func NewSnapshot(videos []models.Video, shots []models.Shot, embs []models.Embedding, logger *slog.Logger) (*Snapshot, error) {
	cat, violations := catalog.New(videos, shots)
	binding := cat.Bind(embs, vectorindex.Dimension)
	violations = append(violations, binding.Violations...)

	for _, v := range violations {
		logger.Warn("excluded record", "entity", v.Entity, "reason", v.Reason)
	}
	if err := binding.DropError(); err != nil {
		logger.Warn("dropped embeddings", "count", len(binding.Dropped), "error", err)
	}

	entries := make([]vectorindex.Entry, len(binding.Embeddings))
	for i, e := range binding.Embeddings {
		entries[i] = vectorindex.Entry{Key: e.Key, Vector: e.Vector}
	}
	idx, err := vectorindex.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	logger.Info("snapshot built",
		"videos", cat.Len(),
		"shots", cat.ShotCount(),
		"vectors", idx.Len(),
		"dropped", len(binding.Dropped),
		"violations", len(violations),
	)

	return &Snapshot{
		Catalog:    cat,
		Index:      idx,
		Violations: violations,
		Dropped:    binding.Dropped,
		BuiltAt:    time.Now(),
	}, nil
}
