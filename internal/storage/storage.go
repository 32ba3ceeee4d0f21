package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/shotsearch/internal/models"
)

const batchSize = 100 // Rows written per batch by the sinks

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Source reads the catalog and its embeddings. LoadShots returns shots
// ordered by video id and start time, whatever order they were saved in.
type Source interface {
	LoadVideos(ctx context.Context) ([]models.Video, error)
	LoadShots(ctx context.Context) ([]models.Shot, error)
	LoadEmbeddings(ctx context.Context) ([]models.Embedding, error)
	Close() error
}

// Sink persists the catalog and its embeddings. Saves are upserts.
type Sink interface {
	InitSchema(ctx context.Context) error
	SaveVideos(ctx context.Context, videos []models.Video) error
	SaveShots(ctx context.Context, shots []models.Shot) error
	SaveEmbeddings(ctx context.Context, embs []models.Embedding) error
	Close() error
}

// Dataset is everything a snapshot is built from
type Dataset struct {
	Videos     []models.Video
	Shots      []models.Shot
	Embeddings []models.Embedding
}

// Load reads the three collections of src concurrently.
func Load(ctx context.Context, src Source) (*Dataset, error) {
	var ds Dataset
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		videos, err := src.LoadVideos(ctx)
		if err != nil {
			return fmt.Errorf("load videos: %w", err)
		}
		ds.Videos = videos
		return nil
	})
	g.Go(func() error {
		shots, err := src.LoadShots(ctx)
		if err != nil {
			return fmt.Errorf("load shots: %w", err)
		}
		ds.Shots = shots
		return nil
	})
	g.Go(func() error {
		embs, err := src.LoadEmbeddings(ctx)
		if err != nil {
			return fmt.Errorf("load embeddings: %w", err)
		}
		ds.Embeddings = embs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// sortShots orders shots by video and start time, the order catalog.New
// expects.
func sortShots(shots []models.Shot) {
	slices.SortStableFunc(shots, func(a, b models.Shot) int {
		return cmp.Or(cmp.Compare(a.VideoID, b.VideoID), cmp.Compare(a.Start, b.Start))
	})
}

// chunks splits n items into [start, end) ranges of at most size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Store is a backend that can be both read and written.
type Store interface {
	Source
	Sink
}

// Options selects and configures a backend.
type Options struct {
	Backend        string // postgres, sqlite or json
	Postgres       PostgresConfig
	SQLitePath     string
	CatalogPath    string
	EmbeddingsPath string
}

// Open connects to the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "postgres":
		return NewPostgresStorage(ctx, opts.Postgres)
	case "sqlite":
		return NewSQLiteStorage(ctx, opts.SQLitePath)
	case "json":
		return NewJSONStorage(opts.CatalogPath, opts.EmbeddingsPath), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
