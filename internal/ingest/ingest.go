// Package ingest copies a catalog and its keyframe embeddings from one
// storage backend into another.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bdougie/shotsearch/internal/catalog"
	"github.com/bdougie/shotsearch/internal/embeddings"
	"github.com/bdougie/shotsearch/internal/models"
	"github.com/bdougie/shotsearch/internal/storage"
	"github.com/bdougie/shotsearch/internal/vectorindex"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 50
)

// Stats summarizes an import run
type Stats struct {
	Videos     int
	Shots      int
	Embeddings int
	Violations int
	Dropped    int
}

// Importer validates a dataset and writes the clean part of it to a sink
type Importer struct {
	sink      storage.Sink
	logger    *slog.Logger
	workers   int
	batchSize int
}

// NewImporter creates an importer writing to sink with the given number of
// concurrent writers.
func NewImporter(sink storage.Sink, workers int, logger *slog.Logger) *Importer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Importer{
		sink:      sink,
		logger:    logger.With("component", "ingest"),
		workers:   workers,
		batchSize: defaultBatchSize,
	}
}

// workItem is one batch of rows for a writer
type workItem struct {
	kind  string
	shots []models.Shot
	embs  []models.Embedding
	num   int
	total int
}

// Import writes ds to the sink. Records the catalog rejects and embeddings
// that resolve to no shot are skipped and counted. Vectors are stored unit
// normalized.
func (im *Importer) Import(ctx context.Context, ds *storage.Dataset) (Stats, error) {
	cat, violations := catalog.New(ds.Videos, ds.Shots)
	binding := cat.Bind(ds.Embeddings, vectorindex.Dimension)
	violations = append(violations, binding.Violations...)
	for _, v := range violations {
		im.logger.Warn("skipping record", "entity", v.Entity, "reason", v.Reason)
	}

	stats := Stats{
		Violations: len(violations),
		Dropped:    len(binding.Dropped),
	}
	if err := binding.DropError(); err != nil {
		im.logger.Warn("skipping embeddings", "count", stats.Dropped, "error", err)
	}

	if err := im.sink.InitSchema(ctx); err != nil {
		return stats, fmt.Errorf("failed to prepare sink: %w", err)
	}

	// Videos go first; shots reference them.
	videos := cat.Videos()
	if err := im.sink.SaveVideos(ctx, videos); err != nil {
		return stats, fmt.Errorf("failed to store videos: %w", err)
	}
	stats.Videos = len(videos)

	var shots []models.Shot
	for _, v := range videos {
		shots = append(shots, cat.Shots(v.ID)...)
	}
	if err := im.run(ctx, im.shotBatches(shots)); err != nil {
		return stats, err
	}
	stats.Shots = len(shots)

	embs := make([]models.Embedding, 0, len(binding.Embeddings))
	for _, e := range binding.Embeddings {
		vec, err := embeddings.Normalize(e.Vector)
		if err != nil {
			im.logger.Warn("skipping embedding", "key", e.Key, "error", err)
			stats.Violations++
			continue
		}
		embs = append(embs, models.Embedding{Key: e.Key, Vector: vec})
	}
	if err := im.run(ctx, im.embeddingBatches(embs)); err != nil {
		return stats, err
	}
	stats.Embeddings = len(embs)

	im.logger.Info("import finished",
		"videos", stats.Videos,
		"shots", stats.Shots,
		"embeddings", stats.Embeddings,
		"violations", stats.Violations,
		"dropped", stats.Dropped,
	)
	return stats, nil
}

func (im *Importer) shotBatches(shots []models.Shot) []workItem {
	var items []workItem
	for start := 0; start < len(shots); start += im.batchSize {
		end := min(start+im.batchSize, len(shots))
		items = append(items, workItem{kind: "shots", shots: shots[start:end]})
	}
	return number(items)
}

func (im *Importer) embeddingBatches(embs []models.Embedding) []workItem {
	var items []workItem
	for start := 0; start < len(embs); start += im.batchSize {
		end := min(start+im.batchSize, len(embs))
		items = append(items, workItem{kind: "embeddings", embs: embs[start:end]})
	}
	return number(items)
}

func number(items []workItem) []workItem {
	for i := range items {
		items[i].num = i + 1
		items[i].total = len(items)
	}
	return items
}

// run writes items with a bounded pool of workers and joins their errors
func (im *Importer) run(ctx context.Context, items []workItem) error {
	if len(items) == 0 {
		return nil
	}

	workChan := make(chan workItem, len(items))
	errorsChan := make(chan error, len(items))

	var wg sync.WaitGroup
	remaining := atomic.Int64{}
	remaining.Store(int64(len(items)))

	for i := 0; i < im.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				if err := ctx.Err(); err != nil {
					errorsChan <- err
					continue
				}
				if err := im.write(ctx, work); err != nil {
					errorsChan <- fmt.Errorf("%s batch %d/%d failed: %w", work.kind, work.num, work.total, err)
					continue
				}
				left := remaining.Add(-1)
				im.logger.Debug("batch stored", "kind", work.kind, "remaining", left, "total", work.total)
			}
		}()
	}

	for _, item := range items {
		workChan <- item
	}
	close(workChan)

	wg.Wait()
	close(errorsChan)

	var errs []error
	var messages []string
	for err := range errorsChan {
		errs = append(errs, err)
		messages = append(messages, err.Error())
	}
	if len(errs) > 0 {
		im.logger.Error("import batches failed", "count", len(errs), "errors", strings.Join(messages, "; "))
		return errors.Join(errs...)
	}
	return nil
}

func (im *Importer) write(ctx context.Context, work workItem) error {
	switch work.kind {
	case "shots":
		return im.sink.SaveShots(ctx, work.shots)
	case "embeddings":
		return im.sink.SaveEmbeddings(ctx, work.embs)
	default:
		return fmt.Errorf("unknown batch kind %q", work.kind)
	}
}
