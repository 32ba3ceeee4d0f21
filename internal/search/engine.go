// Package search answers queries against the current snapshot: it ranks
// videos by query similarity when it can, applies attribute filters, and
// picks the keyframe to surface for each video.
package search

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bdougie/shotsearch/internal/catalog"
	"github.com/bdougie/shotsearch/internal/filter"
	"github.com/bdougie/shotsearch/internal/fusion"
	"github.com/bdougie/shotsearch/internal/models"
	"github.com/bdougie/shotsearch/internal/vectorindex"
)

// Encoder embeds query text into the keyframe vector space.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Mode tells how the videos of a result are ordered.
type Mode string

const (
	// Unranked orders videos by catalog order and shots by start time.
	Unranked Mode = "unranked"
	// Ranked orders videos and shots by query similarity.
	Ranked Mode = "ranked"
)

// Query is a single search request.
type Query struct {
	Text       string   `json:"text"`
	Objects    []string `json:"objects,omitempty"`
	Colors     []string `json:"colors,omitempty"`
	Brightness []string `json:"brightness,omitempty"`
}

// Engine runs queries. It is safe for concurrent use.
type Engine struct {
	current atomic.Pointer[Snapshot]
	encoder Encoder
	topK    int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEncoder enables ranked mode.
func WithEncoder(enc Encoder) Option {
	return func(e *Engine) {
		e.encoder = enc
	}
}

// WithTopK caps the number of similarity hits fused per query. Zero means the
// whole index.
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// NewEngine creates an engine serving snap.
func NewEngine(snap *Snapshot, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{logger: logger.With("component", "search")}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(snap)
	return e
}

// Snapshot returns the snapshot queries currently run against.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Swap installs a new snapshot. In-flight queries keep the one they started
// with.
func (e *Engine) Swap(snap *Snapshot) *Snapshot {
	return e.current.Swap(snap)
}

// Search runs q against the current snapshot. It never fails: a missing
// index, an encoder error or a malformed query fall back to unranked mode,
// and an empty catalog yields an empty result.
func (e *Engine) Search(ctx context.Context, q Query) *Result {
	snap := e.current.Load()
	res := &Result{
		RequestID: uuid.New(),
		Query:     q,
		Mode:      Unranked,
		Videos:    []VideoResult{},
	}
	if snap == nil || snap.Catalog.Len() == 0 {
		return res
	}
	res.Diagnostics.DroppedEmbeddings = len(snap.Dropped)
	res.Diagnostics.Violations = snap.Violations

	sel := filter.NewSelection(q.Objects, q.Colors, q.Brightness)
	log := e.logger.With("request_id", res.RequestID)

	fused, ok := e.rank(ctx, snap, q.Text, log)
	if ok {
		res.Mode = Ranked
		res.Diagnostics.Matches = fused.Matched
		res.Diagnostics.UnresolvedHits = len(fused.Dropped)
		if len(fused.Dropped) > 0 {
			log.Warn("similarity hits without a shot", "count", len(fused.Dropped), "error", catalog.ErrJoinMismatch)
		}
	}

	var videos []models.Video
	if res.Mode == Ranked {
		videos = make([]models.Video, 0, len(fused.VideoIDs))
		for _, id := range fused.VideoIDs {
			if v, ok := snap.Catalog.Video(id); ok {
				videos = append(videos, v)
			}
		}
	} else {
		videos = snap.Catalog.Videos()
	}

	for _, v := range videos {
		shots := snap.Catalog.Shots(v.ID)
		if !sel.MatchesVideo(shots) {
			continue
		}

		vr := VideoResult{Video: v}
		if res.Mode == Ranked {
			pos, _ := fused.VideoRank(v.ID)
			vr.Rank = pos + 1
		}
		vr.Shots = orderShots(shots, fused)
		vr.Filtered = make([]RankedShot, 0, len(vr.Shots))
		for _, s := range vr.Shots {
			if sel.MatchesShot(s.Shot) {
				vr.Filtered = append(vr.Filtered, s)
			}
		}
		switch {
		case len(vr.Filtered) > 0:
			kf := vr.Filtered[0]
			vr.Keyframe = &kf
		case len(vr.Shots) > 0:
			kf := vr.Shots[0]
			vr.Keyframe = &kf
		}
		res.Videos = append(res.Videos, vr)
	}

	log.Debug("search done",
		"mode", res.Mode,
		"videos", len(res.Videos),
		"matches", res.Diagnostics.Matches,
	)
	return res
}

// rank embeds the query and fuses the similarity order. It reports false
// when the query has to be answered unranked.
func (e *Engine) rank(ctx context.Context, snap *Snapshot, text string, log *slog.Logger) (fusion.Result, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !utf8.ValidString(text) || e.encoder == nil {
		return fusion.Result{}, false
	}

	idx := snap.Index
	switch {
	case idx == nil:
		log.Info("falling back to unranked", "error", vectorindex.ErrNotBuilt)
		return fusion.Result{}, false
	case idx.Empty():
		log.Info("falling back to unranked", "reason", "index has no vectors")
		return fusion.Result{}, false
	}

	vec, err := e.encoder.Embed(ctx, text)
	if err != nil {
		log.Warn("falling back to unranked", "error", err)
		return fusion.Result{}, false
	}

	k := idx.Len()
	if e.topK > 0 && e.topK < k {
		k = e.topK
	}
	hits, err := idx.Search(vec, k)
	if err != nil {
		if errors.Is(err, vectorindex.ErrDimensionMismatch) {
			log.Error("encoder and index disagree on dimension", "error", err)
		} else {
			log.Warn("falling back to unranked", "error", err)
		}
		return fusion.Result{}, false
	}

	return fusion.Fuse(hits, snap.Catalog), true
}

// orderShots sorts shots by similarity rank, shots without a rank last, with
// start time as the tiebreak. An empty fusion result orders by start time.
func orderShots(shots []models.Shot, fused fusion.Result) []RankedShot {
	out := make([]RankedShot, len(shots))
	for i, s := range shots {
		out[i] = RankedShot{Shot: s}
		if pos, ok := fused.Rank(s.Key()); ok {
			out[i].Rank = pos + 1
		}
	}

	sortKey := func(s RankedShot) float64 {
		if s.Rank == 0 {
			return math.Inf(1)
		}
		return float64(s.Rank)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortKey(out[i]), sortKey(out[j])
		if a != b {
			return a < b
		}
		return out[i].Start < out[j].Start
	})
	return out
}
