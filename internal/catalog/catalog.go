// Package catalog is the read-only, validated snapshot of videos and shots
// that searches run against.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bdougie/shotsearch/internal/attributes"
	"github.com/bdougie/shotsearch/internal/models"
)

var (
	// ErrInvariantViolation marks an upstream data-integrity fault.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrJoinMismatch marks an embedding key that resolves to no shot.
	ErrJoinMismatch = errors.New("embedding key does not resolve to a shot")
)

// durationSlack absorbs rounding in shot boundaries produced by the detector.
const durationSlack = 1e-3

// Violation describes an entity excluded from the catalog.
type Violation struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Entity, v.Reason)
}

func (v Violation) Unwrap() error {
	return v.Err
}

func violation(kind error, entity, format string, args ...any) Violation {
	return Violation{Entity: entity, Reason: fmt.Sprintf(format, args...), Err: kind}
}

// Catalog indexes videos and their shots. It must not be modified after New.
type Catalog struct {
	videos []models.Video
	byID   map[string]int
	shots  map[string][]models.Shot
	byKey  map[string]models.Shot
}

// New validates videos and shots and builds a Catalog. Videos keep their input
// order; shots are grouped per video in input order. Entities breaking an
// invariant are excluded and returned as violations.
func New(videos []models.Video, shots []models.Shot) (*Catalog, []Violation) {
	c := &Catalog{
		byID:  make(map[string]int, len(videos)),
		shots: make(map[string][]models.Shot, len(videos)),
		byKey: make(map[string]models.Shot, len(shots)),
	}
	var violations []Violation

	for _, v := range videos {
		switch {
		case v.ID == "":
			violations = append(violations, violation(ErrInvariantViolation, "video", "empty video id"))
			continue
		case v.Duration < 0:
			violations = append(violations, violation(ErrInvariantViolation, "video "+v.ID, "negative duration %g", v.Duration))
			continue
		}
		if _, ok := c.byID[v.ID]; ok {
			violations = append(violations, violation(ErrInvariantViolation, "video "+v.ID, "duplicate video id"))
			continue
		}
		c.byID[v.ID] = len(c.videos)
		c.videos = append(c.videos, v)
	}

	for _, s := range shots {
		if col, ok := attributes.ParseColor(string(s.Color)); ok {
			s.Color = col
		}
		if b, ok := attributes.ParseBrightness(string(s.Brightness)); ok {
			s.Brightness = b
		}
		if reason := c.checkShot(s); reason != "" {
			violations = append(violations, violation(ErrInvariantViolation, fmt.Sprintf("shot %s/%s", s.VideoID, s.Name), "%s", reason))
			continue
		}
		s.Objects = attributes.Normalize(s.Objects.Raw())
		c.shots[s.VideoID] = append(c.shots[s.VideoID], s)
		c.byKey[JoinKey(s.VideoID, s.Name)] = s
	}

	return c, violations
}

func (c *Catalog) checkShot(s models.Shot) string {
	idx, ok := c.byID[s.VideoID]
	if !ok {
		return "video not in catalog"
	}
	if s.Name == "" {
		return "empty shot name"
	}
	if _, dup := c.byKey[JoinKey(s.VideoID, s.Name)]; dup {
		return "duplicate shot name"
	}
	if s.Start < 0 || s.Start >= s.End {
		return fmt.Sprintf("invalid time range [%g, %g)", s.Start, s.End)
	}
	if d := c.videos[idx].Duration; d > 0 && s.End > d+durationSlack {
		return fmt.Sprintf("ends at %g past video duration %g", s.End, d)
	}
	if prev := c.shots[s.VideoID]; len(prev) > 0 && s.Start < prev[len(prev)-1].End-durationSlack {
		return fmt.Sprintf("overlaps shot %s", prev[len(prev)-1].Name)
	}
	if s.Color != "" {
		if _, ok := attributes.ParseColor(string(s.Color)); !ok {
			return fmt.Sprintf("unknown color %q", s.Color)
		}
	}
	if s.Brightness != "" {
		if _, ok := attributes.ParseBrightness(string(s.Brightness)); !ok {
			return fmt.Sprintf("unknown brightness %q", s.Brightness)
		}
	}
	return ""
}

// Len returns the number of videos.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.videos)
}

// ShotCount returns the number of shots across all videos.
func (c *Catalog) ShotCount() int {
	if c == nil {
		return 0
	}
	return len(c.byKey)
}

// Videos returns the videos in catalog order. Callers must not modify it.
func (c *Catalog) Videos() []models.Video {
	if c == nil {
		return nil
	}
	return c.videos
}

// Video looks up a video by id.
func (c *Catalog) Video(id string) (models.Video, bool) {
	if c == nil {
		return models.Video{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return models.Video{}, false
	}
	return c.videos[idx], true
}

// Shots returns the shots of a video ordered by start time. Callers must not
// modify it.
func (c *Catalog) Shots(videoID string) []models.Shot {
	if c == nil {
		return nil
	}
	return c.shots[videoID]
}

// Shot resolves a join key to its shot.
func (c *Catalog) Shot(key string) (models.Shot, bool) {
	if c == nil {
		return models.Shot{}, false
	}
	s, ok := c.byKey[key]
	return s, ok
}

// Options lists the values a caller can filter on.
type Options struct {
	Objects    []string                `json:"objects"`
	Colors     []attributes.Color      `json:"colors"`
	Brightness []attributes.Brightness `json:"brightness"`
}

// Options collects every distinct object token and color present in the
// catalog, sorted, along with the fixed brightness levels.
func (c *Catalog) Options() Options {
	opts := Options{
		Objects:    []string{},
		Colors:     []attributes.Color{},
		Brightness: attributes.BrightnessLevels,
	}
	if c == nil {
		return opts
	}

	sets := make([]attributes.Set, 0, len(c.byKey))
	colors := make(map[attributes.Color]struct{})
	for _, v := range c.videos {
		for _, s := range c.shots[v.ID] {
			sets = append(sets, s.Objects)
			if s.Color != "" {
				colors[s.Color] = struct{}{}
			}
		}
	}

	opts.Objects = attributes.Union(sets...)
	for col := range colors {
		opts.Colors = append(opts.Colors, col)
	}
	sort.Slice(opts.Colors, func(i, j int) bool { return opts.Colors[i] < opts.Colors[j] })
	return opts
}

// JoinKey builds the key that correlates a shot with its embedding.
func JoinKey(videoID, shotName string) string {
	return videoID + "_" + shotName
}

// embeddingSuffixes are stripped from stored embedding keys, longest first.
var embeddingSuffixes = []string{"_embeddings.npy", ".npy", ".jpeg", ".jpg", ".png"}

// EmbeddingKey brings a stored embedding key such as "00001_shot_0.jpg" to
// the JoinKey scheme.
func EmbeddingKey(key string) string {
	key = strings.TrimSpace(key)
	for _, suffix := range embeddingSuffixes {
		key = strings.TrimSuffix(key, suffix)
	}
	return key
}
