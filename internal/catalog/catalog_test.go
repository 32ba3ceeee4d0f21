package catalog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bdougie/shotsearch/internal/attributes"
	"github.com/bdougie/shotsearch/internal/models"
)

func shot(video, name string, start, end float64, color attributes.Color, objs ...string) models.Shot {
	return models.Shot{
		VideoID:    video,
		Name:       name,
		Start:      start,
		End:        end,
		Color:      color,
		Brightness: attributes.Medium,
		Objects:    attributes.Tokens(objs...),
	}
}

func TestNewKeepsOrder(t *testing.T) {
	videos := []models.Video{
		{ID: "00002", Duration: 30},
		{ID: "00001", Duration: 20},
	}
	shots := []models.Shot{
		shot("00001", "shot_0", 0, 5, attributes.Red, "car"),
		shot("00002", "shot_0", 0, 10, attributes.Blue),
		shot("00001", "shot_1", 5, 20, attributes.Green, "dog"),
	}

	c, violations := New(videos, shots)
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if c.Len() != 2 || c.ShotCount() != 3 {
		t.Fatalf("expected 2 videos and 3 shots, got %d and %d", c.Len(), c.ShotCount())
	}
	if c.Videos()[0].ID != "00002" {
		t.Errorf("catalog order lost: first video %s", c.Videos()[0].ID)
	}
	got := c.Shots("00001")
	if len(got) != 2 || got[0].Name != "shot_0" || got[1].Name != "shot_1" {
		t.Errorf("unexpected shots for 00001: %+v", got)
	}
	if s, ok := c.Shot("00001_shot_1"); !ok || s.Name != "shot_1" {
		t.Errorf("join key lookup failed: %+v %v", s, ok)
	}
}

func TestNewReportsViolations(t *testing.T) {
	videos := []models.Video{
		{ID: "v1", Duration: 10},
		{ID: "v1", Duration: 12},
		{ID: "bad", Duration: -1},
	}
	shots := []models.Shot{
		shot("v1", "ok", 0, 4, attributes.Red),
		shot("v1", "inverted", 6, 5, attributes.Red),
		shot("v1", "overlap", 3, 6, attributes.Red),
		shot("v1", "ok", 4, 5, attributes.Red),
		shot("v1", "past_end", 5, 11, attributes.Red),
		shot("ghost", "s", 0, 1, attributes.Red),
		shot("v1", "odd_color", 5, 6, attributes.Color("Teal")),
		shot("v1", "tail", 6, 10, attributes.Color("red")),
	}

	c, violations := New(videos, shots)
	if len(violations) != 8 {
		t.Fatalf("expected 8 violations, got %d: %v", len(violations), violations)
	}
	for _, v := range violations {
		if !errors.Is(v, ErrInvariantViolation) {
			t.Errorf("violation %v does not wrap ErrInvariantViolation", v)
		}
	}

	got := c.Shots("v1")
	if len(got) != 2 || got[0].Name != "ok" || got[1].Name != "tail" {
		t.Fatalf("unexpected surviving shots: %+v", got)
	}
	if got[1].Color != attributes.Red {
		t.Errorf("color not canonicalized: %q", got[1].Color)
	}
	if v, _ := c.Video("v1"); v.Duration != 10 {
		t.Errorf("first video definition should win, got duration %g", v.Duration)
	}
}

func TestNewNormalizesObjects(t *testing.T) {
	videos := []models.Video{{ID: "V1", Duration: 10}}
	shots := []models.Shot{
		{VideoID: "V1", Name: "a", Start: 0, End: 5, Objects: attributes.Set{"dog", "car", " car"}},
		{VideoID: "V1", Name: "b", Start: 5, End: 10},
	}

	c, violations := New(videos, shots)
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	got := c.Shots("V1")
	if want := (attributes.Set{"car", "dog"}); !reflect.DeepEqual(got[0].Objects, want) {
		t.Errorf("objects = %v, want %v", got[0].Objects, want)
	}
	if !got[0].Objects.Contains("car") {
		t.Error("normalized set does not contain car")
	}
	if got[1].Objects == nil || len(got[1].Objects) != 0 {
		t.Errorf("missing objects = %#v, want empty set", got[1].Objects)
	}
	if s, _ := c.Shot(JoinKey("V1", "a")); !s.Objects.Contains("dog") {
		t.Errorf("shot lookup objects = %v", s.Objects)
	}
}

func TestEmbeddingKey(t *testing.T) {
	tests := map[string]string{
		"00001_shot_0.jpg":                "00001_shot_0",
		"00001_shot_0.jpg_embeddings.npy": "00001_shot_0",
		"00001_shot_0":                    "00001_shot_0",
		" 00002_shot_12.png ":             "00002_shot_12",
	}
	for in, want := range tests {
		if got := EmbeddingKey(in); got != want {
			t.Errorf("EmbeddingKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBind(t *testing.T) {
	c, _ := New(
		[]models.Video{{ID: "v1", Duration: 10}},
		[]models.Shot{
			shot("v1", "shot_0", 0, 5, attributes.Red),
			shot("v1", "shot_1", 5, 10, attributes.Red),
		},
	)

	b := c.Bind([]models.Embedding{
		{Key: "v1_shot_0.jpg", Vector: []float32{1, 0}},
		{Key: "v9_shot_0.jpg", Vector: []float32{0, 1}},
		{Key: "v1_shot_0", Vector: []float32{0, 1}},
		{Key: "v1_shot_1.jpg", Vector: []float32{0, 1, 0}},
	}, 0)

	if len(b.Embeddings) != 1 || b.Embeddings[0].Key != "v1_shot_0" {
		t.Errorf("unexpected bound embeddings: %+v", b.Embeddings)
	}
	if !reflect.DeepEqual(b.Dropped, []string{"v9_shot_0.jpg"}) {
		t.Errorf("unexpected dropped keys: %v", b.Dropped)
	}
	if len(b.Violations) != 2 {
		t.Errorf("expected 2 violations, got %v", b.Violations)
	}
	if err := b.DropError(); !errors.Is(err, ErrJoinMismatch) {
		t.Errorf("expected ErrJoinMismatch, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	c, _ := New(
		[]models.Video{{ID: "a", Duration: 10}, {ID: "b", Duration: 10}},
		[]models.Shot{
			shot("a", "s0", 0, 5, attributes.Red, "person", "car"),
			shot("b", "s0", 0, 5, attributes.Blue, "car, dog"),
			shot("b", "s1", 5, 10, attributes.Red),
		},
	)

	opts := c.Options()
	if want := []string{"car", "dog", "person"}; !reflect.DeepEqual(opts.Objects, want) {
		t.Errorf("objects = %v, want %v", opts.Objects, want)
	}
	if want := []attributes.Color{attributes.Blue, attributes.Red}; !reflect.DeepEqual(opts.Colors, want) {
		t.Errorf("colors = %v, want %v", opts.Colors, want)
	}
	if len(opts.Brightness) != 3 {
		t.Errorf("expected 3 brightness levels, got %v", opts.Brightness)
	}
}
