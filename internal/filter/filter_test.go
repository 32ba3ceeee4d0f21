package filter

import (
	"testing"

	"github.com/bdougie/shotsearch/internal/attributes"
	"github.com/bdougie/shotsearch/internal/models"
)

var (
	redCar = models.Shot{
		VideoID: "v", Name: "s0", Start: 0, End: 5,
		Color: attributes.Red, Brightness: attributes.Dark,
		Objects: attributes.Tokens("car"),
	}
	blueDog = models.Shot{
		VideoID: "v", Name: "s1", Start: 5, End: 9,
		Color: attributes.Blue, Brightness: attributes.Bright,
		Objects: attributes.Tokens("dog"),
	}
)

func TestExistentialVideoMatch(t *testing.T) {
	sel := NewSelection([]string{"car", "dog"}, []string{"Red", "Blue"}, nil)
	if !sel.MatchesVideo([]models.Shot{redCar, blueDog}) {
		t.Error("video should match: every value is carried by some shot")
	}
	for _, sh := range []models.Shot{redCar, blueDog} {
		if sel.MatchesShot(sh) {
			t.Errorf("shot %s alone must not match", sh.Name)
		}
	}
}

func TestStrictShotMatch(t *testing.T) {
	sel := NewSelection([]string{"car", "dog"}, nil, nil)
	if sel.MatchesShot(redCar) {
		t.Error("shot without dog must not match objects [car dog]")
	}

	single := NewSelection([]string{"car"}, []string{"red"}, []string{"dark"})
	if !single.MatchesShot(redCar) {
		t.Error("shot should match car/Red/Dark")
	}
}

func TestMultiSelectSingleValuedDimension(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want bool
	}{
		{"two colors", NewSelection(nil, []string{"Red", "Blue"}, nil), false},
		{"two brightness", NewSelection(nil, nil, []string{"Dark", "Bright"}), false},
		{"repeated color", NewSelection(nil, []string{"Red", "red"}, nil), true},
		{"one color", NewSelection(nil, []string{"Red"}, nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.MatchesShot(redCar); got != tt.want {
				t.Errorf("MatchesShot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptySelectionIsIdentity(t *testing.T) {
	sel := NewSelection(nil, nil, nil)
	if !sel.Empty() {
		t.Fatal("expected empty selection")
	}
	if !sel.MatchesVideo(nil) {
		t.Error("empty selection must match a video without shots")
	}
	if !sel.MatchesShot(models.Shot{}) {
		t.Error("empty selection must match any shot")
	}
}

func TestVideoMissingValue(t *testing.T) {
	shots := []models.Shot{redCar, blueDog}
	tests := []struct {
		name string
		sel  Selection
	}{
		{"object", NewSelection([]string{"car", "cat"}, nil, nil)},
		{"color", NewSelection(nil, []string{"Red", "Green"}, nil)},
		{"brightness", NewSelection(nil, nil, []string{"Medium"})},
		{"unknown color", NewSelection(nil, []string{"Teal"}, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sel.MatchesVideo(shots) {
				t.Error("video must not match")
			}
		})
	}
}

func TestSelectionNormalizesObjects(t *testing.T) {
	sel := NewSelection([]string{" 'car' ", "[dog]"}, nil, nil)
	if !sel.MatchesVideo([]models.Shot{redCar, blueDog}) {
		t.Errorf("normalized selection %q should match", sel.Objects)
	}
	if got := sel.Shots([]models.Shot{redCar, blueDog}); len(got) != 0 {
		t.Errorf("expected no individually matching shots, got %d", len(got))
	}
}
