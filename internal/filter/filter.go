// Package filter evaluates object, color and brightness selections against
// shots. A video matches when, for every selected value, some shot carries
// it; a single shot matches only when it carries every selected value itself.
package filter

import (
	"slices"

	"github.com/bdougie/shotsearch/internal/attributes"
	"github.com/bdougie/shotsearch/internal/models"
)

// Selection is the set of values picked in each filter dimension. An empty
// dimension matches everything.
type Selection struct {
	Objects    attributes.Set
	Colors     []attributes.Color
	Brightness []attributes.Brightness
}

// NewSelection builds a Selection from request values. Object tokens go
// through the shared normalizer; colors and brightness levels are matched
// case-insensitively and kept verbatim when unknown, so they match nothing.
func NewSelection(objects, colors, brightness []string) Selection {
	sel := Selection{Objects: attributes.Tokens(objects...)}
	for _, c := range colors {
		col, _ := attributes.ParseColor(c)
		if col != "" && !slices.Contains(sel.Colors, col) {
			sel.Colors = append(sel.Colors, col)
		}
	}
	for _, b := range brightness {
		lvl, _ := attributes.ParseBrightness(b)
		if lvl != "" && !slices.Contains(sel.Brightness, lvl) {
			sel.Brightness = append(sel.Brightness, lvl)
		}
	}
	return sel
}

// Empty reports whether no dimension has a selected value.
func (s Selection) Empty() bool {
	return len(s.Objects) == 0 && len(s.Colors) == 0 && len(s.Brightness) == 0
}

// MatchesVideo reports whether every selected value of every dimension is
// found in at least one of shots. Different shots may satisfy different
// values.
func (s Selection) MatchesVideo(shots []models.Shot) bool {
	for _, obj := range s.Objects {
		if !anyShot(shots, func(sh models.Shot) bool { return sh.Objects.Contains(obj) }) {
			return false
		}
	}
	for _, col := range s.Colors {
		if !anyShot(shots, func(sh models.Shot) bool { return sh.Color == col }) {
			return false
		}
	}
	for _, lvl := range s.Brightness {
		if !anyShot(shots, func(sh models.Shot) bool { return sh.Brightness == lvl }) {
			return false
		}
	}
	return true
}

// MatchesShot reports whether shot alone carries every selected object and
// equals every selected color and brightness. Since a shot has one color and
// one brightness, selecting two values of either dimension never matches.
func (s Selection) MatchesShot(shot models.Shot) bool {
	if !shot.Objects.ContainsAll(s.Objects) {
		return false
	}
	for _, col := range s.Colors {
		if shot.Color != col {
			return false
		}
	}
	for _, lvl := range s.Brightness {
		if shot.Brightness != lvl {
			return false
		}
	}
	return true
}

// Shots returns the shots that match individually, preserving order.
func (s Selection) Shots(shots []models.Shot) []models.Shot {
	out := make([]models.Shot, 0, len(shots))
	for _, sh := range shots {
		if s.MatchesShot(sh) {
			out = append(out, sh)
		}
	}
	return out
}

func anyShot(shots []models.Shot, pred func(models.Shot) bool) bool {
	for _, sh := range shots {
		if pred(sh) {
			return true
		}
	}
	return false
}
