package fusion

import (
	"reflect"
	"testing"

	"github.com/bdougie/shotsearch/internal/models"
	"github.com/bdougie/shotsearch/internal/vectorindex"
)

type mapLookup map[string]models.Shot

func (m mapLookup) Shot(key string) (models.Shot, bool) {
	s, ok := m[key]
	return s, ok
}

func fixture() mapLookup {
	return mapLookup{
		"V1_s0": {VideoID: "V1", Name: "s0", Start: 0, End: 5},
		"V1_s1": {VideoID: "V1", Name: "s1", Start: 5, End: 9},
		"V2_s0": {VideoID: "V2", Name: "s0", Start: 0, End: 4},
		"V2_s1": {VideoID: "V2", Name: "s1", Start: 4, End: 8},
		"V3_s0": {VideoID: "V3", Name: "s0", Start: 0, End: 3},
	}
}

func hits(keys ...string) []vectorindex.Hit {
	out := make([]vectorindex.Hit, len(keys))
	for i, k := range keys {
		out[i] = vectorindex.Hit{Key: k, Score: float32(len(keys) - i), Position: i}
	}
	return out
}

func TestFuseFirstOccurrence(t *testing.T) {
	res := Fuse(hits("V2_s1", "V1_s0", "V2_s0", "ghost", "V1_s1"), fixture())

	if want := []string{"V2", "V1"}; !reflect.DeepEqual(res.VideoIDs, want) {
		t.Fatalf("VideoIDs = %v, want %v", res.VideoIDs, want)
	}
	if res.Representatives[0].Name != "s1" || res.Representatives[1].Name != "s0" {
		t.Errorf("unexpected representatives: %+v", res.Representatives)
	}
	if res.Matched != 4 {
		t.Errorf("Matched = %d, want 4", res.Matched)
	}
	if !reflect.DeepEqual(res.Dropped, []string{"ghost"}) {
		t.Errorf("Dropped = %v", res.Dropped)
	}

	wantRank := map[models.ShotKey]int{
		{VideoID: "V2", Name: "s1"}: 0,
		{VideoID: "V1", Name: "s0"}: 1,
		{VideoID: "V2", Name: "s0"}: 2,
		{VideoID: "V1", Name: "s1"}: 4,
	}
	if !reflect.DeepEqual(res.ShotRank, wantRank) {
		t.Errorf("ShotRank = %v, want %v", res.ShotRank, wantRank)
	}
	if pos, ok := res.VideoRank("V1"); !ok || pos != 1 {
		t.Errorf("VideoRank(V1) = %d, %v", pos, ok)
	}
	if _, ok := res.VideoRank("V3"); ok {
		t.Error("V3 has no hits and must not be ranked")
	}
}

func TestFuseDeterministic(t *testing.T) {
	in := hits("V1_s1", "V3_s0", "V2_s0", "V1_s0", "V2_s1")
	first := Fuse(in, fixture())
	for i := 0; i < 20; i++ {
		again := Fuse(in, fixture())
		if !reflect.DeepEqual(first.VideoIDs, again.VideoIDs) ||
			!reflect.DeepEqual(first.Representatives, again.Representatives) {
			t.Fatalf("run %d differs: %v vs %v", i, first.VideoIDs, again.VideoIDs)
		}
	}
}

func TestFuseDedup(t *testing.T) {
	res := Fuse(hits("V1_s0", "V1_s1", "V1_s0", "V2_s0", "V2_s1", "V3_s0"), fixture())
	seen := map[string]bool{}
	for _, id := range res.VideoIDs {
		if seen[id] {
			t.Fatalf("video %s appears twice in %v", id, res.VideoIDs)
		}
		seen[id] = true
	}
	if len(res.VideoIDs) != len(res.Representatives) {
		t.Errorf("representatives not aligned with videos")
	}
	if pos := res.ShotRank[models.ShotKey{VideoID: "V1", Name: "s0"}]; pos != 0 {
		t.Errorf("repeated hit must keep its first rank, got %d", pos)
	}
}

func TestFuseEmpty(t *testing.T) {
	res := Fuse(nil, fixture())
	if res.VideoIDs == nil || len(res.VideoIDs) != 0 {
		t.Errorf("expected empty, non-nil video list")
	}
	if res.Matched != 0 || len(res.Dropped) != 0 {
		t.Errorf("unexpected counts: %+v", res)
	}
}
