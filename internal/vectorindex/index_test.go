package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
)

// unit returns a Dimension-length vector with weight on the first two axes.
func unit(x, y float64) []float32 {
	v := make([]float32, Dimension)
	n := math.Hypot(x, y)
	v[0] = float32(x / n)
	v[1] = float32(y / n)
	return v
}

func TestSearchBeforeBuild(t *testing.T) {
	var idx *Index
	_, err := idx.Search(unit(1, 0), 3)
	if !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := Build(nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !idx.Empty() {
		t.Fatal("expected empty index")
	}

	hits, err := idx.Search(unit(1, 0), 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected explicit empty result, got %#v", hits)
	}
}

func TestSearchOrdering(t *testing.T) {
	idx, err := Build([]Entry{
		{Key: "a", Vector: unit(0, 1)},
		{Key: "b", Vector: unit(1, 0)},
		{Key: "c", Vector: unit(1, 1)},
		{Key: "d", Vector: unit(1, 0)},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	hits, err := idx.Search(unit(1, 0), 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []string{"b", "d", "c", "a"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, h := range hits {
		if h.Key != want[i] {
			t.Errorf("hit %d = %s, want %s", i, h.Key, want[i])
		}
	}
	if hits[0].Position != 1 || hits[1].Position != 3 {
		t.Errorf("tied hits should keep insertion order, got positions %d, %d", hits[0].Position, hits[1].Position)
	}
}

func TestSearchTopKBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	entries := make([]Entry, 50)
	for i := range entries {
		entries[i] = Entry{Key: fmt.Sprintf("v_shot_%d", i), Vector: unit(rng.Float64()-0.5, rng.Float64()-0.5)}
	}
	idx, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, k := range []int{0, 1, 10, 50, 80} {
		hits, err := idx.Search(unit(0.3, 0.7), k)
		if err != nil {
			t.Fatalf("Search(k=%d) failed: %v", k, err)
		}
		if want := min(k, idx.Len()); len(hits) != want {
			t.Errorf("Search(k=%d) returned %d hits, want %d", k, len(hits), want)
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score > hits[i-1].Score {
				t.Errorf("k=%d: score increased at %d: %f > %f", k, i, hits[i].Score, hits[i-1].Score)
			}
		}
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := Build([]Entry{
		{Key: "a", Vector: unit(1, 0)},
		{Key: "b", Vector: []float32{1, 0}},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	_, err = Build([]Entry{
		{Key: "a", Vector: unit(1, 0)},
		{Key: "a", Vector: unit(0, 1)},
	})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	var ie *IndexError
	if !errors.As(err, &ie) || ie.Op != "build" {
		t.Errorf("expected IndexError with op build, got %v", err)
	}
}

func TestSearchQueryDimension(t *testing.T) {
	idx, err := Build([]Entry{{Key: "a", Vector: unit(1, 0)}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := idx.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestConcurrentSearch(t *testing.T) {
	entries := make([]Entry, 20)
	for i := range entries {
		entries[i] = Entry{Key: fmt.Sprintf("k%d", i), Vector: unit(float64(i), 1)}
	}
	idx, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	first, _ := idx.Search(unit(1, 0), 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := idx.Search(unit(1, 0), 5)
			if err != nil {
				t.Errorf("Search failed: %v", err)
				return
			}
			for j := range hits {
				if hits[j].Key != first[j].Key {
					t.Errorf("concurrent result differs at %d", j)
					return
				}
			}
		}()
	}
	wg.Wait()
}
