// Package fusion turns a similarity-ordered list of shot hits into a
// video-level ranking.
package fusion

import (
	"github.com/bdougie/shotsearch/internal/models"
	"github.com/bdougie/shotsearch/internal/vectorindex"
)

// ShotLookup resolves a join key to a catalog shot.
type ShotLookup interface {
	Shot(key string) (models.Shot, bool)
}

// Result is the fused ranking.
type Result struct {
	// VideoIDs lists each video once, ordered by its best hit.
	VideoIDs []string
	// Representatives holds the best hit of each video, aligned with VideoIDs.
	Representatives []models.Shot
	// ShotRank maps every resolved shot to its 0-based position in the hits.
	ShotRank map[models.ShotKey]int
	// Matched counts hits that resolved to a shot.
	Matched int
	// Dropped lists hit keys that resolved to no shot, in hit order.
	Dropped []string

	videoRank map[string]int
}

// Rank returns the position of a shot in the similarity order.
func (r Result) Rank(key models.ShotKey) (int, bool) {
	pos, ok := r.ShotRank[key]
	return pos, ok
}

// VideoRank returns the 0-based position of a video in VideoIDs.
func (r Result) VideoRank(videoID string) (int, bool) {
	pos, ok := r.videoRank[videoID]
	return pos, ok
}

// Fuse scans hits once. A video is placed at the position of its first
// resolved hit and later hits of the same video only contribute to ShotRank.
// The output depends only on the order of hits.
func Fuse(hits []vectorindex.Hit, lookup ShotLookup) Result {
	res := Result{
		VideoIDs:        []string{},
		Representatives: []models.Shot{},
		ShotRank:        make(map[models.ShotKey]int, len(hits)),
		videoRank:       make(map[string]int),
	}

	for pos, hit := range hits {
		shot, ok := lookup.Shot(hit.Key)
		if !ok {
			res.Dropped = append(res.Dropped, hit.Key)
			continue
		}
		res.Matched++

		if _, ranked := res.ShotRank[shot.Key()]; !ranked {
			res.ShotRank[shot.Key()] = pos
		}
		if _, ok := res.videoRank[shot.VideoID]; ok {
			continue
		}
		res.videoRank[shot.VideoID] = len(res.VideoIDs)
		res.VideoIDs = append(res.VideoIDs, shot.VideoID)
		res.Representatives = append(res.Representatives, shot)
	}

	return res
}
