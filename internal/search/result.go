package search

import (
	"github.com/google/uuid"

	"github.com/bdougie/shotsearch/internal/catalog"
	"github.com/bdougie/shotsearch/internal/models"
)

// RankedShot is a shot with its 1-based position in the similarity order, or
// 0 when the query did not reach it.
type RankedShot struct {
	models.Shot
	Rank int `json:"rank,omitempty"`
}

// Ranked reports whether the shot appeared in the similarity order.
func (s RankedShot) Ranked() bool {
	return s.Rank > 0
}

// VideoResult is one video of a result. Rank is the 1-based similarity rank
// of the video, 0 in unranked mode. Keyframe is the first filtered shot, else
// the first shot; it is nil only when the video has no shots.
type VideoResult struct {
	Video    models.Video `json:"video"`
	Rank     int          `json:"rank,omitempty"`
	Keyframe *RankedShot  `json:"keyframe"`
	Shots    []RankedShot `json:"shots"`
	Filtered []RankedShot `json:"filtered"`
}

// Diagnostics are counters for observability; none of them is an error.
// DroppedEmbeddings counts embeddings discarded at load for lack of a shot,
// UnresolvedHits the similarity hits this query could not resolve and
// Matches the hits that resolved to a shot.
type Diagnostics struct {
	DroppedEmbeddings int                 `json:"dropped_embeddings"`
	UnresolvedHits    int                 `json:"unresolved_hits"`
	Matches           int                 `json:"matches"`
	Violations        []catalog.Violation `json:"violations,omitempty"`
}

// Result is the answer to one query. It is computed per request and never
// cached.
type Result struct {
	RequestID   uuid.UUID     `json:"request_id"`
	Query       Query         `json:"query"`
	Mode        Mode          `json:"mode"`
	Videos      []VideoResult `json:"videos"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}

// Empty reports whether no video survived.
func (r *Result) Empty() bool {
	return len(r.Videos) == 0
}

// VideoIDs returns the ids of the result videos in order.
func (r *Result) VideoIDs() []string {
	ids := make([]string, len(r.Videos))
	for i, v := range r.Videos {
		ids[i] = v.Video.ID
	}
	return ids
}
