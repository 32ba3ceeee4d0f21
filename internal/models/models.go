package models

import "github.com/bdougie/shotsearch/internal/attributes"

// Video is a source video in the catalog
type Video struct {
	ID             string  `json:"video_id"`
	Duration       float64 `json:"duration"`
	Path           string  `json:"video_path"`
	TranscodedPath string  `json:"transcoded_path,omitempty"`
	FPS            float64 `json:"fps,omitempty"`
}

// PlaybackPath returns the transcoded file when present
func (v Video) PlaybackPath() string {
	if v.TranscodedPath != "" {
		return v.TranscodedPath
	}
	return v.Path
}

// ShotKey identifies a shot within the catalog
type ShotKey struct {
	VideoID string
	Name    string
}

// Shot is a contiguous segment of a video with its keyframe metadata
type Shot struct {
	VideoID      string                `json:"video_id"`
	Name         string                `json:"shot_name"`
	Start        float64               `json:"start_time"`
	End          float64               `json:"end_time"`
	KeyframeTime float64               `json:"keyframe_time"`
	KeyframePath string                `json:"keyframe_path"`
	Color        attributes.Color      `json:"dominant_color"`
	Brightness   attributes.Brightness `json:"brightness"`
	Objects      attributes.Set        `json:"detected_objects"`
}

// Key returns the composite key of the shot
func (s Shot) Key() ShotKey {
	return ShotKey{VideoID: s.VideoID, Name: s.Name}
}

// Embedding is a keyframe vector keyed by "{video_id}_{shot_name}"
type Embedding struct {
	Key    string    `json:"key"`
	Vector []float32 `json:"vector"`
}
