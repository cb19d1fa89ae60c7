// Package verdict persists and looks up prior classification results keyed by
// content fingerprints.
package verdict

import "time"

// TextVerdict is a stored classification for a text fingerprint pair.
type TextVerdict struct {
	ID          int64     `json:"id"`
	TextHash    string    `json:"text_hash"`
	SummaryHash string    `json:"summary_hash"`
	Mark        string    `json:"mark"`
	Reason      string    `json:"reason"`
	Summary     string    `json:"summary,omitempty"`
	Confidence  float64   `json:"confidence"`
	URLs        []string  `json:"urls,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageVerdict is a stored classification for an image fingerprint.
type ImageVerdict struct {
	ID         int64     `json:"id"`
	ImageHash  string    `json:"image_hash"`
	ImageURL   string    `json:"image_url"`
	Mark       string    `json:"mark"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
