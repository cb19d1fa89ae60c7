// Package queue buffers verification jobs in-process and periodically drains
// them into a capacity-checked primary broker stream, spilling to an overflow
// broker when the primary is near its memory ceiling.
package queue

// Stream keys, one per content pipeline. Each stream entry holds a single
// serialized job record under the "data" field.
const (
	StreamTextJobs          = "stream:ai:text:jobs"
	StreamImageMLJobs       = "stream:ai:imageml:jobs"
	StreamImageForensicJobs = "stream:ai:imageforensic:jobs"
)

// Job is one verification work item. Field names mirror what the AI workers
// read off the stream. A job is immutable once built: it carries enough
// identity to correlate the result back to the originating session even after
// that session is gone.
type Job struct {
	JobID       string `json:"jobId"`
	ClientID    string `json:"clientId"`
	SessionID   string `json:"sessionId,omitempty"`
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	TextHash    string `json:"text_hash,omitempty"`
	SummaryHash string `json:"summary_hash,omitempty"`
	ImageHash   string `json:"image_hash,omitempty"`
	CallbackURL string `json:"callback_url"`
	StreamKey   string `json:"-"`
}
