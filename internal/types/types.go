package types

// TranscriptSegment is one timed piece of recognized speech. Times are seconds
// from the start of the source media.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

// Highlight is a source range selected for a short. Times are whole seconds.
type Highlight struct {
	Start   int    `json:"start" validate:"gte=0"`
	End     int    `json:"end" validate:"gte=0,gtfield=Start"`
	Content string `json:"content"`
}

// Duration returns the highlight length in seconds.
func (h Highlight) Duration() int { return h.End - h.Start }

// Overlaps reports whether the half-open ranges [Start, End) intersect.
func (h Highlight) Overlaps(o Highlight) bool {
	return h.Start < o.End && o.Start < h.End
}

type ZoomMode string

const (
	ZoomAuto ZoomMode = "auto"
	ZoomFit  ZoomMode = "fit"
	ZoomFill ZoomMode = "fill"
	ZoomNone ZoomMode = "none"
)

// Source is a resolved input video.
type Source struct {
	Path  string
	Title string
	URL   string
}

// MediaInfo is what the renderer needs to know about a video file.
type MediaInfo struct {
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

type Manifest struct {
	Input     string         `json:"input"`
	SessionID string         `json:"session_id"`
	Provider  string         `json:"provider,omitempty"`
	Shorts    []ManifestClip `json:"shorts"`
	Failed    []FailedClip   `json:"failed,omitempty"`
}

type ManifestClip struct {
	Index     int     `json:"index"`
	StartSec  int     `json:"start_sec"`
	EndSec    int     `json:"end_sec"`
	InfoScore float64 `json:"info_score"`
	HookScore float64 `json:"hook_score"`
	Content   string  `json:"content"`
	File      string  `json:"file"`
	Subtitled bool    `json:"subtitled"`
}

type FailedClip struct {
	Index int    `json:"index"`
	Step  string `json:"step"`
	Error string `json:"error"`
}
