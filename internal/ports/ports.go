package ports

import (
	"context"

	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/types"
)

// VideoTool performs media operations on files. Times are seconds.
type VideoTool interface {
	ExtractAudio(ctx context.Context, inVideo, outWav string) error
	Probe(ctx context.Context, inVideo string) (types.MediaInfo, error)
	Cut(ctx context.Context, inVideo string, start, end float64, outMP4 string) error
	Reframe(ctx context.Context, inMP4 string, plan reframe.Plan, outMP4 string) error
	BurnSubtitles(ctx context.Context, inMP4, assPath, outMP4 string) error
	Remux(ctx context.Context, videoFrom, audioFrom, outMP4 string) error
}

// ASR turns a 16 kHz mono WAV into timed segments.
type ASR interface {
	Transcribe(ctx context.Context, wavPath, workDir string) ([]types.TranscriptSegment, error)
}

// Downloader fetches a remote video into dir.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (types.Source, error)
}

// JSONRequest asks a language model for a document matching Schema.
type JSONRequest struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// LLM is a structured-output language model gateway. It returns the raw JSON
// document produced by the model.
type LLM interface {
	Name() string
	GenerateJSON(ctx context.Context, req JSONRequest) ([]byte, error)
}
