package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/hlshorts/internal/types"
)

type Adapter struct {
	bin      string
	model    string
	language string
	threads  int
}

func New(binPath, modelPath string) *Adapter {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &Adapter{bin: binPath, model: modelPath}
}

// WithLanguage pins the spoken language. Empty or "auto" lets whisper detect it.
func (a *Adapter) WithLanguage(lang string) *Adapter {
	a.language = strings.TrimSpace(lang)
	return a
}

func (a *Adapter) WithThreads(n int) *Adapter {
	a.threads = n
	return a
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workDir string) ([]types.TranscriptSegment, error) {
	outPrefix := filepath.Join(workDir, "whisper_"+strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath)))
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	if a.language != "" {
		args = append(args, "-l", a.language)
	}
	if a.threads > 0 {
		args = append(args, "-t", strconv.Itoa(a.threads))
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)
	jb, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	return parseOutput(jb)
}

type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput reads whisper.cpp -oj output. Offsets are milliseconds.
func parseOutput(b []byte) ([]types.TranscriptSegment, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	segs := make([]types.TranscriptSegment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" || text == "[BLANK_AUDIO]" {
			continue
		}
		start := float64(t.Offsets.From) / 1000
		end := float64(t.Offsets.To) / 1000
		if end <= start {
			continue
		}
		segs = append(segs, types.TranscriptSegment{Text: text, Start: start, End: end})
	}
	return segs, nil
}
