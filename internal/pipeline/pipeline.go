package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/deps"
	"github.com/forPelevin/hlshorts/internal/domain/highlights"
	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/domain/subtitles"
	"github.com/forPelevin/hlshorts/internal/logger"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/gemini"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/openai"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/openrouter"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/hlshorts/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/hlshorts/internal/store"
	"github.com/forPelevin/hlshorts/internal/types"
	"github.com/forPelevin/hlshorts/internal/usecase"
)

// ErrMissingDeps is returned when a required external tool is not installed.
var ErrMissingDeps = errors.New("missing dependencies")

// Options are the per-run choices made on the command line.
type Options struct {
	Source          string
	Count           int
	Timeframes      []types.Highlight
	AutoApprove     bool
	FreshTranscript bool
	KeepTemp        bool

	Confirm  func(ctx context.Context, question string) (bool, error)
	Progress func(usecase.Event)
}

// Outcome is a finished run.
type Outcome struct {
	usecase.Result
	ManifestPath string
}

// NewLLM builds the gateway for the configured provider.
func NewLLM(c config.LLMConfig) (ports.LLM, error) {
	temp := 1.0
	if c.Temperature != nil {
		temp = *c.Temperature
	}
	switch c.Provider {
	case config.ProviderOpenAI, "":
		return openai.New(openai.Options{
			APIKey:      c.APIKey,
			Model:       c.Model,
			BaseURL:     c.BaseURL,
			Temperature: temp,
			Timeout:     c.Timeout.Duration,
		}), nil
	case config.ProviderGemini:
		return gemini.New(gemini.Options{
			APIKeys:     []string{c.APIKey},
			Model:       c.Model,
			BaseURL:     c.BaseURL,
			Temperature: temp,
			Timeout:     c.Timeout.Duration,
		}), nil
	case config.ProviderOpenRouter:
		if err := openrouter.ValidateBaseURL(c.BaseURL, c.AllowedHosts); err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
		}
		return openrouter.New(openrouter.Options{
			APIKey:      c.APIKey,
			Model:       c.Model,
			BaseURL:     c.BaseURL,
			Temperature: temp,
			Timeout:     c.Timeout.Duration,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", config.ErrConfig, c.Provider)
	}
}

// DepPaths maps config onto the external tool locations.
func DepPaths(cfg config.Config) deps.Paths {
	return deps.Paths{
		FFmpeg:       cfg.FFmpeg.FFmpegPath,
		FFprobe:      cfg.FFmpeg.FFprobePath,
		YtDlp:        cfg.Downloader.YtDlpPath,
		Whisper:      cfg.Whisper.BinaryPath,
		WhisperModel: cfg.Whisper.ModelPath,
	}
}

// Run wires adapters from cfg, runs the driver and writes the manifest.
func Run(ctx context.Context, cfg config.Config, opts Options, log *logger.Logger) (Outcome, error) {
	if log == nil {
		log = logger.Nop()
	}
	if errs := deps.CheckAll(DepPaths(cfg), usecase.IsURL(opts.Source)); len(errs) > 0 {
		return Outcome{}, fmt.Errorf("%w: %w", ErrMissingDeps, errors.Join(errs...))
	}

	outDir := cfg.Paths.Output
	if outDir == "" {
		outDir = "out"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("output dir: %w", err)
	}

	style, err := subtitles.LookupStyle(cfg.Render.SubtitleStyle)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	zoom, err := reframe.ParseMode(cfg.Render.Zoom)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	var selector usecase.HighlightSelector
	provider := ""
	if len(opts.Timeframes) == 0 {
		llm, err := NewLLM(cfg.LLM)
		if err != nil {
			return Outcome{}, err
		}
		selector = highlights.NewSelector(llm)
		provider = llm.Name()
	}

	var ledger usecase.Ledger
	if !cfg.Store.Disabled && cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			log.Warn("run ledger unavailable", "path", cfg.Store.Path, "error", err)
		} else {
			defer db.Close()
			ledger = db
			if swept, err := db.Sweep(ctx, cfg.Store.StaleAfter.Duration); err != nil {
				log.Warn("sweep stale sessions", "error", err)
			} else if len(swept) > 0 {
				log.Info("removed temp files of interrupted runs", "sessions", len(swept))
			}
		}
	}

	video := ffmpeg.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath).
		WithEncoding(cfg.FFmpeg.Preset, cfg.FFmpeg.CRF)
	asr := whispercpp.New(cfg.Whisper.BinaryPath, cfg.Whisper.ModelPath).
		WithLanguage(cfg.Whisper.Language).
		WithThreads(cfg.Whisper.Threads)
	dl := ytdlp.New(cfg.Downloader.YtDlpPath, cfg.Downloader.Format)

	uc := usecase.New(usecase.Deps{
		Video:      video,
		ASR:        asr,
		Downloader: dl,
		Selector:   selector,
		Ledger:     ledger,
		Log:        log,
		Confirm:    opts.Confirm,
		Progress:   opts.Progress,
	})

	res, err := uc.Run(ctx, usecase.Input{
		Source:          opts.Source,
		Count:           opts.Count,
		Timeframes:      opts.Timeframes,
		WorkDir:         cfg.Paths.Work,
		CacheDir:        cfg.Paths.Cache,
		DownloadDir:     cfg.Paths.Videos,
		OutDir:          outDir,
		Zoom:            zoom,
		Style:           style,
		FreshTranscript: opts.FreshTranscript,
		KeepTemp:        opts.KeepTemp,
		AutoApprove:     opts.AutoApprove,
		Provider:        provider,
		OutputName:      OutputName,
	})
	out := Outcome{Result: res}
	if err != nil || res.Empty || (len(res.Manifest.Shorts) == 0 && len(res.Manifest.Failed) == 0) {
		return out, err
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return out, fmt.Errorf("marshal manifest: %w", err)
	}
	out.ManifestPath = filepath.Join(outDir, fmt.Sprintf("%s_%s_manifest.json", Slug(res.Title), res.SessionID))
	if err := os.WriteFile(out.ManifestPath, b, 0o644); err != nil {
		return out, err
	}
	log.Info("manifest written", "shorts", len(res.Manifest.Shorts), "failed", len(res.Manifest.Failed), "path", out.ManifestPath)
	return out, nil
}

// OutputName is "<slug>_<session>_short_<idx>.mp4", or "<slug>_<session>_short.mp4"
// when the run has a single highlight.
func OutputName(title, sessionID string, idx, total int) string {
	if total > 1 {
		return fmt.Sprintf("%s_%s_short_%d.mp4", Slug(title), sessionID, idx)
	}
	return fmt.Sprintf("%s_%s_short.mp4", Slug(title), sessionID)
}

const maxSlugLen = 80

// Slug turns a video title into a file name segment: lowercase letters and
// digits joined by single dashes, at most 80 runes, "output" when empty.
func Slug(s string) string {
	var b strings.Builder
	prevDash := false
	n := 0
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if n >= maxSlugLen {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
			n++
		default:
			if !prevDash && n > 0 {
				b.WriteByte('-')
				prevDash = true
				n++
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "output"
	}
	return out
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.Downloader = (*ytdlp.Adapter)(nil)
var _ ports.LLM = (*openai.Adapter)(nil)
var _ ports.LLM = (*gemini.Adapter)(nil)
var _ ports.LLM = (*openrouter.Adapter)(nil)
var _ usecase.Ledger = (*store.Store)(nil)
