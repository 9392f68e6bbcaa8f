// Package config loads settings from an optional YAML file and the
// environment. Command-line flags are applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/domain/subtitles"
	"github.com/forPelevin/hlshorts/internal/types"
)

// ErrConfig marks configuration problems. They are fatal at startup.
var ErrConfig = errors.New("config")

const DefaultFile = "hlshorts.yaml"

const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	Downloader DownloaderConfig `yaml:"downloader"`
	Paths      PathsConfig      `yaml:"paths"`
	Render     RenderConfig     `yaml:"render"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
}

type LLMConfig struct {
	Provider     string   `yaml:"provider" validate:"oneof=openai gemini openrouter"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	Timeout      Duration `yaml:"timeout"`
	// APIKey only comes from the environment.
	APIKey string `yaml:"-"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	Threads    int    `yaml:"threads" validate:"gte=0"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	Preset      string `yaml:"preset"`
	CRF         int    `yaml:"crf" validate:"gte=0,lte=51"`
}

type DownloaderConfig struct {
	YtDlpPath string `yaml:"yt_dlp_path"`
	Format    string `yaml:"format"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
	Cache  string `yaml:"cache"`
	Work   string `yaml:"work"`
	Videos string `yaml:"videos"`
}

type RenderConfig struct {
	Shorts        int    `yaml:"shorts" validate:"gt=0"`
	SubtitleStyle string `yaml:"subtitle_style"`
	Zoom          string `yaml:"zoom"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type StoreConfig struct {
	Path       string   `yaml:"path"`
	Disabled   bool     `yaml:"disabled"`
	StaleAfter Duration `yaml:"stale_after"`
}

// Duration is a time.Duration that reads "90s" style strings from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Duration = v
	return nil
}

// Default returns built-in settings.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Timeout:  Duration{90 * time.Second},
		},
		Whisper: WhisperConfig{
			BinaryPath: ".cache/bin/whisper.cpp",
			ModelPath:  ".cache/models/ggml-base.bin",
			Language:   "auto",
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			Preset:      "veryfast",
			CRF:         20,
		},
		Downloader: DownloaderConfig{
			YtDlpPath: "yt-dlp",
			Format:    "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b",
		},
		Paths: PathsConfig{
			Output: "out",
			Cache:  ".cache",
			Work:   ".cache/work",
			Videos: "videos",
		},
		Render: RenderConfig{
			Shorts:        1,
			SubtitleStyle: subtitles.DefaultStyle,
			Zoom:          string(types.ZoomAuto),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Path:       ".cache/hlshorts.db",
			StaleAfter: Duration{12 * time.Hour},
		},
	}
}

// Load reads path over the defaults. A missing file is fine unless required.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.ToLower(strings.TrimSpace(getenv("LLM_PROVIDER"))); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLM.Temperature = &f
		}
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		c.LLM.APIKey = firstNonEmpty(getenv("OPENAI_API_KEY"), getenv("OPENAI_API"))
		if v := getenv("OPENAI_BASE_URL"); v != "" {
			c.LLM.BaseURL = v
		}
	case ProviderGemini:
		c.LLM.APIKey = firstNonEmpty(getenv("GOOGLE_API_KEY"), getenv("GEMINI_API_KEY"))
	case ProviderOpenRouter:
		c.LLM.APIKey = getenv("OPENROUTER_API_KEY")
		if v := getenv("OPENROUTER_MODEL"); v != "" && c.LLM.Model == "" {
			c.LLM.Model = v
		}
		if v := getenv("OPENROUTER_BASE_URL"); v != "" {
			c.LLM.BaseURL = v
		}
		if v := getenv("OPENROUTER_ALLOWED_HOSTS"); v != "" {
			c.LLM.AllowedHosts = strings.Split(v, ",")
		}
	}
	if v := getenv("WHISPER_BIN"); v != "" {
		c.Whisper.BinaryPath = v
	}
	if v := getenv("WHISPER_MODEL"); v != "" {
		c.Whisper.ModelPath = v
	}
	if v := getenv("HLSHORTS_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks settings, fills model defaults and requires the provider
// credential. Errors wrap ErrConfig.
func (c *Config) Validate() error {
	if err := c.Normalize(); err != nil {
		return err
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("%w: %s is required for LLM provider %q (set it in .env)", ErrConfig, KeyEnv(c.LLM.Provider), c.LLM.Provider)
	}
	return nil
}

// Normalize is Validate without the credential check, for commands that
// never call the LLM.
func (c *Config) Normalize() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if err := types.Validate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel(c.LLM.Provider)
	}
	if c.LLM.Temperature == nil {
		t := 1.0
		c.LLM.Temperature = &t
	}
	if c.LLM.Timeout.Duration <= 0 {
		c.LLM.Timeout.Duration = 90 * time.Second
	}
	if c.Whisper.ModelPath == "" {
		return fmt.Errorf("%w: whisper model path is required", ErrConfig)
	}
	if _, err := subtitles.LookupStyle(c.Render.SubtitleStyle); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if _, err := reframe.ParseMode(c.Render.Zoom); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Store.StaleAfter.Duration <= 0 {
		c.Store.StaleAfter.Duration = 12 * time.Hour
	}
	return nil
}

func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	default:
		return "gpt-4o-mini"
	}
}

// KeyEnv names the environment variable holding the provider credential.
func KeyEnv(provider string) string {
	switch provider {
	case ProviderGemini:
		return "GOOGLE_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
