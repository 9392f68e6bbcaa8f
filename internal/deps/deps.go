// Package deps checks that the external tools hlshorts drives are installed.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	FFmpegInstallURL  = "https://ffmpeg.org/download.html"
	YtDlpInstallURL   = "https://github.com/yt-dlp/yt-dlp#installation"
	WhisperInstallURL = "https://github.com/ggml-org/whisper.cpp#quick-start"
)

// DependencyError contains information about a missing dependency
type DependencyError struct {
	Name       string
	InstallURL string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s not found. Install from: %s", e.Name, e.InstallURL)
}

// Tool is one external dependency. Bin may be a bare name looked up in PATH
// or a path to the executable.
type Tool struct {
	Name       string
	Bin        string
	InstallURL string
	// Optional tools only matter for some inputs, e.g. URLs.
	Optional bool
}

// Check resolves the tool and returns its path.
func (t Tool) Check() (string, error) {
	p, err := exec.LookPath(t.Bin)
	if err != nil {
		return "", &DependencyError{Name: t.Name, InstallURL: t.InstallURL}
	}
	return p, nil
}

// Paths configures where each tool lives. Empty fields mean the default name.
type Paths struct {
	FFmpeg       string
	FFprobe      string
	YtDlp        string
	Whisper      string
	WhisperModel string
}

func Tools(p Paths) []Tool {
	return []Tool{
		{Name: "ffmpeg", Bin: orDefault(p.FFmpeg, "ffmpeg"), InstallURL: FFmpegInstallURL},
		{Name: "ffprobe", Bin: orDefault(p.FFprobe, "ffprobe"), InstallURL: FFmpegInstallURL},
		{Name: "whisper.cpp", Bin: orDefault(p.Whisper, "whisper-cli"), InstallURL: WhisperInstallURL},
		{Name: "yt-dlp", Bin: orDefault(p.YtDlp, "yt-dlp"), InstallURL: YtDlpInstallURL, Optional: true},
	}
}

// CheckModel reports a missing or unreadable whisper model file.
func CheckModel(path string) error {
	if path == "" {
		return fmt.Errorf("whisper model path is empty")
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("whisper model %s: %w (download one with whisper.cpp models/download-ggml-model.sh)", filepath.Base(path), err)
	}
	if st.IsDir() {
		return fmt.Errorf("whisper model %s is a directory", path)
	}
	return nil
}

// CheckAll checks required dependencies and returns errors for missing ones.
// needDownloader adds yt-dlp to the required set.
func CheckAll(p Paths, needDownloader bool) []error {
	var errs []error
	for _, t := range Tools(p) {
		if t.Optional && !needDownloader {
			continue
		}
		if _, err := t.Check(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := CheckModel(p.WhisperModel); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
