package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/hlshorts/internal/types"
)

const defaultFormat = "bestvideo[ext=mp4][height<=1080]+bestaudio[ext=m4a]/best[ext=mp4]/best"

type Adapter struct {
	bin    string
	format string
}

func New(binPath, format string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if format == "" {
		format = defaultFormat
	}
	return &Adapter{bin: binPath, format: format}
}

// Download fetches url into dir as video_<id>.mp4 and reports the file path
// and title yt-dlp resolved.
func (a *Adapter) Download(ctx context.Context, url, dir string) (types.Source, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Source{}, err
	}
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"-f", a.format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(dir, "video_%(id)s.%(ext)s"),
		"--no-simulate",
		"--print", "title",
		"--print", "after_move:filepath",
		url,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return types.Source{}, fmt.Errorf("yt-dlp download: %s", detail)
	}
	title, path, err := parsePrinted(stdout.String())
	if err != nil {
		return types.Source{}, err
	}
	return types.Source{Path: path, Title: title, URL: url}, nil
}

// parsePrinted reads the title line and the final file path printed after
// the merge step.
func parsePrinted(out string) (title, path string, err error) {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return "", "", errors.New("yt-dlp: expected title and file path in output")
	}
	return lines[0], lines[len(lines)-1], nil
}
