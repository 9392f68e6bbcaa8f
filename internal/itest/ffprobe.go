//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probed struct {
	Width, Height int
	Duration      float64
	HasAudio      bool
}

func probeShort(mp4Path string) (probed, error) {
	var p probed

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0:s=x",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return p, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	w, h, ok := strings.Cut(strings.TrimSpace(string(b)), "x")
	if !ok {
		return p, fmt.Errorf("parse dimensions %q", string(b))
	}
	if p.Width, err = strconv.Atoi(w); err != nil {
		return p, err
	}
	if p.Height, err = strconv.Atoi(h); err != nil {
		return p, err
	}

	cmd = exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mp4Path,
	)
	b, err = cmd.CombinedOutput()
	if err != nil {
		return p, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	if p.Duration, err = strconv.ParseFloat(s, 64); err != nil {
		return p, fmt.Errorf("parse duration %q: %w", s, err)
	}

	cmd = exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		mp4Path,
	)
	b, err = cmd.CombinedOutput()
	if err != nil {
		return p, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	p.HasAudio = strings.TrimSpace(string(b)) != ""
	return p, nil
}
