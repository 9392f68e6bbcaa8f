//go:build integration

package itest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

const modulePath = "github.com/forPelevin/hlshorts"

// repoRoot walks up from the working directory to the hlshorts go.mod.
func repoRoot() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := start; ; {
		b, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil && bytes.Contains(b, []byte("module "+modulePath+"\n")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s go.mod not found above %s", modulePath, start)
		}
		dir = parent
	}
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	root, err := repoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return root
}

// toneVideo renders a short 640x360 clip with a sine tone and no speech.
func toneVideo(t *testing.T) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "tone.mp4")
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi", "-i", "testsrc2=s=640x360:d=3",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=3",
		"-shortest",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		out,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
	return out
}
