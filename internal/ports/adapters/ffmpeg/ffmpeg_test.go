package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/types"
)

func TestParseProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    types.MediaInfo
		wantErr bool
	}{
		{
			name: "landscape with audio",
			in: `{"streams":[{"codec_type":"video","width":1920,"height":1080,"duration":"61.2"},{"codec_type":"audio"}],
				"format":{"duration":"61.250000"}}`,
			want: types.MediaInfo{Width: 1920, Height: 1080, Duration: 61.25, HasAudio: true},
		},
		{
			name: "rotated phone video without format duration",
			in:   `{"streams":[{"codec_type":"video","width":1920,"height":1080,"duration":"12.5","tags":{"rotate":"90"}}],"format":{}}`,
			want: types.MediaInfo{Width: 1080, Height: 1920, Duration: 12.5},
		},
		{
			name: "display matrix rotation",
			in:   `{"streams":[{"codec_type":"video","width":640,"height":480,"side_data_list":[{"rotation":-90}]}],"format":{"duration":"3"}}`,
			want: types.MediaInfo{Width: 480, Height: 640, Duration: 3},
		},
		{
			name:    "audio only",
			in:      `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`,
			wantErr: true,
		},
		{
			name:    "garbage",
			in:      `nope`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbe([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestFmtSeconds(t *testing.T) {
	if got := fmtSeconds(100); got != "100.000" {
		t.Fatalf("unexpected %q", got)
	}
	if got := fmtSeconds(1.2345); got != "1.234" && got != "1.235" {
		t.Fatalf("unexpected %q", got)
	}
}

// fakeFFmpeg writes a script that records its arguments, one per line.
func fakeFFmpeg(t *testing.T) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "ffmpeg")
	argsFile = filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\nfor a in \"$@\"; do echo \"$a\" >> '" + argsFile + "'; done\npwd > '" + argsFile + ".pwd'\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile
}

func readArgs(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	return string(b)
}

func TestReframe_FillBuildsCropAndScale(t *testing.T) {
	t.Parallel()

	bin, argsFile := fakeFFmpeg(t)
	plan, err := reframe.Build(1920, 1080, types.ZoomFill)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(bin, "").Reframe(context.Background(), "in.mp4", plan, "out.mp4"); err != nil {
		t.Fatalf("reframe: %v", err)
	}
	args := readArgs(t, argsFile)
	for _, want := range []string{"in.mp4", "out.mp4", "crop=606:1080:657:0", "scale=1080:1920", "libx264", "-y"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args:\n%s", want, args)
		}
	}
}

func TestCut_SeeksAndLimitsDuration(t *testing.T) {
	t.Parallel()

	bin, argsFile := fakeFFmpeg(t)
	if err := New(bin, "").WithEncoding("fast", 23).Cut(context.Background(), "src.mp4", 100, 220, "clip.mp4"); err != nil {
		t.Fatalf("cut: %v", err)
	}
	args := readArgs(t, argsFile)
	for _, want := range []string{"-ss\n100.000", "-t\n120.000", "fast", "23"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args:\n%s", want, args)
		}
	}
}

func TestCut_RejectsEmptyRange(t *testing.T) {
	t.Parallel()

	if err := New("ffmpeg", "").Cut(context.Background(), "a.mp4", 5, 5, "b.mp4"); err == nil {
		t.Fatalf("expected error for empty range")
	}
}

func TestBurnSubtitles_RunsInSubtitleDir(t *testing.T) {
	t.Parallel()

	bin, argsFile := fakeFFmpeg(t)
	work := t.TempDir()
	ass := filepath.Join(work, "subs_abc_1.ass")
	if err := New(bin, "").BurnSubtitles(context.Background(), filepath.Join(work, "in.mp4"), ass, filepath.Join(work, "out.mp4")); err != nil {
		t.Fatalf("burn: %v", err)
	}
	args := readArgs(t, argsFile)
	if !strings.Contains(args, "subtitles=subs_abc_1.ass") {
		t.Fatalf("expected bare subtitle name in filter:\n%s", args)
	}
	pwd := strings.TrimSpace(readArgs(t, argsFile+".pwd"))
	wantDir, _ := filepath.EvalSymlinks(work)
	gotDir, _ := filepath.EvalSymlinks(pwd)
	if gotDir != wantDir {
		t.Fatalf("expected ffmpeg to run in %s, ran in %s", wantDir, gotDir)
	}
}

func TestRemux_WithoutAudioCopiesVideo(t *testing.T) {
	t.Parallel()

	bin, argsFile := fakeFFmpeg(t)
	if err := New(bin, "").Remux(context.Background(), "subbed.mp4", "", "final.mp4"); err != nil {
		t.Fatalf("remux: %v", err)
	}
	args := readArgs(t, argsFile)
	if strings.Contains(args, "aac") {
		t.Fatalf("did not expect audio encoding:\n%s", args)
	}
	if !strings.Contains(args, "copy") {
		t.Fatalf("expected stream copy:\n%s", args)
	}
}

func TestRun_ErrorIncludesToolOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	t.Parallel()

	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	err := New(bin, "").Remux(context.Background(), "a.mp4", "b.mp4", "c.mp4")
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") || !strings.Contains(err.Error(), "ffmpeg remux") {
		t.Fatalf("unexpected error: %v", err)
	}
}
