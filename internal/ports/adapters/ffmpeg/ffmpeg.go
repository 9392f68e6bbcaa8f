package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/forPelevin/hlshorts/internal/domain/reframe"
	"github.com/forPelevin/hlshorts/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	preset  string
	crf     int
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, preset: "veryfast", crf: 20}
}

// WithEncoding sets the x264 preset and CRF used for re-encoded outputs.
func (a *Adapter) WithEncoding(preset string, crf int) *Adapter {
	if preset != "" {
		a.preset = preset
	}
	if crf > 0 {
		a.crf = crf
	}
	return a
}

func (a *Adapter) ExtractAudio(ctx context.Context, inVideo, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inVideo,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

// Cut re-encodes [start, end) so the clip starts on an exact frame.
func (a *Adapter) Cut(ctx context.Context, inVideo string, start, end float64, outMP4 string) error {
	if end <= start {
		return fmt.Errorf("ffmpeg cut: empty range %.3f-%.3f", start, end)
	}
	s := ffmpeggo.Input(inVideo, ffmpeggo.KwArgs{"ss": fmtSeconds(start)}).
		Output(outMP4, a.videoArgs(ffmpeggo.KwArgs{
			"t":   fmtSeconds(end - start),
			"c:a": "aac",
			"b:a": "192k",
		}))
	return a.run(ctx, "cut", s, "")
}

// Reframe applies plan to the video stream. Only the video stream is mapped,
// so the output carries no audio; Remux puts it back.
func (a *Adapter) Reframe(ctx context.Context, inMP4 string, plan reframe.Plan, outMP4 string) error {
	v := ffmpeggo.Input(inMP4).Video()
	if plan.Crop != (reframe.Rect{}) {
		v = v.Filter("crop", ffmpeggo.Args{
			strconv.Itoa(plan.Crop.W),
			strconv.Itoa(plan.Crop.H),
			strconv.Itoa(plan.Crop.X),
			strconv.Itoa(plan.Crop.Y),
		})
	}
	if plan.ScaleW > 0 && plan.ScaleH > 0 {
		v = v.Filter("scale", ffmpeggo.Args{strconv.Itoa(plan.ScaleW), strconv.Itoa(plan.ScaleH)})
	}
	if plan.Pad {
		v = v.Filter("pad", ffmpeggo.Args{}, ffmpeggo.KwArgs{
			"width":  reframe.TargetWidth,
			"height": reframe.TargetHeight,
			"x":      (reframe.TargetWidth - plan.ScaleW) / 2,
			"y":      (reframe.TargetHeight - plan.ScaleH) / 2,
			"color":  "black",
		})
	}
	if plan.Passthrough() {
		return a.run(ctx, "reframe", v.Output(outMP4, ffmpeggo.KwArgs{"c:v": "copy"}), "")
	}
	v = v.Filter("setsar", ffmpeggo.Args{"1"})
	return a.run(ctx, "reframe", v.Output(outMP4, a.videoArgs(nil)), "")
}

// BurnSubtitles renders an ASS file onto the video stream. ffmpeg runs in the
// subtitle's directory so the filter sees a bare file name and needs no
// escaping.
func (a *Adapter) BurnSubtitles(ctx context.Context, inMP4, assPath, outMP4 string) error {
	absIn, err := filepath.Abs(inMP4)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(outMP4)
	if err != nil {
		return err
	}
	absASS, err := filepath.Abs(assPath)
	if err != nil {
		return err
	}
	s := ffmpeggo.Input(absIn).Video().
		Filter("subtitles", ffmpeggo.Args{filepath.Base(absASS)}).
		Output(absOut, a.videoArgs(nil))
	return a.run(ctx, "burn subtitles", s, filepath.Dir(absASS))
}

// Remux muxes the video of videoFrom with the audio of audioFrom. An empty
// audioFrom yields a silent short.
func (a *Adapter) Remux(ctx context.Context, videoFrom, audioFrom, outMP4 string) error {
	v := ffmpeggo.Input(videoFrom).Video()
	if audioFrom == "" {
		return a.run(ctx, "remux", v.Output(outMP4, ffmpeggo.KwArgs{"c:v": "copy", "movflags": "+faststart"}), "")
	}
	au := ffmpeggo.Input(audioFrom).Audio()
	s := ffmpeggo.Output([]*ffmpeggo.Stream{v, au}, outMP4, ffmpeggo.KwArgs{
		"c:v":      "copy",
		"c:a":      "aac",
		"b:a":      "192k",
		"movflags": "+faststart",
	})
	return a.run(ctx, "remux", s, "")
}

func (a *Adapter) Probe(ctx context.Context, inVideo string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inVideo,
	)
	b, err := cmd.Output()
	if err != nil {
		var stderr []byte
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = ee.Stderr
		}
		return types.MediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, tail(stderr))
	}
	return parseProbe(b)
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
		Tags      struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(b []byte) (types.MediaInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(b, &p); err != nil {
		return types.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info types.MediaInfo
	videoDur := ""
	for _, s := range p.Streams {
		switch s.CodecType {
		case "video":
			if info.Width != 0 {
				continue
			}
			info.Width, info.Height = s.Width, s.Height
			rot := s.Tags.Rotate
			if rot == "" && len(s.SideDataList) > 0 {
				rot = strconv.FormatFloat(s.SideDataList[0].Rotation, 'f', 0, 64)
			}
			if rot == "90" || rot == "-90" || rot == "270" || rot == "-270" {
				info.Width, info.Height = info.Height, info.Width
			}
			videoDur = s.Duration
		case "audio":
			info.HasAudio = true
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return types.MediaInfo{}, fmt.Errorf("no video stream found")
	}
	for _, d := range []string{p.Format.Duration, videoDur} {
		if v, err := strconv.ParseFloat(strings.TrimSpace(d), 64); err == nil && v > 0 {
			info.Duration = v
			break
		}
	}
	return info, nil
}

func (a *Adapter) videoArgs(extra ffmpeggo.KwArgs) ffmpeggo.KwArgs {
	kw := ffmpeggo.KwArgs{
		"c:v":      "libx264",
		"preset":   a.preset,
		"crf":      a.crf,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}
	for k, v := range extra {
		kw[k] = v
	}
	return kw
}

func (a *Adapter) run(ctx context.Context, what string, s *ffmpeggo.Stream, dir string) error {
	args := s.OverWriteOutput().GetArgs()
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = os.Environ()
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w\n%s", what, err, tail(b))
	}
	return nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// tail keeps the end of tool output, which is where ffmpeg reports the error.
func tail(b []byte) string {
	const max = 2000
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
