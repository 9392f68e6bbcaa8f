// Package reframe decides how a clip is turned into a 1080x1920 vertical video.
package reframe

import (
	"fmt"

	"github.com/forPelevin/hlshorts/internal/types"
)

const (
	TargetWidth  = 1080
	TargetHeight = 1920
)

// Plan is a resolved reframing. Filters run crop, then scale, then pad. A
// zero Crop or Pad means the step is skipped.
type Plan struct {
	Mode types.ZoomMode
	Crop Rect
	// ScaleW and ScaleH are the frame size after scaling. Zero means no scaling.
	ScaleW, ScaleH int
	Pad            bool
}

type Rect struct {
	W, H, X, Y int
}

// Passthrough reports whether the plan leaves frames untouched.
func (p Plan) Passthrough() bool {
	return p.Crop == (Rect{}) && p.ScaleW == 0 && !p.Pad
}

// ParseMode validates a zoom mode name. Empty means auto.
func ParseMode(s string) (types.ZoomMode, error) {
	switch types.ZoomMode(s) {
	case "":
		return types.ZoomAuto, nil
	case types.ZoomAuto, types.ZoomFit, types.ZoomFill, types.ZoomNone:
		return types.ZoomMode(s), nil
	default:
		return "", fmt.Errorf("unknown zoom mode %q (want auto, fit, fill or none)", s)
	}
}

// Build resolves mode against the source frame size.
func Build(srcW, srcH int, mode types.ZoomMode) (Plan, error) {
	if srcW <= 0 || srcH <= 0 {
		return Plan{}, fmt.Errorf("invalid source size %dx%d", srcW, srcH)
	}
	switch mode {
	case types.ZoomAuto, "":
		mode = resolveAuto(srcW, srcH)
	case types.ZoomFit, types.ZoomFill, types.ZoomNone:
	default:
		return Plan{}, fmt.Errorf("unknown zoom mode %q", mode)
	}

	switch mode {
	case types.ZoomNone:
		return Plan{Mode: types.ZoomNone}, nil
	case types.ZoomFill:
		return Plan{
			Mode:   types.ZoomFill,
			Crop:   centerCrop(srcW, srcH),
			ScaleW: TargetWidth,
			ScaleH: TargetHeight,
		}, nil
	default:
		w, h := fitInside(srcW, srcH)
		return Plan{Mode: types.ZoomFit, ScaleW: w, ScaleH: h, Pad: w != TargetWidth || h != TargetHeight}, nil
	}
}

// resolveAuto keeps frames that are already vertical enough, crops wide
// landscape sources and letterboxes the rest.
func resolveAuto(w, h int) types.ZoomMode {
	// w/h <= 9/16
	if w*TargetHeight <= h*TargetWidth {
		return types.ZoomNone
	}
	// w/h >= 4/3
	if w*3 >= h*4 {
		return types.ZoomFill
	}
	return types.ZoomFit
}

func centerCrop(w, h int) Rect {
	cropW := even(h * TargetWidth / TargetHeight)
	cropH := even(h)
	if cropW > w {
		cropW = even(w)
		cropH = even(w * TargetHeight / TargetWidth)
	}
	return Rect{W: cropW, H: cropH, X: (w - cropW) / 2, Y: (h - cropH) / 2}
}

func fitInside(w, h int) (int, int) {
	// scale by the tighter of the two ratios
	if w*TargetHeight >= h*TargetWidth {
		return TargetWidth, even(h * TargetWidth / w)
	}
	return even(w * TargetHeight / h), TargetHeight
}

func even(x int) int {
	if x%2 != 0 {
		x--
	}
	if x < 2 {
		return 2
	}
	return x
}
