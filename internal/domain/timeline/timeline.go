// Package timeline rebases transcript segments onto a clip-local timeline.
package timeline

import (
	"strings"

	"github.com/forPelevin/hlshorts/internal/types"
)

// Adjust returns the segments that overlap [clipStart, clipStart+clipDuration),
// shifted so the clip starts at zero and clamped to [0, clipDuration].
// Order is preserved. Segments that collapse to zero length after clamping are
// dropped.
func Adjust(segs []types.TranscriptSegment, clipStart, clipDuration float64) []types.TranscriptSegment {
	if clipDuration <= 0 {
		return nil
	}
	out := make([]types.TranscriptSegment, 0, len(segs))
	for _, s := range segs {
		localStart := s.Start - clipStart
		localEnd := s.End - clipStart
		if localEnd <= 0 || localStart >= clipDuration {
			continue
		}
		localStart = clamp(localStart, 0, clipDuration)
		localEnd = clamp(localEnd, 0, clipDuration)
		if localEnd <= localStart {
			continue
		}
		out = append(out, types.TranscriptSegment{
			Text:  strings.TrimSpace(s.Text),
			Start: localStart,
			End:   localEnd,
		})
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
