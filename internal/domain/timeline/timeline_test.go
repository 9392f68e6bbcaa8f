package timeline

import (
	"testing"

	"github.com/forPelevin/hlshorts/internal/types"
)

func TestAdjust_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		segs  []types.TranscriptSegment
		start float64
		dur   float64
		want  []types.TranscriptSegment
	}{
		{
			name:  "inside window",
			segs:  []types.TranscriptSegment{{Text: " hi ", Start: 110, End: 115}},
			start: 100, dur: 120,
			want: []types.TranscriptSegment{{Text: "hi", Start: 10, End: 15}},
		},
		{
			name:  "straddles start",
			segs:  []types.TranscriptSegment{{Text: "a", Start: 95, End: 105}},
			start: 100, dur: 120,
			want: []types.TranscriptSegment{{Text: "a", Start: 0, End: 5}},
		},
		{
			name:  "straddles end",
			segs:  []types.TranscriptSegment{{Text: "a", Start: 215, End: 230}},
			start: 100, dur: 120,
			want: []types.TranscriptSegment{{Text: "a", Start: 115, End: 120}},
		},
		{
			name:  "touching edges excluded",
			segs:  []types.TranscriptSegment{{Text: "before", Start: 90, End: 100}, {Text: "after", Start: 220, End: 230}},
			start: 100, dur: 120,
			want: []types.TranscriptSegment{},
		},
		{
			name:  "covers whole window",
			segs:  []types.TranscriptSegment{{Text: "long", Start: 0, End: 1000}},
			start: 100, dur: 120,
			want: []types.TranscriptSegment{{Text: "long", Start: 0, End: 120}},
		},
		{
			name:  "zero duration",
			segs:  []types.TranscriptSegment{{Text: "a", Start: 0, End: 10}},
			start: 0, dur: 0,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adjust(tt.segs, tt.start, tt.dur)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d segments, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("segment %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAdjust_TenMinuteTranscriptWindow(t *testing.T) {
	t.Parallel()

	var segs []types.TranscriptSegment
	for s := 0.0; s < 600; s += 7.5 {
		segs = append(segs, types.TranscriptSegment{Text: "x", Start: s, End: s + 7.5})
	}
	got := Adjust(segs, 100, 120)

	want := 0
	for _, s := range segs {
		if s.End > 100 && s.Start < 220 {
			want++
		}
	}
	if len(got) != want {
		t.Fatalf("expected %d overlapping segments, got %d", want, len(got))
	}
	prev := -1.0
	for _, s := range got {
		if s.Start < 0 || s.End > 120 || s.End <= s.Start {
			t.Fatalf("segment out of bounds: %+v", s)
		}
		if s.Start < prev {
			t.Fatalf("order not preserved at %+v", s)
		}
		prev = s.Start
	}
}
