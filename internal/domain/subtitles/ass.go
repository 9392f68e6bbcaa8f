package subtitles

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forPelevin/hlshorts/internal/types"
)

// Canvas is the frame the subtitles are laid out on.
type Canvas struct {
	Width  int
	Height int
}

// RenderASS builds an ASS document with one or more dialogue events per
// clip-local segment. Segments with blank text are skipped. The bool result
// is false when nothing would be drawn.
func RenderASS(segs []types.TranscriptSegment, style Style, c Canvas) (string, bool) {
	if c.Width <= 0 || c.Height <= 0 {
		c = Canvas{Width: 1080, Height: 1920}
	}
	var events []event
	for _, s := range segs {
		text := sanitizeASS(s.Text)
		if text == "" || s.End <= s.Start {
			continue
		}
		events = append(events, splitEvent(text, dur(s.Start), dur(s.End), style.charsPerLine(c))...)
	}
	if len(events) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(assHeader(style, c))
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ev := range events {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(ev.Start))
		b.WriteString(",")
		b.WriteString(assTime(ev.End))
		b.WriteString(",")
		b.WriteString(style.Name)
		b.WriteString(",,0,0,0,,")
		b.WriteString(strings.Join(ev.Lines, `\N`))
		b.WriteString("\n")
	}
	return b.String(), true
}

type event struct {
	Start time.Duration
	End   time.Duration
	Lines []string
}

const maxLinesPerEvent = 2

// splitEvent wraps text at lineBudget characters. Text that needs more than
// maxLinesPerEvent lines is shown as consecutive events, with the segment's
// time shared out by character count.
func splitEvent(text string, start, end time.Duration, lineBudget int) []event {
	lines := wrap(text, lineBudget)
	if len(lines) <= maxLinesPerEvent {
		return []event{{Start: start, End: end, Lines: lines}}
	}

	var chunks [][]string
	for i := 0; i < len(lines); i += maxLinesPerEvent {
		j := min(i+maxLinesPerEvent, len(lines))
		chunks = append(chunks, lines[i:j])
	}
	total := 0
	for _, ln := range lines {
		total += len([]rune(ln))
	}

	out := make([]event, 0, len(chunks))
	span := end - start
	cur := start
	seen := 0
	for i, ch := range chunks {
		for _, ln := range ch {
			seen += len([]rune(ln))
		}
		next := start + time.Duration(float64(span)*float64(seen)/float64(total))
		if i == len(chunks)-1 {
			next = end
		}
		if next <= cur {
			continue
		}
		out = append(out, event{Start: cur, End: next, Lines: ch})
		cur = next
	}
	return out
}

func wrap(text string, budget int) []string {
	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	curLen := 0
	for _, w := range words {
		wl := len([]rune(w))
		nextLen := curLen
		if curLen > 0 {
			nextLen++
		}
		nextLen += wl
		if curLen > 0 && nextLen > budget {
			lines = append(lines, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wl
	}
	if curLen > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

func assHeader(s Style, c Canvas) string {
	fontSize := int(math.Round(float64(c.Height) * s.FontScale))
	marginV := int(math.Round(float64(c.Height) * s.MarginScale))
	marginH := int(math.Round(float64(c.Width) * 0.074))
	bold := 0
	if s.Bold {
		bold = -1
	}
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", c.Width)
	fmt.Fprintf(&b, "PlayResY: %d\n", c.Height)
	b.WriteString("WrapStyle: 2\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: %s,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,%d,0,%d,%d,%d,2,%d,%d,%d,1",
		s.Name, s.Font, fontSize,
		s.Primary, s.Primary, s.Outline, s.Back,
		bold, s.Spacing, s.BorderStyle, s.OutlineWidth, s.Shadow,
		marginH, marginH, marginV,
	)
	return b.String()
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration { return time.Duration(math.Round(sec * float64(time.Second))) }
