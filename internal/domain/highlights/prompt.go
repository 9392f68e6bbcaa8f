package highlights

import (
	"fmt"
	"strings"
)

const (
	minSegmentSec = 60
	maxSegmentSec = 150
)

// SystemPrompt returns the selection instructions for n highlights.
func SystemPrompt(n int) string {
	var b strings.Builder
	b.WriteString("The user message is a timestamped transcript of a video. ")
	b.WriteString("Each line has the form \"<start seconds> - <end seconds>: <text>\".\n\n")
	if n <= 1 {
		b.WriteString("Pick one segment of about two minutes that is interesting, useful, surprising, controversial or thought-provoking.\n")
		b.WriteString("Rules:\n")
		b.WriteString("- Use only complete sentences and never cut a sentence in the middle.\n")
		b.WriteString("- The segment must read as one complete thought.\n")
	} else {
		fmt.Fprintf(&b, "Pick the %d best distinct segments. Each one should be interesting, useful, surprising, controversial or thought-provoking.\n", n)
		b.WriteString("Rules:\n")
		b.WriteString("- Segments must not overlap in time or repeat the same content.\n")
		fmt.Fprintf(&b, "- Each segment lasts between %d and %d seconds, about two minutes.\n", minSegmentSec, maxSegmentSec)
		b.WriteString("- Use only complete sentences and never cut a sentence in the middle.\n")
		b.WriteString("- Each segment must read as one complete thought.\n")
	}
	b.WriteString("\nAnswer with JSON only: {\"highlights\":[{\"start\":<seconds>,\"content\":\"<segment text without timestamps>\",\"end\":<seconds>}]}")
	if n > 1 {
		fmt.Fprintf(&b, " with exactly %d items.", n)
	} else {
		b.WriteString(" with exactly one item.")
	}
	return b.String()
}

// ResponseSchema is the JSON schema sent to providers that support
// structured output.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"highlights": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start":   map[string]any{"type": "number", "description": "Start time of the segment in seconds"},
						"content": map[string]any{"type": "string", "description": "Text of the segment without timestamps"},
						"end":     map[string]any{"type": "number", "description": "End time of the segment in seconds"},
					},
					"required":             []string{"start", "content", "end"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"highlights"},
		"additionalProperties": false,
	}
}
