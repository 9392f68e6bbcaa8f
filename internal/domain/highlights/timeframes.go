package highlights

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/hlshorts/internal/types"
)

// ErrInvalidTimeframes means a --times value held no usable range.
var ErrInvalidTimeframes = errors.New("invalid timeframes")

// ParseTimeframes parses "START-END,START-END" in whole seconds. Malformed or
// empty ranges are skipped. It fails only when nothing valid remains.
func ParseTimeframes(s string) ([]types.Highlight, error) {
	var out []types.Highlight
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, b, ok := strings.Cut(part, "-")
		if !ok {
			continue
		}
		start, err1 := strconv.Atoi(strings.TrimSpace(a))
		end, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			continue
		}
		h := types.Highlight{Start: start, End: end}
		if types.Validate(h) != nil {
			continue
		}
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q (expected START-END,START-END in seconds)", ErrInvalidTimeframes, s)
	}
	return out, nil
}
