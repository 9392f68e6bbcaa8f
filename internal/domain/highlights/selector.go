package highlights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/hlshorts/internal/domain/transcript"
	"github.com/forPelevin/hlshorts/internal/ports"
	"github.com/forPelevin/hlshorts/internal/types"
)

// ErrNoHighlights means selection produced nothing usable. The run stops.
var ErrNoHighlights = errors.New("no highlights selected")

const schemaName = "highlight_selection"

type Selector struct {
	llm ports.LLM
}

func NewSelector(llm ports.LLM) *Selector {
	return &Selector{llm: llm}
}

// Selection is the outcome of one model call.
type Selection struct {
	Highlights []types.Highlight
	Rejected   []Rejection
	// RequiresConfirmation is set when a single highlight was requested and
	// the model answered with start == end. Highlights is empty in that case.
	RequiresConfirmation bool
}

// Rejection records a model answer that was dropped.
type Rejection struct {
	Position int
	Start    int
	End      int
	Reason   string
}

// Select asks the model for up to n highlights over segs and validates the
// answer. Fewer than n valid highlights is not an error.
func (s *Selector) Select(ctx context.Context, segs []types.TranscriptSegment, n int) (Selection, error) {
	if n <= 0 {
		return Selection{}, fmt.Errorf("%w: count must be > 0", ErrNoHighlights)
	}
	if len(segs) == 0 {
		return Selection{}, fmt.Errorf("%w: empty transcript", ErrNoHighlights)
	}
	raw, err := s.llm.GenerateJSON(ctx, ports.JSONRequest{
		System:     SystemPrompt(n),
		User:       transcript.Format(segs),
		SchemaName: schemaName,
		Schema:     ResponseSchema(),
	})
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %s: %w", ErrNoHighlights, s.llm.Name(), err)
	}
	answers, err := decodeAnswers(raw)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %w", ErrNoHighlights, err)
	}
	if len(answers) == 0 {
		return Selection{}, fmt.Errorf("%w: model returned no segments", ErrNoHighlights)
	}

	if n == 1 && len(answers) >= 1 {
		a := answers[0]
		if a.Start.ok && a.End.ok && a.Start.seconds() == a.End.seconds() {
			return Selection{RequiresConfirmation: true}, nil
		}
	}

	sel := resolve(answers, n)
	if len(sel.Highlights) == 0 {
		return sel, fmt.Errorf("%w: all %d segments were invalid", ErrNoHighlights, len(answers))
	}
	return sel, nil
}

type answer struct {
	Start   seconds `json:"start"`
	End     seconds `json:"end"`
	Content string  `json:"content"`
}

// seconds accepts a JSON number or a numeric string.
type seconds struct {
	v  float64
	ok bool
}

func (s *seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			// left unset; resolve rejects it
			return nil
		}
		s.v, s.ok = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	s.v, s.ok = v, true
	return nil
}

func (s seconds) seconds() int { return int(math.Trunc(s.v)) }

func decodeAnswers(raw []byte) ([]answer, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, errors.New("empty model response")
	}
	if body[0] == '[' {
		var list []answer
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode highlights: %w", err)
		}
		return list, nil
	}
	var doc struct {
		Highlights *[]answer `json:"highlights"`
		answer
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode highlights: %w", err)
	}
	if doc.Highlights != nil {
		return *doc.Highlights, nil
	}
	if doc.Start.ok || doc.End.ok {
		return []answer{doc.answer}, nil
	}
	return nil, errors.New("decode highlights: no highlights field")
}

type scored struct {
	h     types.Highlight
	score float64
	pos   int
}

func resolve(answers []answer, n int) Selection {
	var sel Selection
	var kept []scored
	for i, a := range answers {
		pos := i + 1
		if !a.Start.ok || !a.End.ok {
			sel.Rejected = append(sel.Rejected, Rejection{Position: pos, Reason: "start or end is not a number"})
			continue
		}
		h := types.Highlight{Start: a.Start.seconds(), End: a.End.seconds(), Content: strings.TrimSpace(a.Content)}
		if err := types.Validate(h); err != nil {
			sel.Rejected = append(sel.Rejected, Rejection{Position: pos, Start: h.Start, End: h.End, Reason: err.Error()})
			continue
		}
		cand := scored{h: h, score: Rank(h.Content), pos: pos}

		var clash []int
		for j, k := range kept {
			if k.h.Overlaps(h) {
				clash = append(clash, j)
			}
		}
		if len(clash) == 0 {
			kept = append(kept, cand)
			continue
		}
		wins := true
		for _, j := range clash {
			if kept[j].score >= cand.score {
				wins = false
				break
			}
		}
		if !wins {
			sel.Rejected = append(sel.Rejected, Rejection{Position: pos, Start: h.Start, End: h.End, Reason: "overlaps an earlier highlight"})
			continue
		}
		next := kept[:0:0]
		for j, k := range kept {
			if containsInt(clash, j) {
				sel.Rejected = append(sel.Rejected, Rejection{Position: k.pos, Start: k.h.Start, End: k.h.End, Reason: fmt.Sprintf("overlaps answer %d which scores higher", pos)})
				continue
			}
			next = append(next, k)
		}
		kept = append(next, cand)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].pos < kept[j].pos })
	if len(kept) > n {
		for _, k := range kept[n:] {
			sel.Rejected = append(sel.Rejected, Rejection{Position: k.pos, Start: k.h.Start, End: k.h.End, Reason: fmt.Sprintf("more than %d highlights returned", n)})
		}
		kept = kept[:n]
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].h.Start < kept[j].h.Start })
	for _, k := range kept {
		sel.Highlights = append(sel.Highlights, k.h)
	}
	sort.SliceStable(sel.Rejected, func(i, j int) bool { return sel.Rejected[i].Position < sel.Rejected[j].Position })
	return sel
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
