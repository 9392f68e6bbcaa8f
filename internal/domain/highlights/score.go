package highlights

import (
	"regexp"
	"strings"
)

// maxScore caps each score.
const maxScore = 10

type rule struct {
	re     *regexp.Regexp
	weight float64
}

// infoRules reward concrete, instructional speech.
var infoRules = []rule{
	{regexp.MustCompile(`\b\d+(?:[.,]\d+)?%?`), 0.4},
	{regexp.MustCompile(`(?i)\b(how\s+to|first|second|third|do\s+this|because|the\s+reason)\b`), 0.6},
}

// hookRules reward lines that stop a scroll.
var hookRules = []rule{
	{regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|nobody|truth|remember|here\s+is\s+why|here's\s+why)\b`), 0.9},
	{regexp.MustCompile(`(?i)\bstep\s+\d+\b`), 0.4},
	{regexp.MustCompile(`\?`), 0.7},
	{regexp.MustCompile(`!`), 0.3},
}

// Score rates highlight text as (info, hook), each in [0, 10]. Longer text
// loses a little info so tight highlights win ties.
func Score(text string) (info, hook float64) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, 0
	}
	info = apply(infoRules, t) - 0.0006*float64(len([]rune(t)))
	hook = apply(hookRules, t)
	if opensWithQuestion(t) {
		hook += 0.5
	}
	return clamp(info), clamp(hook)
}

// Rank is info + hook. The selector keeps the higher ranked of two
// overlapping highlights.
func Rank(text string) float64 {
	info, hook := Score(text)
	return info + hook
}

func apply(rules []rule, t string) float64 {
	var s float64
	for _, r := range rules {
		s += float64(len(r.re.FindAllStringIndex(t, -1))) * r.weight
	}
	return s
}

func opensWithQuestion(t string) bool {
	end := strings.IndexAny(t, ".!?")
	return end >= 0 && t[end] == '?'
}

func clamp(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > maxScore:
		return maxScore
	}
	return x
}
