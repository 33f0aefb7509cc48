// Package classifier scans Python error messages and tracebacks for known
// error shapes. It is not a bug-fixer: it only extracts labels (error types)
// and entities (variable or column names) that help retrieval and tiering.
package classifier

import (
	"regexp"
	"strings"
)

// Signal holds the classification result for one input message.
type Signal struct {
	Labels   []string `json:"labels"`
	Entities []string `json:"entities"`
}

// patternSources is the fixed, ordered list of error shapes we recognise.
// Capture groups pull out details like missing keys or undefined names.
// Order matters: entities are appended in pattern-list order.
var patternSources = []string{
	`KeyError: '([^']+)'`,
	`AttributeError: '([^']+)' object has no attribute '([^']+)'`,
	`IndexError: list index out of range`,
	`TypeError: unsupported operand type\(s\) for`,
	`ValueError:.*`,
	`NameError: name '([^']+)' is not defined`,
	`SettingWithCopyWarning`,
	`ZeroDivisionError: division by zero`,
}

type pattern struct {
	re    *regexp.Regexp
	label string
}

var patterns = compilePatterns()

func compilePatterns() []pattern {
	out := make([]pattern, len(patternSources))
	for i, src := range patternSources {
		out[i] = pattern{
			// (?is): case-insensitive, dot matches newline — tracebacks span lines.
			re:    regexp.MustCompile(`(?is)` + src),
			label: labelFor(src),
		}
	}
	return out
}

// labelFor derives a pattern's label from its source text: everything before
// the first colon. Patterns without a colon (SettingWithCopyWarning) fall back
// to the source stripped of regex metacharacters.
func labelFor(src string) string {
	if i := strings.Index(src, ":"); i >= 0 {
		return src[:i]
	}
	return stripMeta(src)
}

func stripMeta(src string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '(', ')', '[', ']', '{', '}', '^', '$', '.', '*', '+', '?', '|', '\'':
			return -1
		}
		return r
	}, src)
}

// Classify matches the input against every known pattern. Each matching
// pattern contributes its label (once) and all non-empty capture groups to
// the entity list, de-duplicated preserving first-seen order. An input that
// matches nothing yields an empty Signal; Classify never fails.
func Classify(text string) Signal {
	sig := Signal{Labels: []string{}, Entities: []string{}}
	seenLabels := make(map[string]bool)
	seenEntities := make(map[string]bool)

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		if !seenLabels[p.label] {
			seenLabels[p.label] = true
			sig.Labels = append(sig.Labels, p.label)
		}

		for _, g := range m[1:] {
			if g == "" || seenEntities[g] {
				continue
			}
			seenEntities[g] = true
			sig.Entities = append(sig.Entities, g)
		}
	}

	return sig
}
