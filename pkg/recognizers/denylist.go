package recognizers

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/veilpii/veil/pkg/models"
)

const DefaultDenyListScore = 1.0

// DenyListPattern turns words into a single pattern matching any of them as a
// whole word.
func DenyListPattern(words []string, score float64) models.Pattern {
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			escaped = append(escaped, regexp2.Escape(w))
		}
	}
	return models.Pattern{
		Name:  "deny_list",
		Regex: `(?:^|(?<=\W))(` + strings.Join(escaped, "|") + `)(?:(?=\W)|$)`,
		Score: score,
	}
}

// NewDenyListRecognizer matches any of words, case-insensitively unless
// caseSensitive is set.
func NewDenyListRecognizer(
	d models.RecognizerDescriptor,
	words []string,
	score float64,
	caseSensitive bool,
) (*PatternRecognizer, error) {
	if len(words) == 0 {
		return nil, models.NewRecognizerConfigError(d.Name, "empty deny list")
	}
	if score <= 0 {
		score = DefaultDenyListScore
	}
	opts := DefaultRegexOptions
	if caseSensitive {
		opts = regexp2.Multiline | regexp2.Singleline
	}
	return NewPatternRecognizer(PatternRecognizerConfig{
		Descriptor:   d,
		Patterns:     []models.Pattern{DenyListPattern(words, score)},
		RegexOptions: opts,
	})
}
