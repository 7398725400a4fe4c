package recognizers

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

var log = internal.GetLogger()

const (
	DefaultRegexOptions regexp2.RegexOptions = regexp2.IgnoreCase | regexp2.Multiline | regexp2.Singleline
	DefaultMatchTimeout                      = 100 * time.Millisecond
)

// Validator inspects matched text, typically running a checksum.
type Validator func(matched string) models.ValidationResult

// Invalidator reports matched text that must never be returned.
type Invalidator func(matched string) bool

type PatternRecognizerConfig struct {
	Descriptor  models.RecognizerDescriptor
	Patterns    []models.Pattern
	Validator   Validator
	Invalidator Invalidator
	// RegexOptions defaults to DefaultRegexOptions when zero.
	RegexOptions regexp2.RegexOptions
	MatchTimeout time.Duration
}

type compiledPattern struct {
	pattern models.Pattern
	re      *regexp2.Regexp
}

// PatternRecognizer detects a single entity type with regular expressions
// and optional validation of each matched string.
type PatternRecognizer struct {
	descriptor  models.RecognizerDescriptor
	patterns    []compiledPattern
	validator   Validator
	invalidator Invalidator
}

var _ models.Recognizer = (*PatternRecognizer)(nil)

func NewPatternRecognizer(cfg PatternRecognizerConfig) (*PatternRecognizer, error) {
	d := cfg.Descriptor
	if len(d.SupportedEntities) != 1 || d.SupportedEntities[0] == "" {
		return nil, models.NewRecognizerConfigError(d.Name, "pattern recognizers support exactly one entity")
	}
	if len(cfg.Patterns) == 0 {
		return nil, models.NewRecognizerConfigError(d.Name, "no patterns")
	}
	if d.SupportedLanguage == "" {
		d.SupportedLanguage = "en"
	}

	opts := cfg.RegexOptions
	if opts == 0 {
		opts = DefaultRegexOptions
	}
	timeout := cfg.MatchTimeout
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}

	compiled := make([]compiledPattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if p.Score < models.MinScore || p.Score > models.MaxScore {
			return nil, models.NewRecognizerConfigError(
				d.Name,
				fmt.Sprintf("pattern %q score %v out of range", p.Name, p.Score),
			)
		}
		re, err := regexp2.Compile(p.Regex, opts)
		if err != nil {
			return nil, models.NewRecognizerConfigError(
				d.Name,
				fmt.Sprintf("pattern %q: %s", p.Name, err),
			)
		}
		re.MatchTimeout = timeout
		compiled = append(compiled, compiledPattern{pattern: p, re: re})
	}

	return &PatternRecognizer{
		descriptor:  d,
		patterns:    compiled,
		validator:   cfg.Validator,
		invalidator: cfg.Invalidator,
	}, nil
}

func (r *PatternRecognizer) Descriptor() models.RecognizerDescriptor {
	return r.descriptor
}

func (r *PatternRecognizer) Analyze(
	ctx context.Context,
	text string,
	entities []string,
	_ *models.NlpArtifacts,
) ([]models.EntityMatch, error) {
	if !r.descriptor.SupportsAny(entities) {
		return nil, nil
	}
	entityType := r.descriptor.SupportedEntities[0]

	var results []models.EntityMatch
	for _, cp := range r.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := cp.re.FindStringMatch(text)
		for ; m != nil && err == nil; m, err = cp.re.FindNextMatch(m) {
			if m.Length == 0 {
				continue
			}
			matched := m.String()
			score := cp.pattern.Score
			validation := models.NoOpinion
			if r.validator != nil {
				validation = r.validator(matched)
				switch validation {
				case models.Confirmed:
					score = models.MaxScore
				case models.Rejected:
					score = models.MinScore
				}
			}
			if r.invalidator != nil && r.invalidator(matched) {
				score = models.MinScore
			}
			if score <= models.MinScore {
				continue
			}

			em := models.NewEntityMatch(r.descriptor, entityType, m.Index, m.Index+m.Length, cp.pattern.Score)
			em.Score = score
			em.AnalysisExplanation.PatternName = cp.pattern.Name
			em.AnalysisExplanation.Pattern = cp.pattern.Regex
			em.AnalysisExplanation.ValidationResult = validation
			em.AnalysisExplanation.Score = score
			em.AnalysisExplanation.TextualExplanation = fmt.Sprintf(
				"Detected by %s using pattern %s", r.descriptor.Name, cp.pattern.Name,
			)
			results = append(results, em)
		}
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", cp.pattern.Name, err)
		}
	}

	log.Debugf("%s found %d candidates", r.descriptor.Name, len(results))
	return results, nil
}
