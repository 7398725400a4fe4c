package models

import (
	"context"
	"fmt"
	"strings"
)

// RecognizerDescriptor describes what a recognizer detects and for which language.
type RecognizerDescriptor struct {
	ID                string   `json:"id,omitempty"                      yaml:"id,omitempty"`
	Name              string   `json:"name"                              yaml:"name"`
	SupportedEntities []string `json:"supported_entities"                yaml:"supported_entities"`
	SupportedLanguage string   `json:"supported_language"                yaml:"supported_language"`
	Context           []string `json:"context,omitempty"                 yaml:"context,omitempty"`
	// ContextSimilarityThreshold overrides the enhancer's default when > 0.
	ContextSimilarityThreshold float64 `json:"context_similarity_threshold,omitempty" yaml:"context_similarity_threshold,omitempty"`
	Version                    string  `json:"version,omitempty"                      yaml:"version,omitempty"`
}

// Identifier is a stable id for the recognizer instance, defaulting to
// name and language when no explicit ID was assigned.
func (d RecognizerDescriptor) Identifier() string {
	if d.ID != "" {
		return d.ID
	}
	return fmt.Sprintf("%s_%s", d.Name, d.SupportedLanguage)
}

func (d RecognizerDescriptor) Supports(entity string) bool {
	for _, e := range d.SupportedEntities {
		if e == entity {
			return true
		}
	}
	return false
}

// SupportsAny reports whether d supports at least one of entities. An empty
// filter matches everything.
func (d RecognizerDescriptor) SupportsAny(entities []string) bool {
	if len(entities) == 0 {
		return true
	}
	for _, e := range entities {
		if d.Supports(e) {
			return true
		}
	}
	return false
}

func (d RecognizerDescriptor) SupportsLanguage(language string) bool {
	return strings.EqualFold(d.SupportedLanguage, language)
}

// Recognizer is any detector that turns text into candidate matches. entities
// is the subset of supported entities the caller wants, artifacts may be nil.
type Recognizer interface {
	Descriptor() RecognizerDescriptor
	Analyze(
		ctx context.Context,
		text string,
		entities []string,
		artifacts *NlpArtifacts,
	) ([]EntityMatch, error)
}

// ValidationResult is the outcome of a checksum or format validator.
type ValidationResult int

const (
	NoOpinion ValidationResult = iota
	Confirmed
	Rejected
)

func (v ValidationResult) String() string {
	switch v {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	default:
		return "no_opinion"
	}
}

func (v ValidationResult) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ValidationResult) UnmarshalText(b []byte) error {
	switch string(b) {
	case "confirmed":
		*v = Confirmed
	case "rejected":
		*v = Rejected
	case "no_opinion", "":
		*v = NoOpinion
	default:
		return fmt.Errorf("unknown validation result %q", b)
	}
	return nil
}

// Pattern is a named regular expression with a prior score.
type Pattern struct {
	Name  string  `json:"name"  yaml:"name"  validate:"required"`
	Regex string  `json:"regex" yaml:"regex" validate:"required"`
	Score float64 `json:"score" yaml:"score" validate:"gte=0,lte=1"`
}

// RecognizerFailure records a recognizer that errored, panicked or timed out
// during a request.
type RecognizerFailure struct {
	Recognizer string `json:"recognizer"`
	Error      string `json:"error"`
}
