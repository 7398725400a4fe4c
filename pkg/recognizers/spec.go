package recognizers

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/veilpii/veil/pkg/models"
)

var validate = validator.New()

// SpecFile is the on-disk layout of a recognizer YAML file.
type SpecFile struct {
	Recognizers []models.RecognizerSpec `yaml:"recognizers"`
}

// CompileSpec turns a declarative spec into a pattern recognizer. Every
// problem with the spec is reported as a RecognizerConfigError.
func CompileSpec(spec *models.RecognizerSpec) (*PatternRecognizer, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, models.NewRecognizerConfigError(spec.Name, err.Error())
	}
	if len(spec.Patterns) == 0 && len(spec.DenyList) == 0 {
		return nil, models.NewRecognizerConfigError(spec.Name, "either patterns or deny_list is required")
	}

	version := ""
	if spec.Version != "" {
		v, err := semver.NewVersion(spec.Version)
		if err != nil {
			return nil, models.NewRecognizerConfigError(
				spec.Name,
				fmt.Sprintf("invalid version %q: %s", spec.Version, err),
			)
		}
		version = v.String()
	}

	language := spec.SupportedLanguage
	if language == "" {
		language = "en"
	}

	patterns := append([]models.Pattern(nil), spec.Patterns...)
	if len(spec.DenyList) > 0 {
		score := spec.DenyListScore
		if score <= 0 {
			score = DefaultDenyListScore
		}
		patterns = append(patterns, DenyListPattern(spec.DenyList, score))
	}

	opts := DefaultRegexOptions
	if spec.CaseSensitive {
		opts = regexp2.Multiline | regexp2.Singleline
	}

	return NewPatternRecognizer(PatternRecognizerConfig{
		Descriptor: models.RecognizerDescriptor{
			Name:                       spec.Name,
			SupportedEntities:          []string{spec.SupportedEntity},
			SupportedLanguage:          language,
			Context:                    spec.Context,
			ContextSimilarityThreshold: spec.ContextSimilarityThreshold,
			Version:                    version,
		},
		Patterns:     patterns,
		RegexOptions: opts,
	})
}

// SpecCompatible reports whether a compiled spec version satisfies constraint.
// Recognizers without a version satisfy any constraint.
func SpecCompatible(d models.RecognizerDescriptor, constraint string) (bool, error) {
	if constraint == "" || d.Version == "" {
		return true, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, models.NewBadRequestError(fmt.Sprintf("invalid version constraint %q", constraint))
	}
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// ParseSpecs decodes a recognizer YAML document.
func ParseSpecs(data []byte) ([]models.RecognizerSpec, error) {
	var f SpecFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse recognizer specs: %w", err)
	}
	return f.Recognizers, nil
}

func LoadSpecFile(path string) ([]models.RecognizerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recognizer file %s: %w", path, err)
	}
	specs, err := ParseSpecs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded %d recognizer specs from %s", len(specs), path)
	return specs, nil
}
