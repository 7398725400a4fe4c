package recognizers

import (
	"context"
	"fmt"
	"sort"

	"github.com/veilpii/veil/pkg/models"
)

var DefaultNlpEntities = []string{"PERSON", "LOCATION", "ORGANIZATION"}

// NlpRecognizer surfaces the named entities an NlpEngine already found. It
// does no work of its own and returns nothing when artifacts are missing.
type NlpRecognizer struct {
	descriptor models.RecognizerDescriptor
}

var _ models.Recognizer = (*NlpRecognizer)(nil)

func NewNlpRecognizer(language string, entities ...string) *NlpRecognizer {
	if len(entities) == 0 {
		entities = DefaultNlpEntities
	}
	return &NlpRecognizer{
		descriptor: models.RecognizerDescriptor{
			Name:              "NlpRecognizer",
			SupportedEntities: entities,
			SupportedLanguage: language,
		},
	}
}

func (r *NlpRecognizer) Descriptor() models.RecognizerDescriptor {
	return r.descriptor
}

func (r *NlpRecognizer) Analyze(
	_ context.Context,
	_ string,
	entities []string,
	artifacts *models.NlpArtifacts,
) ([]models.EntityMatch, error) {
	if artifacts == nil {
		return nil, nil
	}
	var out []models.EntityMatch
	for _, e := range artifacts.Entities {
		if !r.descriptor.Supports(e.Label) {
			continue
		}
		if len(entities) > 0 && !contains(entities, e.Label) {
			continue
		}
		m := models.NewEntityMatch(r.descriptor, e.Label, e.Start, e.End, e.Score)
		m.AnalysisExplanation.TextualExplanation = fmt.Sprintf("Identified as %s by the NLP engine", e.Label)
		out = append(out, m)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
