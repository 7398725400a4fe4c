package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/pkg/models"
)

func TestAnalyzeList(t *testing.T) {
	e := newTestEngine(nil,
		finder("NameRecognizer", "PERSON", "Ada", 0.85),
		finder("CityRecognizer", "LOCATION", "Paris", 0.7),
	)

	texts := []string{"Ada", "", "Paris and Ada", "nothing here"}
	out, err := e.AnalyzeList(context.Background(), texts, &models.AnalyzeRequest{})
	require.NoError(t, err)
	require.Len(t, out, len(texts))
	assert.Equal(t, []string{"PERSON[0:3]0.85"}, spans(out[0].Results))
	assert.Empty(t, out[1].Results)
	assert.Equal(t, []string{"LOCATION[0:5]0.70", "PERSON[10:13]0.85"}, spans(out[2].Results))
	assert.Empty(t, out[3].Results)

	out, err = e.AnalyzeList(context.Background(), texts, &models.AnalyzeRequest{Entities: []string{"LOCATION"}})
	require.NoError(t, err)
	assert.Empty(t, out[0].Results)
	assert.Equal(t, []string{"LOCATION[0:5]0.70"}, spans(out[2].Results))

	_, err = e.AnalyzeList(context.Background(), texts, &models.AnalyzeRequest{Language: "zz"})
	assert.ErrorIs(t, err, models.ErrUnsupportedLanguage)
}

func TestAnalyzeDict(t *testing.T) {
	e := newTestEngine(nil,
		finder("NameRecognizer", "PERSON", "Ada", 0.85),
		finder("PhoneRecognizer", "PHONE_NUMBER", "425-882-9090", 0.5, "phone"),
	)

	doc := map[string]any{
		"name":  "Ada",
		"phone": "425-882-9090",
		"age":   36,
		"aliases": []any{
			"Ada", "Countess",
		},
		"mixed": []any{"Ada", 1},
		"patient": map[string]any{
			"name": "Ada",
			"id":   "Ada",
		},
		"skipped": "Ada",
	}

	out, err := e.AnalyzeDict(context.Background(), doc, &models.AnalyzeRequest{}, []string{"skipped", "patient.id"})
	require.NoError(t, err)

	byKey := map[string]models.DictAnalyzeResult{}
	var keys []string
	for _, r := range out {
		byKey[r.Key] = r
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"age", "aliases", "mixed", "name", "patient", "phone"}, keys)

	assert.Equal(t, 36, byKey["age"].Value)
	assert.Nil(t, byKey["age"].Results)

	require.Len(t, byKey["aliases"].Results, 2)
	assert.Len(t, byKey["aliases"].Results[0], 1)
	assert.Empty(t, byKey["aliases"].Results[1])

	assert.Equal(t, []any{"Ada", 1}, byKey["mixed"].Value)

	require.Len(t, byKey["name"].Results, 1)
	assert.Equal(t, []string{"PERSON[0:3]0.85"}, spans(byKey["name"].Results[0]))

	// the key itself counts as context
	require.Len(t, byKey["phone"].Results, 1)
	require.Len(t, byKey["phone"].Results[0], 1)
	assert.InDelta(t, 0.675, byKey["phone"].Results[0][0].Score, 1e-9)

	nested := byKey["patient"].Nested
	require.Len(t, nested, 1)
	assert.Equal(t, "name", nested[0].Key)
}

func TestNestedSkips(t *testing.T) {
	assert.Equal(t, []string{"id", "address.zip"}, nestedSkips([]string{"patient.id", "name", "patient.address.zip"}, "patient"))
	assert.Empty(t, nestedSkips([]string{"name"}, "patient"))
}
