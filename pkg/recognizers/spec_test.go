package recognizers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/pkg/models"
)

const specYAML = `
recognizers:
  - name: EmployeeIdRecognizer
    supported_entity: EMPLOYEE_ID
    supported_language: en
    version: 1.2.0
    context: [employee, badge]
    patterns:
      - name: employee id
        regex: '\bEMP-\d{6}\b'
        score: 0.6
  - name: TitleRecognizer
    supported_entity: TITLE
    deny_list: [Mr, Mrs, Dr]
    deny_list_score: 0.9
`

func TestCompileSpec(t *testing.T) {
	specs, err := ParseSpecs([]byte(specYAML))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	emp, err := CompileSpec(&specs[0])
	require.NoError(t, err)
	d := emp.Descriptor()
	assert.Equal(t, "EmployeeIdRecognizer", d.Name)
	assert.Equal(t, []string{"EMPLOYEE_ID"}, d.SupportedEntities)
	assert.Equal(t, []string{"employee", "badge"}, d.Context)
	assert.Equal(t, "1.2.0", d.Version)

	results, err := emp.Analyze(context.Background(), "badge emp-123456", nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 6, results[0].Start)
	assert.Equal(t, 0.6, results[0].Score)

	title, err := CompileSpec(&specs[1])
	require.NoError(t, err)
	assert.Equal(t, "en", title.Descriptor().SupportedLanguage)
	results, err = title.Analyze(context.Background(), "Dr. Who", nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.9, results[0].Score)
}

func TestCompileSpecCaseSensitive(t *testing.T) {
	spec := models.RecognizerSpec{
		Name:            "codes",
		SupportedEntity: "CODE",
		Patterns:        []models.Pattern{{Name: "code", Regex: `\bAB\d{2}\b`, Score: 0.5}},
		CaseSensitive:   true,
	}
	r, err := CompileSpec(&spec)
	require.NoError(t, err)
	results, err := r.Analyze(context.Background(), "ab12 AB34", nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].Start)
}

func TestCompileSpecErrors(t *testing.T) {
	pattern := []models.Pattern{{Name: "p", Regex: `x`, Score: 0.5}}
	tests := []struct {
		name string
		spec models.RecognizerSpec
	}{
		{"missing name", models.RecognizerSpec{SupportedEntity: "X", Patterns: pattern}},
		{"missing entity", models.RecognizerSpec{Name: "r", Patterns: pattern}},
		{"nothing to match", models.RecognizerSpec{Name: "r", SupportedEntity: "X"}},
		{"bad regex", models.RecognizerSpec{
			Name: "r", SupportedEntity: "X",
			Patterns: []models.Pattern{{Name: "p", Regex: `[`, Score: 0.5}},
		}},
		{"bad score", models.RecognizerSpec{
			Name: "r", SupportedEntity: "X",
			Patterns: []models.Pattern{{Name: "p", Regex: `x`, Score: 2}},
		}},
		{"bad version", models.RecognizerSpec{Name: "r", SupportedEntity: "X", Patterns: pattern, Version: "one"}},
		{"empty deny list word", models.RecognizerSpec{Name: "r", SupportedEntity: "X", DenyList: []string{""}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileSpec(&tc.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidRecognizer)
			var cfgErr *models.RecognizerConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSpecCompatible(t *testing.T) {
	d := models.RecognizerDescriptor{Version: "1.2.0"}

	ok, err := SpecCompatible(d, ">= 1.0, < 2.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = SpecCompatible(d, "^2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = SpecCompatible(models.RecognizerDescriptor{}, "^2")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = SpecCompatible(d, "not a constraint")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestParseSpecsInvalidYAML(t *testing.T) {
	_, err := ParseSpecs([]byte("recognizers: [:"))
	assert.Error(t, err)
}
