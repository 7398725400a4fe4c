package internal

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type testData struct {
	Entities []string
	Text     string
}

func TestParsePrompt(t *testing.T) {
	testCases := []struct {
		name           string
		promptTemplate string
		data           interface{}
		expected       string
		expectErr      bool
	}{
		{
			name:           "Valid template and data",
			promptTemplate: "Find {{ join \", \" .Entities }} in: {{ .Text }}",
			data:           testData{Entities: []string{"PERSON", "EMAIL_ADDRESS"}, Text: "hi"},
			expected:       "Find PERSON, EMAIL_ADDRESS in: hi",
		},
		{
			name:           "Sprig string helpers",
			promptTemplate: "{{ .Text | upper | trim }}",
			data:           testData{Text: "  quiet "},
			expected:       "QUIET",
		},
		{
			name:           "Invalid template",
			promptTemplate: "Hello {{.Text.",
			data:           testData{},
			expectErr:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParsePrompt(tc.promptTemplate, tc.data)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Dedupe([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, Dedupe([]string{}))
}

func TestLeveledLogrusFields(t *testing.T) {
	l := NewLeveledLogrus(GetLogger())
	fields := l.fields("url", "http://x", "attempt", 2, "dangling")
	assert.Equal(t, logrus.Fields{"url": "http://x", "attempt": 2}, fields)
}
