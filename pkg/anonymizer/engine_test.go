package anonymizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/pkg/models"
)

func result(entityType string, start, end int, score float64) models.EntityMatch {
	return models.EntityMatch{EntityType: entityType, Start: start, End: end, Score: score}
}

func TestAnonymizeDefaultReplace(t *testing.T) {
	e := NewEngine()
	resp, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text: "My name is Bond, James Bond",
		AnalyzerResults: []models.EntityMatch{
			result("PERSON", 11, 15, 0.8),
			result("PERSON", 17, 27, 0.8),
		},
		Operators: map[string]models.OperatorConfig{
			"PERSON": {Type: models.OperatorReplace, NewValue: "BIP"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "My name is BIP, BIP", resp.Text)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, models.AnonymizedItem{Start: 11, End: 14, EntityType: "PERSON", Text: "BIP", Operator: "replace"}, resp.Items[0])
	assert.Equal(t, models.AnonymizedItem{Start: 16, End: 19, EntityType: "PERSON", Text: "BIP", Operator: "replace"}, resp.Items[1])

	resp, err = e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text:            "call 425-882-9090 now",
		AnalyzerResults: []models.EntityMatch{result("PHONE_NUMBER", 5, 17, 0.5)},
	})
	require.NoError(t, err)
	assert.Equal(t, "call <PHONE_NUMBER> now", resp.Text)
}

func TestAnonymizeOperators(t *testing.T) {
	text := "Zoë 4012888888881881"
	card := result("CREDIT_CARD", 4, 20, 1.0)

	tests := []struct {
		name string
		cfg  models.OperatorConfig
		want string
	}{
		{"redact", models.OperatorConfig{Type: models.OperatorRedact}, "Zoë "},
		{"keep", models.OperatorConfig{Type: models.OperatorKeep}, text},
		{"mask all", models.OperatorConfig{Type: models.OperatorMask}, "Zoë ****************"},
		{
			"mask from end",
			models.OperatorConfig{Type: models.OperatorMask, MaskingChar: "#", CharsToMask: 12, FromEnd: true},
			"Zoë 4012############",
		},
		{
			"mask more than length",
			models.OperatorConfig{Type: models.OperatorMask, MaskingChar: "x", CharsToMask: 100},
			"Zoë xxxxxxxxxxxxxxxx",
		},
	}
	e := NewEngine()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
				Text:            text,
				AnalyzerResults: []models.EntityMatch{card},
				Operators:       map[string]models.OperatorConfig{"CREDIT_CARD": tc.cfg},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Text)
		})
	}
}

func TestAnonymizeHash(t *testing.T) {
	e := NewEngine()
	anonymize := func(cfg models.OperatorConfig, text string) string {
		resp, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
			Text:            text,
			AnalyzerResults: []models.EntityMatch{result("PERSON", 0, len([]rune(text)), 0.9)},
			Operators:       map[string]models.OperatorConfig{models.DefaultOperatorKey: cfg},
		})
		require.NoError(t, err)
		return resp.Text
	}

	sha256Ada := anonymize(models.OperatorConfig{Type: models.OperatorHash}, "Ada")
	assert.Len(t, sha256Ada, 64)
	assert.Equal(t, sha256Ada, anonymize(models.OperatorConfig{Type: models.OperatorHash}, "Ada"))
	assert.NotEqual(t, sha256Ada, anonymize(models.OperatorConfig{Type: models.OperatorHash, Salt: "pepper"}, "Ada"))
	assert.Len(t, anonymize(models.OperatorConfig{Type: models.OperatorHash, HashType: "sha512"}, "Ada"), 128)
}

func TestAnonymizeFakeIsConsistent(t *testing.T) {
	e := NewEngine()
	text := "Ada met Grace, then Ada left"
	resp, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text: text,
		AnalyzerResults: []models.EntityMatch{
			result("PERSON", 0, 3, 0.9),
			result("PERSON", 8, 13, 0.9),
			result("PERSON", 20, 23, 0.9),
		},
		Operators: map[string]models.OperatorConfig{"PERSON": {Type: models.OperatorFake, Seed: 7}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, resp.Items[0].Text, resp.Items[2].Text)
	assert.True(t, strings.HasSuffix(resp.Text, " left"))
	for _, item := range resp.Items {
		assert.NotEmpty(t, item.Text)
		assert.Equal(t, item.Text, string([]rune(resp.Text)[item.Start:item.End]))
	}
}

func TestAnonymizeConflicts(t *testing.T) {
	e := NewEngine()
	text := "John Smith lives at 12 Main Street"

	resp, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text: text,
		AnalyzerResults: []models.EntityMatch{
			result("PERSON", 0, 10, 0.85),
			result("FIRST_NAME", 0, 4, 0.9), // contained, dropped
			result("PERSON", 5, 10, 0.6),    // same type overlap, merged
			result("LOCATION", 20, 34, 0.7),
			result("ADDRESS", 20, 34, 0.8), // same span, higher score wins
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "<PERSON> lives at <ADDRESS>", resp.Text)

	// whitespace separated results of one type merge into one
	resp, err = e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text:            text,
		AnalyzerResults: []models.EntityMatch{result("PERSON", 0, 4, 0.8), result("PERSON", 5, 10, 0.8)},
	})
	require.NoError(t, err)
	assert.Equal(t, "<PERSON> lives at 12 Main Street", resp.Text)
	assert.Len(t, resp.Items, 1)
}

func TestAnonymizePartialOverlap(t *testing.T) {
	e := NewEngine()
	text := "abcdefghij"
	results := []models.EntityMatch{result("A", 0, 6, 0.5), result("B", 4, 10, 0.9)}

	resp, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text:               text,
		AnalyzerResults:    results,
		ConflictResolution: models.RemoveIntersections,
	})
	require.NoError(t, err)
	assert.Equal(t, "<A><B>", resp.Text)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 3, resp.Items[1].Start)

	resp, err = e.Anonymize(context.Background(), &models.AnonymizeRequest{Text: text, AnalyzerResults: results})
	require.NoError(t, err)
	assert.Equal(t, "<A><B>", resp.Text)
	assert.Equal(t, 4, results[1].Start, "caller's results are untouched")
}

func TestAnonymizeErrors(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		name string
		req  *models.AnonymizeRequest
		is   error
	}{
		{"nil request", nil, models.ErrBadRequest},
		{"out of range", &models.AnonymizeRequest{
			Text:            "short",
			AnalyzerResults: []models.EntityMatch{result("X", 2, 50, 0.5)},
		}, models.ErrBadRequest},
		{"unknown operator", &models.AnonymizeRequest{
			Text:      "short",
			Operators: map[string]models.OperatorConfig{"X": {Type: "shred"}},
		}, models.ErrInvalidOperator},
		{"bad masking char", &models.AnonymizeRequest{
			Text:      "short",
			Operators: map[string]models.OperatorConfig{"X": {Type: models.OperatorMask, MaskingChar: "ab"}},
		}, models.ErrInvalidOperator},
		{"encrypt without key", &models.AnonymizeRequest{
			Text:      "short",
			Operators: map[string]models.OperatorConfig{"X": {Type: models.OperatorEncrypt}},
		}, models.ErrInvalidOperator},
		{"decrypt is not an anonymizer", &models.AnonymizeRequest{
			Text:      "short",
			Operators: map[string]models.OperatorConfig{"X": {Type: models.OperatorDecrypt, Key: testKey}},
		}, models.ErrInvalidOperator},
		{"bad hash", &models.AnonymizeRequest{
			Text:      "short",
			Operators: map[string]models.OperatorConfig{"X": {Type: models.OperatorHash, HashType: "md5"}},
		}, models.ErrInvalidOperator},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Anonymize(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestOperators(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, []string{"encrypt", "fake", "hash", "keep", "mask", "redact", "replace"}, e.Operators())
	assert.Equal(t, []string{"decrypt", "keep"}, e.Deanonymizers())

	fake, err := fakeOperator{}.Operate("x", "UNKNOWN", models.OperatorConfig{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fake, "<UNKNOWN"))
}

const testKey = "WmZq4t7w!z%C&F)J"

func TestEncryptDeanonymizeRoundTrip(t *testing.T) {
	e := NewEngine()
	text := "Ada Lovelace wrote to ada@example.com"

	anonymized, err := e.Anonymize(context.Background(), &models.AnonymizeRequest{
		Text: text,
		AnalyzerResults: []models.EntityMatch{
			result("PERSON", 0, 12, 0.85),
			result("EMAIL_ADDRESS", 22, 37, 1.0),
		},
		Operators: map[string]models.OperatorConfig{
			"PERSON":        {Type: models.OperatorEncrypt, Key: testKey},
			"EMAIL_ADDRESS": {Type: models.OperatorReplace},
		},
	})
	require.NoError(t, err)
	require.Len(t, anonymized.Items, 2)
	assert.NotContains(t, anonymized.Text, "Ada Lovelace")
	assert.Contains(t, anonymized.Text, " wrote to <EMAIL_ADDRESS>")

	restored, err := e.Deanonymize(context.Background(), &models.DeanonymizeRequest{
		Text:  anonymized.Text,
		Items: anonymized.Items,
		Deanonymizers: map[string]models.OperatorConfig{
			"PERSON": {Type: models.OperatorDecrypt, Key: testKey},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace wrote to <EMAIL_ADDRESS>", restored.Text)
	require.Len(t, restored.Items, 2)
	assert.Equal(t, models.AnonymizedItem{
		Start: 0, End: 12, EntityType: "PERSON", Text: "Ada Lovelace", Operator: models.OperatorDecrypt,
	}, restored.Items[0])
	assert.Equal(t, models.OperatorKeep, restored.Items[1].Operator)
	assert.Equal(t, "<EMAIL_ADDRESS>", string([]rune(restored.Text)[restored.Items[1].Start:restored.Items[1].End]))
}

func TestEncryptUsesFreshIV(t *testing.T) {
	a, err := encrypt([]byte(testKey), "Chloë")
	require.NoError(t, err)
	b, err := encrypt([]byte(testKey), "Chloë")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	for _, v := range []string{a, b} {
		plain, err := decrypt([]byte(testKey), v)
		require.NoError(t, err)
		assert.Equal(t, "Chloë", plain)
	}
}

func TestDeanonymizeKnownCiphertext(t *testing.T) {
	text := "My name is S184CMt9Drj7QaKQ21JTrpYzghnboTF9pn/neN8JME0="
	resp, err := NewEngine().Deanonymize(context.Background(), &models.DeanonymizeRequest{
		Text:  text,
		Items: []models.AnonymizedItem{{Start: 11, End: 55, EntityType: "PERSON"}},
		Deanonymizers: map[string]models.OperatorConfig{
			models.DefaultOperatorKey: {Type: models.OperatorDecrypt, Key: testKey},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "My name is Chloë", resp.Text)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 11, resp.Items[0].Start)
	assert.Equal(t, 16, resp.Items[0].End)
}

func TestDeanonymizeErrors(t *testing.T) {
	e := NewEngine()
	decryptAll := map[string]models.OperatorConfig{
		models.DefaultOperatorKey: {Type: models.OperatorDecrypt, Key: testKey},
	}
	tests := []struct {
		name string
		req  *models.DeanonymizeRequest
		is   error
	}{
		{"nil request", nil, models.ErrBadRequest},
		{"short key", &models.DeanonymizeRequest{
			Text:          "abc",
			Deanonymizers: map[string]models.OperatorConfig{"PERSON": {Type: models.OperatorDecrypt, Key: "1234"}},
		}, models.ErrInvalidOperator},
		{"anonymize only operator", &models.DeanonymizeRequest{
			Text:          "abc",
			Deanonymizers: map[string]models.OperatorConfig{"PERSON": {Type: models.OperatorMask}},
		}, models.ErrInvalidOperator},
		{"out of range", &models.DeanonymizeRequest{
			Text:          "abc",
			Items:         []models.AnonymizedItem{{Start: 1, End: 9, EntityType: "PERSON"}},
			Deanonymizers: decryptAll,
		}, models.ErrBadRequest},
		{"overlapping items", &models.DeanonymizeRequest{
			Text: "abcdef",
			Items: []models.AnonymizedItem{
				{Start: 0, End: 4, EntityType: "A"},
				{Start: 2, End: 6, EntityType: "B"},
			},
		}, models.ErrBadRequest},
		{"not ciphertext", &models.DeanonymizeRequest{
			Text:          "name <PERSON>",
			Items:         []models.AnonymizedItem{{Start: 5, End: 13, EntityType: "PERSON"}},
			Deanonymizers: decryptAll,
		}, models.ErrBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Deanonymize(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}
