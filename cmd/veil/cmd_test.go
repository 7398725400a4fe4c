package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

func TestMain(m *testing.M) {
	log = internal.GetLogger()
	os.Exit(m.Run())
}

func bracket(a ...any) string { return "[" + fmt.Sprint(a...) + "]" }

func TestHighlightSpans(t *testing.T) {
	text := []rune("Zoë lives in Paris")
	got := highlightSpans(text, []models.EntityMatch{
		{EntityType: "LOCATION", Start: 13, End: 18},
		{EntityType: "PERSON", Start: 0, End: 3},
		{EntityType: "NAME", Start: 1, End: 3},
	}, bracket)
	assert.Equal(t, "[Zoë] lives in [Paris]", got)
	assert.Equal(t, "plain", highlightSpans([]rune("plain"), nil, bracket))
}

func TestRenderMatches(t *testing.T) {
	var buf bytes.Buffer
	renderMatches(&buf, "card 4095-2609-9393-4932", &models.AnalyzeResponse{
		Results: []models.EntityMatch{{
			EntityType:          "CREDIT_CARD",
			Start:               5,
			End:                 24,
			Score:               1,
			RecognitionMetadata: map[string]string{models.RecognizerNameKey: "CreditCardRecognizer"},
		}},
		FailedRecognizers: []models.RecognizerFailure{{Recognizer: "Remote", Error: "timeout"}},
	}, bracket)

	out := buf.String()
	assert.Contains(t, out, "card [4095-2609-9393-4932]")
	assert.Contains(t, out, "CreditCardRecognizer")
	assert.Contains(t, out, "5-24")
	assert.Contains(t, out, "recognizer Remote failed: timeout")
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "found 1 entity in 2.0 kB of text (12ms)", summaryLine(1, strings.Repeat("a", 2000), 12*time.Millisecond))
	assert.Equal(t, "found 1,200 entities in 5 B of text (0s)", summaryLine(1200, "hello", 0))
}

func TestReadInput(t *testing.T) {
	text, err := readInput(strings.NewReader("from stdin"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	text, err = readInput(strings.NewReader("ignored"), []string{path})
	require.NoError(t, err)
	assert.Equal(t, "from file", text)

	_, err = readInput(nil, []string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestNewAppState(t *testing.T) {
	cfg := config.Defaults()
	cfg.NLP.Disabled = true
	cfg.Recognizers.Predefined = []string{"credit_card", "email"}

	appState, closeStores, err := NewAppState(context.Background(), &cfg)
	require.NoError(t, err)
	defer closeStores()

	assert.NotNil(t, appState.RecognizerStore)
	assert.NotNil(t, appState.JobStore)
	assert.Equal(t, []string{"CREDIT_CARD", "EMAIL_ADDRESS"}, appState.Analyzer.SupportedEntities("en"))

	cfg.Store.Type = "postgres"
	_, _, err = NewAppState(context.Background(), &cfg)
	assert.ErrorIs(t, err, ErrPostgresDSNNotSet)

	cfg.Store.Type = "redis"
	_, _, err = NewAppState(context.Background(), &cfg)
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	t.Setenv("VEIL_NLP_DISABLED", "true")
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("card 4095-2609-9393-4932 on file"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", "--entities", "CREDIT_CARD"})
	t.Cleanup(func() { cmd.SetArgs(nil) })

	require.NoError(t, cmd.Execute())

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "CREDIT_CARD", resp.Results[0].EntityType)
	assert.Equal(t, 5, resp.Results[0].Start)
}

func TestAnonymizeCommand(t *testing.T) {
	t.Setenv("VEIL_NLP_DISABLED", "true")
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("card 4095-2609-9393-4932 on file"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"anonymize", "--entities", "CREDIT_CARD", "--operator", "CREDIT_CARD=redact"})
	t.Cleanup(func() { cmd.SetArgs(nil) })

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "card  on file\n", out.String())
}
