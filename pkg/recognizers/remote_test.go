package recognizers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/pkg/models"
)

func nerServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.NerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Texts, 1)

		resp := models.NerResponse{Texts: []models.NerResponseRecord{{
			UUID: req.Texts[0].UUID,
			Entities: []models.NerEntity{
				{Name: "Ada Lovelace", Label: "PER", Matches: []models.NerSpan{{Start: 0, End: 12, Text: "Ada Lovelace"}}},
				{Name: "London", Label: "GPE", Matches: []models.NerSpan{{Start: 22, End: 28, Text: "London"}}},
				{Name: "1815", Label: "CARDINAL", Matches: []models.NerSpan{{Start: 32, End: 36, Text: "1815"}}},
			},
		}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestRemoteRecognizer(t *testing.T) {
	srv := nerServer(t)
	defer srv.Close()

	r, err := NewRemoteRecognizer(RemoteRecognizerConfig{
		URL:    srv.URL,
		Labels: map[string]string{"GPE": "CITY"},
		Client: NewRetryableHTTPClient(0, time.Second),
	})
	require.NoError(t, err)
	assert.True(t, r.Descriptor().Supports("CITY"))
	assert.True(t, r.Descriptor().Supports("PERSON"))

	text := "Ada Lovelace lived in London in 1815"
	results, err := r.Analyze(context.Background(), text, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PERSON", results[0].EntityType)
	assert.Equal(t, 0.85, results[0].Score)
	assert.Equal(t, "CITY", results[1].EntityType)
	assert.Equal(t, 22, results[1].Start)

	results, err = r.Analyze(context.Background(), text, []string{"CITY"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "CITY", results[0].EntityType)
}

func TestRemoteRecognizerErrors(t *testing.T) {
	_, err := NewRemoteRecognizer(RemoteRecognizerConfig{})
	assert.ErrorIs(t, err, models.ErrInvalidRecognizer)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusBadRequest)
	}))
	defer srv.Close()

	r, err := NewRemoteRecognizer(RemoteRecognizerConfig{
		URL:    srv.URL,
		Client: NewRetryableHTTPClient(0, time.Second),
	})
	require.NoError(t, err)
	_, err = r.Analyze(context.Background(), "text", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestNlpRecognizer(t *testing.T) {
	r := NewNlpRecognizer("en")
	artifacts := &models.NlpArtifacts{
		Language: "en",
		Entities: []models.NlpEntity{
			{Label: "PERSON", Text: "Ada", Start: 0, End: 3, Score: 0.85},
			{Label: "LOCATION", Text: "London", Start: 10, End: 16, Score: 0.85},
			{Label: "MONEY", Text: "$5", Start: 20, End: 22, Score: 0.85},
		},
	}

	results, err := r.Analyze(context.Background(), "", nil, artifacts)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = r.Analyze(context.Background(), "", []string{"LOCATION"}, artifacts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 10, results[0].Start)

	results, err = r.Analyze(context.Background(), "", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
