package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/pkg/analyzer"
	"github.com/veilpii/veil/pkg/anonymizer"
	"github.com/veilpii/veil/pkg/auth"
	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/recognizers"
	"github.com/veilpii/veil/pkg/store"
	"github.com/veilpii/veil/pkg/testutils"
)

func newTestAppState(t *testing.T) *models.AppState {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.MaxRequestSize = 4 << 10

	registry, err := recognizers.NewRegistryBuilder().
		WithPredefined([]string{"en"}, []string{"credit_card", "email"}, nil).
		Build()
	require.NoError(t, err)

	return &models.AppState{
		Analyzer:        analyzer.NewEngine(&cfg, registry, nil),
		Anonymizer:      anonymizer.NewEngine(),
		RecognizerStore: store.NewMemoryRecognizerStore(),
		JobStore:        store.NewMemoryJobStore(),
		Config:          &cfg,
	}
}

func newTestServer(t *testing.T, appState *models.AppState) *httptest.Server {
	t.Helper()
	router, err := setupRouter(appState)
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestAnalyzeRoutes(t *testing.T) {
	srv := newTestServer(t, newTestAppState(t))
	sample := testutils.SampleTexts[0]

	t.Run("analyze", func(t *testing.T) {
		var out models.AnalyzeResponse
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/analyze",
			models.AnalyzeRequest{Text: sample.Text}, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, config.VersionString, resp.Header.Get(config.VersionHeader))

		require.Len(t, out.Results, 1)
		m := out.Results[0]
		assert.Equal(t, "CREDIT_CARD", m.EntityType)
		assert.Equal(t, sample.Entities["CREDIT_CARD"], string([]rune(sample.Text)[m.Start:m.End]))
	})

	t.Run("unsupported language", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/analyze",
			models.AnalyzeRequest{Text: sample.Text, Language: "zz"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("body too large", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/analyze",
			models.AnalyzeRequest{Text: strings.Repeat("a", 8<<10)}, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("batch", func(t *testing.T) {
		texts := make([]string, len(testutils.SampleTexts))
		for i, s := range testutils.SampleTexts {
			texts[i] = s.Text
		}
		var out models.BatchAnalyzeResponse
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/analyze/batch",
			models.BatchAnalyzeRequest{Texts: texts}, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, out.Results, len(texts))
		assert.NotEmpty(t, out.Results[0].Results)
		assert.Empty(t, out.Results[3].Results)
	})

	t.Run("dict", func(t *testing.T) {
		var out models.DictAnalyzeResponse
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/analyze/dict", models.DictAnalyzeRequest{
			Document: map[string]any{"contact": testutils.SampleTexts[1].Text, "count": 3},
		}, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, out.Results, 2)
		assert.Equal(t, "contact", out.Results[0].Key)
		require.Len(t, out.Results[0].Results, 1)
		assert.NotEmpty(t, out.Results[0].Results[0])
	})

	t.Run("redact", func(t *testing.T) {
		var out models.RedactResponse
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/redact", models.RedactRequest{
			AnalyzeRequest: models.AnalyzeRequest{Text: "card 4095-2609-9393-4932 on file"},
		}, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "card <CREDIT_CARD> on file", out.Text)
	})

	t.Run("anonymize", func(t *testing.T) {
		var out models.AnonymizeResponse
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/anonymize", models.AnonymizeRequest{
			Text: "call Ada",
			AnalyzerResults: []models.EntityMatch{
				{EntityType: "PERSON", Start: 5, End: 8, Score: 0.9},
			},
			Operators: map[string]models.OperatorConfig{
				"PERSON": {Type: models.OperatorMask, MaskingChar: "#"},
			},
		}, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "call ###", out.Text)

		resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/anonymize", models.AnonymizeRequest{
			Text:      "call Ada",
			Operators: map[string]models.OperatorConfig{"PERSON": {Type: "shred"}},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("encrypt and deanonymize", func(t *testing.T) {
		key := "WmZq4t7w!z%C&F)J"
		var anonymized models.AnonymizeResponse
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/anonymize", models.AnonymizeRequest{
			Text:            "My name is Chloë",
			AnalyzerResults: []models.EntityMatch{{EntityType: "PERSON", Start: 11, End: 16, Score: 0.8}},
			Operators: map[string]models.OperatorConfig{
				"PERSON": {Type: models.OperatorEncrypt, Key: key},
			},
		}, &anonymized)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, anonymized.Text, "Chloë")

		var restored models.AnonymizeResponse
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/deanonymize", models.DeanonymizeRequest{
			Text:  anonymized.Text,
			Items: anonymized.Items,
			Deanonymizers: map[string]models.OperatorConfig{
				models.DefaultOperatorKey: {Type: models.OperatorDecrypt, Key: key},
			},
		}, &restored)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "My name is Chloë", restored.Text)

		resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/deanonymize", models.DeanonymizeRequest{
			Text:  anonymized.Text,
			Items: anonymized.Items,
			Deanonymizers: map[string]models.OperatorConfig{
				models.DefaultOperatorKey: {Type: models.OperatorDecrypt, Key: "short"},
			},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("operator lists", func(t *testing.T) {
		var ops []string
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/anonymizers", nil, &ops)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, ops, "encrypt")
		assert.NotContains(t, ops, "decrypt")

		resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/deanonymizers", nil, &ops)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{"decrypt", "keep"}, ops)
	})
}

func TestRecognizerRoutes(t *testing.T) {
	srv := newTestServer(t, newTestAppState(t))
	base := srv.URL + "/api/v1"

	var entities []string
	resp := doJSON(t, http.MethodGet, base+"/supportedentities?language=en", nil, &entities)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"CREDIT_CARD", "EMAIL_ADDRESS"}, entities)

	spec := models.RecognizerSpec{
		Name:            "BadgeRecognizer",
		SupportedEntity: "BADGE",
		Version:         "2.0.0",
		Patterns:        []models.Pattern{{Name: "badge", Regex: `\bB-\d{4}\b`, Score: 0.7}},
	}
	var created models.StoredRecognizer
	resp = doJSON(t, http.MethodPost, base+"/recognizers/store", spec, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/recognizers/store", spec, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duplicate name")

	var descriptors []models.RecognizerDescriptor
	resp = doJSON(t, http.MethodGet, base+"/recognizers?version=%3E%3D2.0", nil, &descriptors)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var names []string
	for _, d := range descriptors {
		if d.Version != "" {
			names = append(names, d.Name)
		}
	}
	assert.Equal(t, []string{"BadgeRecognizer"}, names)

	resp = doJSON(t, http.MethodGet, base+"/recognizers?version=not-a-constraint", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var analyzed models.AnalyzeResponse
	doJSON(t, http.MethodPost, base+"/analyze", models.AnalyzeRequest{Text: "badge B-1234"}, &analyzed)
	require.Len(t, analyzed.Results, 1)
	assert.Equal(t, "BADGE", analyzed.Results[0].EntityType)

	itemURL := fmt.Sprintf("%s/recognizers/store/%s", base, created.UUID)
	var fetched models.StoredRecognizer
	resp = doJSON(t, http.MethodGet, itemURL, nil, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, spec.Name, fetched.Spec.Name)

	spec.Patterns[0].Regex = `\bBX-\d{4}\b`
	resp = doJSON(t, http.MethodPut, itemURL, spec, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doJSON(t, http.MethodPost, base+"/analyze", models.AnalyzeRequest{Text: "badge B-1234"}, &analyzed)
	assert.Empty(t, analyzed.Results)

	resp = doJSON(t, http.MethodDelete, itemURL, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, itemURL, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, base+"/recognizers/store/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobRoutes(t *testing.T) {
	appState := newTestAppState(t)
	srv := newTestServer(t, appState)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", models.AnalyzeRequest{Text: "x"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+"00000000-0000-0000-0000-000000000001", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, newTestAppState(t))

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAuthMiddleware(t *testing.T) {
	appState := newTestAppState(t)
	appState.Config.Auth = config.AuthConfig{Secret: "test-secret", Required: true}
	srv := newTestServer(t, appState)
	url := srv.URL + "/api/v1/supportedentities"

	t.Run("no token", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, url, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.GenerateJWT(appState.Config, time.Minute)
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodGet, url, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health stays open", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := *appState.Config
		cfg.Auth.Secret = ""
		_, err := setupRouter(&models.AppState{Config: &cfg})
		assert.ErrorIs(t, err, auth.ErrMissingSecret)
	})
}

func TestMiddleware(t *testing.T) {
	t.Setenv("VEIL_TEST_HEADER", "from-env")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := SendVersion(ApplyCustomHeaders(map[string]string{
		"X-Static": "static",
		"X-Env":    "env:VEIL_TEST_HEADER",
	})(next))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, config.VersionString, rr.Header().Get(config.VersionHeader))
	assert.Equal(t, "static", rr.Header().Get("X-Static"))
	assert.Equal(t, "from-env", rr.Header().Get("X-Env"))
}
