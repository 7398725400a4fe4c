package handlertools

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/pkg/models"
)

func TestBoolFromQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/?explain=true", nil)
	got, err := BoolFromQuery(req, "explain")
	assert.NoError(t, err)
	assert.True(t, got)

	got, err = BoolFromQuery(req, "missing")
	assert.NoError(t, err)
	assert.False(t, got)

	_, err = BoolFromQuery(httptest.NewRequest("GET", "/?explain=maybe", nil), "explain")
	assert.Error(t, err)
}

func TestParseUUIDFromURL(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		urlUUID := UUIDFromURL(r, w, "uuid")
		assert.NotNil(t, urlUUID)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	// Test with valid UUID
	validUUID := uuid.New()
	res, err := http.Get(ts.URL + "/" + validUUID.String())
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// Test with invalid UUID
	res, err = http.Get(ts.URL + "/invalid_uuid")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDecodeAndValidateJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"text": "hello", "analyzer_results": []}`, true},
		{"missing required", `{"analyzer_results": []}`, false},
		{"bad strategy", `{"text": "x", "conflict_resolution": "coin_flip"}`, false},
		{"not json", `{`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var v models.AnonymizeRequest
			err := DecodeAndValidateJSON(req, &v)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}

func TestHandleErrorRequestState(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.NewNotFoundError("recognizer x"), http.StatusNotFound},
		{models.NewBadRequestError("nope"), http.StatusBadRequest},
		{models.NewUnsupportedLanguageError("zz"), http.StatusBadRequest},
		{models.NewOperatorConfigError("mask", "bad char"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleErrorRequestState(w, tc.err)
			assert.Equal(t, tc.status, w.Code)

			var apiErr models.APIError
			require.NoError(t, json.NewDecoder(w.Body).Decode(&apiErr))
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}
