// Package handlertools holds the request decoding, response encoding and
// error rendering shared by the API handlers.
package handlertools

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

var log = internal.GetLogger()

var Validate = validator.New()

// BoolFromQuery extracts a query string value and converts it to a bool
func BoolFromQuery(r *http.Request, param string) (bool, error) {
	p := r.URL.Query().Get(param)
	if p != "" {
		return strconv.ParseBool(p)
	}
	return false, nil
}

// EncodeJSON encodes data into JSON and writes it to the response writer.
func EncodeJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

// EncodeJSONStatus writes status and then the JSON body.
func EncodeJSONStatus(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes a JSON request body into the provided data struct.
// Decoding problems are reported as bad requests.
func DecodeJSON(r *http.Request, data interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return models.NewBadRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

// DecodeAndValidateJSON decodes the body into v and validates its struct tags.
func DecodeAndValidateJSON(r *http.Request, v any) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}
	if err := Validate.Struct(v); err != nil {
		return models.NewBadRequestError(err.Error())
	}
	return nil
}

// RenderError renders an error response.
func RenderError(w http.ResponseWriter, err error, status int) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		status = http.StatusRequestEntityTooLarge
		err = fmt.Errorf("request body too large. send fewer or shorter texts per request")
	}

	if status >= http.StatusInternalServerError {
		log.Error(err)
	} else if status != http.StatusNotFound {
		// Don't log not found errors
		log.Debug(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIError{Message: err.Error()})
}

// HandleErrorRequestState maps an error to its HTTP status and renders it.
func HandleErrorRequestState(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		RenderError(w, err, http.StatusNotFound)
	case errors.Is(err, models.ErrBadRequest):
		RenderError(w, err, http.StatusBadRequest)
	default:
		RenderError(w, err, http.StatusInternalServerError)
	}
}

// UUIDFromURL parses a UUID from a Path parameter. If the UUID is invalid, an error is
// rendered and uuid.Nil is returned.
func UUIDFromURL(r *http.Request, w http.ResponseWriter, paramName string) uuid.UUID {
	uuidStr := chi.URLParam(r, paramName)
	id, err := uuid.Parse(uuidStr)
	if err != nil {
		RenderError(
			w,
			fmt.Errorf("unable to parse %s: %w", paramName, err),
			http.StatusBadRequest,
		)
		return uuid.Nil
	}
	return id
}

// LanguageFromQuery returns the "language" query parameter, lower cased.
func LanguageFromQuery(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.URL.Query().Get("language")))
}
