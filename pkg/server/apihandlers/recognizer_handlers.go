package apihandlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/recognizers"
	"github.com/veilpii/veil/pkg/server/handlertools"
)

// ListRecognizersHandler godoc
//
//	@Summary		List registered recognizers
//	@Description	optionally filtered by language and a semver constraint on the recognizer version
//	@Tags			recognizers
//	@Produce		json
//	@Param			language	query		string	false	"Language code"
//	@Param			version		query		string	false	"Version constraint, e.g. >=1.0"
//	@Success		200			{array}		models.RecognizerDescriptor
//	@Failure		400			{object}	models.APIError	"Bad Request"
//	@Security		Bearer
//	@Router			/api/v1/recognizers [get]
func ListRecognizersHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		constraint := r.URL.Query().Get("version")

		descriptors := appState.Analyzer.Recognizers(handlertools.LanguageFromQuery(r))
		out := make([]models.RecognizerDescriptor, 0, len(descriptors))
		for _, d := range descriptors {
			ok, err := recognizers.SpecCompatible(d, constraint)
			if err != nil {
				handlertools.HandleErrorRequestState(w, err)
				return
			}
			if ok {
				out = append(out, d)
			}
		}

		if err := handlertools.EncodeJSON(w, out); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// SupportedEntitiesHandler returns the entity types detectable in a language.
func SupportedEntitiesHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities := appState.Analyzer.SupportedEntities(handlertools.LanguageFromQuery(r))
		if entities == nil {
			entities = []string{}
		}
		if err := handlertools.EncodeJSON(w, entities); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// CreateStoredRecognizerHandler godoc
//
//	@Summary		Store a recognizer and register it
//	@Tags			recognizers
//	@Accept			json
//	@Produce		json
//	@Param			spec	body		models.RecognizerSpec	true	"Recognizer spec"
//	@Success		201		{object}	models.StoredRecognizer
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Failure		500		{object}	models.APIError	"Internal Server Error"
//	@Security		Bearer
//	@Router			/api/v1/recognizers/store [post]
func CreateStoredRecognizerHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec models.RecognizerSpec
		if err := handlertools.DecodeJSON(r, &spec); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		stored, err := recognizers.CreateStored(r.Context(), appState.RecognizerStore, appState.Analyzer, &spec)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSONStatus(w, http.StatusCreated, stored); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

func ListStoredRecognizersHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stored, err := appState.RecognizerStore.List(r.Context())
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}
		if stored == nil {
			stored = []*models.StoredRecognizer{}
		}

		if err := handlertools.EncodeJSON(w, stored); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

func GetStoredRecognizerHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := handlertools.UUIDFromURL(r, w, "recognizerId")
		if id == uuid.Nil {
			return
		}

		stored, err := appState.RecognizerStore.Get(r.Context(), id)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, stored); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// UpdateStoredRecognizerHandler replaces the spec of a stored recognizer.
// The registered recognizer is swapped for the recompiled one.
func UpdateStoredRecognizerHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := handlertools.UUIDFromURL(r, w, "recognizerId")
		if id == uuid.Nil {
			return
		}

		var spec models.RecognizerSpec
		if err := handlertools.DecodeJSON(r, &spec); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		stored, err := recognizers.UpdateStored(r.Context(), appState.RecognizerStore, appState.Analyzer, id, &spec)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, stored); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

func DeleteStoredRecognizerHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := handlertools.UUIDFromURL(r, w, "recognizerId")
		if id == uuid.Nil {
			return
		}

		if err := recognizers.DeleteStored(r.Context(), appState.RecognizerStore, appState.Analyzer, id); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
