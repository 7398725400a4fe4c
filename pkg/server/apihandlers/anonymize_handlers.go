package apihandlers

import (
	"net/http"

	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/server/handlertools"
)

// AnonymizeHandler godoc
//
//	@Summary		Anonymize a text using previously found entities
//	@Tags			anonymize
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.AnonymizeRequest	true	"Anonymize request"
//	@Success		200		{object}	models.AnonymizeResponse
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Security		Bearer
//	@Router			/api/v1/anonymize [post]
func AnonymizeHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AnonymizeRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		resp, err := appState.Anonymizer.Anonymize(r.Context(), &req)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, resp); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DeanonymizeHandler godoc
//
//	@Summary		Restore text anonymized with reversible operators
//	@Tags			anonymize
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.DeanonymizeRequest	true	"Deanonymize request"
//	@Success		200		{object}	models.AnonymizeResponse
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Security		Bearer
//	@Router			/api/v1/deanonymize [post]
func DeanonymizeHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.DeanonymizeRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		resp, err := appState.Anonymizer.Deanonymize(r.Context(), &req)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, resp); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// AnonymizersHandler lists the operator types accepted by /anonymize.
func AnonymizersHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handlertools.EncodeJSON(w, appState.Anonymizer.Operators()); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
		}
	}
}

// DeanonymizersHandler lists the operator types accepted by /deanonymize.
func DeanonymizersHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handlertools.EncodeJSON(w, appState.Anonymizer.Deanonymizers()); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
		}
	}
}
