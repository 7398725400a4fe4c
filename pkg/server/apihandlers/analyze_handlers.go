package apihandlers

import (
	"net/http"

	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/server/handlertools"
)

// AnalyzeHandler godoc
//
//	@Summary		Detect PII entities in a text
//	@Tags			analyze
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.AnalyzeRequest	true	"Analyze request"
//	@Success		200		{object}	models.AnalyzeResponse
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Failure		500		{object}	models.APIError	"Internal Server Error"
//	@Security		Bearer
//	@Router			/api/v1/analyze [post]
func AnalyzeHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AnalyzeRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		resp, err := appState.Analyzer.Analyze(r.Context(), &req)
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

// BatchAnalyzeHandler godoc
//
//	@Summary		Detect PII entities in several texts with the same settings
//	@Tags			analyze
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.BatchAnalyzeRequest	true	"Batch request"
//	@Success		200		{object}	models.BatchAnalyzeResponse
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Failure		413		{object}	models.APIError	"Request Entity Too Large"
//	@Security		Bearer
//	@Router			/api/v1/analyze/batch [post]
func BatchAnalyzeHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.BatchAnalyzeRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		results, err := appState.Analyzer.AnalyzeList(r.Context(), req.Texts, &req.AnalyzeRequest)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, models.BatchAnalyzeResponse{Results: results}); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DictAnalyzeHandler analyzes every string value of a JSON document. Keys are
// used as context for their values.
func DictAnalyzeHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.DictAnalyzeRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		results, err := appState.Analyzer.AnalyzeDict(
			r.Context(),
			req.Document,
			&req.AnalyzeRequest,
			req.KeysToSkip,
		)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, models.DictAnalyzeResponse{Results: results}); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// RedactHandler godoc
//
//	@Summary		Analyze a text and anonymize what was found
//	@Tags			analyze
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.RedactRequest	true	"Redact request"
//	@Success		200		{object}	models.RedactResponse
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Security		Bearer
//	@Router			/api/v1/redact [post]
func RedactHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RedactRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		analyzed, err := appState.Analyzer.Analyze(r.Context(), &req.AnalyzeRequest)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		anonymized, err := appState.Anonymizer.Anonymize(r.Context(), &models.AnonymizeRequest{
			Text:               req.Text,
			AnalyzerResults:    analyzed.Results,
			Operators:          req.Operators,
			ConflictResolution: req.ConflictResolution,
		})
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		resp := models.RedactResponse{
			AnonymizeResponse: *anonymized,
			FailedRecognizers: analyzed.FailedRecognizers,
		}
		if err := handlertools.EncodeJSON(w, resp); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
