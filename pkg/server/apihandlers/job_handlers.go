package apihandlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/server/handlertools"
	"github.com/veilpii/veil/pkg/tasks"
)

var errJobsDisabled = errors.New("analysis jobs are not enabled on this server")

// CreateJobHandler godoc
//
//	@Summary		Queue an analysis to run in the background
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.AnalyzeRequest	true	"Analyze request"
//	@Success		202		{object}	models.JobResult
//	@Failure		400		{object}	models.APIError	"Bad Request"
//	@Failure		503		{object}	models.APIError	"Service Unavailable"
//	@Security		Bearer
//	@Router			/api/v1/jobs [post]
func CreateJobHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if appState.TaskPublisher == nil || appState.JobStore == nil {
			handlertools.RenderError(w, errJobsDisabled, http.StatusServiceUnavailable)
			return
		}

		var req models.AnalyzeRequest
		if err := handlertools.DecodeAndValidateJSON(r, &req); err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		job, err := tasks.SubmitAnalyzeJob(r.Context(), appState, &req)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSONStatus(w, http.StatusAccepted, job); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetJobHandler returns the status of a job and, once completed, its result.
func GetJobHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if appState.JobStore == nil {
			handlertools.RenderError(w, errJobsDisabled, http.StatusServiceUnavailable)
			return
		}

		id := handlertools.UUIDFromURL(r, w, "jobId")
		if id == uuid.Nil {
			return
		}

		job, err := appState.JobStore.Get(r.Context(), id)
		if err != nil {
			handlertools.HandleErrorRequestState(w, err)
			return
		}

		if err := handlertools.EncodeJSON(w, job); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
