package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veilpii/veil/pkg/models"
)

var _ models.Task = &AnalyzeJobTask{}

// AnalyzeJobTask runs one queued analyze request and stores its outcome.
type AnalyzeJobTask struct {
	BaseTask
}

func NewAnalyzeJobTask(appState *models.AppState) *AnalyzeJobTask {
	return &AnalyzeJobTask{
		BaseTask: BaseTask{
			appState: appState,
		},
	}
}

// Execute returns an error only for failures worth retrying. A request the
// analyzer rejects is stored as a failed job and acknowledged.
func (t *AnalyzeJobTask) Execute(ctx context.Context, msg *message.Message) error {
	var job models.AnalyzeJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		// a malformed payload will never succeed
		log.Errorf("AnalyzeJobTask dropping malformed message %s: %v", msg.UUID, err)
		return nil
	}

	logger := log.WithFields(logrus.Fields{"job": job.UUID, "message": msg.UUID})
	existing, err := t.appState.JobStore.Get(ctx, job.UUID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("AnalyzeJobTask get job failed: %w", err)
	}
	createdAt := time.Now().UTC()
	if existing != nil {
		if existing.Status != models.JobPending {
			logger.Debug("job already finished, skipping redelivery")
			return nil
		}
		createdAt = existing.CreatedAt
	}

	resp, err := t.appState.Analyzer.Analyze(ctx, &job.Request)
	done := time.Now().UTC()
	result := &models.JobResult{
		UUID:        job.UUID,
		CreatedAt:   createdAt,
		CompletedAt: &done,
	}
	switch {
	case err == nil:
		result.Status = models.JobCompleted
		result.Response = resp
	case errors.Is(err, models.ErrBadRequest):
		result.Status = models.JobFailed
		result.Error = err.Error()
	default:
		return fmt.Errorf("AnalyzeJobTask analyze failed: %w", err)
	}

	if err := t.appState.JobStore.Put(ctx, result); err != nil {
		return fmt.Errorf("AnalyzeJobTask store result failed: %w", err)
	}
	logger.Debugf("job %s", result.Status)

	return nil
}

func (t *AnalyzeJobTask) HandleError(err error) {
	log.Errorf("AnalyzeJobTask failed: %v", err)
}

// SubmitAnalyzeJob records a pending job and publishes it for the task
// router. The returned result carries the job's UUID.
func SubmitAnalyzeJob(
	ctx context.Context,
	appState *models.AppState,
	req *models.AnalyzeRequest,
) (*models.JobResult, error) {
	if appState.TaskPublisher == nil || appState.JobStore == nil {
		return nil, errors.New("async jobs are not enabled")
	}
	if req == nil {
		return nil, models.NewBadRequestError("analyze request is required")
	}

	pending := &models.JobResult{
		UUID:      uuid.New(),
		Status:    models.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := appState.JobStore.Put(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to store pending job: %w", err)
	}

	metadata := map[string]string{"job_uuid": pending.UUID.String()}
	if req.CorrelationID != "" {
		metadata["correlation_id"] = req.CorrelationID
	}
	job := models.AnalyzeJob{UUID: pending.UUID, Request: *req}
	if err := appState.TaskPublisher.Publish(models.AnalyzeJobTopic, metadata, job); err != nil {
		failed := *pending
		failed.Status = models.JobFailed
		failed.Error = err.Error()
		if putErr := appState.JobStore.Put(ctx, &failed); putErr != nil {
			log.Errorf("failed to mark job %s failed: %v", pending.UUID, putErr)
		}
		return nil, err
	}

	return pending, nil
}
