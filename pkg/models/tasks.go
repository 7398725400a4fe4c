package models

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type TaskTopic string

const (
	AnalyzeJobTopic TaskTopic = "analyze_job"
)

type Task interface {
	Execute(ctx context.Context, event *message.Message) error
	HandleError(err error)
}

type TaskRouter interface {
	Run(ctx context.Context) error
	AddTask(ctx context.Context, name string, taskType TaskTopic, task Task)
	RunHandlers(ctx context.Context) error
	IsRunning() bool
	Close() error
}

type TaskPublisher interface {
	Publish(taskType TaskTopic, metadata map[string]string, payload any) error
	Close() error
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// AnalyzeJob is the payload published to AnalyzeJobTopic.
type AnalyzeJob struct {
	UUID    uuid.UUID      `json:"uuid"`
	Request AnalyzeRequest `json:"request"`
}

type JobResult struct {
	UUID        uuid.UUID        `json:"uuid"`
	Status      JobStatus        `json:"status"`
	Response    *AnalyzeResponse `json:"response,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type JobStore interface {
	Put(ctx context.Context, job *JobResult) error
	Get(ctx context.Context, id uuid.UUID) (*JobResult, error)
}
