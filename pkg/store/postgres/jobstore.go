package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/store"
)

var _ models.JobStore = &JobStoreDAO{}

type JobStoreDAO struct {
	db *bun.DB
}

func NewJobStoreDAO(db *bun.DB) *JobStoreDAO {
	return &JobStoreDAO{db: db}
}

// Put inserts the job or overwrites its status and outcome.
func (dao *JobStoreDAO) Put(ctx context.Context, job *models.JobResult) error {
	if job == nil || job.UUID == uuid.Nil {
		return models.NewBadRequestError("job uuid cannot be empty")
	}
	row := &JobSchema{
		UUID:        job.UUID,
		Status:      string(job.Status),
		Response:    job.Response,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	_, err := dao.db.NewInsert().
		Model(row).
		On("CONFLICT (uuid) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("response = EXCLUDED.response").
		Set("error = EXCLUDED.error").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to put job "+job.UUID.String(), err)
	}
	return nil
}

func (dao *JobStoreDAO) Get(ctx context.Context, id uuid.UUID) (*models.JobResult, error) {
	row := new(JobSchema)
	err := dao.db.NewSelect().Model(row).Where("uuid = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("job " + id.String())
		}
		return nil, store.NewStorageError("failed to get job", err)
	}
	return &models.JobResult{
		UUID:        row.UUID,
		Status:      models.JobStatus(row.Status),
		Response:    row.Response,
		Error:       row.Error,
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt,
	}, nil
}
