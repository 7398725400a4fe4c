package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/store"
)

var _ models.RecognizerStore = &RecognizerStoreDAO{}

type RecognizerStoreDAO struct {
	db *bun.DB
}

func NewRecognizerStoreDAO(db *bun.DB) *RecognizerStoreDAO {
	return &RecognizerStoreDAO{
		db: db,
	}
}

// Create stores a new recognizer spec. Names are unique.
func (dao *RecognizerStoreDAO) Create(
	ctx context.Context,
	spec *models.RecognizerSpec,
) (*models.StoredRecognizer, error) {
	if spec == nil || spec.Name == "" {
		return nil, models.NewBadRequestError("recognizer name cannot be empty")
	}
	row := specToSchema(spec)
	_, err := dao.db.NewInsert().Model(row).Returning("*").Exec(ctx)
	if err != nil {
		if err, ok := err.(pgdriver.Error); ok && err.IntegrityViolation() {
			return nil, models.NewBadRequestError(
				"recognizer already exists with name: " + spec.Name,
			)
		}
		return nil, store.NewStorageError("failed to create recognizer", err)
	}

	return schemaToStored(row), nil
}

// Get gets a recognizer by UUID.
func (dao *RecognizerStoreDAO) Get(ctx context.Context, id uuid.UUID) (*models.StoredRecognizer, error) {
	row := new(RecognizerSchema)
	err := dao.db.NewSelect().Model(row).Where("uuid = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("recognizer " + id.String())
		}
		return nil, store.NewStorageError("failed to get recognizer", err)
	}
	return schemaToStored(row), nil
}

// List returns every recognizer in creation order.
func (dao *RecognizerStoreDAO) List(ctx context.Context) ([]*models.StoredRecognizer, error) {
	var rows []RecognizerSchema
	err := dao.db.NewSelect().
		Model(&rows).
		Order("created_at ASC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to list recognizers", err)
	}

	out := make([]*models.StoredRecognizer, len(rows))
	for i := range rows {
		out[i] = schemaToStored(&rows[i])
	}
	return out, nil
}

// Update replaces the spec of an existing recognizer. Concurrent updates of
// the same recognizer are serialized with an advisory lock.
func (dao *RecognizerStoreDAO) Update(
	ctx context.Context,
	id uuid.UUID,
	spec *models.RecognizerSpec,
) (*models.StoredRecognizer, error) {
	if spec == nil || spec.Name == "" {
		return nil, models.NewBadRequestError("recognizer name cannot be empty")
	}

	// session level advisory locks must be released on the connection that took them
	conn, err := dao.db.Conn(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to get connection", err)
	}
	defer conn.Close()

	lockRetryPolicy := retrypolicy.Builder[int64]().
		HandleErrors(store.ErrLockAcquisitionFailed).
		WithBackoff(200*time.Millisecond, 10*time.Second).
		WithMaxRetries(7).
		Build()

	lockID, err := failsafe.Get(func() (int64, error) {
		return tryAcquireAdvisoryLock(ctx, conn, "recognizer:"+id.String())
	}, lockRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func(ctx context.Context, db bun.IDB, lockID int64) {
		if err := releaseAdvisoryLock(ctx, db, lockID); err != nil {
			log.Errorf("failed to release advisory lock: %v", err)
		}
	}(ctx, conn, lockID)

	row := specToSchema(spec)
	r, err := conn.NewUpdate().
		Model(row).
		Column("name", "entity", "language", "spec", "updated_at").
		Where("uuid = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if err, ok := err.(pgdriver.Error); ok && err.IntegrityViolation() {
			return nil, models.NewBadRequestError(
				"recognizer already exists with name: " + spec.Name,
			)
		}
		return nil, store.NewStorageError("failed to update recognizer", err)
	}
	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return nil, store.NewStorageError("failed to update recognizer", err)
	}
	if rowsAffected == 0 {
		return nil, models.NewNotFoundError("recognizer " + id.String())
	}

	return schemaToStored(row), nil
}

// Delete removes a recognizer.
func (dao *RecognizerStoreDAO) Delete(ctx context.Context, id uuid.UUID) error {
	r, err := dao.db.NewDelete().
		Model((*RecognizerSchema)(nil)).
		Where("uuid = ?", id).
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to delete recognizer", err)
	}
	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return store.NewStorageError("failed to delete recognizer", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFoundError("recognizer " + id.String())
	}
	return nil
}

// Close closes the database connection.
func (dao *RecognizerStoreDAO) Close() error {
	if dao.db != nil {
		return dao.db.Close()
	}
	return nil
}

func specToSchema(spec *models.RecognizerSpec) *RecognizerSchema {
	language := spec.SupportedLanguage
	if language == "" {
		language = "en"
	}
	return &RecognizerSchema{
		Name:     spec.Name,
		Entity:   spec.SupportedEntity,
		Language: language,
		Spec:     *spec,
	}
}

func schemaToStored(row *RecognizerSchema) *models.StoredRecognizer {
	return &models.StoredRecognizer{
		UUID:      row.UUID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Spec:      row.Spec,
	}
}

func generateLockID(key string) int64 {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hash := hasher.Sum(nil)
	// pg advisory locks take a signed bigint
	return int64(binary.BigEndian.Uint64(hash[:8]))
}

// tryAcquireAdvisoryLock attempts to acquire a PostgreSQL advisory lock using pg_try_advisory_lock.
// It fails immediately if the lock is held elsewhere.
func tryAcquireAdvisoryLock(ctx context.Context, db bun.IDB, key string) (int64, error) {
	lockID := generateLockID(key)

	var acquired bool
	if err := db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(?)", lockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("tryAcquireAdvisoryLock: %w", err)
	}
	if !acquired {
		return 0, store.NewAdvisoryLockError(fmt.Errorf("failed to acquire advisory lock for %s", key))
	}
	return lockID, nil
}

// releaseAdvisoryLock releases a PostgreSQL advisory lock.
func releaseAdvisoryLock(ctx context.Context, db bun.IDB, lockID int64) error {
	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_unlock(?)", lockID); err != nil {
		return store.NewStorageError("failed to release advisory lock", err)
	}

	return nil
}
