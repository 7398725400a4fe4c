package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoredRecognizer is a RecognizerSpec persisted in a RecognizerStore.
type StoredRecognizer struct {
	UUID      uuid.UUID      `json:"uuid"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Spec      RecognizerSpec `json:"spec"`
}

type RecognizerStore interface {
	Create(ctx context.Context, spec *RecognizerSpec) (*StoredRecognizer, error)
	Get(ctx context.Context, id uuid.UUID) (*StoredRecognizer, error)
	List(ctx context.Context) ([]*StoredRecognizer, error)
	Update(ctx context.Context, id uuid.UUID, spec *RecognizerSpec) (*StoredRecognizer, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}
