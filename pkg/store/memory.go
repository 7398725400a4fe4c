// Package store holds the in-process implementations of the recognizer and
// job stores. The Postgres implementations live in store/postgres.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

var log = internal.GetLogger()

var (
	_ models.RecognizerStore = (*MemoryRecognizerStore)(nil)
	_ models.JobStore        = (*MemoryJobStore)(nil)
)

// MemoryRecognizerStore keeps recognizer specs in a map. Names are unique.
type MemoryRecognizerStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.StoredRecognizer
}

func NewMemoryRecognizerStore() *MemoryRecognizerStore {
	return &MemoryRecognizerStore{items: make(map[uuid.UUID]*models.StoredRecognizer)}
}

func (s *MemoryRecognizerStore) Create(
	ctx context.Context,
	spec *models.RecognizerSpec,
) (*models.StoredRecognizer, error) {
	if spec == nil || spec.Name == "" {
		return nil, models.NewBadRequestError("recognizer name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(spec.Name, uuid.Nil) {
		return nil, models.NewBadRequestError("recognizer already exists with name: " + spec.Name)
	}

	now := time.Now().UTC()
	stored := &models.StoredRecognizer{UUID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	if err := copySpec(&stored.Spec, spec); err != nil {
		return nil, err
	}
	s.items[stored.UUID] = stored
	log.Debugf("stored recognizer %s (%s)", spec.Name, stored.UUID)

	return cloneStored(stored)
}

func (s *MemoryRecognizerStore) Get(ctx context.Context, id uuid.UUID) (*models.StoredRecognizer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("recognizer " + id.String())
	}
	return cloneStored(stored)
}

// List returns every stored recognizer ordered by creation time.
func (s *MemoryRecognizerStore) List(ctx context.Context) ([]*models.StoredRecognizer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.StoredRecognizer, 0, len(s.items))
	for _, stored := range s.items {
		c, err := cloneStored(stored)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Spec.Name < out[j].Spec.Name
	})
	return out, nil
}

func (s *MemoryRecognizerStore) Update(
	ctx context.Context,
	id uuid.UUID,
	spec *models.RecognizerSpec,
) (*models.StoredRecognizer, error) {
	if spec == nil || spec.Name == "" {
		return nil, models.NewBadRequestError("recognizer name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("recognizer " + id.String())
	}
	if s.nameTaken(spec.Name, id) {
		return nil, models.NewBadRequestError("recognizer already exists with name: " + spec.Name)
	}

	var updated models.RecognizerSpec
	if err := copySpec(&updated, spec); err != nil {
		return nil, err
	}
	stored.Spec = updated
	stored.UpdatedAt = time.Now().UTC()

	return cloneStored(stored)
}

func (s *MemoryRecognizerStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return models.NewNotFoundError("recognizer " + id.String())
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryRecognizerStore) Close() error { return nil }

// nameTaken must be called with the lock held.
func (s *MemoryRecognizerStore) nameTaken(name string, except uuid.UUID) bool {
	for id, stored := range s.items {
		if id != except && stored.Spec.Name == name {
			return true
		}
	}
	return false
}

// MemoryJobStore keeps analyze job results until the process exits.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.JobResult
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]*models.JobResult)}
}

func (s *MemoryJobStore) Put(ctx context.Context, job *models.JobResult) error {
	if job == nil || job.UUID == uuid.Nil {
		return models.NewBadRequestError("job uuid cannot be empty")
	}
	c, err := cloneJob(job)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.UUID] = c
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id uuid.UUID) (*models.JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, models.NewNotFoundError("job " + id.String())
	}
	return cloneJob(job)
}

func cloneJob(job *models.JobResult) (*models.JobResult, error) {
	c := *job
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	if job.Response != nil {
		c.Response = new(models.AnalyzeResponse)
		if err := copier.CopyWithOption(c.Response, job.Response, copier.Option{DeepCopy: true}); err != nil {
			return nil, NewStorageError("failed to copy job response", err)
		}
	}
	return &c, nil
}

func copySpec(dst, src *models.RecognizerSpec) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return NewStorageError("failed to copy recognizer spec", err)
	}
	return nil
}

func cloneStored(stored *models.StoredRecognizer) (*models.StoredRecognizer, error) {
	c := &models.StoredRecognizer{
		UUID:      stored.UUID,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
	if err := copySpec(&c.Spec, &stored.Spec); err != nil {
		return nil, err
	}
	return c, nil
}
