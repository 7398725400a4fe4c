package recognizers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veilpii/veil/pkg/models"
)

// LoadStored compiles every recognizer in store and adds it to analyzer.
// Stored specs that no longer compile, or clash with a registered
// recognizer, are skipped with a warning.
func LoadStored(ctx context.Context, store models.RecognizerStore, analyzer models.Analyzer) (int, error) {
	stored, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored recognizers: %w", err)
	}

	loaded := 0
	for _, s := range stored {
		rec, err := CompileSpec(&s.Spec)
		if err != nil {
			log.Warnf("skipping stored recognizer %s: %s", s.UUID, err)
			continue
		}
		if err := analyzer.AddRecognizer(rec); err != nil {
			log.Warnf("skipping stored recognizer %s: %s", s.UUID, err)
			continue
		}
		loaded++
	}
	log.Infof("loaded %d of %d stored recognizers", loaded, len(stored))
	return loaded, nil
}

// CreateStored validates spec, persists it and registers it with analyzer.
// If registration fails the stored row is removed again.
func CreateStored(
	ctx context.Context,
	store models.RecognizerStore,
	analyzer models.Analyzer,
	spec *models.RecognizerSpec,
) (*models.StoredRecognizer, error) {
	rec, err := CompileSpec(spec)
	if err != nil {
		return nil, err
	}

	stored, err := store.Create(ctx, spec)
	if err != nil {
		return nil, err
	}

	if err := analyzer.AddRecognizer(rec); err != nil {
		if delErr := store.Delete(ctx, stored.UUID); delErr != nil {
			log.Errorf("failed to roll back stored recognizer %s: %s", stored.UUID, delErr)
		}
		return nil, err
	}
	return stored, nil
}

// UpdateStored replaces the spec of a stored recognizer and swaps the
// registered recognizer for the recompiled one.
func UpdateStored(
	ctx context.Context,
	store models.RecognizerStore,
	analyzer models.Analyzer,
	id uuid.UUID,
	spec *models.RecognizerSpec,
) (*models.StoredRecognizer, error) {
	rec, err := CompileSpec(spec)
	if err != nil {
		return nil, err
	}

	previous, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := store.Update(ctx, id, spec)
	if err != nil {
		return nil, err
	}

	analyzer.RemoveRecognizer(storedIdentifier(&previous.Spec))
	if err := analyzer.AddRecognizer(rec); err != nil {
		return nil, fmt.Errorf("recognizer %s stored but not registered: %w", id, err)
	}
	return updated, nil
}

// DeleteStored removes a stored recognizer and unregisters it.
func DeleteStored(
	ctx context.Context,
	store models.RecognizerStore,
	analyzer models.Analyzer,
	id uuid.UUID,
) error {
	stored, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	analyzer.RemoveRecognizer(storedIdentifier(&stored.Spec))
	return nil
}

func storedIdentifier(spec *models.RecognizerSpec) string {
	language := spec.SupportedLanguage
	if language == "" {
		language = "en"
	}
	return models.RecognizerDescriptor{Name: spec.Name, SupportedLanguage: language}.Identifier()
}
