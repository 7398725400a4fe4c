package recognizers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

// Snapshot is an immutable view of the registered recognizers, in
// registration order.
type Snapshot struct {
	recognizers []models.Recognizer
}

func NewSnapshot(recognizers ...models.Recognizer) Snapshot {
	return Snapshot{recognizers: append([]models.Recognizer(nil), recognizers...)}
}

func (s Snapshot) Len() int {
	return len(s.recognizers)
}

func (s Snapshot) Recognizers() []models.Recognizer {
	return append([]models.Recognizer(nil), s.recognizers...)
}

// Select returns the recognizers for language that support at least one of
// entities. An empty entities list selects every recognizer for language.
func (s Snapshot) Select(language string, entities []string) []models.Recognizer {
	var out []models.Recognizer
	for _, r := range s.recognizers {
		d := r.Descriptor()
		if d.SupportsLanguage(language) && d.SupportsAny(entities) {
			out = append(out, r)
		}
	}
	return out
}

func (s Snapshot) SupportsLanguage(language string) bool {
	for _, r := range s.recognizers {
		if r.Descriptor().SupportsLanguage(language) {
			return true
		}
	}
	return false
}

// SupportedEntities lists, sorted, every entity type detectable in language.
func (s Snapshot) SupportedEntities(language string) []string {
	var entities []string
	for _, r := range s.recognizers {
		d := r.Descriptor()
		if d.SupportsLanguage(language) {
			entities = append(entities, d.SupportedEntities...)
		}
	}
	entities = internal.Dedupe(entities)
	sort.Strings(entities)
	return entities
}

// Descriptors of recognizers for language; all of them when language is empty.
func (s Snapshot) Descriptors(language string) []models.RecognizerDescriptor {
	out := make([]models.RecognizerDescriptor, 0, len(s.recognizers))
	for _, r := range s.recognizers {
		d := r.Descriptor()
		if language == "" || d.SupportsLanguage(language) {
			out = append(out, d)
		}
	}
	return out
}

// Registry is the process wide set of recognizers. Readers take snapshots;
// writers replace the backing slice, so a snapshot never changes after it
// is taken.
type Registry struct {
	mu          sync.RWMutex
	recognizers []models.Recognizer
}

func NewRegistry(recognizers ...models.Recognizer) *Registry {
	return &Registry{recognizers: append([]models.Recognizer(nil), recognizers...)}
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{recognizers: r.recognizers}
}

// Add appends rec. Identifiers must be unique.
func (r *Registry) Add(rec models.Recognizer) error {
	d := rec.Descriptor()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.recognizers {
		if existing.Descriptor().Identifier() == d.Identifier() {
			return models.NewRecognizerConfigError(d.Name, "already registered")
		}
	}
	next := make([]models.Recognizer, len(r.recognizers), len(r.recognizers)+1)
	copy(next, r.recognizers)
	r.recognizers = append(next, rec)
	log.Infof("registered recognizer %s", d.Identifier())
	return nil
}

// Remove drops every recognizer named name, or whose identifier is name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]models.Recognizer, 0, len(r.recognizers))
	for _, rec := range r.recognizers {
		d := rec.Descriptor()
		if d.Name == name || d.Identifier() == name {
			continue
		}
		next = append(next, rec)
	}
	if len(next) == len(r.recognizers) {
		return false
	}
	r.recognizers = next
	log.Infof("removed recognizer %s", name)
	return true
}

// RegistryBuilder collects recognizers from several sources and reports every
// problem at once on Build.
type RegistryBuilder struct {
	recognizers []models.Recognizer
	errs        []error
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// WithPredefined adds the predefined recognizers under keys for each language.
// No keys means every predefined recognizer; disabled keys are skipped.
func (b *RegistryBuilder) WithPredefined(languages, keys, disabled []string) *RegistryBuilder {
	if len(keys) == 0 {
		keys = PredefinedKeys()
	}
	skip := make(map[string]struct{}, len(disabled))
	for _, k := range disabled {
		skip[k] = struct{}{}
	}
	for _, lang := range languages {
		for _, key := range keys {
			if _, ok := skip[key]; ok {
				continue
			}
			rec, err := NewPredefined(key, lang)
			if err != nil {
				b.errs = append(b.errs, err)
				continue
			}
			b.recognizers = append(b.recognizers, rec)
		}
	}
	return b
}

func (b *RegistryBuilder) WithRecognizers(recs ...models.Recognizer) *RegistryBuilder {
	b.recognizers = append(b.recognizers, recs...)
	return b
}

// WithSpecs compiles declarative recognizers.
func (b *RegistryBuilder) WithSpecs(specs ...models.RecognizerSpec) *RegistryBuilder {
	for i := range specs {
		rec, err := CompileSpec(&specs[i])
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		b.recognizers = append(b.recognizers, rec)
	}
	return b
}

// WithSpecFiles loads and compiles YAML recognizer files.
func (b *RegistryBuilder) WithSpecFiles(paths ...string) *RegistryBuilder {
	for _, p := range paths {
		specs, err := LoadSpecFile(p)
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		b.WithSpecs(specs...)
	}
	return b
}

func (b *RegistryBuilder) Build() (*Registry, error) {
	seen := make(map[string]struct{}, len(b.recognizers))
	errs := append([]error(nil), b.errs...)
	for _, rec := range b.recognizers {
		id := rec.Descriptor().Identifier()
		if _, ok := seen[id]; ok {
			errs = append(errs, models.NewRecognizerConfigError(id, "duplicate recognizer"))
			continue
		}
		seen[id] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to build recognizer registry: %w", errors.Join(errs...))
	}
	return NewRegistry(b.recognizers...), nil
}
