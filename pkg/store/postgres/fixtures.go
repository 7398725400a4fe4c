package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dbfixture"
	"github.com/uptrace/bun/extra/bundebug"
	"gopkg.in/yaml.v3"

	"github.com/veilpii/veil/pkg/models"
)

type Row interface {
	RecognizerSchema | JobSchema
}

type FixtureModel[T Row] struct {
	Model string `yaml:"model"`
	Rows  []T    `yaml:"rows"`
}

type Fixtures[T Row] []FixtureModel[T]

func generateTimeLastNDays(nDays int) time.Time {
	now := time.Now()
	start := now.Add(time.Duration(-nDays) * 24 * time.Hour)
	return gofakeit.DateRange(start, now)
}

// GenerateFixtureData writes recognizer_fixtures.yaml with fixtureCount
// deny-list recognizers built from fake words.
func GenerateFixtureData(fixtureCount int, outputDir string) error {
	fakerGlobal := gofakeit.NewUnlocked(0)
	gofakeit.SetGlobalFaker(fakerGlobal)

	recognizers := make([]RecognizerSchema, fixtureCount)
	seen := make(map[string]bool, fixtureCount)
	for i := 0; i < fixtureCount; i++ {
		name := gofakeit.Noun() + gofakeit.Color() + "Recognizer"
		for seen[name] {
			name += gofakeit.Letter()
		}
		seen[name] = true

		entity := strings.ToUpper(gofakeit.Noun())
		dateCreated := generateTimeLastNDays(14)
		words := make([]string, gofakeit.Number(2, 6))
		for j := range words {
			words[j] = gofakeit.Word()
		}
		recognizers[i] = RecognizerSchema{
			UUID:      uuid.New(),
			Name:      name,
			Entity:    entity,
			Language:  "en",
			CreatedAt: dateCreated,
			UpdatedAt: dateCreated,
			Spec: models.RecognizerSpec{
				Name:              name,
				SupportedLanguage: "en",
				SupportedEntity:   entity,
				DenyList:          words,
				DenyListScore:     gofakeit.Float64Range(0.5, 1),
				Context:           []string{gofakeit.Word()},
			},
		}
	}

	if outputDir == "" {
		outputDir = "./"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("unable to create %s: %w", outputDir, err)
	}

	return writeFixtureToYAML(Fixtures[RecognizerSchema]{
		{
			Model: "RecognizerSchema",
			Rows:  recognizers,
		},
	}, outputDir, "recognizer_fixtures.yaml")
}

func writeFixtureToYAML[T Row](fixtures Fixtures[T], outputDir, filename string) error {
	data, err := yaml.Marshal(&fixtures)
	if err != nil {
		return fmt.Errorf("failed to marshal fixtures: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, filename), data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	log.Infof("fixtures generated successfully in %s", filename)
	return nil
}

// LoadFixtures recreates the schema and loads every YAML fixture file in
// fixturePath. SQL is logged verbosely.
func LoadFixtures(
	ctx context.Context,
	db *bun.DB,
	fixturePath string,
) error {
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))

	if err := CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	db.RegisterModel(
		(*RecognizerSchema)(nil),
		(*JobSchema)(nil),
	)

	fixture := dbfixture.New(db, dbfixture.WithRecreateTables())

	files, err := os.ReadDir(fixturePath)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		switch filepath.Ext(file.Name()) {
		case ".yaml", ".yml":
			if err := fixture.Load(ctx, os.DirFS(fixturePath), file.Name()); err != nil {
				return fmt.Errorf("failed to load fixture %s: %w", file.Name(), err)
			}
		}
	}

	return nil
}
