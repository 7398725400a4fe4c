package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	wla "github.com/ma-hartma/watermill-logrus-adapter"
	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/pkg/analyzer"
	"github.com/veilpii/veil/pkg/anonymizer"
	"github.com/veilpii/veil/pkg/auth"
	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/nlp"
	"github.com/veilpii/veil/pkg/recognizers"
	"github.com/veilpii/veil/pkg/server"
	"github.com/veilpii/veil/pkg/store"
	"github.com/veilpii/veil/pkg/store/postgres"
	"github.com/veilpii/veil/pkg/tasks"
	"github.com/veilpii/veil/pkg/telemetry"
)

const (
	StoreTypeMemory   = "memory"
	StoreTypePostgres = "postgres"
	shutdownTimeout   = 10 * time.Second
)

var ErrPostgresDSNNotSet = errors.New("store.postgres.dsn must be set")

// run is the entrypoint for the veil server
func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if done, err := handleCLIOptions(cfg); done || err != nil {
		return err
	}

	log.Infof("Starting veil server version %s", config.VersionString)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return err
	}

	appState, closeStores, err := NewAppState(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	if cfg.Tasks.Enabled {
		if err := startTasks(ctx, appState); err != nil {
			return err
		}
	}

	srv, err := server.Create(appState)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on: %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error shutting down server: %v", err)
	}
	if appState.TaskRouter != nil {
		if err := appState.TaskRouter.Close(); err != nil {
			log.Errorf("error closing task router: %v", err)
		}
	}
	if appState.TaskPublisher != nil {
		if err := appState.TaskPublisher.Close(); err != nil {
			log.Errorf("error closing task publisher: %v", err)
		}
	}
	return shutdownTracing(shutdownCtx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error configuring veil: %w", err)
	}
	config.SetLogLevel(cfg)
	return cfg, nil
}

// handleCLIOptions handles CLI options that don't require the server to run.
// done is true when the option was handled and the process should exit.
func handleCLIOptions(cfg *config.Config) (done bool, err error) {
	switch {
	case showVersion:
		fmt.Println(config.VersionString)
		return true, nil
	case generateKey:
		token, err := auth.GenerateJWT(cfg, 0)
		if err != nil {
			return true, err
		}
		fmt.Println(token)
		return true, nil
	case dumpConfig:
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return true, err
		}
		fmt.Println(string(out))
		return true, nil
	}
	return false, nil
}

// NewAppState builds the recognizer registry, the analyzer and anonymizer
// engines, and the configured stores. Stored recognizers are loaded into
// the registry. The returned func closes the stores.
func NewAppState(ctx context.Context, cfg *config.Config) (*models.AppState, func(), error) {
	registry, nlpEngine, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	appState := &models.AppState{
		Analyzer:   analyzer.NewEngine(cfg, registry, nlpEngine),
		Anonymizer: anonymizer.NewEngine(),
		Config:     cfg,
	}

	closeStores, err := initializeStores(ctx, appState)
	if err != nil {
		return nil, nil, err
	}

	if _, err := recognizers.LoadStored(ctx, appState.RecognizerStore, appState.Analyzer); err != nil {
		closeStores()
		return nil, nil, err
	}

	return appState, closeStores, nil
}

func buildRegistry(cfg *config.Config) (*recognizers.Registry, models.NlpEngine, error) {
	builder := recognizers.NewRegistryBuilder().
		WithPredefined(cfg.Analyzer.SupportedLanguages, cfg.Recognizers.Predefined, cfg.Recognizers.Disabled).
		WithSpecFiles(cfg.Recognizers.Files...)

	var nlpEngine models.NlpEngine
	if !cfg.NLP.Disabled {
		prose := nlp.NewProseEngineFromConfig(cfg)
		nlpEngine = prose
		for _, lang := range prose.SupportedLanguages() {
			builder.WithRecognizers(recognizers.NewNlpRecognizer(lang))
		}
	}

	if cfg.RemoteNER.Enabled {
		remote, err := recognizers.NewRemoteRecognizer(recognizers.RemoteRecognizerConfigFromConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		builder.WithRecognizers(remote)
		log.Infof("remote NER recognizer enabled: %s", cfg.RemoteNER.URL)
	}

	if cfg.LLM.Enabled {
		model, err := recognizers.NewLLMModel(cfg)
		if err != nil {
			return nil, nil, err
		}
		llm, err := recognizers.NewLLMRecognizer(recognizers.LLMRecognizerConfig{
			Model:          model,
			Language:       cfg.LLM.Language,
			Entities:       cfg.LLM.Entities,
			Score:          cfg.LLM.Score,
			MaxInputTokens: cfg.LLM.MaxInputTokens,
		})
		if err != nil {
			return nil, nil, err
		}
		builder.WithRecognizers(llm)
		log.Infof("LLM recognizer enabled: %s/%s", cfg.LLM.Service, cfg.LLM.Model)
	}

	registry, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	return registry, nlpEngine, nil
}

// initializeStores sets up the recognizer and job stores based on the config file / ENV
func initializeStores(ctx context.Context, appState *models.AppState) (func(), error) {
	cfg := appState.Config
	switch cfg.Store.Type {
	case StoreTypeMemory, "":
		appState.RecognizerStore = store.NewMemoryRecognizerStore()
		appState.JobStore = store.NewMemoryJobStore()
		log.Info("Using store: memory")
		return func() {}, nil
	case StoreTypePostgres:
		if cfg.Store.Postgres.DSN == "" {
			return nil, ErrPostgresDSNNotSet
		}
		db, err := postgres.NewPostgresConn(cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Log.Level == "debug" {
			pgDebugLogging(db)
		}
		if err := postgres.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		appState.RecognizerStore = postgres.NewRecognizerStoreDAO(db)
		appState.JobStore = postgres.NewJobStoreDAO(db)
		log.Info("Using store: postgres")
		return func() {
			if err := db.Close(); err != nil {
				log.Errorf("Error closing database connection: %v", err)
			}
		}, nil
	default:
		return nil, fmt.Errorf("store.type (%s) is not supported", cfg.Store.Type)
	}
}

func startTasks(ctx context.Context, appState *models.AppState) error {
	pubsub, err := tasks.NewPubSub(appState.Config, wla.NewLogrusLogger(log))
	if err != nil {
		return err
	}
	if err := tasks.RunTaskRouter(ctx, appState, pubsub); err != nil {
		return err
	}
	log.Infof("analysis jobs enabled, pubsub: %s", appState.Config.Tasks.PubSub)
	return nil
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}
