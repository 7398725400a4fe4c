// Package testutils holds helpers shared by package tests: test config,
// the Postgres DSN and SQL logging for database tests, and sample texts.
package testutils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"

	"github.com/veilpii/veil/config"
)

var (
	testConfig     *config.Config
	testConfigOnce sync.Once
)

// GetDSN returns the Postgres DSN for database tests, read from
// VEIL_STORE_POSTGRES_DSN. Empty means database tests are skipped.
func GetDSN() string {
	v := viper.New()
	v.SetEnvPrefix("VEIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("store.postgres.dsn"); err != nil {
		return ""
	}
	return v.GetString("store.postgres.dsn")
}

func initConfig() (*config.Config, error) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	// load env vars from .env
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		logrus.Debug(".env file not found or unable to load")
	}

	configPath := filepath.Join(projectRoot, "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// tests never call out to remote services unless they set them up
	cfg.RemoteNER.Enabled = false
	cfg.LLM.Enabled = false
	cfg.Telemetry.Enabled = false

	return cfg, nil
}

// NewTestConfig returns a copy of the project config with remote
// recognizers disabled.
func NewTestConfig() *config.Config {
	testConfigOnce.Do(func() {
		cfg, err := initConfig()
		if err != nil {
			panic(err)
		}
		testConfig = cfg
	})
	c := *testConfig
	return &c
}

// FindProjectRoot returns the absolute path to the project root directory.
func FindProjectRoot() (string, error) {
	_, currentFilePath, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("could not get current file path")
	}

	dir := filepath.Dir(currentFilePath)

	for {
		// go.mod marks the project root
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("project root not found")
		}

		dir = filepath.Dir(dir)
	}
}

func SetUpDBLogging(db *bun.DB, log logrus.FieldLogger) {
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

const charset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func GenerateRandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		bigInt, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[bigInt.Int64()]
	}
	return string(b)
}
