package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/auth"
	"github.com/veilpii/veil/pkg/store/postgres"
)

var (
	log *logrus.Logger

	cfgFile     string
	showVersion bool
	dumpConfig  bool
	generateKey bool
	fixturePath string
	tokenTTL    time.Duration
)

var cmd = &cobra.Command{
	Use:   "veil",
	Short: "veil finds and anonymizes personal and health information in text",
	RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd.Context()) },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd.Context()) },
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test utilities",
}

var createFixturesCmd = &cobra.Command{
	Use:   "create-fixtures",
	Short: "Create recognizer fixtures for testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtureCount, _ := cmd.Flags().GetInt("count")
		outputDir, _ := cmd.Flags().GetString("outputDir")
		if err := postgres.GenerateFixtureData(fixtureCount, outputDir); err != nil {
			return err
		}
		fmt.Println("Fixtures created successfully.")
		return nil
	},
}

var loadFixturesCmd = &cobra.Command{
	Use:   "load-fixtures",
	Short: "Load fixtures into the Postgres recognizer store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("error configuring veil: %w", err)
		}
		db, err := postgres.NewPostgresConn(cfg.Store.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := postgres.LoadFixtures(cmd.Context(), db, fixturePath); err != nil {
			return fmt.Errorf("failed to load fixtures: %w", err)
		}
		fmt.Println("Fixtures loaded successfully.")
		return nil
	},
}

var dumpJsonSchemaCmd = &cobra.Command{
	Use:     "json-schema",
	Short:   "Generates JSON Schema for veil's configuration file",
	Example: "veil json-schema > veil_config_schema.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := config.JSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(schema))
		return nil
	},
}

var generateTokenCmd = &cobra.Command{
	Use:   "generate-token",
	Short: "Generate a JWT for the API using auth.secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		token, err := auth.GenerateJWT(cfg, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	testCmd.AddCommand(createFixturesCmd)
	testCmd.AddCommand(loadFixturesCmd)
	cmd.AddCommand(serveCmd)
	cmd.AddCommand(testCmd)
	cmd.AddCommand(dumpJsonSchemaCmd)
	cmd.AddCommand(generateTokenCmd)
	cmd.AddCommand(analyzeCmd)
	cmd.AddCommand(anonymizeCmd)
	cmd.AddCommand(recognizersCmd)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yaml)")
	cmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "print version number")
	cmd.PersistentFlags().BoolVarP(&dumpConfig, "dump-config", "d", false, "dump config")
	cmd.PersistentFlags().
		BoolVarP(&generateKey, "generate-token", "g", false, "generate a new JWT token")

	createFixturesCmd.Flags().Int("count", 100, "Number of recognizers to generate")
	createFixturesCmd.Flags().String("outputDir", "./test_data", "Path to output fixtures")
	loadFixturesCmd.Flags().
		StringVarP(&fixturePath, "fixturePath", "f", "./test_data", "Path containing fixtures to load")
	generateTokenCmd.Flags().
		DurationVar(&tokenTTL, "ttl", 0, "token lifetime, e.g. 720h. zero means no expiry")
}

// Execute executes the root cobra command.
func Execute() {
	log = internal.GetLogger()
	log.SetLevel(logrus.InfoLevel)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
