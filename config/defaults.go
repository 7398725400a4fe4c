package config

import (
	"time"

	"dario.cat/mergo"
)

// Defaults returns the configuration used for any field left unset.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadHeaderTimeout: 5 * time.Second,
			MaxRequestSize:    5 << 20,
		},
		Analyzer: AnalyzerConfig{
			DefaultLanguage:    "en",
			SupportedLanguages: []string{"en"},
			RecognizerTimeout:  10 * time.Second,
			RequestTimeout:     30 * time.Second,
			MaxConcurrency:     8,
			ConflictMode:       "strict",
		},
		Context: ContextConfig{
			PrefixWords:         5,
			SuffixWords:         5,
			SimilarityFactor:    0.35,
			MinScoreWithContext: 0.4,
			SimilarityThreshold: 0.75,
		},
		NLP: NLPConfig{Score: 0.85},
		RemoteNER: RemoteNERConfig{
			Language: "en",
			Timeout:  10 * time.Second,
			RetryMax: 3,
			Score:    0.85,
		},
		LLM: LLMConfig{
			Service:        "openai",
			Model:          "gpt-4o-mini",
			Language:       "en",
			MaxInputTokens: 2000,
			Score:          0.8,
		},
		Store: StoreConfig{Type: "memory"},
		Tasks: TasksConfig{
			PubSub:     "memory",
			Throttle:   50,
			MaxRetries: 5,

			ConsumerGroup: "veil",
			PollInterval:  time.Second,
		},
		Telemetry: TelemetryConfig{ServiceName: "veil"},
	}
}

// ApplyDefaults fills zero-valued fields of cfg from Defaults.
func ApplyDefaults(cfg *Config) error {
	return mergo.Merge(cfg, Defaults())
}
