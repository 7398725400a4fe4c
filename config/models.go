package config

import "time"

// Config holds the configuration of the application
// Use config.LoadConfig to create a new instance
type Config struct {
	Log         LogConfig         `mapstructure:"log"         json:"log"`
	Server      ServerConfig      `mapstructure:"server"      json:"server"`
	Auth        AuthConfig        `mapstructure:"auth"        json:"auth"`
	Analyzer    AnalyzerConfig    `mapstructure:"analyzer"    json:"analyzer"`
	Context     ContextConfig     `mapstructure:"context"     json:"context"`
	Recognizers RecognizersConfig `mapstructure:"recognizers" json:"recognizers"`
	NLP         NLPConfig         `mapstructure:"nlp"         json:"nlp"`
	RemoteNER   RemoteNERConfig   `mapstructure:"remote_ner"  json:"remote_ner"`
	LLM         LLMConfig         `mapstructure:"llm"         json:"llm"`
	Store       StoreConfig       `mapstructure:"store"       json:"store"`
	Tasks       TasksConfig       `mapstructure:"tasks"       json:"tasks"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"   json:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  json:"level"  jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Format string `mapstructure:"format" json:"format" jsonschema:"enum=text,enum=json"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"                json:"host"`
	Port              int           `mapstructure:"port"                json:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" json:"read_header_timeout"`
	// MaxRequestSize is in bytes.
	MaxRequestSize int64 `mapstructure:"max_request_size" json:"max_request_size"`
	// CustomHeaders are added to every response. "env:NAME" values are read
	// from the environment.
	CustomHeaders map[string]string `mapstructure:"custom_headers" json:"custom_headers"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"   json:"secret"`
	Required bool   `mapstructure:"required" json:"required"`
}

type AnalyzerConfig struct {
	DefaultLanguage       string        `mapstructure:"default_language"        json:"default_language"`
	SupportedLanguages    []string      `mapstructure:"supported_languages"     json:"supported_languages"`
	DefaultScoreThreshold float64       `mapstructure:"default_score_threshold" json:"default_score_threshold"`
	RecognizerTimeout     time.Duration `mapstructure:"recognizer_timeout"      json:"recognizer_timeout"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"         json:"request_timeout"`
	MaxConcurrency        int           `mapstructure:"max_concurrency"         json:"max_concurrency"`
	ReturnExplanation     bool          `mapstructure:"return_explanation"      json:"return_explanation"`
	ConflictMode          string        `mapstructure:"conflict_mode"           json:"conflict_mode" jsonschema:"enum=strict,enum=lenient"`
}

type ContextConfig struct {
	PrefixWords         int     `mapstructure:"prefix_words"           json:"prefix_words"`
	SuffixWords         int     `mapstructure:"suffix_words"           json:"suffix_words"`
	SimilarityFactor    float64 `mapstructure:"similarity_factor"      json:"similarity_factor"`
	MinScoreWithContext float64 `mapstructure:"min_score_with_context" json:"min_score_with_context"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"   json:"similarity_threshold"`
}

type RecognizersConfig struct {
	// Predefined lists registry keys to load; empty means all.
	Predefined []string `mapstructure:"predefined" json:"predefined"`
	Disabled   []string `mapstructure:"disabled"   json:"disabled"`
	// Files are YAML files of recognizer specs loaded at startup.
	Files []string `mapstructure:"files" json:"files"`
}

// NLPConfig controls the built-in prose NLP engine, which is on unless disabled.
type NLPConfig struct {
	Disabled bool    `mapstructure:"disabled" json:"disabled"`
	Score    float64 `mapstructure:"score"    json:"score"`
}

type RemoteNERConfig struct {
	Enabled  bool              `mapstructure:"enabled"   json:"enabled"`
	URL      string            `mapstructure:"url"       json:"url"`
	Language string            `mapstructure:"language"  json:"language"`
	Labels   map[string]string `mapstructure:"labels"    json:"labels"`
	Timeout  time.Duration     `mapstructure:"timeout"   json:"timeout"`
	RetryMax int               `mapstructure:"retry_max" json:"retry_max"`
	Score    float64           `mapstructure:"score"     json:"score"`
}

type LLMConfig struct {
	Enabled bool   `mapstructure:"enabled"  json:"enabled"`
	Service string `mapstructure:"service"  json:"service" jsonschema:"enum=openai"`
	Model   string `mapstructure:"model"    json:"model"`
	// APIKey is loaded from ENV not config file.
	APIKey         string   `mapstructure:"api_key"          json:"-"`
	BaseURL        string   `mapstructure:"base_url"         json:"base_url"`
	Language       string   `mapstructure:"language"         json:"language"`
	Entities       []string `mapstructure:"entities"         json:"entities"`
	MaxInputTokens int      `mapstructure:"max_input_tokens" json:"max_input_tokens"`
	Score          float64  `mapstructure:"score"            json:"score"`
}

type StoreConfig struct {
	Type     string         `mapstructure:"type"     json:"type" jsonschema:"enum=memory,enum=postgres"`
	Postgres PostgresConfig `mapstructure:"postgres" json:"postgres"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

type TasksConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	PubSub  string `mapstructure:"pubsub"  json:"pubsub" jsonschema:"enum=memory,enum=postgres"`
	// Throttle is messages per second.
	Throttle   int64 `mapstructure:"throttle"    json:"throttle"`
	MaxRetries int   `mapstructure:"max_retries" json:"max_retries"`
	// Postgres queue only.
	ConsumerGroup string        `mapstructure:"consumer_group" json:"consumer_group"`
	PollInterval  time.Duration `mapstructure:"poll_interval"  json:"poll_interval"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"       json:"enabled"`
	ServiceName  string `mapstructure:"service_name"  json:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"      json:"insecure"`
}
