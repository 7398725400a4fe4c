package recognizers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

const (
	DefaultLLMMaxInputTokens = 2000
	llmMaxRetries            = 2
)

var DefaultLLMEntities = []string{"PERSON", "LOCATION", "ORGANIZATION", "NRP"}

// TokenCounter returns the number of model tokens in text.
type TokenCounter func(text string) int

type LLMRecognizerConfig struct {
	Model          llms.Model
	Language       string
	Entities       []string
	Score          float64
	MaxInputTokens int
	// Counter defaults to the cl100k_base tiktoken encoding.
	Counter TokenCounter
}

// LLMRecognizer asks a language model to list entities found in the text and
// maps each returned surface string back to its offsets.
type LLMRecognizer struct {
	descriptor models.RecognizerDescriptor
	model      llms.Model
	score      float64
	maxTokens  int
	counter    TokenCounter
	retry      time.Duration
}

var _ models.Recognizer = (*LLMRecognizer)(nil)

func NewLLMRecognizer(cfg LLMRecognizerConfig) (*LLMRecognizer, error) {
	if cfg.Model == nil {
		return nil, models.NewRecognizerConfigError("LLMRecognizer", "model is required")
	}
	if len(cfg.Entities) == 0 {
		cfg.Entities = DefaultLLMEntities
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Score <= 0 || cfg.Score > 1 {
		cfg.Score = 0.8
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = DefaultLLMMaxInputTokens
	}
	if cfg.Counter == nil {
		cfg.Counter = tiktokenCounter()
	}
	return &LLMRecognizer{
		descriptor: models.RecognizerDescriptor{
			Name:              "LLMRecognizer",
			SupportedEntities: cfg.Entities,
			SupportedLanguage: cfg.Language,
		},
		model:     cfg.Model,
		score:     cfg.Score,
		maxTokens: cfg.MaxInputTokens,
		counter:   cfg.Counter,
		retry:     500 * time.Millisecond,
	}, nil
}

// NewLLMModel creates the chat model named in config.
func NewLLMModel(cfg *config.Config) (llms.Model, error) {
	switch cfg.LLM.Service {
	case "openai", "":
		if cfg.LLM.APIKey == "" {
			return nil, errors.New("VEIL_LLM_API_KEY is not set")
		}
		opts := []openai.Option{
			openai.WithModel(cfg.LLM.Model),
			openai.WithToken(cfg.LLM.APIKey),
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("invalid LLM service: %s", cfg.LLM.Service)
	}
}

// tiktokenCounter falls back to a characters-per-token estimate when the
// encoding cannot be loaded.
func tiktokenCounter() TokenCounter {
	tkm, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warnf("tiktoken unavailable, estimating token counts: %s", err)
		return func(text string) int {
			return utf8.RuneCountInString(text)/4 + 1
		}
	}
	return func(text string) int {
		return len(tkm.Encode(text, nil, nil))
	}
}

func (r *LLMRecognizer) Descriptor() models.RecognizerDescriptor {
	return r.descriptor
}

func (r *LLMRecognizer) Analyze(
	ctx context.Context,
	text string,
	entities []string,
	_ *models.NlpArtifacts,
) ([]models.EntityMatch, error) {
	wanted := r.descriptor.SupportedEntities
	if len(entities) > 0 {
		wanted = nil
		for _, e := range entities {
			if r.descriptor.Supports(e) {
				wanted = append(wanted, e)
			}
		}
		if len(wanted) == 0 {
			return nil, nil
		}
	}

	var out []models.EntityMatch
	for _, c := range chunkText(text, r.maxTokens, r.counter) {
		found, err := r.extract(ctx, c.text, wanted)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if !contains(wanted, f.EntityType) || strings.TrimSpace(f.Text) == "" {
				continue
			}
			for _, start := range runeIndexes(c.text, f.Text) {
				m := models.NewEntityMatch(
					r.descriptor,
					f.EntityType,
					c.start+start,
					c.start+start+utf8.RuneCountInString(f.Text),
					r.score,
				)
				m.AnalysisExplanation.TextualExplanation = "Identified by language model"
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type llmEntity struct {
	EntityType string `json:"entity_type"`
	Text       string `json:"text"`
}

func (r *LLMRecognizer) extract(ctx context.Context, text string, entities []string) ([]llmEntity, error) {
	prompt, err := internal.ParsePrompt(llmEntityPromptTemplate, llmEntityPromptData{
		Entities: entities,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}

	policy := retrypolicy.Builder[string]().
		HandleIf(func(_ string, err error) bool {
			return err != nil && ctx.Err() == nil
		}).
		WithBackoff(r.retry, 10*r.retry).
		WithMaxRetries(llmMaxRetries).
		Build()

	completion, err := failsafe.Get(func() (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, r.model, prompt, llms.WithTemperature(0))
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	return parseLLMEntities(completion)
}

// parseLLMEntities accepts a bare JSON array or one wrapped in prose or code
// fences.
func parseLLMEntities(completion string) ([]llmEntity, error) {
	start := strings.IndexByte(completion, '[')
	end := strings.LastIndexByte(completion, ']')
	if start < 0 || end < start {
		if strings.TrimSpace(completion) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("llm response has no JSON array: %q", truncate(completion, 80))
	}
	var found []llmEntity
	if err := json.Unmarshal([]byte(completion[start:end+1]), &found); err != nil {
		return nil, fmt.Errorf("failed to parse llm response: %w", err)
	}
	return found, nil
}

type chunk struct {
	text  string
	start int
}

// chunkText splits text on whitespace into pieces of at most maxTokens,
// recording the character offset where each piece starts.
func chunkText(text string, maxTokens int, count TokenCounter) []chunk {
	if count(text) <= maxTokens {
		return []chunk{{text: text}}
	}

	runes := []rune(text)
	var chunks []chunk
	chunkStart, tokens := 0, 0
	i := 0
	for i < len(runes) {
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
		}
		n := count(string(runes[i:j]))
		if tokens > 0 && tokens+n > maxTokens {
			chunks = append(chunks, chunk{text: string(runes[chunkStart:i]), start: chunkStart})
			chunkStart, tokens = i, 0
		}
		tokens += n
		i = j
	}
	if chunkStart < len(runes) {
		chunks = append(chunks, chunk{text: string(runes[chunkStart:]), start: chunkStart})
	}
	return chunks
}

// runeIndexes returns the character offsets of every non-overlapping
// occurrence of sub in s.
func runeIndexes(s, sub string) []int {
	var out []int
	offset, runeOffset := 0, 0
	for {
		i := strings.Index(s[offset:], sub)
		if i < 0 {
			return out
		}
		runeOffset += utf8.RuneCountInString(s[offset : offset+i])
		out = append(out, runeOffset)
		runeOffset += utf8.RuneCountInString(sub)
		offset += i + len(sub)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
