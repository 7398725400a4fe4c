package recognizers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/pkg/models"
)

// DefaultNerLabels maps common NER model labels onto entity types.
var DefaultNerLabels = map[string]string{
	"PERSON": "PERSON",
	"PER":    "PERSON",
	"GPE":    "LOCATION",
	"LOC":    "LOCATION",
	"FAC":    "LOCATION",
	"ORG":    "ORGANIZATION",
	"NORP":   "NRP",
	"DATE":   "DATE_TIME",
	"TIME":   "DATE_TIME",
}

type RemoteRecognizerConfig struct {
	URL      string
	Language string
	// Labels overrides DefaultNerLabels. Labels mapped to "" are ignored.
	Labels   map[string]string
	Score    float64
	Timeout  time.Duration
	RetryMax int
	Client   *http.Client
}

func RemoteRecognizerConfigFromConfig(cfg *config.Config) RemoteRecognizerConfig {
	return RemoteRecognizerConfig{
		URL:      cfg.RemoteNER.URL,
		Language: cfg.RemoteNER.Language,
		Labels:   cfg.RemoteNER.Labels,
		Score:    cfg.RemoteNER.Score,
		Timeout:  cfg.RemoteNER.Timeout,
		RetryMax: cfg.RemoteNER.RetryMax,
	}
}

// RemoteRecognizer delegates to an HTTP named entity recognition service.
type RemoteRecognizer struct {
	descriptor models.RecognizerDescriptor
	url        string
	labels     map[string]string
	score      float64
	client     *http.Client
}

var _ models.Recognizer = (*RemoteRecognizer)(nil)

func NewRemoteRecognizer(cfg RemoteRecognizerConfig) (*RemoteRecognizer, error) {
	if cfg.URL == "" {
		return nil, models.NewRecognizerConfigError("RemoteNerRecognizer", "url is required")
	}
	labels := make(map[string]string, len(DefaultNerLabels)+len(cfg.Labels))
	for k, v := range DefaultNerLabels {
		labels[k] = v
	}
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	var entities []string
	for _, v := range labels {
		if v != "" && !contains(entities, v) {
			entities = append(entities, v)
		}
	}
	client := cfg.Client
	if client == nil {
		client = NewRetryableHTTPClient(cfg.RetryMax, cfg.Timeout)
	}
	if cfg.Score <= 0 {
		cfg.Score = 0.85
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &RemoteRecognizer{
		descriptor: models.RecognizerDescriptor{
			Name:              "RemoteNerRecognizer",
			SupportedEntities: sortedCopy(entities),
			SupportedLanguage: cfg.Language,
		},
		url:    cfg.URL,
		labels: labels,
		score:  cfg.Score,
		client: client,
	}, nil
}

func (r *RemoteRecognizer) Descriptor() models.RecognizerDescriptor {
	return r.descriptor
}

func (r *RemoteRecognizer) Analyze(
	ctx context.Context,
	text string,
	entities []string,
	_ *models.NlpArtifacts,
) ([]models.EntityMatch, error) {
	id := uuid.NewString()
	resp, err := r.call(ctx, models.NerRequest{Texts: []models.NerRequestRecord{{
		UUID:     id,
		Text:     text,
		Language: r.descriptor.SupportedLanguage,
	}}})
	if err != nil {
		return nil, err
	}

	var out []models.EntityMatch
	for _, record := range resp.Texts {
		if record.UUID != id {
			continue
		}
		for _, e := range record.Entities {
			entityType := r.labels[e.Label]
			if entityType == "" || (len(entities) > 0 && !contains(entities, entityType)) {
				continue
			}
			for _, span := range e.Matches {
				m := models.NewEntityMatch(r.descriptor, entityType, span.Start, span.End, r.score)
				m.AnalysisExplanation.TextualExplanation = fmt.Sprintf(
					"Identified as %s by remote NER label %s", entityType, e.Label,
				)
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (r *RemoteRecognizer) call(ctx context.Context, request models.NerRequest) (*models.NerResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote ner request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("remote ner returned %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}

	var response models.NerResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode remote ner response: %w", err)
	}
	return &response, nil
}
