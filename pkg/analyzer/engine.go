// Package analyzer finds PII entities in text. The Engine runs the
// recognizers that apply to a request, boosts matches that have supporting
// context nearby and resolves overlapping matches into one ordered list.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/recognizers"
)

var log = internal.GetLogger()

var errRecognizerPanic = errors.New("recognizer panicked")

// EngineConfig holds the request defaults and execution limits of an Engine.
type EngineConfig struct {
	DefaultLanguage       string
	DefaultScoreThreshold float64
	// RecognizerTimeout bounds a single recognizer call, RequestTimeout the
	// whole fan out. Zero disables either limit.
	RecognizerTimeout time.Duration
	RequestTimeout    time.Duration
	MaxConcurrency    int
	ReturnExplanation bool
	ConflictMode      models.ConflictMode
	Context           EnhancerConfig
}

func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		DefaultLanguage:       cfg.Analyzer.DefaultLanguage,
		DefaultScoreThreshold: cfg.Analyzer.DefaultScoreThreshold,
		RecognizerTimeout:     cfg.Analyzer.RecognizerTimeout,
		RequestTimeout:        cfg.Analyzer.RequestTimeout,
		MaxConcurrency:        cfg.Analyzer.MaxConcurrency,
		ReturnExplanation:     cfg.Analyzer.ReturnExplanation,
		ConflictMode:          models.ConflictMode(cfg.Analyzer.ConflictMode),
		Context:               EnhancerConfigFromConfig(cfg),
	}
}

// Engine is the analysis orchestrator. It is safe for concurrent use; the
// registry may be changed while requests are in flight, each request works
// on the snapshot taken when it started.
type Engine struct {
	cfg      EngineConfig
	registry *recognizers.Registry
	nlp      models.NlpEngine
	enhancer *ContextEnhancer
}

var _ models.Analyzer = (*Engine)(nil)

// NewEngine builds an Engine from application config. nlpEngine may be nil,
// in which case recognizers receive no NLP artifacts.
func NewEngine(cfg *config.Config, registry *recognizers.Registry, nlpEngine models.NlpEngine) *Engine {
	return NewEngineWithConfig(EngineConfigFromConfig(cfg), registry, nlpEngine)
}

func NewEngineWithConfig(
	cfg EngineConfig,
	registry *recognizers.Registry,
	nlpEngine models.NlpEngine,
) *Engine {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.ConflictMode == "" {
		cfg.ConflictMode = models.ConflictModeStrict
	}
	if registry == nil {
		registry = recognizers.NewRegistry()
	}
	return &Engine{
		cfg:      cfg,
		registry: registry,
		nlp:      nlpEngine,
		enhancer: NewContextEnhancer(cfg.Context),
	}
}

// request is an AnalyzeRequest with defaults applied and ad-hoc recognizers
// compiled.
type request struct {
	text      string
	language  string
	entities  []string
	threshold float64
	mode      models.ConflictMode
	context   []string
	explain   bool
	adHoc     []models.Recognizer
}

// prepare validates req and compiles its ad-hoc recognizers. Every error it
// returns is a configuration error raised before any recognizer runs.
func (e *Engine) prepare(req *models.AnalyzeRequest, adHoc []models.Recognizer) (*request, error) {
	if req == nil {
		return nil, models.NewBadRequestError("analyze request is required")
	}
	r := &request{
		text:      req.Text,
		language:  req.Language,
		entities:  req.Entities,
		threshold: e.cfg.DefaultScoreThreshold,
		mode:      req.ConflictMode,
		context:   req.Context,
		explain:   req.ReturnDecisionProcess || e.cfg.ReturnExplanation,
		adHoc:     append([]models.Recognizer(nil), adHoc...),
	}
	if r.language == "" {
		r.language = e.cfg.DefaultLanguage
	}
	if req.ScoreThreshold != nil {
		r.threshold = *req.ScoreThreshold
	}
	if r.threshold < models.MinScore || r.threshold > models.MaxScore {
		return nil, models.NewBadRequestError(
			fmt.Sprintf("score_threshold must be between 0 and 1, got %g", r.threshold),
		)
	}
	switch r.mode {
	case "":
		r.mode = e.cfg.ConflictMode
	case models.ConflictModeStrict, models.ConflictModeLenient:
	default:
		return nil, models.NewBadRequestError(fmt.Sprintf("unknown conflict_mode %q", r.mode))
	}

	for i := range req.AdHocRecognizers {
		spec := req.AdHocRecognizers[i]
		if spec.SupportedLanguage == "" {
			spec.SupportedLanguage = r.language
		}
		rec, err := recognizers.CompileSpec(&spec)
		if err != nil {
			return nil, err
		}
		r.adHoc = append(r.adHoc, rec)
	}
	return r, nil
}

// Analyze detects entities in req.Text. Extra recognizers in adHoc apply to
// this call only.
//
// Configuration problems (bad threshold, malformed ad-hoc recognizer,
// unsupported language) fail the call before any recognizer runs. Failing
// recognizers do not; they are listed in the response's FailedRecognizers.
func (e *Engine) Analyze(
	ctx context.Context,
	req *models.AnalyzeRequest,
	adHoc ...models.Recognizer,
) (*models.AnalyzeResponse, error) {
	ctx, span := tracer.Start(ctx, "analyzer.Analyze")
	defer span.End()

	resp, err := e.analyze(ctx, req, adHoc)
	language := e.cfg.DefaultLanguage
	if req != nil && req.Language != "" {
		language = req.Language
	}
	span.SetAttributes(attribute.String("language", language))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		analyzeRequests.WithLabelValues(language, outcomeError).Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("results", len(resp.Results)),
		attribute.Int("failed_recognizers", len(resp.FailedRecognizers)),
	)
	analyzeRequests.WithLabelValues(language, outcomeSuccess).Inc()
	return resp, nil
}

func (e *Engine) analyze(
	ctx context.Context,
	req *models.AnalyzeRequest,
	adHoc []models.Recognizer,
) (*models.AnalyzeResponse, error) {
	r, err := e.prepare(req, adHoc)
	if err != nil {
		return nil, err
	}

	snapshot := e.registry.Snapshot()
	if !snapshot.SupportsLanguage(r.language) && !anySupportsLanguage(r.adHoc, r.language) {
		return nil, models.NewUnsupportedLanguageError(r.language)
	}

	if r.text == "" {
		return &models.AnalyzeResponse{Results: []models.EntityMatch{}}, nil
	}

	selected := snapshot.Select(r.language, r.entities)
	for _, rec := range r.adHoc {
		d := rec.Descriptor()
		if d.SupportsLanguage(r.language) && d.SupportsAny(r.entities) {
			selected = append(selected, rec)
		}
	}
	if len(selected) == 0 {
		return &models.AnalyzeResponse{Results: []models.EntityMatch{}}, nil
	}

	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	artifacts := e.process(ctx, r.text, r.language)
	raw, failures := e.run(ctx, selected, r, artifacts)

	descriptors := make(map[string]models.RecognizerDescriptor, len(selected))
	rank := make(map[string]int, len(selected))
	for i, rec := range selected {
		d := rec.Descriptor()
		id := d.Identifier()
		if _, ok := rank[id]; !ok {
			rank[id] = i
			descriptors[id] = d
		}
	}

	e.enhancer.Enhance(r.text, raw, func(m models.EntityMatch) ([]string, float64) {
		d, ok := descriptors[m.RecognizerIdentifier()]
		if !ok {
			return nil, 0
		}
		return d.Context, d.ContextSimilarityThreshold
	}, r.context)

	textLength := utf8.RuneCountInString(r.text)
	results, stats := Resolve(raw, ResolveOptions{
		ScoreThreshold: r.threshold,
		Entities:       r.entities,
		Mode:           r.mode,
		TextLength:     textLength,
		RecognizerRank: rank,
	})
	recordResolveStats(stats)
	if stats.Invalid > 0 {
		log.Debugf("dropped %d malformed matches", stats.Invalid)
	}
	log.Debugf(
		"analyzed %d characters with %d recognizers: %d raw, %d results, %d dropped, %d failed",
		textLength, len(selected), len(raw), len(results), stats.Dropped(), len(failures),
	)

	if !r.explain {
		for i := range results {
			results[i].AnalysisExplanation = nil
		}
	}
	if results == nil {
		results = []models.EntityMatch{}
	}
	return &models.AnalyzeResponse{Results: results, FailedRecognizers: failures}, nil
}

// process runs the NLP engine when one is configured for language. Failures
// degrade to nil artifacts.
func (e *Engine) process(ctx context.Context, text, language string) *models.NlpArtifacts {
	if e.nlp == nil || !containsFold(e.nlp.SupportedLanguages(), language) {
		return nil
	}
	artifacts, err := e.nlp.Process(ctx, text, language)
	if err != nil {
		log.Warnf("nlp engine failed, continuing without artifacts: %v", err)
		return nil
	}
	return artifacts
}

// run invokes recognizers concurrently. Results and failures are returned in
// recognizer order regardless of completion order.
func (e *Engine) run(
	ctx context.Context,
	recs []models.Recognizer,
	r *request,
	artifacts *models.NlpArtifacts,
) ([]models.EntityMatch, []models.RecognizerFailure) {
	results := make([][]models.EntityMatch, len(recs))
	errs := make([]error, len(recs))

	// a plain group: one failing recognizer must not cancel the others
	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			results[i], errs[i] = e.invoke(ctx, rec, r, artifacts)
			return nil
		})
	}
	_ = g.Wait()

	var raw []models.EntityMatch
	var failures []models.RecognizerFailure
	for i, rec := range recs {
		d := rec.Descriptor()
		if errs[i] != nil {
			log.WithFields(logrus.Fields{
				"recognizer": d.Identifier(),
				"language":   r.language,
			}).Warnf("recognizer failed: %v", errs[i])
			failures = append(failures, models.RecognizerFailure{
				Recognizer: d.Name,
				Error:      errs[i].Error(),
			})
			continue
		}
		for _, m := range results[i] {
			raw = append(raw, withProvenance(m.Clone(), d))
		}
	}
	return raw, failures
}

type invocation struct {
	matches []models.EntityMatch
	err     error
}

// invoke calls one recognizer under the recognizer timeout. It returns as
// soon as ctx is done even if the recognizer ignores cancellation.
func (e *Engine) invoke(
	ctx context.Context,
	rec models.Recognizer,
	r *request,
	artifacts *models.NlpArtifacts,
) ([]models.EntityMatch, error) {
	d := rec.Descriptor()
	ctx, span := tracer.Start(ctx, "recognizer.Analyze", trace.WithAttributes(
		attribute.String("recognizer", d.Name),
		attribute.String("recognizer.id", d.Identifier()),
	))
	defer span.End()

	started := time.Now()
	if err := ctx.Err(); err != nil {
		recordInvocation(d.Name, outcomeTimeout, 0)
		return nil, fmt.Errorf("not started: %w", err)
	}
	if e.cfg.RecognizerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RecognizerTimeout)
		defer cancel()
	}

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invocation{err: fmt.Errorf("%w: %v", errRecognizerPanic, p)}
			}
		}()
		matches, err := rec.Analyze(ctx, r.text, r.entities, artifacts)
		done <- invocation{matches: matches, err: err}
	}()

	var res invocation
	select {
	case res = <-done:
	case <-ctx.Done():
		res = invocation{err: ctx.Err()}
	}

	outcome := outcomeSuccess
	switch {
	case res.err == nil:
	case errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled):
		outcome = outcomeTimeout
	case errors.Is(res.err, errRecognizerPanic):
		outcome = outcomePanic
	default:
		outcome = outcomeError
	}
	recordInvocation(d.Name, outcome, time.Since(started))
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, outcome)
		return nil, res.err
	}
	span.SetAttributes(attribute.Int("matches", len(res.matches)))
	return res.matches, nil
}

// withProvenance makes sure m names the recognizer that produced it.
func withProvenance(m models.EntityMatch, d models.RecognizerDescriptor) models.EntityMatch {
	if m.RecognitionMetadata == nil {
		m.RecognitionMetadata = make(map[string]string, 2)
	}
	if m.RecognitionMetadata[models.RecognizerNameKey] == "" {
		m.RecognitionMetadata[models.RecognizerNameKey] = d.Name
	}
	if m.RecognitionMetadata[models.RecognizerIdentifierKey] == "" {
		m.RecognitionMetadata[models.RecognizerIdentifierKey] = d.Identifier()
	}
	if m.AnalysisExplanation == nil {
		m.AnalysisExplanation = &models.AnalysisExplanation{
			Recognizer:    d.Name,
			OriginalScore: m.Score,
			Score:         m.Score,
		}
	}
	return m
}

// Recognizers describes the registered recognizers for language, or all of
// them when language is empty.
func (e *Engine) Recognizers(language string) []models.RecognizerDescriptor {
	return e.registry.Snapshot().Descriptors(language)
}

func (e *Engine) SupportedEntities(language string) []string {
	if language == "" {
		language = e.cfg.DefaultLanguage
	}
	return e.registry.Snapshot().SupportedEntities(language)
}

func (e *Engine) AddRecognizer(r models.Recognizer) error {
	return e.registry.Add(r)
}

func (e *Engine) RemoveRecognizer(name string) bool {
	return e.registry.Remove(name)
}

func anySupportsLanguage(recs []models.Recognizer, language string) bool {
	for _, r := range recs {
		if r.Descriptor().SupportsLanguage(language) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
