// Package nlp produces linguistic artifacts (tokens, lemmas and named
// entities) for recognizers that need more than regular expressions.
package nlp

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

var log = internal.GetLogger()

const DefaultEntityScore = 0.85

// DefaultLabels maps prose's entity labels onto entity types.
var DefaultLabels = map[string]string{
	"PERSON": "PERSON",
	"GPE":    "LOCATION",
	"ORG":    "ORGANIZATION",
}

// ProseEngine is an English NlpEngine backed by prose.
type ProseEngine struct {
	score  float64
	labels map[string]string
}

var _ models.NlpEngine = (*ProseEngine)(nil)

func NewProseEngine(score float64) *ProseEngine {
	if score <= 0 || score > 1 {
		score = DefaultEntityScore
	}
	return &ProseEngine{score: score, labels: DefaultLabels}
}

func NewProseEngineFromConfig(cfg *config.Config) *ProseEngine {
	return NewProseEngine(cfg.NLP.Score)
}

func (e *ProseEngine) SupportedLanguages() []string {
	return []string{"en"}
}

func (e *ProseEngine) Process(ctx context.Context, text, language string) (*models.NlpArtifacts, error) {
	if !strings.EqualFold(language, "en") {
		return nil, models.NewUnsupportedLanguageError(language)
	}
	artifacts := &models.NlpArtifacts{Language: language}
	if strings.TrimSpace(text) == "" {
		return artifacts, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, err
	}

	tokens := newAligner(text)
	for _, tok := range doc.Tokens() {
		start, end, ok := tokens.next(tok.Text)
		if !ok {
			log.Debugf("prose token %q not found in text, skipping", tok.Text)
			continue
		}
		lemma := strings.ToLower(norm.NFC.String(tok.Text))
		artifacts.Tokens = append(artifacts.Tokens, models.Token{
			Text:    tok.Text,
			Start:   start,
			End:     end,
			Lemma:   lemma,
			Tag:     tok.Tag,
			IsStop:  isStopWord(lemma),
			IsPunct: isPunct(tok.Text),
		})
		if !isStopWord(lemma) && !isPunct(tok.Text) && strings.HasPrefix(tok.Tag, "NN") {
			artifacts.Keywords = append(artifacts.Keywords, lemma)
		}
	}
	artifacts.Keywords = internal.Dedupe(artifacts.Keywords)

	entities := newAligner(text)
	for _, ent := range doc.Entities() {
		label, ok := e.labels[ent.Label]
		if !ok {
			continue
		}
		start, end, found := entities.next(ent.Text)
		if !found {
			continue
		}
		artifacts.Entities = append(artifacts.Entities, models.NlpEntity{
			Label: label,
			Text:  ent.Text,
			Start: start,
			End:   end,
			Score: e.score,
		})
	}
	return artifacts, nil
}

// aligner finds successive substrings of a text and reports their character
// offsets. prose drops offsets, so they are recovered by scanning forward.
type aligner struct {
	text   string
	byteAt int
	runeAt int
}

func newAligner(text string) *aligner {
	return &aligner{text: text}
}

func (a *aligner) next(sub string) (int, int, bool) {
	if sub == "" {
		return 0, 0, false
	}
	i := strings.Index(a.text[a.byteAt:], sub)
	if i < 0 {
		return 0, 0, false
	}
	start := a.runeAt + utf8.RuneCountInString(a.text[a.byteAt:a.byteAt+i])
	end := start + utf8.RuneCountInString(sub)
	a.byteAt += i + len(sub)
	a.runeAt = end
	return start, end, true
}

func isPunct(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return s != ""
}

var stopWords = func() map[string]struct{} {
	words := strings.Fields(`a about above after again against all am an and any are as at be because
		been before being below between both but by can could did do does doing down during each few
		for from further had has have having he her here hers herself him himself his how i if in into
		is it its itself just me more most my myself no nor not now of off on once only or other our
		ours ourselves out over own same she should so some such than that the their theirs them
		themselves then there these they this those through to too under until up very was we were
		what when where which while who whom why will with would you your yours yourself yourselves`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func isStopWord(lemma string) bool {
	_, ok := stopWords[lemma]
	return ok
}
