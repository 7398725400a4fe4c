package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/pkg/models"
)

const (
	DefaultContextWindow       = 5
	DefaultSimilarityFactor    = 0.35
	DefaultSimilarityThreshold = 0.75
)

// EnhancerConfig tunes the context boost.
type EnhancerConfig struct {
	PrefixWords         int
	SuffixWords         int
	SimilarityFactor    float64
	MinScoreWithContext float64
	SimilarityThreshold float64
}

func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		PrefixWords:         DefaultContextWindow,
		SuffixWords:         DefaultContextWindow,
		SimilarityFactor:    DefaultSimilarityFactor,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

func EnhancerConfigFromConfig(cfg *config.Config) EnhancerConfig {
	return EnhancerConfig{
		PrefixWords:         cfg.Context.PrefixWords,
		SuffixWords:         cfg.Context.SuffixWords,
		SimilarityFactor:    cfg.Context.SimilarityFactor,
		MinScoreWithContext: cfg.Context.MinScoreWithContext,
		SimilarityThreshold: cfg.Context.SimilarityThreshold,
	}
}

// ContextEnhancer raises a match's score when one of its recognizer's context
// words appears close to it.
type ContextEnhancer struct {
	cfg EnhancerConfig
}

func NewContextEnhancer(cfg EnhancerConfig) *ContextEnhancer {
	if cfg.PrefixWords < 0 {
		cfg.PrefixWords = 0
	}
	if cfg.SuffixWords < 0 {
		cfg.SuffixWords = 0
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	cfg.SimilarityFactor = clampScore(cfg.SimilarityFactor)
	cfg.MinScoreWithContext = clampScore(cfg.MinScoreWithContext)
	return &ContextEnhancer{cfg: cfg}
}

// word is a normalized token of the source text with character offsets.
type word struct {
	text       string
	start, end int
}

// ContextSource supplies the context words and similarity threshold declared
// by the recognizer that produced a match.
type ContextSource func(m models.EntityMatch) (words []string, threshold float64)

// Enhance rescores matches in place. requestContext holds caller supplied
// words that count as present around every match.
func (ce *ContextEnhancer) Enhance(
	text string,
	matches []models.EntityMatch,
	source ContextSource,
	requestContext []string,
) {
	if len(matches) == 0 {
		return
	}
	words := tokenize(text)
	extra := normalizeWords(requestContext)
	for i := range matches {
		contextWords, threshold := source(matches[i])
		ce.enhance(words, &matches[i], contextWords, threshold, extra)
	}
}

// EnhanceMatch rescores a single match against full text.
func (ce *ContextEnhancer) EnhanceMatch(
	text string,
	m *models.EntityMatch,
	contextWords []string,
	threshold float64,
) {
	ce.enhance(tokenize(text), m, contextWords, threshold, nil)
}

func (ce *ContextEnhancer) enhance(
	words []word,
	m *models.EntityMatch,
	contextWords []string,
	threshold float64,
	extra []string,
) {
	if len(contextWords) == 0 || m.IsScoreEnhancedByContext() {
		return
	}
	if threshold <= 0 {
		threshold = ce.cfg.SimilarityThreshold
	}

	before, after := ce.window(words, m.Start, m.End)
	if len(before) == 0 && len(after) == 0 && len(extra) == 0 {
		return
	}

	best, bestWord := 0.0, ""
	for _, cw := range contextWords {
		phrase := normalizeWords(strings.Fields(cw))
		if len(phrase) == 0 {
			continue
		}
		for _, side := range [][]string{before, after, extra} {
			if s := phraseSimilarity(phrase, side); s > best {
				best, bestWord = s, cw
			}
		}
		if best == 1.0 {
			break
		}
	}

	// fuzzy similarity must exceed the threshold; an exact word always counts
	if best < 1.0 && best <= threshold {
		return
	}

	newScore := m.Score + (models.MaxScore-m.Score)*ce.cfg.SimilarityFactor
	if newScore < ce.cfg.MinScoreWithContext {
		newScore = ce.cfg.MinScoreWithContext
	}
	newScore = clampScore(newScore)
	if newScore < m.Score {
		newScore = m.Score
	}

	m.Score = newScore
	m.MarkScoreEnhanced()
	if m.AnalysisExplanation != nil {
		m.AnalysisExplanation.SetImprovedScore(newScore)
		m.AnalysisExplanation.SupportiveContextWord = bestWord
	}
}

// window returns up to PrefixWords words ending before start and up to
// SuffixWords words beginning at or after end. Words touching the match span
// are excluded.
func (ce *ContextEnhancer) window(words []word, start, end int) (before, after []string) {
	firstAfter := len(words)
	lastBefore := -1
	for i, w := range words {
		if w.end <= start {
			lastBefore = i
		}
		if w.start >= end {
			firstAfter = i
			break
		}
	}

	for i := lastBefore; i >= 0 && len(before) < ce.cfg.PrefixWords; i-- {
		before = append(before, words[i].text)
	}
	// restore reading order so multi-word phrases line up
	for l, r := 0, len(before)-1; l < r; l, r = l+1, r-1 {
		before[l], before[r] = before[r], before[l]
	}

	for i := firstAfter; i < len(words) && len(after) < ce.cfg.SuffixWords; i++ {
		after = append(after, words[i].text)
	}
	return before, after
}

// phraseSimilarity is the best similarity of phrase against any run of
// len(phrase) consecutive words.
func phraseSimilarity(phrase, words []string) float64 {
	if len(words) < len(phrase) {
		return 0
	}
	target := strings.Join(phrase, " ")
	best := 0.0
	for i := 0; i+len(phrase) <= len(words); i++ {
		s := similarity(target, strings.Join(words[i:i+len(phrase)], " "))
		if s > best {
			best = s
		}
	}
	return best
}

// similarity is 1 for equal strings and otherwise one minus the normalized
// Levenshtein distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	d := fuzzy.LevenshteinDistance(a, b)
	return 1.0 - float64(d)/float64(longest)
}

// tokenize splits text into runs of letters and digits, recording character
// offsets.
func tokenize(text string) []word {
	var words []word
	var sb strings.Builder
	start := -1
	pos := 0
	flush := func(end int) {
		if start >= 0 {
			words = append(words, word{text: normalize(sb.String()), start: start, end: end})
			sb.Reset()
			start = -1
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			if start < 0 {
				start = pos
			}
			sb.WriteRune(r)
		} else {
			flush(pos)
		}
		pos++
	}
	flush(pos)
	return words
}

func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func normalizeWords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, w := range tokenize(s) {
			out = append(out, w.text)
		}
	}
	return out
}
