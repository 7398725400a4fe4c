package models

import "fmt"

const (
	MinScore = 0.0
	MaxScore = 1.0
)

// Keys used in EntityMatch.RecognitionMetadata.
const (
	RecognizerNameKey           = "recognizer_name"
	RecognizerIdentifierKey     = "recognizer_identifier"
	IsScoreEnhancedByContextKey = "is_score_enhanced_by_context"
)

// AnalysisExplanation is the decision trace attached to a match when the caller
// asks for it. It never influences matching.
type AnalysisExplanation struct {
	Recognizer              string           `json:"recognizer"`
	PatternName             string           `json:"pattern_name,omitempty"`
	Pattern                 string           `json:"pattern,omitempty"`
	OriginalScore           float64          `json:"original_score"`
	Score                   float64          `json:"score"`
	TextualExplanation      string           `json:"textual_explanation,omitempty"`
	ScoreContextImprovement float64          `json:"score_context_improvement"`
	SupportiveContextWord   string           `json:"supportive_context_word,omitempty"`
	ValidationResult        ValidationResult `json:"validation_result,omitempty"`
}

// SetImprovedScore records a new score and the delta from the previous one.
func (e *AnalysisExplanation) SetImprovedScore(score float64) {
	e.ScoreContextImprovement = score - e.Score
	e.Score = score
}

// EntityMatch is a single detected span. Start and End are half-open character
// offsets into the analyzed text.
type EntityMatch struct {
	EntityType          string               `json:"entity_type"`
	Start               int                  `json:"start"`
	End                 int                  `json:"end"`
	Score               float64              `json:"score"`
	AnalysisExplanation *AnalysisExplanation `json:"analysis_explanation,omitempty"`
	RecognitionMetadata map[string]string    `json:"recognition_metadata,omitempty"`
}

// NewEntityMatch builds a match attributed to the recognizer described by d.
func NewEntityMatch(d RecognizerDescriptor, entityType string, start, end int, score float64) EntityMatch {
	return EntityMatch{
		EntityType: entityType,
		Start:      start,
		End:        end,
		Score:      score,
		AnalysisExplanation: &AnalysisExplanation{
			Recognizer:    d.Name,
			OriginalScore: score,
			Score:         score,
		},
		RecognitionMetadata: map[string]string{
			RecognizerNameKey:       d.Name,
			RecognizerIdentifierKey: d.Identifier(),
		},
	}
}

func (m EntityMatch) Len() int {
	return m.End - m.Start
}

// Intersects returns the number of characters shared by m and o.
func (m EntityMatch) Intersects(o EntityMatch) int {
	lo := max(m.Start, o.Start)
	hi := min(m.End, o.End)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func (m EntityMatch) Overlaps(o EntityMatch) bool {
	return m.Intersects(o) > 0
}

// Contains reports whether o lies within m. Identical spans contain each other.
func (m EntityMatch) Contains(o EntityMatch) bool {
	return m.Start <= o.Start && o.End <= m.End
}

func (m EntityMatch) SameSpan(o EntityMatch) bool {
	return m.Start == o.Start && m.End == o.End
}

func (m EntityMatch) RecognizerName() string {
	return m.RecognitionMetadata[RecognizerNameKey]
}

func (m EntityMatch) RecognizerIdentifier() string {
	return m.RecognitionMetadata[RecognizerIdentifierKey]
}

func (m EntityMatch) IsScoreEnhancedByContext() bool {
	return m.RecognitionMetadata[IsScoreEnhancedByContextKey] == "true"
}

// MarkScoreEnhanced flags the match so later enhancement passes leave it alone.
func (m *EntityMatch) MarkScoreEnhanced() {
	if m.RecognitionMetadata == nil {
		m.RecognitionMetadata = map[string]string{}
	}
	m.RecognitionMetadata[IsScoreEnhancedByContextKey] = "true"
}

// Clone returns a copy that shares no mutable state with m.
func (m EntityMatch) Clone() EntityMatch {
	c := m
	if m.AnalysisExplanation != nil {
		e := *m.AnalysisExplanation
		c.AnalysisExplanation = &e
	}
	if m.RecognitionMetadata != nil {
		c.RecognitionMetadata = make(map[string]string, len(m.RecognitionMetadata))
		for k, v := range m.RecognitionMetadata {
			c.RecognitionMetadata[k] = v
		}
	}
	return c
}

func (m EntityMatch) String() string {
	return fmt.Sprintf("type: %s, start: %d, end: %d, score: %.4g", m.EntityType, m.Start, m.End, m.Score)
}
