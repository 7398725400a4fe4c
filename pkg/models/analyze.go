package models

type ConflictMode string

const (
	// ConflictModeStrict removes cross-type matches contained in a better match.
	ConflictModeStrict ConflictMode = "strict"
	// ConflictModeLenient only removes same-type overlaps.
	ConflictModeLenient ConflictMode = "lenient"
)

// RecognizerSpec is a declarative pattern or deny-list recognizer, supplied
// per request (ad hoc), in a YAML file, or through the recognizer store.
type RecognizerSpec struct {
	Name                       string    `json:"name"                                   yaml:"name"                                   validate:"required"`
	SupportedLanguage          string    `json:"supported_language,omitempty"           yaml:"supported_language,omitempty"`
	SupportedEntity            string    `json:"supported_entity"                       yaml:"supported_entity"                       validate:"required"`
	Patterns                   []Pattern `json:"patterns,omitempty"                     yaml:"patterns,omitempty"                     validate:"dive"`
	DenyList                   []string  `json:"deny_list,omitempty"                    yaml:"deny_list,omitempty"                    validate:"dive,required"`
	DenyListScore              float64   `json:"deny_list_score,omitempty"              yaml:"deny_list_score,omitempty"              validate:"gte=0,lte=1"`
	Context                    []string  `json:"context,omitempty"                      yaml:"context,omitempty"`
	ContextSimilarityThreshold float64   `json:"context_similarity_threshold,omitempty" yaml:"context_similarity_threshold,omitempty" validate:"gte=0,lte=1"`
	CaseSensitive              bool      `json:"case_sensitive,omitempty"               yaml:"case_sensitive,omitempty"`
	Version                    string    `json:"version,omitempty"                      yaml:"version,omitempty"`
}

type AnalyzeRequest struct {
	Text     string   `json:"text"`
	Language string   `json:"language,omitempty"`
	Entities []string `json:"entities,omitempty"`
	// ScoreThreshold falls back to the configured default when nil.
	ScoreThreshold        *float64         `json:"score_threshold,omitempty"         validate:"omitempty,gte=0,lte=1"`
	Context               []string         `json:"context,omitempty"`
	ReturnDecisionProcess bool             `json:"return_decision_process,omitempty"`
	AdHocRecognizers      []RecognizerSpec `json:"ad_hoc_recognizers,omitempty"      validate:"dive"`
	ConflictMode          ConflictMode     `json:"conflict_mode,omitempty"           validate:"omitempty,oneof=strict lenient"`
	CorrelationID         string           `json:"correlation_id,omitempty"`
}

type AnalyzeResponse struct {
	Results           []EntityMatch       `json:"results"`
	FailedRecognizers []RecognizerFailure `json:"failed_recognizers,omitempty"`
}

// BatchAnalyzeRequest analyzes several texts with the same settings.
type BatchAnalyzeRequest struct {
	AnalyzeRequest
	Texts []string `json:"texts" validate:"required"`
}

type BatchAnalyzeResponse struct {
	Results []AnalyzeResponse `json:"results"`
}

// DictAnalyzeRequest analyzes every string value of a JSON document.
type DictAnalyzeRequest struct {
	AnalyzeRequest
	Document map[string]any `json:"document" validate:"required"`
	// KeysToSkip are dotted paths, e.g. "patient.id".
	KeysToSkip []string `json:"keys_to_skip,omitempty"`
}

type DictAnalyzeResponse struct {
	Results []DictAnalyzeResult `json:"results"`
}

// DictAnalyzeResult is the analysis of one value of a nested document.
type DictAnalyzeResult struct {
	Key string `json:"key"`
	// Value holds the original value for non-string leaves.
	Value any `json:"value,omitempty"`
	// Results is set for string values, one entry per string in a list.
	Results [][]EntityMatch `json:"results,omitempty"`
	// Nested is set for map values.
	Nested []DictAnalyzeResult `json:"nested,omitempty"`
}
