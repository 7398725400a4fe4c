package models

const DefaultOperatorKey = "DEFAULT"

type OperatorType string

const (
	OperatorReplace OperatorType = "replace"
	OperatorRedact  OperatorType = "redact"
	OperatorMask    OperatorType = "mask"
	OperatorHash    OperatorType = "hash"
	OperatorKeep    OperatorType = "keep"
	OperatorFake    OperatorType = "fake"
	OperatorEncrypt OperatorType = "encrypt"

	// OperatorDecrypt reverses OperatorEncrypt during deanonymization.
	OperatorDecrypt OperatorType = "decrypt"
)

type ConflictStrategy string

const (
	MergeSimilarOrContained ConflictStrategy = "merge_similar_or_contained"
	RemoveIntersections     ConflictStrategy = "remove_intersections"
)

// OperatorConfig selects and parameterizes an anonymization operator.
// Only the fields relevant to Type are read.
type OperatorConfig struct {
	Type        OperatorType `json:"type"                    yaml:"type"`
	NewValue    string       `json:"new_value,omitempty"     yaml:"new_value,omitempty"`
	MaskingChar string       `json:"masking_char,omitempty"  yaml:"masking_char,omitempty"`
	CharsToMask int          `json:"chars_to_mask,omitempty" yaml:"chars_to_mask,omitempty"`
	FromEnd     bool         `json:"from_end,omitempty"      yaml:"from_end,omitempty"`
	HashType    string       `json:"hash_type,omitempty"     yaml:"hash_type,omitempty"`
	Salt        string       `json:"salt,omitempty"          yaml:"salt,omitempty"`
	Seed        int64        `json:"seed,omitempty"          yaml:"seed,omitempty"`
	// Key is the AES key for encrypt and decrypt: 16, 24 or 32 bytes.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}

type AnonymizeRequest struct {
	Text               string                    `json:"text"                          validate:"required"`
	AnalyzerResults    []EntityMatch             `json:"analyzer_results"`
	Operators          map[string]OperatorConfig `json:"operators,omitempty"`
	ConflictResolution ConflictStrategy          `json:"conflict_resolution,omitempty" validate:"omitempty,oneof=merge_similar_or_contained remove_intersections"`
}

// AnonymizedItem describes one replaced span. Offsets refer to the output text.
type AnonymizedItem struct {
	Start      int          `json:"start"`
	End        int          `json:"end"`
	EntityType string       `json:"entity_type"`
	Text       string       `json:"text"`
	Operator   OperatorType `json:"operator"`
}

type AnonymizeResponse struct {
	Text  string           `json:"text"`
	Items []AnonymizedItem `json:"items"`
}

// DeanonymizeRequest restores the spans of an anonymized text. Items are the
// items of the AnonymizeResponse that produced Text.
type DeanonymizeRequest struct {
	Text          string                    `json:"text"                    validate:"required"`
	Items         []AnonymizedItem          `json:"anonymizer_results"`
	Deanonymizers map[string]OperatorConfig `json:"deanonymizers,omitempty"`
}

// RedactRequest analyzes and anonymizes in one call.
type RedactRequest struct {
	AnalyzeRequest
	Operators          map[string]OperatorConfig `json:"operators,omitempty"`
	ConflictResolution ConflictStrategy          `json:"conflict_resolution,omitempty" validate:"omitempty,oneof=merge_similar_or_contained remove_intersections"`
}

type RedactResponse struct {
	AnonymizeResponse
	FailedRecognizers []RecognizerFailure `json:"failed_recognizers,omitempty"`
}
