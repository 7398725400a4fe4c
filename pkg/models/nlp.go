package models

import "context"

// Token is a single word or punctuation mark with character offsets.
type Token struct {
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Lemma   string `json:"lemma"`
	Tag     string `json:"tag,omitempty"`
	IsStop  bool   `json:"is_stop"`
	IsPunct bool   `json:"is_punct"`
}

// NlpEntity is a named entity produced by an NLP engine.
type NlpEntity struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// NlpArtifacts is the linguistic output of an NlpEngine for one text. The
// analyzer passes it through to recognizers untouched.
type NlpArtifacts struct {
	Language string      `json:"language"`
	Tokens   []Token     `json:"tokens"`
	Entities []NlpEntity `json:"entities"`
	Keywords []string    `json:"keywords,omitempty"`
}

type NlpEngine interface {
	Process(ctx context.Context, text, language string) (*NlpArtifacts, error)
	SupportedLanguages() []string
}
