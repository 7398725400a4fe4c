package models

import (
	"context"

	"github.com/veilpii/veil/config"
)

// Analyzer is the analysis surface the API and task layers depend on.
type Analyzer interface {
	Analyze(ctx context.Context, req *AnalyzeRequest, adHoc ...Recognizer) (*AnalyzeResponse, error)
	AnalyzeList(ctx context.Context, texts []string, req *AnalyzeRequest) ([]AnalyzeResponse, error)
	AnalyzeDict(
		ctx context.Context,
		doc map[string]any,
		req *AnalyzeRequest,
		keysToSkip []string,
	) ([]DictAnalyzeResult, error)
	Recognizers(language string) []RecognizerDescriptor
	SupportedEntities(language string) []string
	AddRecognizer(r Recognizer) error
	RemoveRecognizer(name string) bool
}

type Anonymizer interface {
	Anonymize(ctx context.Context, req *AnonymizeRequest) (*AnonymizeResponse, error)
	Deanonymize(ctx context.Context, req *DeanonymizeRequest) (*AnonymizeResponse, error)
	Operators() []string
	Deanonymizers() []string
}

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	Analyzer        Analyzer
	Anonymizer      Anonymizer
	RecognizerStore RecognizerStore
	JobStore        JobStore
	TaskRouter      TaskRouter
	TaskPublisher   TaskPublisher
	Config          *config.Config
}
