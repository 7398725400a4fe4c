package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrBadRequest          = errors.New("bad request")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidRecognizer   = errors.New("invalid recognizer")
	ErrInvalidOperator     = errors.New("invalid operator")
)

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Message)
}

func (e *BadRequestError) Unwrap() error {
	return ErrBadRequest
}

func NewBadRequestError(message string) error {
	return &BadRequestError{Message: message}
}

// UnsupportedLanguageError is returned when neither the registry nor the
// request's ad-hoc recognizers cover the requested language.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("no recognizers available for language %q", e.Language)
}

func (e *UnsupportedLanguageError) Unwrap() []error {
	return []error{ErrUnsupportedLanguage, ErrBadRequest}
}

func NewUnsupportedLanguageError(language string) error {
	return &UnsupportedLanguageError{Language: language}
}

// RecognizerConfigError reports a malformed recognizer definition.
type RecognizerConfigError struct {
	Recognizer string
	Reason     string
}

func (e *RecognizerConfigError) Error() string {
	return fmt.Sprintf("invalid recognizer %q: %s", e.Recognizer, e.Reason)
}

func (e *RecognizerConfigError) Unwrap() []error {
	return []error{ErrInvalidRecognizer, ErrBadRequest}
}

func NewRecognizerConfigError(recognizer, reason string) error {
	return &RecognizerConfigError{Recognizer: recognizer, Reason: reason}
}

// OperatorConfigError reports invalid anonymizer operator parameters.
type OperatorConfigError struct {
	Operator string
	Reason   string
}

func (e *OperatorConfigError) Error() string {
	return fmt.Sprintf("invalid operator %q: %s", e.Operator, e.Reason)
}

func (e *OperatorConfigError) Unwrap() []error {
	return []error{ErrInvalidOperator, ErrBadRequest}
}

func NewOperatorConfigError(operator, reason string) error {
	return &OperatorConfigError{Operator: operator, Reason: reason}
}

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
}
