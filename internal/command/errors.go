package command

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure.
type Kind string

const (
	KindMissingField     Kind = "MISSING_FIELD"
	KindMalformedPayload Kind = "MALFORMED_PAYLOAD"
)

// Sentinels matched with errors.Is against a *ValidationError.
var (
	ErrMissingField     = errors.New("missing field")
	ErrMalformedPayload = errors.New("malformed payload")
)

// ValidationError rejects a payload before anything is transmitted.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Unwrap(), e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Unwrap(), e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Kind == KindMissingField {
		return ErrMissingField
	}
	return ErrMalformedPayload
}

func missing(field string) error {
	return &ValidationError{Kind: KindMissingField, Field: field, Message: "required field is missing"}
}

func malformed(field, format string, args ...any) error {
	return &ValidationError{Kind: KindMalformedPayload, Field: field, Message: fmt.Sprintf(format, args...)}
}
