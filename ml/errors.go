package ml

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures so callers can pick a response status.
type ErrorKind string

const (
	KindOutOfRange       ErrorKind = "out_of_range"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindUnknownCategory  ErrorKind = "unknown_category"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindArtifactMismatch ErrorKind = "artifact_mismatch"
	KindDatasetSchema    ErrorKind = "dataset_schema"
	KindInternal         ErrorKind = "internal"
)

// ErrModelUnavailable is returned by every prediction when no bundle was loaded.
var ErrModelUnavailable = errors.New("model unavailable")

type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("invalid %s value: %g, must be between %g and %g", e.Field, e.Value, e.Min, e.Max)
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Field, e.Value)
}

// ArtifactMismatchError reports an inconsistent or incomplete artifact bundle.
type ArtifactMismatchError struct {
	Artifact string
	Detail   string
}

func (e *ArtifactMismatchError) Error() string {
	return fmt.Sprintf("artifact mismatch (%s): %s", e.Artifact, e.Detail)
}

type DatasetSchemaError struct {
	Missing []string
	Present []string
}

func (e *DatasetSchemaError) Error() string {
	return fmt.Sprintf("dataset missing required columns [%s]; available columns are [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Present, ", "))
}

func mismatch(artifact, format string, args ...interface{}) error {
	return &ArtifactMismatchError{Artifact: artifact, Detail: fmt.Sprintf(format, args...)}
}

// Kind maps err onto the error taxonomy. Unrecognized errors are KindInternal.
func Kind(err error) ErrorKind {
	var (
		outOfRange *OutOfRangeError
		invalid    *InvalidInputError
		unknown    *UnknownCategoryError
		artifact   *ArtifactMismatchError
		schema     *DatasetSchemaError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	case errors.As(err, &outOfRange):
		return KindOutOfRange
	case errors.As(err, &invalid):
		return KindInvalidInput
	case errors.As(err, &unknown):
		return KindUnknownCategory
	case errors.As(err, &artifact):
		return KindArtifactMismatch
	case errors.As(err, &schema):
		return KindDatasetSchema
	default:
		return KindInternal
	}
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	switch Kind(err) {
	case KindOutOfRange, KindInvalidInput, KindUnknownCategory:
		return true
	}
	return false
}

// Field returns the offending field for client input errors, or "".
func Field(err error) string {
	var (
		outOfRange *OutOfRangeError
		invalid    *InvalidInputError
		unknown    *UnknownCategoryError
	)
	switch {
	case errors.As(err, &outOfRange):
		return outOfRange.Field
	case errors.As(err, &invalid):
		return invalid.Field
	case errors.As(err, &unknown):
		return unknown.Field
	}
	return ""
}
