// Package service holds the business logic between handlers and repositories.
package service

import "errors"

// Client errors; handlers map them to 4xx.
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("no file provided or file is empty")
	ErrEmptyQuery      = errors.New("must enter a query")
	ErrInvalidSearch   = errors.New("invalid payload")
	ErrNotFound        = errors.New("file not found")
	ErrPathMismatch    = errors.New("file path does not match record")
	ErrForbidden       = errors.New("access to this resource is not allowed")
	ErrMissingEmail    = errors.New("user has no primary email")
	ErrNoJSON          = errors.New("model response contained no JSON object")
	ErrNoContent       = errors.New("file has no text content to analyze")
)
