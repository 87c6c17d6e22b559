package immich

import (
	"errors"
	"fmt"
)

// UpstreamError is returned when the photo server is unreachable,
// times out, or answers with a non-2xx status
type UpstreamError struct {
	StatusCode int
	Message    string
}

// NewUpstreamError creates an UpstreamError
func NewUpstreamError(statusCode int, message string) error {
	return &UpstreamError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// Error returns error message
func (err *UpstreamError) Error() string {
	if err.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", err.StatusCode, err.Message)
	}
	return fmt.Sprintf("upstream error: %s", err.Message)
}

// IsUpstreamError checks if the given error is an UpstreamError
func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// NotFoundError is returned when the photo server does not know the entity id
type NotFoundError struct {
	ID string
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(id string) error {
	return &NotFoundError{
		ID: id,
	}
}

// Error returns error message
func (err *NotFoundError) Error() string {
	return fmt.Sprintf("entity %s not found upstream", err.ID)
}

// IsNotFoundError checks if the given error is a NotFoundError
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// UnsupportedMediaError is returned when the photo server hands back
// a content type that is not image or video media
type UnsupportedMediaError struct {
	ContentType string
}

// NewUnsupportedMediaError creates an UnsupportedMediaError
func NewUnsupportedMediaError(contentType string) error {
	return &UnsupportedMediaError{
		ContentType: contentType,
	}
}

// Error returns error message
func (err *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media content type %q", err.ContentType)
}

// IsUnsupportedMediaError checks if the given error is an UnsupportedMediaError
func IsUnsupportedMediaError(err error) bool {
	var target *UnsupportedMediaError
	return errors.As(err, &target)
}
