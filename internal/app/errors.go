package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/annotation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/engine"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/generation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/lesson"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
)

// DomainError is a service-level rejection that already carries its HTTP
// status and code.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}

var (
	errNotMounted = domainError(http.StatusNotFound, "NOT_FOUND", "Document not mounted", nil)
	errNoSession  = domainError(http.StatusNotFound, "NO_SESSION", "No annotation session is open", nil)

	errAttachPending = domainError(http.StatusGatewayTimeout, "ATTACH_PENDING",
		"The annotation is still being attached, watch the document events for the outcome", nil)
)

// mapError turns engine and collaborator errors into the status, code and
// user-facing message sent to the client. Only the message crosses the
// boundary.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *annotation.ValidationError
	var insertionErr *editor.InsertionError
	switch {
	case errors.Is(err, retry.ErrReadinessTimeout), errors.Is(err, editor.ErrNotReady):
		return http.StatusServiceUnavailable, "EDITOR_NOT_READY", "Editor not ready, please try again", nil
	case errors.As(err, &insertionErr):
		return http.StatusConflict, "INSERTION_REJECTED", "The editor rejected the insertion", nil
	case errors.Is(err, surface.ErrReadOnly):
		return http.StatusConflict, "READ_ONLY", "The document is read-only", nil
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Message, nil
	case errors.Is(err, generation.ErrAuth), errors.Is(err, credential.ErrMissing), errors.Is(err, credential.ErrExpired):
		return http.StatusUnauthorized, "AUTH_REQUIRED", "Please log in again to continue", nil
	case errors.Is(err, generation.ErrNoContent):
		return http.StatusBadGateway, "NO_CONTENT", "No content generated", nil
	case errors.Is(err, generation.ErrNetwork):
		return http.StatusBadGateway, "GENERATION_FAILED", "Failed to generate content. Please try again.", nil
	case errors.Is(err, annotation.ErrSessionClosed):
		return http.StatusConflict, "SESSION_CLOSED", "The annotation session is closed", nil
	case errors.Is(err, engine.ErrNoPersister):
		return http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE", "Saving is not configured", nil
	case errors.Is(err, lesson.ErrPersist):
		return http.StatusBadGateway, "SAVE_FAILED", "Failed to save. Your draft is kept locally.", nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "TIMEOUT", "The request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
