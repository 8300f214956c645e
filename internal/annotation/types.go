// Package annotation runs the select, request, accumulate and attach cycle
// for generated annotations on one document.
package annotation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrSessionClosed = errors.New("annotation session is closed")
	ErrUnknownType   = errors.New("unknown explanation type")
)

// ValidationError is a synchronous rejection with a user-facing message. It
// matches ErrValidation and unwraps to Err when set.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

type ExplanationType string

const (
	Explain  ExplanationType = "explain"
	Summary  ExplanationType = "summary"
	Detailed ExplanationType = "detailed"
	Examples ExplanationType = "examples"
)

var explanationTypes = map[ExplanationType]struct {
	generation string
	label      string
}{
	Explain:  {generation: "explanation", label: "Explanation"},
	Summary:  {generation: "summary", label: "Summary"},
	Detailed: {generation: "detailed_explanation", label: "Detailed Explanation"},
	Examples: {generation: "examples", label: "Examples"},
}

func ParseType(s string) (ExplanationType, error) {
	t := ExplanationType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := explanationTypes[t]; !ok {
		return "", &ValidationError{Message: fmt.Sprintf("unknown explanation type %q", s), Err: ErrUnknownType}
	}
	return t, nil
}

func (t ExplanationType) Valid() bool {
	_, ok := explanationTypes[t]
	return ok
}

// GenerationType is the value sent to the generation service.
func (t ExplanationType) GenerationType() string { return explanationTypes[t].generation }

func (t ExplanationType) Label() string { return explanationTypes[t].label }

type Request struct {
	ExplanationType ExplanationType `json:"explanationType"`
	Material        string          `json:"material"`
	ReferenceText   string          `json:"referenceText"`
	UserQuery       string          `json:"userQuery"`
}

// Response is immutable once appended to a session history.
type Response struct {
	ExplanationType ExplanationType `json:"explanationType"`
	Content         string          `json:"content"`
	Timestamp       int64           `json:"timestamp"`
}

// RequestOptions override the values derived from the selection.
type RequestOptions struct {
	Material      string
	ReferenceText string
	UserQuery     string
}

type Method string

const (
	Structured Method = "structured"
	Fallback   Method = "fallback"
)

// Attachment describes a completed attach.
type Attachment struct {
	SessionID string `json:"sessionId"`
	Method    Method `json:"method"`
	Offset    int    `json:"offset"`
	Block     string `json:"block"`
	Responses int    `json:"responses"`
	From      int    `json:"from"`
	To        int    `json:"to"`
	Text      string `json:"text"`
}

func (a Attachment) Message() string {
	if a.Method == Fallback {
		return "Annotation attached via fallback method"
	}
	return "Annotation attached"
}

// Scope carries the page-level fields every generation request includes.
type Scope struct {
	QAQFLevel string
	Subject   string
	CourseID  string
}
