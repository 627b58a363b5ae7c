package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

var ErrEmptyResponse = errors.New("no response from LLM")

// GenerationError describes a failed generation call.
type GenerationError struct {
	RequestID  string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("Request id: %s, Status code: %d, error code: %s, error message: %s",
		e.RequestID, e.StatusCode, e.Code, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Providers only report the HTTP status inside the error text.
var statusPattern = regexp.MustCompile(`(?i)status(?: code)?:?\s*(\d{3})`)

func newGenerationError(err error) *GenerationError {
	genErr := &GenerationError{
		RequestID: uuid.NewString(),
		Message:   err.Error(),
		Err:       err,
	}

	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		genErr.StatusCode, _ = strconv.Atoi(m[1])
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		genErr.Code = "Timeout"
	case errors.Is(err, context.Canceled):
		genErr.Code = "Canceled"
	case errors.Is(err, ErrEmptyResponse):
		genErr.Code = "EmptyResponse"
	case genErr.StatusCode == http.StatusTooManyRequests:
		genErr.Code = "Throttling"
	case genErr.StatusCode == http.StatusUnauthorized || genErr.StatusCode == http.StatusForbidden:
		genErr.Code = "InvalidApiKey"
	case genErr.StatusCode >= 400 && genErr.StatusCode < 500:
		genErr.Code = "InvalidParameter"
	case genErr.StatusCode >= 500:
		genErr.Code = "InternalError"
	default:
		genErr.Code = "RequestFailed"
	}

	return genErr
}
