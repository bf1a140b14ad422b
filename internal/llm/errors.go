package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/sanjaynair/amlscope/internal/model"
)

// ErrorCode classifies a stage-aborting collaborator failure for
// caller-visible messaging.
type ErrorCode string

const (
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeTokenLimitExceeded   ErrorCode = "TOKEN_LIMIT_EXCEEDED"
	CodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	CodeUnknown              ErrorCode = "UNKNOWN"
)

// StageError reports a language-model failure. Unlike tool failures, which
// are recorded and recovered locally, a StageError aborts the stage and
// fails the investigation.
type StageError struct {
	Stage model.Stage
	Code  ErrorCode
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Code, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its classification.
func NewStageError(stage model.Stage, err error) *StageError {
	return &StageError{Stage: stage, Code: Classify(err), Err: err}
}

// Classify maps a collaborator error onto the error taxonomy. Transport
// errors from the Google API surface carry HTTP status codes; everything
// else falls back to message matching.
func Classify(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return CodeRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return CodeAuthenticationFailed
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted"):
		return CodeRateLimited
	case strings.Contains(msg, "token") && (strings.Contains(msg, "limit") || strings.Contains(msg, "exceed") || strings.Contains(msg, "too long")):
		return CodeTokenLimitExceeded
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission denied"):
		return CodeAuthenticationFailed
	default:
		return CodeUnknown
	}
}
