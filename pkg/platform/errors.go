package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound   = errors.New("platform resource not found")
	ErrValidation = errors.New("platform rejected request")
	ErrInternal   = errors.New("platform error")
)

// Vendor codes that override the HTTP status classification.
var (
	notFoundCodes   = map[int]bool{10007: true, 10013: true, 7003: true, 10090: true}
	validationCodes = map[int]bool{10021: true, 10014: true, 10027: true, 8000007: true}
)

// ResponseError is one entry of the envelope's errors list.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is a failed platform call. Message is the platform's own wording.
type APIError struct {
	Op      string
	Status  int
	Code    int
	Message string
	Errors  []ResponseError
	Kind    error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (status %d, code %d): %s", e.Op, e.Kind, e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// newAPIError classifies a non-2xx response.
func newAPIError(op string, status int, env *envelope) *APIError {
	apiErr := &APIError{Op: op, Status: status}

	if env != nil {
		apiErr.Errors = env.Errors

		if len(env.Errors) > 0 {
			apiErr.Code = env.Errors[0].Code

			messages := make([]string, 0, len(env.Errors))
			for _, e := range env.Errors {
				messages = append(messages, e.Message)
			}

			apiErr.Message = strings.Join(messages, "; ")
		} else if env.Message != "" {
			apiErr.Message = env.Message
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	apiErr.Kind = classify(status, apiErr.Code)

	return apiErr
}

func classify(status, code int) error {
	switch {
	case notFoundCodes[code]:
		return ErrNotFound
	case validationCodes[code]:
		return ErrValidation
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrInternal
	}
}

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a platform not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
