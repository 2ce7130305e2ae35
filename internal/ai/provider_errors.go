// provider_errors.go - Error categorisation for OCR/LLM API calls

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ProviderError represents a categorized provider API error
type ProviderError struct {
	Provider   string
	StatusCode int
	Category   string
	Message    string
	// Temporary means the operator may simply try again later
	Temporary bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (%d %s): %s", e.Provider, e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("%s API error (%s): %s", e.Provider, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// categorizeStatus maps an HTTP status code to a category
func categorizeStatus(code int) (category string, temporary bool) {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "bad_request", false
	case http.StatusUnauthorized:
		return "unauthorized", false
	case http.StatusForbidden:
		return "forbidden", false
	case http.StatusNotFound:
		return "not_found", false
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large", false
	case http.StatusTooManyRequests:
		return "rate_limit", true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "server_error", true
	}
	if code >= 500 {
		return "server_error", true
	}
	return "unknown_api_error", false
}

// newStatusError builds a ProviderError from an HTTP status and the provider's message
func newStatusError(provider string, code int, message string) *ProviderError {
	category, temporary := categorizeStatus(code)
	if message == "" {
		message = http.StatusText(code)
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: code,
		Category:   category,
		Message:    message,
		Temporary:  temporary,
	}
}

// categorizeError analyzes a transport or SDK error
func categorizeError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = err.Error()
		}
		pe := newStatusError(provider, apiErr.Code, message)
		pe.Err = err
		return pe
	}

	pe := &ProviderError{
		Provider: provider,
		Category: "unknown",
		Message:  err.Error(),
		Err:      err,
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Category = "timeout"
		pe.Temporary = true
		return pe
	case errors.Is(err, context.Canceled):
		pe.Category = "canceled"
		return pe
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "quota"):
		pe.Category = "quota_exceeded"
	case strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "unauthorized"):
		pe.Category = "unauthorized"
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		pe.Category = "timeout"
		pe.Temporary = true
	case strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") || strings.Contains(errMsg, "no such host"):
		pe.Category = "network_error"
		pe.Temporary = true
	}
	return pe
}
