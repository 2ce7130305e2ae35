package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		code      int
		category  string
		temporary bool
	}{
		{http.StatusBadRequest, "bad_request", false},
		{http.StatusUnprocessableEntity, "bad_request", false},
		{http.StatusUnauthorized, "unauthorized", false},
		{http.StatusTooManyRequests, "rate_limit", true},
		{http.StatusServiceUnavailable, "server_error", true},
		{599, "server_error", true},
		{http.StatusTeapot, "unknown_api_error", false},
	}
	for _, tt := range tests {
		category, temporary := categorizeStatus(tt.code)
		if category != tt.category || temporary != tt.temporary {
			t.Errorf("categorizeStatus(%d) = %s/%v, want %s/%v", tt.code, category, temporary, tt.category, tt.temporary)
		}
	}
}

func TestNewStatusError_DefaultsMessage(t *testing.T) {
	err := newStatusError(providerMistral, http.StatusBadGateway, "")
	if err.Message != "Bad Gateway" {
		t.Errorf("expected status text, got %q", err.Message)
	}
	if err.Error() != "mistral API error (502 server_error): Bad Gateway" {
		t.Errorf("unexpected error string %q", err.Error())
	}
}

func TestCategorizeError_GoogleAPI(t *testing.T) {
	apiErr := &googleapi.Error{Code: http.StatusForbidden, Message: "API key not valid"}
	pe := categorizeError(providerGemini, fmt.Errorf("generate: %w", apiErr))

	if pe.StatusCode != http.StatusForbidden || pe.Category != "forbidden" {
		t.Errorf("unexpected categorisation: %+v", pe)
	}
	if pe.Message != "API key not valid" {
		t.Errorf("expected provider message, got %q", pe.Message)
	}
	if !errors.As(pe, &apiErr) {
		t.Error("expected original error to stay reachable")
	}
}

func TestCategorizeError_Patterns(t *testing.T) {
	tests := []struct {
		err       error
		category  string
		temporary bool
	}{
		{context.DeadlineExceeded, "timeout", true},
		{fmt.Errorf("call: %w", context.Canceled), "canceled", false},
		{errors.New("Quota exceeded"), "quota_exceeded", false},
		{errors.New("invalid API key"), "unauthorized", false},
		{errors.New("dial tcp: lookup api.mistral.ai: no such host"), "network_error", true},
		{errors.New("something odd"), "unknown", false},
	}
	for _, tt := range tests {
		pe := categorizeError(providerMistral, tt.err)
		if pe.Category != tt.category || pe.Temporary != tt.temporary {
			t.Errorf("categorizeError(%v) = %s/%v, want %s/%v", tt.err, pe.Category, pe.Temporary, tt.category, tt.temporary)
		}
	}
}

func TestCategorizeError_KeepsProviderError(t *testing.T) {
	orig := newStatusError(providerMistral, http.StatusTooManyRequests, "slow down")
	if got := categorizeError(providerMistral, fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Errorf("expected the same ProviderError, got %+v", got)
	}
	if categorizeError(providerMistral, nil) != nil {
		t.Error("expected nil for nil error")
	}
}
