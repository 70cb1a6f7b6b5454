package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Suggester proposes corrections for a rejected permit.
type Suggester interface {
	Suggest(ctx context.Context, details, remarks string) (string, error)
}

// NopSuggester never suggests anything.
type NopSuggester struct{}

// Suggest implements Suggester.
func (NopSuggester) Suggest(context.Context, string, string) (string, error) { return "", nil }

// HTTPSuggester calls an external suggestion service over JSON.
type HTTPSuggester struct {
	url    string
	apiKey string
	client *http.Client
	logger *zap.Logger
}

type suggestionRequest struct {
	FormDetails      string `json:"formDetails"`
	RejectionRemarks string `json:"rejectionRemarks"`
}

type suggestionResponse struct {
	SuggestedCorrections string `json:"suggestedCorrections"`
}

// NewHTTPSuggester constructs a client. timeout bounds each call.
func NewHTTPSuggester(url, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPSuggester {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSuggester{url: url, apiKey: apiKey, client: &http.Client{Timeout: timeout}, logger: logger}
}

// Suggest implements Suggester.
func (s *HTTPSuggester) Suggest(ctx context.Context, details, remarks string) (string, error) {
	body, err := json.Marshal(suggestionRequest{FormDetails: details, RejectionRemarks: remarks})
	if err != nil {
		return "", fmt.Errorf("encode suggestion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call suggestion service: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		body := strings.TrimSpace(string(snippet))
		s.logger.Warn("suggestion service rejected request",
			zap.Int("status", resp.StatusCode), zap.String("body", body))
		return "", fmt.Errorf("suggestion service returned %d: %s", resp.StatusCode, body)
	}
	var out suggestionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		s.logger.Warn("suggestion service sent an unreadable response", zap.Error(err))
		return "", fmt.Errorf("decode suggestion response: %w", err)
	}
	return strings.TrimSpace(out.SuggestedCorrections), nil
}
