// pkg/textgen/client.go
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/config"
	"github.com/David-Botos/data-quality/pkg/model"
)

// ErrNoAPIKey is returned when no credential is configured for the service
var ErrNoAPIKey = errors.New("text generation API key not configured")

// maxErrorBody caps how much of a failed response is kept in the error
const maxErrorBody = 2048

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls an OpenAI compatible chat-completions endpoint. Each call is a
// single attempt bounded by the configured timeout.
type Client struct {
	cfg    config.TextGenConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client from the text generation settings
func NewClient(cfg *config.TextGenConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		cfg:    *cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("textgen"),
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// SetAPIKey replaces the credential for subsequent calls
func (c *Client) SetAPIKey(key string) {
	c.cfg.APIKey = strings.TrimSpace(key)
}

// Complete sends a system and a user message and returns the first choice's content
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.Configured() {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(completionRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", &model.ExternalServiceError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Requesting completion", zap.String("model", c.cfg.Model), zap.Int("bytes", len(body)))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Completion request failed", zap.Error(err))
		return "", &model.ExternalServiceError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("Completion request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(snippet)))
		return "", &model.ExternalServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &model.ExternalServiceError{Err: fmt.Errorf("failed to decode completion response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", &model.ExternalServiceError{Err: errors.New("completion response has no choices")}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
