package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"template-store/internal/config"
	"template-store/internal/logger"
)

var ErrNotConfigured = errors.New("research API not configured")

// Message is one turn of a chat exchange with the research API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the external research/generation API. The API is a
// text-in/text-out black box; nothing here depends on what the model
// actually says.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(cfg config.GenerationConfig, httpClient *http.Client, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn("RESEARCH", "RESEARCH_API_KEY not set, template generation disabled")
		return nil, ErrNotConfigured
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     log,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat exchange and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   1000,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode research request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("RESEARCH", fmt.Sprintf("Failed to create research request: %v", err))
		return "", fmt.Errorf("failed to create research request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("RESEARCH", fmt.Sprintf("Research API error: %v", err))
		return "", fmt.Errorf("research API error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("RESEARCH", fmt.Sprintf("Failed to close research response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("RESEARCH", fmt.Sprintf("Research API returned status %d: %s", resp.StatusCode, string(body)))
		return "", fmt.Errorf("research API returned status: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Error("RESEARCH", fmt.Sprintf("Failed to decode research response: %v", err))
		return "", fmt.Errorf("failed to decode research response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", errors.New("research API returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
