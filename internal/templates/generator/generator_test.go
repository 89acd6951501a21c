package generator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"template-store/internal/config"
	"template-store/internal/logger"
	"template-store/internal/templates/generator"

	"github.com/stretchr/testify/assert"
)

func testConfig(baseURL string) config.GenerationConfig {
	return config.GenerationConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "sonar",
		Timeout: 5 * time.Second,
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := generator.NewClient(config.GenerationConfig{}, nil, logger.NewLogger())
	assert.ErrorIs(t, err, generator.ErrNotConfigured)
}

func TestComplete_ReturnsFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"TITLE: Neon Dream"}}]}`))
	}))
	defer server.Close()

	client, err := generator.NewClient(testConfig(server.URL), server.Client(), logger.NewLogger())
	assert.NoError(t, err)

	content, err := client.Complete(context.Background(), []generator.Message{
		{Role: "user", Content: "hello"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "TITLE: Neon Dream", content)
}

func TestComplete_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := generator.NewClient(testConfig(server.URL), server.Client(), logger.NewLogger())
	assert.NoError(t, err)

	_, err = client.Complete(context.Background(), []generator.Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := generator.NewClient(testConfig(server.URL), server.Client(), logger.NewLogger())
	assert.NoError(t, err)

	_, err = client.Complete(context.Background(), []generator.Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}
