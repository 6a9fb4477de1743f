package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkruczek/spizarka-backend/pkg/config"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:     baseURL,
		Model:       "llama3.2",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     5 * time.Second,
	}
}

func TestGenerateReturnsCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama3.2", req.Model)
		require.False(t, req.Stream)
		require.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
		require.InDelta(t, 0.9, req.Options.TopP, 1e-9)

		json.NewEncoder(w).Encode(generateResponse{Response: `{"products": []}`, Done: true})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	out, err := c.Generate(context.Background(), "parse this")
	require.NoError(t, err)
	require.Equal(t, `{"products": []}`, out)
}

func TestGenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "  ", Done: true})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Generate(context.Background(), "parse this")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Generate(context.Background(), "parse this")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	c := NewClient(cfg)
	_, err := c.Generate(context.Background(), "parse this")
	require.ErrorIs(t, err, ErrTimeout)
}
