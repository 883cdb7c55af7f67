package news

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPoster_Post(t *testing.T) {
	var gotContentType string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &gotPayload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewWebhookPoster(slog.New(slog.DiscardHandler))

	err := p.Post(context.Background(), srv.URL, map[string]interface{}{"content": "hello"})
	require.NoError(t, err)

	assert.Equal(t, "application/json; charset=utf-8", gotContentType)
	assert.Equal(t, "hello", gotPayload["content"])
}

func TestWebhookPoster_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewWebhookPoster(slog.New(slog.DiscardHandler))

	err := p.Post(context.Background(), srv.URL, map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
