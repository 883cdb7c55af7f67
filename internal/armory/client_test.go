package armory

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlexii/overlord/internal/auth"
)

func newTestClient(t *testing.T, apiURL string) *Client {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	logger := slog.New(slog.DiscardHandler)
	creds := auth.NewCache(&auth.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokenSrv.URL,
		Store:        auth.NewFileStore(filepath.Join(t.TempDir(), "token.json")),
		Logger:       logger,
	})

	return NewClient(&Config{
		BaseURL: apiURL,
		Locale:  "en_US",
	}, creds, logger)
}

func TestClient_CharacterProfile(t *testing.T) {
	var gotPath, gotAuth, gotLocale string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotLocale = r.URL.Query().Get("locale")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Vengel","realm":"Khaz'goroth","faction":0,"lastModified":1756700000000}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	doc, err := client.CharacterProfile(context.Background(), "khazgoroth", "vengel")
	require.NoError(t, err)

	assert.Equal(t, "/wow/character/khazgoroth/vengel", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "en_US", gotLocale)
	assert.Equal(t, "Vengel", doc["name"])
	assert.Equal(t, float64(0), doc["faction"])
}

func TestClient_CharacterMounts_RequestsMountsField(t *testing.T) {
	var gotFields string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFields = r.URL.Query().Get("fields")
		w.Write([]byte(`{"name":"Vengel","mounts":{"numCollected":120,"numNotCollected":300}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	doc, err := client.CharacterMounts(context.Background(), "khazgoroth", "vengel")
	require.NoError(t, err)

	assert.Equal(t, "mounts", gotFields)
	mounts := doc["mounts"].(map[string]interface{})
	assert.Equal(t, float64(120), mounts["numCollected"])
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.CharacterProfile(context.Background(), "khazgoroth", "nosuchtoon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_EscapesPathSegments(t *testing.T) {
	var gotURI string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.Write([]byte(`{"name":"Fellowship"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GuildNews(context.Background(), "khazgoroth", "the fellowship")
	require.NoError(t, err)
	assert.Contains(t, gotURI, "/wow/guild/khazgoroth/the%20fellowship")
	assert.Contains(t, gotURI, "fields=news")
}
