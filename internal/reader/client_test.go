package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSendsTargetAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/https://boardgamegeek.com/boardgame/13", r.URL.Path)
		assert.Equal(t, "html", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("<html><head><title>Catan</title></head></html>"))
	}))
	defer server.Close()

	client := NewClient("secret", WithBaseURL(server.URL+"/"))
	body, err := client.Fetch(context.Background(), "https://boardgamegeek.com/boardgame/13", FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>Catan</title>")
}

func TestFetchWithoutKeyOmitsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	_, err := NewClient("", WithBaseURL(server.URL)).Fetch(context.Background(), "https://example.com", FormatText)
	require.NoError(t, err)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"bad status", http.StatusBadGateway, "upstream failed", "unexpected status 502"},
		{"empty body", http.StatusOK, "   ", "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient("", WithBaseURL(server.URL)).Fetch(context.Background(), "https://example.com", FormatHTML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
