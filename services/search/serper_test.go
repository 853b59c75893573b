package searchsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margdarshak/gateway/core/gateway"
)

func TestSerper_Search(t *testing.T) {
	var body serperRequest
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-API-KEY")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"organic": [
			{"title": "a", "link": "https://a", "snippet": "one"},
			{"title": "b", "link": "https://b", "snippet": "two"},
			{"title": "c", "link": "https://c", "snippet": "three"},
			{"title": "d", "link": "https://d", "snippet": "four"}
		]}`))
	}))
	defer srv.Close()

	results, err := NewSerper(srv.URL, "serper-key", time.Second).Search(context.Background(), "jee 2025 syllabus", "in", 3)
	require.NoError(t, err)

	assert.Equal(t, "serper-key", key)
	assert.Equal(t, serperRequest{Query: "jee 2025 syllabus", Region: "in"}, body)
	require.Len(t, results, 3)
	assert.Equal(t, gateway.SearchResult{Title: "a", Link: "https://a", Snippet: "one"}, results[0])
	assert.Equal(t, "three", results[2].Snippet)
}

func TestSerper_SearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewSerper(srv.URL, "bad-key", time.Second).Search(context.Background(), "q", "in", 3)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, gateway.Classify(err).Status)

	_, err = NewSerper(srv.URL, "", time.Second).Search(context.Background(), "q", "in", 3)
	assert.Error(t, err)
}
