// Package searchsvc runs live web searches for deep-search requests.
package searchsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core/gateway"
)

const providerSerper gateway.Provider = "serper"

type (
	serperRequest struct {
		Query  string `json:"q"`
		Region string `json:"gl,omitempty"`
		Num    int    `json:"num,omitempty"`
	}

	serperResponse struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}

	// Serper queries Google through the serper.dev API with the operator's key.
	Serper struct {
		url    string
		key    string
		client *http.Client
	}
)

var _ gateway.WebSearcher = (*Serper)(nil)

func NewSerper(url, key string, timeout time.Duration) *Serper {
	return &Serper{url: url, key: key, client: &http.Client{Timeout: timeout}}
}

// Search returns at most limit organic results, in ranking order.
func (s *Serper) Search(ctx context.Context, query, region string, limit int) ([]gateway.SearchResult, error) {
	if s.key == "" {
		return nil, errors.New("serper: no API key configured")
	}

	payload, err := json.Marshal(serperRequest{Query: query, Region: region})
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.key)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &gateway.UpstreamError{Provider: providerSerper, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &gateway.UpstreamError{Provider: providerSerper, Status: resp.StatusCode}
	}

	var data serperResponse
	if err = json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}

	results := make([]gateway.SearchResult, 0, len(data.Organic))
	for _, o := range data.Organic {
		if limit > 0 && len(results) == limit {
			break
		}
		results = append(results, gateway.SearchResult{Title: o.Title, Link: o.Link, Snippet: o.Snippet})
	}
	return results, nil
}
