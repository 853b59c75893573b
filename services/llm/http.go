// Package llmsvc holds the upstream model adapters: chat completion, embeddings, vision and image generation.
package llmsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core/gateway"
)

// maxResponseBytes bounds how much of an upstream response is read; generated images are the largest.
const maxResponseBytes = 20 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// post sends body as JSON and returns the raw response body.
// Every failure is an *gateway.UpstreamError so callers can classify it.
func post(ctx context.Context, client *http.Client, provider gateway.Provider, url string, headers map[string]string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &gateway.UpstreamError{Provider: provider, Err: unwrapURLError(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &gateway.UpstreamError{Provider: provider, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &gateway.UpstreamError{Provider: provider, Err: errors.Wrap(err, "reading response")}
	}
	return data, nil
}

// postJSON is post with the response decoded into out.
func postJSON(ctx context.Context, client *http.Client, provider gateway.Provider, url string, headers map[string]string, body, out interface{}) error {
	data, err := post(ctx, client, provider, url, headers, body)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, out); err != nil {
		return &gateway.UpstreamError{Provider: provider, Err: errors.Wrap(err, "decoding response")}
	}
	return nil
}

// unwrapURLError drops the "Post <url>:" prefix so request URLs (which may embed account ids) stay out of messages.
func unwrapURLError(err error) error {
	var uErr *url.Error
	if errors.As(err, &uErr) && uErr.Err != nil {
		return uErr.Err
	}
	return err
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}
