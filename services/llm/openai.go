package llmsvc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/margdarshak/gateway/core/gateway"
)

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	responseFormat struct {
		Type string `json:"type"`
	}

	chatCompletionRequest struct {
		Model          string          `json:"model"`
		Messages       []chatMessage   `json:"messages"`
		Temperature    float64         `json:"temperature"`
		MaxTokens      int             `json:"max_tokens,omitempty"`
		ResponseFormat *responseFormat `json:"response_format,omitempty"`
	}

	chatCompletionResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}

	// OpenAICompatible talks to any chat-completions endpoint that speaks the OpenAI wire format.
	OpenAICompatible struct {
		provider gateway.Provider
		url      string
		auth     func(key string) map[string]string
		client   *http.Client
	}
)

var _ gateway.ChatModel = (*OpenAICompatible)(nil)

// NewSambanova returns the SambaNova Cloud chat client.
func NewSambanova(url string, timeout time.Duration) *OpenAICompatible {
	return &OpenAICompatible{provider: gateway.ProviderSambanova, url: url, auth: bearer, client: newHTTPClient(timeout)}
}

// NewGithubModels returns the GitHub Models chat client, which authenticates with an `api-key` header.
func NewGithubModels(url string, timeout time.Duration) *OpenAICompatible {
	return &OpenAICompatible{
		provider: gateway.ProviderGithub,
		url:      url,
		auth:     func(key string) map[string]string { return map[string]string{"api-key": key} },
		client:   newHTTPClient(timeout),
	}
}

func (c *OpenAICompatible) Complete(ctx context.Context, req gateway.ChatRequest) (string, error) {
	body := chatCompletionRequest{
		Model: req.Model.ID,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatCompletionResponse
	if err := postJSON(ctx, c.client, c.provider, c.url, c.auth(req.Credential.Key), body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
