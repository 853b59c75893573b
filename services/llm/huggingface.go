package llmsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core/gateway"
)

const hfImageModel = "black-forest-labs/FLUX.1-dev"

type (
	hfParameters struct {
		MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
		Temperature    float64 `json:"temperature"`
		ReturnFullText bool    `json:"return_full_text"`
	}

	hfTextRequest struct {
		Inputs     string       `json:"inputs"`
		Parameters hfParameters `json:"parameters"`
	}

	hfImageRequest struct {
		Inputs string `json:"inputs"`
	}

	hfGeneration struct {
		GeneratedText string `json:"generated_text"`
	}

	// HuggingFace calls the serverless inference API for text generation and text-to-image.
	HuggingFace struct {
		baseURL string
		client  *http.Client
	}
)

var (
	_ gateway.ChatModel  = (*HuggingFace)(nil)
	_ gateway.ImageModel = (*HuggingFace)(nil)
)

func NewHuggingFace(baseURL string, timeout time.Duration) *HuggingFace {
	return &HuggingFace{baseURL: strings.TrimRight(baseURL, "/"), client: newHTTPClient(timeout)}
}

func (hf *HuggingFace) modelURL(id string) string {
	return hf.baseURL + "/" + id
}

// buildChatPrompt flattens a system and user turn for plain text-generation models.
func buildChatPrompt(system, user string) string {
	return system + "\n\nUser: " + user + "\nAssistant:"
}

// Complete runs text generation. JSON mode is not supported by the endpoint and is ignored.
func (hf *HuggingFace) Complete(ctx context.Context, req gateway.ChatRequest) (string, error) {
	body := hfTextRequest{
		Inputs: buildChatPrompt(req.System, req.User),
		Parameters: hfParameters{
			MaxNewTokens: req.MaxTokens,
			Temperature:  req.Temperature,
		},
	}

	data, err := post(ctx, hf.client, gateway.ProviderHuggingFace, hf.modelURL(req.Model.ID), bearer(req.Credential.Key), body)
	if err != nil {
		return "", err
	}
	text, err := decodeGeneration(data)
	if err != nil {
		return "", &gateway.UpstreamError{Provider: gateway.ProviderHuggingFace, Err: err}
	}
	return strings.TrimSpace(text), nil
}

// decodeGeneration accepts both the list and the single-object response shapes.
func decodeGeneration(data []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}

	var one hfGeneration
	if err := json.Unmarshal(data, &one); err != nil {
		return "", errors.Wrap(err, "decoding generation")
	}
	return one.GeneratedText, nil
}

// Generate renders an image with FLUX.1-dev. The response body is the image itself.
func (hf *HuggingFace) Generate(ctx context.Context, req gateway.ImageRequest) ([]byte, error) {
	return post(ctx, hf.client, gateway.ProviderHuggingFace, hf.modelURL(hfImageModel), bearer(req.Credential.Key), hfImageRequest{Inputs: req.Prompt})
}
