package llmsvc

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core/gateway"
)

const (
	providerWorkersAI gateway.Provider = "workers ai"

	embeddingModel = "@cf/baai/bge-base-en-v1.5"
	visionModel    = "@cf/llava-1.5-7b-hf"
	imageModel     = "@cf/black-forest-labs/flux-1-schnell"
)

type (
	workersEnvelope[T any] struct {
		Result  T    `json:"result"`
		Success bool `json:"success"`
		Errors  []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}

	embeddingResult struct {
		Shape []int       `json:"shape"`
		Data  [][]float32 `json:"data"`
	}

	visionRequest struct {
		Image     []int  `json:"image"`
		Prompt    string `json:"prompt"`
		MaxTokens int    `json:"max_tokens,omitempty"`
	}

	visionResult struct {
		Description string `json:"description"`
	}

	imageRequest struct {
		Prompt string `json:"prompt"`
		Steps  int    `json:"num_steps,omitempty"`
	}

	imageResult struct {
		Image string `json:"image"`
	}

	// WorkersAI runs Cloudflare Workers AI models with the operator's account token.
	// It serves embeddings, image description and the fallback image model.
	WorkersAI struct {
		baseURL string
		token   string
		client  *http.Client
	}
)

var (
	_ gateway.Embedder    = (*WorkersAI)(nil)
	_ gateway.VisionModel = (*WorkersAI)(nil)
	_ gateway.ImageModel  = (*WorkersAI)(nil)
)

func NewWorkersAI(baseURL, accountID, token string, timeout time.Duration) *WorkersAI {
	return &WorkersAI{
		baseURL: strings.TrimRight(baseURL, "/") + "/" + accountID + "/ai/run/",
		token:   token,
		client:  newHTTPClient(timeout),
	}
}

func run[T any](ctx context.Context, w *WorkersAI, model string, body interface{}) (T, error) {
	var env workersEnvelope[T]
	if err := postJSON(ctx, w.client, providerWorkersAI, w.baseURL+model, bearer(w.token), body, &env); err != nil {
		return env.Result, err
	}
	if !env.Success && len(env.Errors) > 0 {
		return env.Result, &gateway.UpstreamError{Provider: providerWorkersAI, Err: errors.Errorf("%s: %s", model, env.Errors[0].Message)}
	}
	return env.Result, nil
}

func (w *WorkersAI) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := run[embeddingResult](ctx, w, embeddingModel, map[string][]string{"text": {text}})
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || len(res.Data[0]) == 0 {
		return nil, &gateway.UpstreamError{Provider: providerWorkersAI, Err: errors.New("empty embedding")}
	}
	return res.Data[0], nil
}

func (w *WorkersAI) Describe(ctx context.Context, image []byte, prompt string) (string, error) {
	pixels := make([]int, len(image))
	for i, b := range image {
		pixels[i] = int(b)
	}
	res, err := run[visionResult](ctx, w, visionModel, visionRequest{Image: pixels, Prompt: prompt, MaxTokens: 512})
	if err != nil {
		return "", err
	}
	return res.Description, nil
}

// Generate renders an image with flux-1-schnell. The credential in req is ignored; the account token is used.
func (w *WorkersAI) Generate(ctx context.Context, req gateway.ImageRequest) ([]byte, error) {
	res, err := run[imageResult](ctx, w, imageModel, imageRequest{Prompt: req.Prompt, Steps: req.Steps})
	if err != nil {
		return nil, err
	}
	img, err := base64.StdEncoding.DecodeString(res.Image)
	if err != nil {
		return nil, &gateway.UpstreamError{Provider: providerWorkersAI, Err: errors.Wrap(err, "decoding image")}
	}
	return img, nil
}
