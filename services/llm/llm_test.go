package llmsvc

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

type captured struct {
	path    string
	headers http.Header
	body    map[string]interface{}
}

// upstream serves status and reply for every request, recording the last one.
func upstream(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := new(captured)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		c.body = nil
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func chatRequest(provider gateway.Provider, id string, jsonMode bool) gateway.ChatRequest {
	return gateway.ChatRequest{
		Model:       gateway.Model{Provider: provider, ID: id},
		Credential:  gateway.Credential{Provider: provider, Key: "k-123", Source: gateway.CredentialCaller},
		System:      "be brief",
		User:        "what is a mole",
		MaxTokens:   150,
		Temperature: 0.1,
		JSONMode:    jsonMode,
	}
}

func TestOpenAICompatible_Complete(t *testing.T) {
	srv, got := upstream(t, http.StatusOK, `{"choices": [{"message": {"role": "assistant", "content": " 6.022e23 particles "}}]}`)

	t.Run("sambanova", func(t *testing.T) {
		out, err := NewSambanova(srv.URL+"/v1/chat/completions", time.Second).
			Complete(context.Background(), chatRequest(gateway.ProviderSambanova, "Meta-Llama-3.1-8B-Instruct", true))
		require.NoError(t, err)
		assert.Equal(t, "6.022e23 particles", out)
		assert.Equal(t, "/v1/chat/completions", got.path)
		assert.Equal(t, "Bearer k-123", got.headers.Get("Authorization"))
		assert.Equal(t, "Meta-Llama-3.1-8B-Instruct", got.body["model"])
		assert.Equal(t, map[string]interface{}{"type": "json_object"}, got.body["response_format"])
		assert.EqualValues(t, 150, got.body["max_tokens"])
		msgs := got.body["messages"].([]interface{})
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
		assert.Equal(t, "what is a mole", msgs[1].(map[string]interface{})["content"])
	})

	t.Run("github", func(t *testing.T) {
		_, err := NewGithubModels(srv.URL, time.Second).
			Complete(context.Background(), chatRequest(gateway.ProviderGithub, "gpt-4o", false))
		require.NoError(t, err)
		assert.Equal(t, "k-123", got.headers.Get("api-key"))
		assert.Empty(t, got.headers.Get("Authorization"))
		assert.NotContains(t, got.body, "response_format")
	})
}

func TestOpenAICompatible_CompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   gateway.FailureKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: gateway.FailureInvalidCredential},
		{name: "rate limited", status: http.StatusTooManyRequests, want: gateway.FailureRateLimited},
		{name: "server error", status: http.StatusInternalServerError, want: gateway.FailureUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := upstream(t, tt.status, `{"error": "nope"}`)
			_, err := NewSambanova(srv.URL, time.Second).Complete(context.Background(), chatRequest(gateway.ProviderSambanova, "m", false))
			require.Error(t, err)
			f := gateway.Classify(err)
			assert.Equal(t, tt.want, f.Kind)
			assert.Equal(t, tt.status, f.Status)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv, _ := upstream(t, http.StatusOK, "")
		url := srv.URL
		srv.Close()
		_, err := NewSambanova(url, time.Second).Complete(context.Background(), chatRequest(gateway.ProviderSambanova, "m", false))
		f := gateway.Classify(err)
		assert.Equal(t, gateway.FailureConnection, f.Kind)
		assert.NotContains(t, f.Message(), url)
	})

	t.Run("deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewSambanova(srv.URL, 5*time.Second).Complete(ctx, chatRequest(gateway.ProviderSambanova, "m", false))
		assert.Equal(t, "CONNECTION ERROR: upstream timed out", gateway.Classify(err).Message())
	})
}

func TestHuggingFace_Complete(t *testing.T) {
	for name, reply := range map[string]string{
		"list":   `[{"generated_text": " Answer. "}]`,
		"object": `{"generated_text": "Answer."}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, got := upstream(t, http.StatusOK, reply)
			out, err := NewHuggingFace(srv.URL+"/models/", time.Second).
				Complete(context.Background(), chatRequest(gateway.ProviderHuggingFace, "google/gemma-2-27b-it", true))
			require.NoError(t, err)
			assert.Equal(t, "Answer.", out)
			assert.Equal(t, "/models/google/gemma-2-27b-it", got.path)
			assert.Equal(t, "Bearer k-123", got.headers.Get("Authorization"))
			assert.Equal(t, "be brief\n\nUser: what is a mole\nAssistant:", got.body["inputs"])
			params := got.body["parameters"].(map[string]interface{})
			assert.Equal(t, false, params["return_full_text"])
			assert.EqualValues(t, 150, params["max_new_tokens"])
		})
	}
}

func TestHuggingFace_Generate(t *testing.T) {
	srv, got := upstream(t, http.StatusOK, "\x89PNG")
	img, err := NewHuggingFace(srv.URL, time.Second).Generate(context.Background(), gateway.ImageRequest{
		Prompt:     "a lever",
		Credential: gateway.Credential{Key: "hf-key"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img)
	assert.Equal(t, "/black-forest-labs/FLUX.1-dev", got.path)
	assert.Equal(t, "Bearer hf-key", got.headers.Get("Authorization"))
	assert.Equal(t, "a lever", got.body["inputs"])
}

func TestWorkersAI(t *testing.T) {
	ctx := context.Background()

	t.Run("embed", func(t *testing.T) {
		srv, got := upstream(t, http.StatusOK, `{"success": true, "result": {"shape": [1, 3], "data": [[0.5, 0.25, 0.125]]}}`)
		vec, err := NewWorkersAI(srv.URL, "acct", "cf-token", time.Second).Embed(ctx, "ohm's law")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.25, 0.125}, vec)
		assert.Equal(t, "/acct/ai/run/@cf/baai/bge-base-en-v1.5", got.path)
		assert.Equal(t, "Bearer cf-token", got.headers.Get("Authorization"))
		assert.Equal(t, []interface{}{"ohm's law"}, got.body["text"])
	})

	t.Run("describe", func(t *testing.T) {
		srv, got := upstream(t, http.StatusOK, `{"success": true, "result": {"description": "a circuit"}}`)
		desc, err := NewWorkersAI(srv.URL, "acct", "cf-token", time.Second).Describe(ctx, []byte{1, 255}, "Extract all text and diagrams.")
		require.NoError(t, err)
		assert.Equal(t, "a circuit", desc)
		assert.Equal(t, []interface{}{float64(1), float64(255)}, got.body["image"])
		assert.Equal(t, "Extract all text and diagrams.", got.body["prompt"])
	})

	t.Run("generate", func(t *testing.T) {
		srv, got := upstream(t, http.StatusOK, `{"success": true, "result": {"image": "iVBORw=="}}`)
		img, err := NewWorkersAI(srv.URL, "acct", "cf-token", time.Second).Generate(ctx, gateway.ImageRequest{Prompt: "a lens", Steps: 4})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)
		assert.EqualValues(t, 4, got.body["num_steps"])
	})

	t.Run("model error", func(t *testing.T) {
		srv, _ := upstream(t, http.StatusOK, `{"success": false, "errors": [{"code": 5006, "message": "capacity"}]}`)
		_, err := NewWorkersAI(srv.URL, "acct", "cf-token", time.Second).Embed(ctx, "x")
		assert.Error(t, err)
	})
}

type stubImages struct{ name string }

func (s stubImages) Generate(context.Context, gateway.ImageRequest) ([]byte, error) {
	return []byte(s.name), nil
}

func TestImageRouter(t *testing.T) {
	r := &ImageRouter{Primary: stubImages{"hf"}, Fallback: stubImages{"workers"}}
	ctx := context.Background()

	img, _ := r.Generate(ctx, gateway.ImageRequest{Credential: gateway.Credential{Key: "k"}})
	assert.Equal(t, "hf", string(img))
	img, _ = r.Generate(ctx, gateway.ImageRequest{})
	assert.Equal(t, "workers", string(img))
}

func TestChatRouter(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `{"choices": [{"message": {"content": "ok"}}]}`)
	r := ChatRouter{gateway.ProviderSambanova: NewSambanova(srv.URL, time.Second)}

	out, err := r.Complete(context.Background(), chatRequest(gateway.ProviderSambanova, "m", false))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = r.Complete(context.Background(), chatRequest(gateway.ProviderGithub, "gpt-4o", false))
	assert.Error(t, err)
}
