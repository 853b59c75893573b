package llmsvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

// ChatRouter dispatches a chat request to the client for its model's provider.
type ChatRouter map[gateway.Provider]gateway.ChatModel

var _ gateway.ChatModel = ChatRouter(nil)

func (r ChatRouter) Complete(ctx context.Context, req gateway.ChatRequest) (string, error) {
	chat, ok := r[req.Model.Provider]
	if !ok {
		return "", errors.Errorf("no chat client for provider %q", req.Model.Provider)
	}
	return chat.Complete(ctx, req)
}

// ImageRouter uses the HuggingFace image model when the request carries a credential for it,
// and the account-billed fallback model otherwise.
type ImageRouter struct {
	Primary  gateway.ImageModel
	Fallback gateway.ImageModel
}

var _ gateway.ImageModel = (*ImageRouter)(nil)

func (r *ImageRouter) Generate(ctx context.Context, req gateway.ImageRequest) ([]byte, error) {
	if !req.Credential.IsZero() && r.Primary != nil {
		return r.Primary.Generate(ctx, req)
	}
	return r.Fallback.Generate(ctx, req)
}

// Clients are the upstream adapters built from the provider configuration.
type Clients struct {
	Chat    ChatRouter
	Images  *ImageRouter
	Workers *WorkersAI
}

func NewClients(conf *core.Config) Clients {
	p := conf.Providers
	// transport backstop; per-call deadlines come from the request context
	timeout := conf.Gateway.UpstreamTimeout
	if conf.Gateway.ImageTimeout > timeout {
		timeout = conf.Gateway.ImageTimeout
	}
	hf := NewHuggingFace(p.HFURL, timeout)
	workers := NewWorkersAI(p.CloudflareURL, p.CloudflareAccountID, p.CloudflareToken, timeout)

	return Clients{
		Chat: ChatRouter{
			gateway.ProviderSambanova:   NewSambanova(p.SambanovaURL, timeout),
			gateway.ProviderHuggingFace: hf,
			gateway.ProviderGithub:      NewGithubModels(p.GithubURL, timeout),
		},
		Images:  &ImageRouter{Primary: hf, Fallback: workers},
		Workers: workers,
	}
}
