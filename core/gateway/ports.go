package gateway

import "context"

type (
	// IdentityResolver exchanges a bearer session token for the identity it proves.
	IdentityResolver interface {
		Resolve(ctx context.Context, token string) (Identity, error)
	}

	// ProfileStore reads caller profiles. Lookups run as the caller, not as a service identity.
	ProfileStore interface {
		SubscriptionTier(ctx context.Context, caller Identity) (string, error)
	}

	// KnowledgeStore runs similarity searches over the vault.
	// A zero caller Identity searches anonymously.
	KnowledgeStore interface {
		Match(ctx context.Context, caller Identity, embedding []float32, threshold float64, limit int) ([]Passage, error)
	}

	Embedder interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}

	WebSearcher interface {
		Search(ctx context.Context, query, region string, limit int) ([]SearchResult, error)
	}

	VisionModel interface {
		Describe(ctx context.Context, image []byte, prompt string) (string, error)
	}

	ChatRequest struct {
		Model       Model
		Credential  Credential
		System      string
		User        string
		MaxTokens   int
		Temperature float64
		JSONMode    bool
	}

	ChatModel interface {
		Complete(ctx context.Context, req ChatRequest) (string, error)
	}

	ImageRequest struct {
		Prompt string
		Steps  int
		// Credential is the caller's image-model credential; zero means use the system image model.
		Credential Credential
	}

	ImageModel interface {
		Generate(ctx context.Context, req ImageRequest) ([]byte, error)
	}

	// CredentialAlerter is told when an upstream rejects a system-owned credential.
	CredentialAlerter interface {
		CredentialRejected(provider Provider)
	}
)
