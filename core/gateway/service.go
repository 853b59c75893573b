package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
)

type (
	Deps struct {
		Identity  IdentityResolver
		Profiles  ProfileStore
		Knowledge KnowledgeStore
		Embedder  Embedder
		Searcher  WebSearcher
		Vision    VisionModel
		Chat      ChatModel
		Images    ImageModel
		Alerter   CredentialAlerter // optional
		Logger    core.Logger
	}

	Options struct {
		System           SystemCredentials
		EliteTiers       []string
		TierAliases      map[string]string
		VisualKeywords   []string
		VaultThreshold   float64
		VaultLimit       int
		WebResults       int
		WebRegion        string
		MaxTokens        int
		PlannerMaxTokens int
		ImageSteps       int
		ImageStyle       string
		UpstreamTimeout  time.Duration
		ImageTimeout     time.Duration
	}

	// Service is the AI request gateway: entitlement, routing, retrieval and generation for one chat turn.
	// It holds no per-caller state; a single Service serves concurrent requests.
	Service struct {
		policy      *Policy
		gatekeeper  *Gatekeeper
		planner     *Planner
		retriever   *Retriever
		illustrator *Illustrator
		executor    *Executor
		alerter     CredentialAlerter
		logger      core.Logger
		opts        Options
	}
)

func NewService(deps Deps, opts Options) *Service {
	return &Service{
		policy:     NewPolicy(opts.VisualKeywords),
		gatekeeper: NewGatekeeper(deps.Identity, deps.Profiles, NewTierTable(opts.EliteTiers, opts.TierAliases), opts.System, opts.UpstreamTimeout, deps.Logger),
		planner:    NewPlanner(deps.Chat, opts.PlannerMaxTokens, deps.Logger),
		retriever: NewRetriever(deps.Embedder, deps.Knowledge, deps.Searcher, deps.Vision, RetrievalOptions{
			VaultThreshold: opts.VaultThreshold,
			VaultLimit:     opts.VaultLimit,
			WebResults:     opts.WebResults,
			WebRegion:      opts.WebRegion,
			Timeout:        opts.UpstreamTimeout,
		}, deps.Logger),
		illustrator: NewIllustrator(deps.Images, opts.ImageStyle, opts.ImageSteps, deps.Logger),
		executor:    NewExecutor(deps.Chat, opts.MaxTokens),
		alerter:     deps.Alerter,
		logger:      deps.Logger,
		opts:        opts,
	}
}

// NewOptions reads the gateway tuning and the system credentials from conf.
func NewOptions(conf *core.Config) Options {
	g := conf.Gateway
	return Options{
		System: SystemCredentials{
			Sambanova:   conf.Providers.SambanovaKey,
			HuggingFace: conf.Providers.HFToken,
			Github:      conf.Providers.GithubToken,
		},
		EliteTiers:       g.EliteTiers,
		TierAliases:      g.TierAliases,
		VisualKeywords:   g.VisualKeywords,
		VaultThreshold:   g.VaultThreshold,
		VaultLimit:       g.VaultLimit,
		WebResults:       g.WebResults,
		WebRegion:        g.WebRegion,
		MaxTokens:        g.MaxTokens,
		PlannerMaxTokens: g.PlannerMaxTokens,
		ImageSteps:       g.ImageSteps,
		ImageStyle:       g.ImageStyle,
		UpstreamTimeout:  g.UpstreamTimeout,
		ImageTimeout:     g.ImageTimeout,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Handle runs one request through the pipeline:
// entitlement, then either image generation or planning, vision, retrieval and synthesis.
func (s *Service) Handle(ctx context.Context, req Request) Result {
	caps := s.policy.Evaluate(req)
	model := LookupModel(req.Model)

	ent, denied := s.gatekeeper.Resolve(ctx, req, caps, model)
	if denied != nil {
		return *denied
	}

	query := req.Query()
	if caps.ImageBranch() {
		ictx, cancel := withTimeout(ctx, s.opts.ImageTimeout)
		defer cancel()
		return s.illustrator.Draw(ictx, query, ent)
	}

	pctx, cancel := withTimeout(ctx, s.opts.UpstreamTimeout)
	decision := s.planner.Plan(pctx, query, ent)
	cancel()

	rc := RetrievedContext{Vision: s.retriever.Describe(ctx, req.Image)}
	gathered := s.retriever.Gather(ctx, decision.OptimizedQuery, ent.Identity, caps.DeepSearch)
	rc.Vault, rc.Web = gathered.Vault, gathered.Web

	actx, cancel := withTimeout(ctx, s.opts.UpstreamTimeout)
	defer cancel()
	answer, err := s.executor.Answer(actx, decision, rc, ent)
	if err != nil {
		failure := Classify(err)
		s.logger.Error("answer synthesis failed", errors.Wrapf(err, "completing with %s", ent.Chat), ent.Identity.Person())
		if failure.Kind == FailureInvalidCredential && ent.Chat.Source == CredentialSystem && s.alerter != nil {
			s.alerter.CredentialRejected(ent.Chat.Provider)
		}
		return Failed(failure, decision.Agent)
	}
	return OK(answer, "", decision.Agent)
}
