package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/margdarshak/gateway/core"
)

const visionPrompt = "Extract all text and diagrams."

type RetrievalOptions struct {
	VaultThreshold float64
	VaultLimit     int
	WebResults     int
	WebRegion      string
	Timeout        time.Duration
}

// Retriever gathers grounding context. Every source is best-effort: a failing source contributes nothing.
type Retriever struct {
	embedder Embedder
	store    KnowledgeStore
	searcher WebSearcher
	vision   VisionModel
	opts     RetrievalOptions
	logger   core.Logger
}

func NewRetriever(embedder Embedder, store KnowledgeStore, searcher WebSearcher, vision VisionModel, opts RetrievalOptions, logger core.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		searcher: searcher,
		vision:   vision,
		opts:     opts,
		logger:   logger,
	}
}

func (r *Retriever) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// Describe runs the vision model over an attached image.
func (r *Retriever) Describe(ctx context.Context, image []byte) []Fragment {
	if len(image) == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	desc, err := r.vision.Describe(ctx, image, visionPrompt)
	if err != nil {
		r.logger.Warn("vision extraction failed", errors.Wrap(err, "describing image"))
		return nil
	}
	if desc = strings.TrimSpace(desc); desc == "" {
		return nil
	}
	return []Fragment{{Source: SourceVision, Text: desc}}
}

// Gather searches the vault and, for deep search, the web. Both run concurrently.
func (r *Retriever) Gather(ctx context.Context, query string, caller Identity, deepSearch bool) RetrievedContext {
	var rc RetrievedContext
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rc.Vault = r.searchVault(gctx, query, caller)
		return nil
	})
	if deepSearch {
		g.Go(func() error {
			rc.Web = r.searchWeb(gctx, query)
			return nil
		})
	}
	_ = g.Wait() // sources never fail the group
	return rc
}

func (r *Retriever) searchVault(ctx context.Context, query string, caller Identity) []Fragment {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("vault search skipped", errors.Wrap(err, "embedding query"))
		return nil
	}
	passages, err := r.store.Match(ctx, caller, embedding, r.opts.VaultThreshold, r.opts.VaultLimit)
	if err != nil {
		r.logger.Warn("vault search failed", errors.Wrap(err, "matching knowledge"), caller.Person())
		return nil
	}

	frags := make([]Fragment, 0, len(passages))
	for _, p := range passages {
		if text := strings.TrimSpace(p.Content); text != "" {
			frags = append(frags, Fragment{Source: SourceVault, Text: text})
		}
	}
	return frags
}

func (r *Retriever) searchWeb(ctx context.Context, query string) []Fragment {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	results, err := r.searcher.Search(ctx, query, r.opts.WebRegion, r.opts.WebResults)
	if err != nil {
		r.logger.Warn("web search failed", errors.Wrap(err, "searching web"))
		return nil
	}

	frags := make([]Fragment, 0, len(results))
	for _, res := range results {
		if len(frags) == r.opts.WebResults {
			break
		}
		if text := strings.TrimSpace(res.Snippet); text != "" {
			frags = append(frags, Fragment{Source: SourceWeb, Text: text})
		}
	}
	return frags
}
