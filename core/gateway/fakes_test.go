package gateway

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// counter counts calls; fakes are shared by concurrent retrieval goroutines.
type counter struct {
	mu    sync.Mutex
	calls int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeIdentity struct {
	counter
	users map[string]Identity // token -> identity
}

func (f *fakeIdentity) Resolve(_ context.Context, token string) (Identity, error) {
	f.inc()
	if ident, ok := f.users[token]; ok {
		return ident, nil
	}
	return Identity{}, errors.New("invalid JWT")
}

type fakeProfiles struct {
	counter
	tiers map[string]string // user id -> tier
	err   error
}

func (f *fakeProfiles) SubscriptionTier(_ context.Context, caller Identity) (string, error) {
	f.inc()
	if f.err != nil {
		return "", f.err
	}
	return f.tiers[caller.UserID], nil
}

type fakeKnowledge struct {
	counter
	passages []Passage
	err      error
	callers  []Identity
}

func (f *fakeKnowledge) Match(_ context.Context, caller Identity, _ []float32, _ float64, limit int) ([]Passage, error) {
	f.inc()
	f.mu.Lock()
	f.callers = append(f.callers, caller)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.passages) > limit {
		return f.passages[:limit], nil
	}
	return f.passages, nil
}

type fakeEmbedder struct {
	counter
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.inc()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeSearcher struct {
	counter
	results []SearchResult
	err     error
	region  string
}

func (f *fakeSearcher) Search(_ context.Context, _, region string, _ int) ([]SearchResult, error) {
	f.inc()
	f.mu.Lock()
	f.region = region
	f.mu.Unlock()
	return f.results, f.err
}

type fakeVision struct {
	counter
	desc string
	err  error
}

func (f *fakeVision) Describe(context.Context, []byte, string) (string, error) {
	f.inc()
	return f.desc, f.err
}

// fakeChat answers planner calls (JSONMode) with plan and answer calls with answer.
type fakeChat struct {
	counter
	plan      string
	planErr   error
	answer    string
	answerErr error
	requests  []ChatRequest
}

func (f *fakeChat) Complete(_ context.Context, req ChatRequest) (string, error) {
	f.inc()
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if req.JSONMode {
		return f.plan, f.planErr
	}
	return f.answer, f.answerErr
}

func (f *fakeChat) last() ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeImages struct {
	counter
	img     []byte
	err     error
	request ImageRequest
}

func (f *fakeImages) Generate(_ context.Context, req ImageRequest) ([]byte, error) {
	f.inc()
	f.request = req
	return f.img, f.err
}

type fakeAlerter struct {
	counter
	providers []Provider
}

func (f *fakeAlerter) CredentialRejected(p Provider) {
	f.inc()
	f.providers = append(f.providers, p)
}

const (
	tokenFree    = "token-free"
	tokenPremium = "token-premium"
	tokenElite   = "token-elite"
	tokenVariant = "token-variant"
)

type fixture struct {
	identity  *fakeIdentity
	profiles  *fakeProfiles
	knowledge *fakeKnowledge
	embedder  *fakeEmbedder
	searcher  *fakeSearcher
	vision    *fakeVision
	chat      *fakeChat
	images    *fakeImages
	alerter   *fakeAlerter
}

func newFixture() *fixture {
	return &fixture{
		identity: &fakeIdentity{users: map[string]Identity{
			tokenFree:    {UserID: "u-free", Role: "authenticated"},
			tokenPremium: {UserID: "u-premium", Role: "authenticated"},
			tokenElite:   {UserID: "u-elite", Role: "authenticated"},
			tokenVariant: {UserID: "u-variant", Role: "authenticated"},
		}},
		profiles: &fakeProfiles{tiers: map[string]string{
			"u-free":    "free",
			"u-premium": "Premium",
			"u-elite":   "premium+ai",
			"u-variant": "  Premium + AI ",
		}},
		knowledge: &fakeKnowledge{passages: []Passage{{Content: "F = ma"}, {Content: "Units of force: newton"}}},
		embedder:  &fakeEmbedder{},
		searcher:  &fakeSearcher{results: []SearchResult{{Snippet: "web one"}, {Snippet: "web two"}, {Snippet: "web three"}, {Snippet: "web four"}}},
		vision:    &fakeVision{desc: "a block on an incline"},
		chat:      &fakeChat{plan: `{"agent": "physics", "optimized_query": "newton second law"}`, answer: "F equals m a"},
		images:    &fakeImages{img: []byte{0x89, 'P', 'N', 'G'}},
		alerter:   &fakeAlerter{},
	}
}

func (f *fixture) options() Options {
	return Options{
		System:           SystemCredentials{Sambanova: "sys-sambanova", HuggingFace: "sys-hf", Github: ""},
		EliteTiers:       []string{"premium+ai"},
		TierAliases:      map[string]string{"extra_plus": "premium+ai", "premium_ai": "premium+ai", "premium_plus": "premium+ai", "premium + ai": "premium+ai"},
		VisualKeywords:   []string{"draw", "diagram", "image"},
		VaultThreshold:   0.25,
		VaultLimit:       6,
		WebResults:       3,
		WebRegion:        "in",
		MaxTokens:        2000,
		PlannerMaxTokens: 150,
		ImageSteps:       4,
		ImageStyle:       "scientific diagram, textbook style, white background",
	}
}

func (f *fixture) service() *Service {
	return NewService(Deps{
		Identity:  f.identity,
		Profiles:  f.profiles,
		Knowledge: f.knowledge,
		Embedder:  f.embedder,
		Searcher:  f.searcher,
		Vision:    f.vision,
		Chat:      f.chat,
		Images:    f.images,
		Alerter:   f.alerter,
		Logger:    nopLogger{},
	}, f.options())
}

// upstreamCalls counts every paid or rate-limited call made so far.
func (f *fixture) upstreamCalls() int {
	return f.chat.count() + f.images.count() + f.searcher.count() + f.embedder.count() + f.vision.count() + f.knowledge.count()
}

func chatRequest(query string) Request {
	return Request{Messages: []Message{{Role: "user", Content: query}}}
}
