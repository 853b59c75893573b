package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierTable(t *testing.T) {
	tiers := NewTierTable([]string{"Premium+AI"}, map[string]string{
		"extra_plus":   "premium+ai",
		"premium_ai":   "premium+ai",
		"premium_plus": "premium+ai",
		"premium + ai": "premium+ai",
	})

	tests := []struct {
		raw          string
		wantTier     Tier
		wantElevated bool
	}{
		{raw: "", wantTier: TierFree},
		{raw: "free", wantTier: TierFree},
		{raw: "  Premium ", wantTier: TierPremium},
		{raw: "premium+ai", wantTier: TierPremiumAI, wantElevated: true},
		{raw: "PREMIUM+AI", wantTier: TierPremiumAI, wantElevated: true},
		{raw: "extra_plus", wantTier: TierPremiumAI, wantElevated: true},
		{raw: "premium_ai", wantTier: TierPremiumAI, wantElevated: true},
		{raw: "Premium_Plus", wantTier: TierPremiumAI, wantElevated: true},
		{raw: " premium + ai ", wantTier: TierPremiumAI, wantElevated: true},
		{raw: "premium_elite", wantTier: "premium_elite"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := tiers.Normalize(tt.raw)
			if got != tt.wantTier {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.wantTier)
			}
			if el := tiers.IsElevated(got); el != tt.wantElevated {
				t.Errorf("IsElevated(%q) = %v, want %v", got, el, tt.wantElevated)
			}
		})
	}
}

func TestGatekeeper_Resolve(t *testing.T) {
	sambanova := LookupModel("")
	github := LookupModel("github-gpt4o")

	tests := []struct {
		name       string
		req        Request
		model      Model
		wantDenial Denial
		wantFail   FailureKind
		wantFailed bool
		wantSource CredentialSource
		wantKey    string
	}{
		{name: "no key, no session", req: Request{}, wantDenial: DenialAuthRequired},
		{name: "no key, no session, deepsearch", req: Request{Mode: "deepsearch"}, wantDenial: DenialAuthRequired},
		{name: "byok, default mode", req: Request{UserAPIKey: "user-key"}, wantSource: CredentialCaller, wantKey: "user-key"},
		{name: "byok, deepsearch, no session", req: Request{UserAPIKey: "user-key", Mode: "deepsearch"}, wantDenial: DenialUpgradeRequired},
		{name: "byok, imagegen, free session", req: Request{UserAPIKey: "user-key", Mode: "imagegen", SessionToken: tokenFree}, wantDenial: DenialUpgradeRequired},
		{name: "byok, attached image, elite", req: Request{UserAPIKey: "user-key", Image: []byte{1}, SessionToken: tokenElite}, wantSource: CredentialCaller, wantKey: "user-key"},
		{name: "free, default mode", req: Request{SessionToken: tokenFree}, wantDenial: DenialKeyRequired},
		{name: "premium, default mode", req: Request{SessionToken: tokenPremium}, wantDenial: DenialKeyRequired},
		{name: "premium, deepsearch", req: Request{SessionToken: tokenPremium, Mode: "deepsearch"}, wantDenial: DenialUpgradeRequired},
		{name: "premium, deepresearch alias", req: Request{SessionToken: tokenPremium, Mode: "DeepResearch"}, wantDenial: DenialUpgradeRequired},
		{name: "invalid session", req: Request{SessionToken: "garbage"}, wantDenial: DenialKeyRequired},
		{name: "elite, default mode", req: Request{SessionToken: tokenElite}, wantSource: CredentialSystem, wantKey: "sys-sambanova"},
		{name: "elite variant spelling, deepsearch", req: Request{SessionToken: tokenVariant, Mode: "deepsearch"}, wantSource: CredentialSystem, wantKey: "sys-sambanova"},
		{name: "elite, unconfigured provider", req: Request{SessionToken: tokenElite}, model: github, wantFailed: true, wantFail: FailureMisconfigured},
		{name: "byok, unconfigured provider", req: Request{UserAPIKey: "user-key"}, model: github, wantSource: CredentialCaller, wantKey: "user-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			opts := f.options()
			gk := NewGatekeeper(f.identity, f.profiles, NewTierTable(opts.EliteTiers, opts.TierAliases), opts.System, 0, nopLogger{})
			model := tt.model
			if model.Key == "" {
				model = sambanova
			}
			tt.req.Messages = []Message{{Role: "user", Content: "hi"}}

			ent, res := gk.Resolve(context.Background(), tt.req, NewPolicy(nil).Evaluate(tt.req), model)
			switch {
			case tt.wantDenial != "":
				require.NotNil(t, res)
				assert.Equal(t, KindDenied, res.Kind)
				assert.Equal(t, tt.wantDenial, res.Denial)
				assert.Equal(t, string(tt.wantDenial), res.Text())
			case tt.wantFailed:
				require.NotNil(t, res)
				assert.Equal(t, KindFailed, res.Kind)
				assert.Equal(t, tt.wantFail, res.Failure.Kind)
			default:
				require.Nil(t, res)
				assert.Equal(t, tt.wantSource, ent.Chat.Source)
				assert.Equal(t, tt.wantKey, ent.Chat.Key)
				assert.Equal(t, model.Provider, ent.Chat.Provider)
			}
		})
	}
}

func TestGatekeeper_ResolveMakesNoUpstreamCalls(t *testing.T) {
	f := newFixture()
	svc := f.service()

	for _, req := range []Request{
		{Mode: "deepsearch", SessionToken: tokenPremium},
		{Mode: "imagegen", SessionToken: tokenFree},
		{SessionToken: tokenFree},
		{},
	} {
		req.Messages = []Message{{Role: "user", Content: "draw me a diagram"}}
		res := svc.Handle(context.Background(), req)
		assert.NotEqual(t, KindOK, res.Kind)
	}
	assert.Zero(t, f.upstreamCalls(), "denied requests must not reach any model or search upstream")
}

func TestGatekeeper_UpgradeReason(t *testing.T) {
	f := newFixture()
	req := chatRequest("latest news on exoplanets")
	req.Mode = "deepsearch"
	req.SessionToken = tokenPremium

	res := f.service().Handle(context.Background(), req)

	assert.Equal(t, "UPGRADE_TO_EXTRA", res.Text())
	assert.Equal(t, "Your detected tier is 'premium'. Mode 'deepsearch' requires Premium+AI.", res.Reason)
}

func TestGatekeeper_Idempotent(t *testing.T) {
	f := newFixture()
	opts := f.options()
	gk := NewGatekeeper(f.identity, f.profiles, NewTierTable(opts.EliteTiers, opts.TierAliases), opts.System, 0, nopLogger{})

	for _, token := range []string{tokenFree, tokenPremium, tokenElite, tokenVariant} {
		req := chatRequest("hi")
		req.SessionToken = token
		caps := NewPolicy(nil).Evaluate(req)

		first, firstRes := gk.Resolve(context.Background(), req, caps, LookupModel(""))
		for i := 0; i < 3; i++ {
			again, againRes := gk.Resolve(context.Background(), req, caps, LookupModel(""))
			assert.Equal(t, first.Tier, again.Tier, token)
			assert.Equal(t, first.Chat, again.Chat, token)
			assert.Equal(t, firstRes, againRes, token)
		}
	}
}

func TestGatekeeper_ProfileErrorDegradesToFree(t *testing.T) {
	f := newFixture()
	f.profiles.err = errors.New("connection refused")
	req := chatRequest("hi")
	req.SessionToken = tokenElite

	res := f.service().Handle(context.Background(), req)

	assert.Equal(t, "KEY_REQUIRED", res.Text())
}

// stalledProfiles never answers on its own; it returns only when ctx is done.
type stalledProfiles struct{ counter }

func (s *stalledProfiles) SubscriptionTier(ctx context.Context, _ Identity) (string, error) {
	s.inc()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Second):
		return "premium+ai", nil
	}
}

// stalledIdentity behaves the same way for session verification.
type stalledIdentity struct{ counter }

func (s *stalledIdentity) Resolve(ctx context.Context, _ string) (Identity, error) {
	s.inc()
	select {
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return Identity{UserID: "u-elite", Role: "authenticated"}, nil
	}
}

func TestGatekeeper_StalledLookupsAreBounded(t *testing.T) {
	tests := map[string]struct {
		stallIdentity bool
		caps          Capabilities
		want          string
	}{
		"profile store hangs":       {want: "KEY_REQUIRED"},
		"identity provider hangs":   {stallIdentity: true, want: "KEY_REQUIRED"},
		"profile hangs on advanced": {caps: Capabilities{Mode: ModeDeepSearch, DeepSearch: true}, want: "UPGRADE_TO_EXTRA"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			opts := f.options()
			var identity IdentityResolver = f.identity
			if tt.stallIdentity {
				identity = &stalledIdentity{}
			}
			profiles := &stalledProfiles{}
			gk := NewGatekeeper(identity, profiles, NewTierTable(opts.EliteTiers, opts.TierAliases), opts.System, 50*time.Millisecond, nopLogger{})

			req := chatRequest("hi")
			req.SessionToken = tokenElite

			start := time.Now()
			ent, res := gk.Resolve(context.Background(), req, tt.caps, LookupModel(""))
			elapsed := time.Since(start)

			assert.Less(t, elapsed, time.Second)
			assert.Equal(t, TierFree, ent.Tier)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, res.Text())
		})
	}
}

func TestService_StalledProfileStoreIsBounded(t *testing.T) {
	f := newFixture()
	opts := f.options()
	opts.UpstreamTimeout = 50 * time.Millisecond
	svc := NewService(Deps{
		Identity:  f.identity,
		Profiles:  &stalledProfiles{},
		Knowledge: f.knowledge,
		Embedder:  f.embedder,
		Searcher:  f.searcher,
		Vision:    f.vision,
		Chat:      f.chat,
		Images:    f.images,
		Alerter:   f.alerter,
		Logger:    nopLogger{},
	}, opts)
	req := chatRequest("hi")
	req.SessionToken = tokenElite

	start := time.Now()
	res := svc.Handle(context.Background(), req)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "KEY_REQUIRED", res.Text())
	assert.Zero(t, f.chat.count())
}

func TestGatekeeper_BYOKSkipsProfileLookup(t *testing.T) {
	f := newFixture()
	req := chatRequest("hi")
	req.UserAPIKey = "user-key"
	req.SessionToken = tokenFree

	res := f.service().Handle(context.Background(), req)

	assert.Equal(t, KindOK, res.Kind)
	assert.Zero(t, f.profiles.count())
	assert.Equal(t, 1, f.identity.count(), "identity is still resolved so the vault search runs as the caller")
}

func TestEntitlement_CredentialFor(t *testing.T) {
	sys := SystemCredentials{Sambanova: "s", HuggingFace: "h"}

	byok := Entitlement{callerKey: "mine", system: sys}
	c, ok := byok.CredentialFor(ProviderGithub)
	assert.True(t, ok)
	assert.Equal(t, Credential{Provider: ProviderGithub, Key: "mine", Source: CredentialCaller}, c)

	elite := Entitlement{Elevated: true, system: sys}
	c, ok = elite.CredentialFor(ProviderHuggingFace)
	assert.True(t, ok)
	assert.Equal(t, CredentialSystem, c.Source)
	_, ok = elite.CredentialFor(ProviderGithub)
	assert.False(t, ok)

	free := Entitlement{system: sys}
	_, ok = free.CredentialFor(ProviderSambanova)
	assert.False(t, ok)
}

func TestCredential_StringHidesKey(t *testing.T) {
	c := Credential{Provider: ProviderSambanova, Key: "sk-very-secret", Source: CredentialSystem}
	for _, s := range []string{c.String(), c.GoString()} {
		assert.NotContains(t, s, "sk-very-secret")
		assert.Contains(t, s, "sambanova/system/")
	}
}
