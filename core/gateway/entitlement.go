package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
)

// Entitlement is the resolved authorization state of one request. It is an immutable value:
// every later stage gets its upstream credential from here and from nowhere else.
type Entitlement struct {
	Tier          Tier
	Elevated      bool
	BYOK          bool
	Authenticated bool
	Identity      Identity
	Model         Model
	Chat          Credential

	callerKey string
	system    SystemCredentials
}

// CredentialFor resolves the credential to use against provider p.
// The caller's own key wins; otherwise only elevated callers get the system key.
func (e Entitlement) CredentialFor(p Provider) (Credential, bool) {
	if e.callerKey != "" {
		return Credential{Provider: p, Key: e.callerKey, Source: CredentialCaller}, true
	}
	if !e.Elevated {
		return Credential{}, false
	}
	if key := e.system.For(p); key != "" {
		return Credential{Provider: p, Key: key, Source: CredentialSystem}, true
	}
	return Credential{}, false
}

// Gatekeeper decides whether a request may proceed, and with which credential.
type Gatekeeper struct {
	identity IdentityResolver
	profiles ProfileStore
	tiers    *TierTable
	system   SystemCredentials
	timeout  time.Duration
	logger   core.Logger
}

// NewGatekeeper bounds each identity and profile lookup by timeout; zero leaves them unbounded.
func NewGatekeeper(identity IdentityResolver, profiles ProfileStore, tiers *TierTable, system SystemCredentials, timeout time.Duration, logger core.Logger) *Gatekeeper {
	return &Gatekeeper{
		identity: identity,
		profiles: profiles,
		tiers:    tiers,
		system:   system,
		timeout:  timeout,
		logger:   logger,
	}
}

func (g *Gatekeeper) resolveIdentity(ctx context.Context, token string) (Identity, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	return g.identity.Resolve(ctx, token)
}

func (g *Gatekeeper) subscriptionTier(ctx context.Context, caller Identity) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	return g.profiles.SubscriptionTier(ctx, caller)
}

// Resolve returns the caller's entitlement, or a terminal Result when the request must stop here.
// It never calls a model or search upstream.
func (g *Gatekeeper) Resolve(ctx context.Context, req Request, caps Capabilities, model Model) (Entitlement, *Result) {
	ent := Entitlement{
		Tier:      TierFree,
		BYOK:      req.UserAPIKey != "",
		Model:     model,
		callerKey: req.UserAPIKey,
		system:    g.system,
	}

	if req.SessionToken != "" {
		// the identity is also needed to search the vault as the caller, so resolve it even for BYOK
		if ident, err := g.resolveIdentity(ctx, req.SessionToken); err != nil {
			g.logger.Warn("session could not be verified; continuing as free tier", errors.Wrap(err, "resolving identity"))
		} else {
			ent.Identity = ident
			ent.Authenticated = true
		}
	} else if !ent.BYOK {
		return ent, result(Denied(DenialAuthRequired, ""))
	}

	if (!ent.BYOK || caps.Advanced()) && ent.Authenticated {
		raw, err := g.subscriptionTier(ctx, ent.Identity)
		if err != nil {
			g.logger.Warn("profile lookup failed; continuing as free tier", errors.Wrap(err, "fetching subscription tier"), ent.Identity.Person())
		} else {
			ent.Tier = g.tiers.Normalize(raw)
		}
	}
	ent.Elevated = g.tiers.IsElevated(ent.Tier)

	if caps.Advanced() && !ent.Elevated {
		reason := fmt.Sprintf("Your detected tier is '%s'. Mode '%s' requires Premium+AI.", ent.Tier, caps.Mode)
		return ent, result(Denied(DenialUpgradeRequired, reason))
	}

	chat, ok := ent.CredentialFor(model.Provider)
	if !ok {
		if !ent.Elevated {
			return ent, result(Denied(DenialKeyRequired, ""))
		}
		// elevated, but the operator has not configured a key for this provider
		g.logger.Error(fmt.Sprintf("no system credential configured for provider %q", model.Provider), ent.Identity.Person())
		return ent, result(Failed(Failure{Kind: FailureMisconfigured, Provider: model.Provider}, AgentGeneral))
	}
	ent.Chat = chat
	return ent, nil
}

func result(r Result) *Result { return &r }
