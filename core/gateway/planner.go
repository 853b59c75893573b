package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
)

const routerPrompt = `Router: Classify (PHYSICS/CHEMISTRY/MATH/BIOLOGY/GENERAL). Output JSON: {"agent": "...", "optimized_query": "..."}`

type plan struct {
	Agent          string `json:"agent"`
	OptimizedQuery string `json:"optimized_query"`
}

// Planner classifies a query into a subject area and rewrites it for retrieval.
// It is advisory: any failure yields AgentGeneral and the original query.
type Planner struct {
	chat      ChatModel
	maxTokens int
	logger    core.Logger
}

func NewPlanner(chat ChatModel, maxTokens int, logger core.Logger) *Planner {
	return &Planner{chat: chat, maxTokens: maxTokens, logger: logger}
}

// Plan uses the SambaNova router model when the caller is entitled to it, the chosen model otherwise.
func (p *Planner) Plan(ctx context.Context, query string, ent Entitlement) RoutingDecision {
	fallback := RoutingDecision{Agent: AgentGeneral, OptimizedQuery: query}

	model, cred := ent.Model, ent.Chat
	if c, ok := ent.CredentialFor(ProviderSambanova); ok {
		model, cred = LookupModel(DefaultModelKey), c
	}

	out, err := p.chat.Complete(ctx, ChatRequest{
		Model:       model,
		Credential:  cred,
		System:      routerPrompt,
		User:        query,
		MaxTokens:   p.maxTokens,
		Temperature: model.Provider.Temperature(),
		JSONMode:    true,
	})
	if err != nil {
		p.logger.Warn("planner call failed", errors.Wrap(err, "classifying query"), ent.Identity.Person())
		return fallback
	}

	var pl plan
	if err = json.Unmarshal([]byte(stripFences(out)), &pl); err != nil {
		p.logger.Debug("planner returned invalid JSON", errors.Wrap(err, "decoding plan"))
		return fallback
	}

	decision := RoutingDecision{Agent: ParseAgent(pl.Agent), OptimizedQuery: strings.TrimSpace(pl.OptimizedQuery)}
	if decision.OptimizedQuery == "" {
		decision.OptimizedQuery = query
	}
	return decision
}

// stripFences removes a markdown code fence some models wrap JSON output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
