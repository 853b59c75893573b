package gateway

import (
	"context"
	"strings"
)

const formattingInstructions = `
- Visuals: Use [Image of X] ONLY if contextually useful.
- LaTeX: Use $...$ for inline, $$...$$ for block math.
- Citation: Cite [Vault] if used.
`

// Executor writes the final answer from the routing decision and the retrieved context.
type Executor struct {
	chat      ChatModel
	maxTokens int
}

func NewExecutor(chat ChatModel, maxTokens int) *Executor {
	return &Executor{chat: chat, maxTokens: maxTokens}
}

// BuildPrompt assembles the system prompt for the answer call.
func BuildPrompt(decision RoutingDecision, rc RetrievedContext) string {
	var b strings.Builder
	b.WriteString("ACT AS: " + string(decision.Agent) + " AGENT.\n")
	b.WriteString(formattingInstructions)
	b.WriteString("\nCONTEXT:\n")
	b.WriteString(rc.VaultText() + "\n")
	b.WriteString(rc.WebText() + "\n")
	b.WriteString(rc.VisionText() + "\n")
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString(`Answer "` + decision.OptimizedQuery + `".`)
	return b.String()
}

func (ex *Executor) Answer(ctx context.Context, decision RoutingDecision, rc RetrievedContext, ent Entitlement) (string, error) {
	return ex.chat.Complete(ctx, ChatRequest{
		Model:       ent.Model,
		Credential:  ent.Chat,
		System:      BuildPrompt(decision, rc),
		User:        decision.OptimizedQuery,
		MaxTokens:   ex.maxTokens,
		Temperature: ent.Model.Provider.Temperature(),
	})
}
