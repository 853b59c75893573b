package gateway

import "github.com/margdarshak/gateway/core"

type Tier string

const (
	TierFree      Tier = "free"
	TierPremium   Tier = "premium"
	TierPremiumAI Tier = "premium+ai"
)

// TierTable normalizes stored tier names through an alias table and knows which tiers are elevated.
type TierTable struct {
	aliases  map[string]Tier
	elevated map[Tier]bool
}

// NewTierTable builds a table from the elevated tier names and an alias -> canonical name map.
// Names are compared case-insensitively after trimming whitespace.
func NewTierTable(elevated []string, aliases map[string]string) *TierTable {
	t := &TierTable{
		aliases:  make(map[string]Tier, len(aliases)),
		elevated: make(map[Tier]bool, len(elevated)),
	}
	for alias, canonical := range aliases {
		t.aliases[core.CleanString(alias, true /* lower */)] = Tier(core.CleanString(canonical, true /* lower */))
	}
	for _, name := range elevated {
		t.elevated[t.Normalize(name)] = true
	}
	return t
}

// Normalize maps a raw stored tier onto its canonical name. Empty means TierFree.
func (t *TierTable) Normalize(raw string) Tier {
	name := core.CleanString(raw, true /* lower */)
	if name == "" {
		return TierFree
	}
	if canonical, ok := t.aliases[name]; ok {
		return canonical
	}
	return Tier(name)
}

func (t *TierTable) IsElevated(tier Tier) bool {
	return t.elevated[t.Normalize(string(tier))]
}
