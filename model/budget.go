package model

import (
	"fmt"
	"sort"
)

// ContextBudget is a named token budget of a target consumer.
// RecommendedTokens is the soft target, HardMaxTokens is never exceeded.
type ContextBudget struct {
	Profile           string `json:"profile" toml:"-"`
	HardMaxTokens     int    `json:"hard_max_tokens" toml:"hard_max_tokens"`
	RecommendedTokens int    `json:"recommended_tokens" toml:"recommended_tokens"`
}

// Validate checks the budget is usable for assembly
func (b ContextBudget) Validate() error {
	if b.HardMaxTokens <= 0 {
		return fmt.Errorf("budget %q: hard_max_tokens must be positive", b.Profile)
	}
	if b.RecommendedTokens < 0 {
		return fmt.Errorf("budget %q: recommended_tokens must not be negative", b.Profile)
	}
	return nil
}

// SoftLimit is the limit non-core sections are allocated against
func (b ContextBudget) SoftLimit() int {
	return min(b.RecommendedTokens, b.HardMaxTokens)
}

// BudgetProfiles maps profile names to budgets
type BudgetProfiles map[string]ContextBudget

// DefaultBudgetProfiles returns the built-in budget profiles
func DefaultBudgetProfiles() BudgetProfiles {
	return BudgetProfiles{
		"chat":     {Profile: "chat", HardMaxTokens: 2000, RecommendedTokens: 1200},
		"draft":    {Profile: "draft", HardMaxTokens: 6000, RecommendedTokens: 4000},
		"outline":  {Profile: "outline", HardMaxTokens: 3000, RecommendedTokens: 1800},
		"analysis": {Profile: "analysis", HardMaxTokens: 12000, RecommendedTokens: 8000},
	}
}

// Lookup returns the budget of a profile with its Profile field set
func (p BudgetProfiles) Lookup(profile string) (ContextBudget, error) {
	budget, ok := p[profile]
	if !ok {
		return ContextBudget{}, fmt.Errorf("unknown budget profile %q (known: %v)", profile, p.Names())
	}
	budget.Profile = profile
	return budget, nil
}

// Names returns the sorted profile names
func (p BudgetProfiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
