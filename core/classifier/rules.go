package classifier

import (
	"regexp"

	"github.com/siherrmann/loregraph/model"
)

// Confidence of each rule kind
const (
	PatternConfidence           = 0.9
	MultiEntityConfidence       = 0.7
	SingleEntityConfidence      = 0.6
	HybridFallbackConfidence    = 0.4
	minEntitiesForRelationships = 2
)

// Rule is one entry of the ordered dispatch list. Exactly one of the three
// kinds below implements it; the first rule that matches decides the intent.
type Rule interface {
	match(text string, entities []string) (model.Intent, float64, bool)
}

// PatternRule matches when any of its patterns matches the query text
type PatternRule struct {
	Intent   model.Intent
	Patterns []*regexp.Regexp
}

func (r PatternRule) match(text string, _ []string) (model.Intent, float64, bool) {
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return r.Intent, PatternConfidence, true
		}
	}
	return "", 0, false
}

// EntityFallbackRule classifies by the number of known entities named in the query
type EntityFallbackRule struct{}

func (EntityFallbackRule) match(_ string, entities []string) (model.Intent, float64, bool) {
	switch {
	case len(entities) >= minEntitiesForRelationships:
		return model.IntentRelationship, MultiEntityConfidence, true
	case len(entities) == 1:
		return model.IntentCharacterLookup, SingleEntityConfidence, true
	}
	return "", 0, false
}

// HybridFallbackRule always matches and asks every source
type HybridFallbackRule struct{}

func (HybridFallbackRule) match(string, []string) (model.Intent, float64, bool) {
	return model.IntentHybrid, HybridFallbackConfidence, true
}

func patterns(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return compiled
}

// DefaultRules returns the built-in rule list. Order matters: when two
// pattern rules both match, the one declared first wins.
func DefaultRules() []Rule {
	return []Rule{
		PatternRule{Intent: model.IntentContradictionCheck, Patterns: patterns(
			`\bcontradict\w*`,
			`\binconsisten\w*`,
			`\bcontinuity\s+(error|check|issue|problem)s?\b`,
			`\bplot\s+holes?\b`,
			`\b(does|do|did)\b.+\b(conflict|clash)\s+with\b`,
		)},
		PatternRule{Intent: model.IntentCharacterDeep, Patterns: patterns(
			`\bmotivations?\b`,
			`\bback-?story\b`,
			`\b(character|emotional)\s+arc\b`,
			`\bpsycholog\w*`,
			`\binner\s+(life|conflict|world)\b`,
			`\bdeep\s+dive\b`,
			`\bwhat\s+drives\b`,
			`\b(fears|desires|wounds)\b`,
		)},
		PatternRule{Intent: model.IntentRelationship, Patterns: patterns(
			`\brelationships?\b`,
			`\bbetween\s+\S+.*\s+and\s+\S+`,
			`\bfeels?\s+about\b`,
			`\b(rivalry|alliance|feud|friendship)\b`,
			`\bhow\s+did\s+\S+.*\s+meet\b`,
		)},
		PatternRule{Intent: model.IntentStructuralStatus, Patterns: patterns(
			`\b(story\s+)?beats?\b`,
			`\bact\s+(one|two|three|[1-3]|i{1,3})\b`,
			`\b(outline|pacing|midpoint|climax|structure)\b`,
			`\bwhere\s+are\s+we\b`,
			`\bhow\s+far\s+(along|into)\b`,
			`\bprogress\b`,
		)},
		PatternRule{Intent: model.IntentWorldRules, Patterns: patterns(
			`\b(world|magic)\s+(rules?|system)\b`,
			`\bworld-?building\b`,
			`\brules?\s+of\b`,
			`\b(lore|canon|physics)\b`,
			`\bhow\s+does\s+.+\s+work\b`,
			`\bis\s+it\s+possible\s+(to|for)\b`,
		)},
		PatternRule{Intent: model.IntentSceneContext, Patterns: patterns(
			`\b(this|current|next|previous|the)\s+scene\b`,
			`\bscene\s+(setup|context|goal)s?\b`,
			`\bwhat\s+happens\s+(next|now)\b`,
		)},
		PatternRule{Intent: model.IntentReferenceGuidance, Patterns: patterns(
			`\b(advice|guidance|tips?)\b`,
			`\bhow\s+(do|should|can)\s+i\b`,
			`\bbest\s+practices?\b`,
			`\b(craft|technique|style\s+guide)\b`,
			`\brecommend\w*`,
		)},
		PatternRule{Intent: model.IntentCharacterLookup, Patterns: patterns(
			`^\s*who\s+(is|was|are|were)\b`,
			`^\s*tell\s+me\s+about\b`,
			`^\s*(describe|remind\s+me\s+(of|about))\b`,
		)},
		EntityFallbackRule{},
		HybridFallbackRule{},
	}
}

// DefaultSources is the intent to retrieval fan-out table
func DefaultSources() map[model.Intent][]model.SourceType {
	return map[model.Intent][]model.SourceType{
		model.IntentCharacterLookup:    {model.SourceGraph, model.SourceStructuredDocs},
		model.IntentCharacterDeep:      {model.SourceGraph, model.SourceStructuredDocs, model.SourceReference},
		model.IntentRelationship:       {model.SourceGraph},
		model.IntentStructuralStatus:   {model.SourceStructuredDocs},
		model.IntentWorldRules:         {model.SourceStructuredDocs, model.SourceReference},
		model.IntentReferenceGuidance:  {model.SourceStructuredDocs, model.SourceReference},
		model.IntentSceneContext:       {model.SourceGraph, model.SourceStructuredDocs},
		model.IntentContradictionCheck: {model.SourceGraph, model.SourceStructuredDocs},
		model.IntentHybrid:             model.AllSources,
	}
}
