package classifier

import (
	"sort"
	"strings"

	"github.com/siherrmann/loregraph/model"
)

// Classifier maps a query and a known-entity snapshot to a ClassifiedQuery.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules   []Rule
	sources map[model.Intent][]model.SourceType
}

// NewClassifier returns a classifier with the default rules and source table
func NewClassifier() *Classifier {
	return NewClassifierWithRules(DefaultRules(), DefaultSources())
}

// NewClassifierWithRules returns a classifier over custom rules. A
// HybridFallbackRule is appended if the list does not end with one, so
// classification always produces a result.
func NewClassifierWithRules(rules []Rule, sources map[model.Intent][]model.SourceType) *Classifier {
	rules = append([]Rule(nil), rules...)
	if len(rules) == 0 {
		rules = append(rules, HybridFallbackRule{})
	} else if _, ok := rules[len(rules)-1].(HybridFallbackRule); !ok {
		rules = append(rules, HybridFallbackRule{})
	}
	if sources == nil {
		sources = DefaultSources()
	}
	return &Classifier{rules: rules, sources: sources}
}

// Classify never fails. knownEntities is the caller's snapshot of entity
// names; it is read, never retained.
func (c *Classifier) Classify(text string, knownEntities []string) model.ClassifiedQuery {
	entities := MatchEntities(text, knownEntities)

	intent, confidence := model.IntentHybrid, HybridFallbackConfidence
	for _, rule := range c.rules {
		if i, conf, ok := rule.match(text, entities); ok {
			intent, confidence = i, conf
			break
		}
	}

	sources := c.sources[intent]
	if intent == model.IntentHybrid || len(sources) == 0 {
		sources = model.AllSources
	}
	sources = append([]model.SourceType(nil), sources...)

	query := model.ClassifiedQuery{
		Text:       text,
		Intent:     intent,
		Entities:   entities,
		Keywords:   Keywords(text),
		Sources:    sources,
		Confidence: confidence,
	}
	query.SemanticSearch = query.HasSource(model.SourceGraph) && (len(entities) == 0 || intent == model.IntentHybrid)

	return query
}

// MatchEntities returns the known names found in text as case-insensitive
// substrings, de-duplicated and ordered by first occurrence. An occurrence
// inside the occurrence of a longer name ("Mara" in "Mara Vell") does not
// count. Names at the same offset are ordered longest first.
func MatchEntities(text string, knownEntities []string) []string {
	lower := strings.ToLower(text)

	type span struct {
		start, end int
	}
	type candidate struct {
		name  string
		key   string
		spans []span
	}
	var candidates []candidate
	seen := make(map[string]bool, len(knownEntities))
	for _, name := range knownEntities {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		var spans []span
		for from := 0; from < len(lower); {
			i := strings.Index(lower[from:], key)
			if i < 0 {
				break
			}
			spans = append(spans, span{start: from + i, end: from + i + len(key)})
			from += i + 1
		}
		if len(spans) > 0 {
			candidates = append(candidates, candidate{name: strings.TrimSpace(name), key: key, spans: spans})
		}
	}

	covered := func(c candidate, s span) bool {
		for _, other := range candidates {
			if len(other.key) <= len(c.key) {
				continue
			}
			for _, o := range other.spans {
				if o.start <= s.start && s.end <= o.end {
					return true
				}
			}
		}
		return false
	}

	type hit struct {
		name   string
		offset int
	}
	var hits []hit
	for _, c := range candidates {
		for _, s := range c.spans {
			if !covered(c, s) {
				hits = append(hits, hit{name: c.name, offset: s.start})
				break
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].offset != hits[j].offset {
			return hits[i].offset < hits[j].offset
		}
		if len(hits[i].name) != len(hits[j].name) {
			return len(hits[i].name) > len(hits[j].name)
		}
		return hits[i].name < hits[j].name
	})

	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}
