package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/model"
)

// DefaultDecisionLimit bounds the decision log to its most recent entries
const DefaultDecisionLimit = 10

// RenderInput is everything the section renderers read
type RenderInput struct {
	Query     model.ClassifiedQuery
	Retrieval *model.RetrievalSet
	// Scene is the caller supplied scene or task scaffold. It takes
	// precedence over the scene section of the structured documents.
	Scene *string
}

// RenderFunc renders one category. An empty string means the category has
// nothing to contribute.
type RenderFunc func(in RenderInput) (string, error)

var categoryTitles = map[model.SectionCategory]string{
	model.SectionCharacterCore: "Characters",
	model.SectionScene:         "Scene",
	model.SectionRelationships: "Relationships",
	model.SectionStructure:     "Story Position",
	model.SectionWorldRules:    "World Rules",
	model.SectionDecisions:     "Decisions",
	model.SectionGuidance:      "Guidance",
}

// DefaultRenderers returns the built-in renderer of every category
func DefaultRenderers() map[model.SectionCategory]RenderFunc {
	return map[model.SectionCategory]RenderFunc{
		model.SectionCharacterCore: renderCharacterCore,
		model.SectionScene:         renderScene,
		model.SectionRelationships: renderRelationships,
		model.SectionStructure:     renderStructure,
		model.SectionWorldRules:    renderWorldRules,
		model.SectionDecisions:     renderDecisions,
		model.SectionGuidance:      renderGuidance,
	}
}

func heading(category model.SectionCategory) string {
	return "## " + categoryTitles[category] + "\n"
}

func (in RenderInput) graph() *model.GraphRetrieval {
	if in.Retrieval == nil {
		return nil
	}
	return in.Retrieval.Graph
}

func (in RenderInput) documents() *model.DocumentSections {
	if in.Retrieval == nil {
		return nil
	}
	return in.Retrieval.Documents
}

// matchedEntity finds the retrieved entity of a query name
func (in RenderInput) matchedEntity(name string) *model.Entity {
	g := in.graph()
	if g == nil {
		return nil
	}
	for _, e := range g.Matched {
		if e != nil && strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

// nodeName resolves an id against the network, falling back to the id
func nodeName(network *model.EgoNetwork, id uuid.UUID) string {
	if e := network.Entity(id); e != nil {
		return e.Name
	}
	return id.String()
}

// renderCharacterCore lists every queried entity with its description,
// current status and character notes. Queried names without any recorded
// facts are still listed.
func renderCharacterCore(in RenderInput) (string, error) {
	if len(in.Query.Entities) == 0 {
		return "", nil
	}

	var network *model.EgoNetwork
	if g := in.graph(); g != nil {
		network = g.Network
	}
	docs := in.documents()

	var b strings.Builder
	b.WriteString(heading(model.SectionCharacterCore))
	for _, name := range in.Query.Entities {
		entity := in.matchedEntity(name)
		if entity == nil {
			b.WriteString("### " + name + "\n")
		} else {
			if strings.TrimSpace(entity.Name) == "" {
				return "", fmt.Errorf("entity %s has no name", entity.ID)
			}
			b.WriteString(fmt.Sprintf("### %s (%s)\n", entity.Name, entity.Type))
			if entity.Description != "" {
				b.WriteString(entity.Description + "\n")
			}
			if network != nil {
				for _, rel := range network.Edges {
					if rel.Type == model.RelationshipStatus && rel.Active && rel.SourceID == entity.ID && rel.Status != "" {
						b.WriteString("Status: " + rel.Status + "\n")
					}
				}
			}
			name = entity.Name
		}
		if note, ok := docs.CharacterNote(name); ok {
			b.WriteString("Notes: " + note + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func renderScene(in RenderInput) (string, error) {
	scene := ""
	if in.Scene != nil {
		scene = strings.TrimSpace(*in.Scene)
	}
	if scene == "" && in.documents().HasScene() {
		scene = strings.TrimSpace(*in.documents().Scene)
	}
	if scene == "" {
		return "", nil
	}
	return heading(model.SectionScene) + scene, nil
}

// renderRelationships lists the active non-status edges touching a queried
// entity, followed by the semantic search hits in store order.
func renderRelationships(in RenderInput) (string, error) {
	g := in.graph()
	if g == nil {
		return "", nil
	}

	matched := make(map[string]bool, len(g.Matched))
	for _, e := range g.Matched {
		if e != nil {
			matched[e.ID.String()] = true
		}
	}

	var lines []string
	if g.Network != nil {
		for _, rel := range g.Network.Edges {
			if rel.Type == model.RelationshipStatus || !rel.Active {
				continue
			}
			if !matched[rel.SourceID.String()] && !matched[rel.TargetID.String()] {
				continue
			}
			line := fmt.Sprintf("- %s %s %s", nodeName(g.Network, rel.SourceID), rel.Type, nodeName(g.Network, rel.TargetID))
			if rel.Description != "" {
				line += ": " + rel.Description
			}
			lines = append(lines, line)
		}
	}

	var related []string
	for _, hit := range g.Hits {
		if hit == nil || hit.Entity == nil || matched[hit.Entity.ID.String()] {
			continue
		}
		line := fmt.Sprintf("- %s (%s, %s)", hit.Entity.Name, hit.Entity.Type, strconv.FormatFloat(hit.Similarity, 'f', 2, 64))
		if hit.Entity.Description != "" {
			line += ": " + hit.Entity.Description
		}
		related = append(related, line)
	}

	if len(lines) == 0 && len(related) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(heading(model.SectionRelationships))
	b.WriteString(strings.Join(lines, "\n"))
	if len(related) > 0 {
		if len(lines) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Related:\n" + strings.Join(related, "\n"))
	}
	return b.String(), nil
}

func renderStructure(in RenderInput) (string, error) {
	docs := in.documents()
	if docs == nil {
		return "", nil
	}

	var lines []string
	if docs.Title != nil && *docs.Title != "" {
		lines = append(lines, "Title: "+*docs.Title)
	}
	if docs.HasPremise() {
		lines = append(lines, "Premise: "+*docs.Premise)
	}
	if docs.HasStructure() {
		var parts []string
		s := docs.Structure
		if s.Act != nil {
			parts = append(parts, "Act "+*s.Act)
		}
		if s.Chapter != nil {
			parts = append(parts, "Chapter "+*s.Chapter)
		}
		if s.Beat != nil {
			parts = append(parts, "Beat: "+*s.Beat)
		}
		if s.Progress != nil {
			parts = append(parts, fmt.Sprintf("Progress: %d%%", int(*s.Progress*100+0.5)))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}

	if len(lines) == 0 {
		return "", nil
	}
	return heading(model.SectionStructure) + strings.Join(lines, "\n"), nil
}

// renderWorldRules keeps the rules mentioning a query keyword. Without
// keywords, or for WORLD_RULES queries where nothing matched, all rules are kept.
func renderWorldRules(in RenderInput) (string, error) {
	docs := in.documents()
	if !docs.HasWorldRules() {
		return "", nil
	}

	rules := relevantRules(docs.WorldRules, in.Query.Keywords)
	if len(rules) == 0 && (len(in.Query.Keywords) == 0 || in.Query.Intent == model.IntentWorldRules) {
		rules = docs.WorldRules
	}
	if len(rules) == 0 {
		return "", nil
	}
	return heading(model.SectionWorldRules) + bulletList(rules), nil
}

func relevantRules(rules []string, keywords []string) []string {
	var relevant []string
	for _, rule := range rules {
		lowered := strings.ToLower(rule)
		for _, keyword := range keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				relevant = append(relevant, rule)
				break
			}
		}
	}
	return relevant
}

func renderDecisions(in RenderInput) (string, error) {
	docs := in.documents()
	if !docs.HasDecisions() {
		return "", nil
	}
	decisions := docs.Decisions
	if len(decisions) > DefaultDecisionLimit {
		decisions = decisions[len(decisions)-DefaultDecisionLimit:]
	}
	return heading(model.SectionDecisions) + bulletList(decisions), nil
}

func renderGuidance(in RenderInput) (string, error) {
	var parts []string
	if docs := in.documents(); docs.HasGuidance() {
		parts = append(parts, strings.TrimSpace(*docs.Guidance))
	}
	if in.Retrieval != nil && in.Retrieval.Reference != nil && *in.Retrieval.Reference != "" {
		parts = append(parts, "Reference: "+*in.Retrieval.Reference)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return heading(model.SectionGuidance) + strings.Join(parts, "\n"), nil
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, "- "+item)
		}
	}
	return strings.Join(lines, "\n")
}
