package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph"
	"github.com/siherrmann/loregraph/config"
	"github.com/siherrmann/loregraph/core/assembler"
	"github.com/siherrmann/loregraph/model"
)

// Runs without external services: in-memory graph, heuristic token counts.
// The SLOW tier asks the configured LLM (ollama by default) and reports
// itself unavailable when no model answers.
func main() {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Graph.Backend = config.BackendMemory
	cfg.Embedding.Model = ""
	cfg.Verification.Semantic = true
	cfg.Budgets = map[string]model.ContextBudget{
		"tight": {HardMaxTokens: 60, RecommendedTokens: 40},
	}

	g, err := loregraph.NewLoregraph(ctx, cfg, loregraph.WithTokenizer(assembler.NewHeuristicTokenizer()))
	if err != nil {
		log.Fatalf("Failed to create loregraph: %v", err)
	}
	defer g.Close()

	_, _, err = g.ApplySeed(ctx, &loregraph.Seed{
		Entities: []loregraph.SeedEntity{
			{Name: "Mara", Type: model.EntityTypeCharacter, Description: "A cartographer who maps the drowned city every night and trusts no one who sleeps above the waterline."},
			{Name: "Teodor", Type: model.EntityTypeCharacter, Description: "Keeper of the bell tower, loyal to Mara since the first flood."},
			{Name: "The Guild", Type: model.EntityTypeFaction, Description: "Surveyors who sell forged maps."},
		},
		Relationships: []loregraph.SeedRelationship{
			{Source: "Teodor", Target: "Mara", Type: model.RelationshipMotivates, Description: "owes her his life"},
			{Source: "The Guild", Target: "Mara", Type: model.RelationshipHinders, Description: "buys up her copper plates"},
			{Source: "Mara", Target: "The Guild", Type: model.RelationshipContradicts, Description: "her maps expose their forgeries"},
		},
	})
	if err != nil {
		log.Fatalf("Failed to seed graph: %v", err)
	}

	// The same query against every budget profile
	query := "What is the relationship between Mara and Teodor?"
	for _, profile := range g.Profiles() {
		assembled, err := g.ResolveQuery(ctx, loregraph.ResolveRequest{Text: query, Profile: profile})
		if err != nil {
			log.Fatalf("Failed to resolve query: %v", err)
		}
		fmt.Printf("%-8s %-12s %4d tokens, included %v, omitted %v\n",
			profile, assembled.Query.Intent, assembled.Manifest.TotalTokens,
			assembled.Manifest.Included(), assembled.Manifest.Omitted())
	}

	// FAST now, MEDIUM in the background
	scope, err := g.ScopeFor(ctx, []string{"Mara"})
	if err != nil {
		log.Fatalf("Failed to build scope: %v", err)
	}
	current := 18
	scope.CurrentPosition = &current
	scope.Events = []model.EventRecord{{Type: "flood", Position: 4, Label: "first flood"}}
	scope.GapThresholds = map[string]int{"flood": 10}
	scope.Positions = []model.PositionMarker{{Label: "chapter 17", Value: 17}, {Label: "chapter 12", Value: 12}}

	text := "Mara sold the Guild a map while Teodor watched from the tower."
	requestID := uuid.NewString()
	fast, err := g.VerifyGeneration(ctx, requestID, text, scope)
	if err != nil {
		log.Fatalf("Failed to verify: %v", err)
	}
	printResult(fast)

	select {
	case async := <-g.Results():
		printResult(async.Result)
	case <-time.After(10 * time.Second):
		fmt.Println("MEDIUM result did not arrive")
	}

	// SLOW can be cancelled, it then returns no issues and is incomplete
	slowCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	slow, err := g.Verify(slowCtx, model.TierSlow, text, scope)
	if err != nil {
		log.Fatalf("Failed to verify: %v", err)
	}
	printResult(slow)
}

func printResult(result *model.VerificationResult) {
	fmt.Printf("\n%s passed=%v complete=%v (%s)\n", result.Tier, result.Passed, result.Complete, result.Duration)
	for _, issue := range result.Issues {
		fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Check, issue.Message)
	}
}
