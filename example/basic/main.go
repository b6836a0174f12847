package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/siherrmann/loregraph"
	"github.com/siherrmann/loregraph/config"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

func ptr[T any](v T) *T { return &v }

var seed = &loregraph.Seed{
	Entities: []loregraph.SeedEntity{
		{Name: "Mara", Type: model.EntityTypeCharacter, Description: "A cartographer who maps the drowned city every night."},
		{Name: "Teodor", Type: model.EntityTypeCharacter, Description: "Keeper of the bell tower."},
		{Name: "Bell Tower", Type: model.EntityTypeLocation, Description: "The last dry place in the city."},
	},
	Relationships: []loregraph.SeedRelationship{
		{Source: "Teodor", Target: "Mara", Type: model.RelationshipMotivates, Description: "owes her his life"},
		{Source: "Mara", Target: "Bell Tower", Type: model.RelationshipCauses, Description: "keeps her maps there"},
		{Source: "Teodor", Target: "Teodor", Type: model.RelationshipStatus, Status: "deceased"},
	},
}

var sections = &model.DocumentSections{
	Key:     "story",
	Title:   ptr("The Drowned Atlas"),
	Premise: ptr("A cartographer maps a city that sinks a little every night."),
	Structure: &model.Structure{
		Act:      ptr("2"),
		Chapter:  ptr("14"),
		Beat:     ptr("midpoint"),
		Progress: ptr(0.55),
	},
	WorldRules: []string{
		"Maps drawn at night change by morning.",
		"No one may ring the bell twice.",
	},
	Guidance:       ptr("Keep the prose close third on Mara."),
	CharacterNotes: map[string]string{"Mara": "Counts steps when nervous."},
}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	for key, value := range map[string]string{
		"DB_HOST":     "localhost",
		"DB_PORT":     dbPort,
		"DB_DATABASE": "database",
		"DB_USERNAME": "user",
		"DB_PASSWORD": "password",
	} {
		os.Setenv(key, value)
	}

	// Postgres backend with the default MiniLM embedder and an HNSW index
	cfg := config.Default()
	cfg.Reindex.IndexType = "hnsw"

	g, err := loregraph.NewLoregraph(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create loregraph: %v", err)
	}
	defer g.Close()

	if _, _, err := g.ApplySeed(ctx, seed); err != nil {
		log.Fatalf("Failed to seed graph: %v", err)
	}
	if err := g.Sections.UpsertSections(ctx, sections); err != nil {
		log.Fatalf("Failed to store sections: %v", err)
	}

	result, err := g.Reindex(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to reindex: %v", err)
	}
	fmt.Printf("Reindexed %d entities (%d failed)\n", result.IndexedCount, result.FailedCount)

	// Resolve a query into the chat budget
	assembled, err := g.ResolveQuery(ctx, loregraph.ResolveRequest{Text: "Who is Mara?", Profile: "chat"})
	if err != nil {
		log.Fatalf("Failed to resolve query: %v", err)
	}
	fmt.Printf("\nIntent: %s (%.1f)\n\n%s\n", assembled.Query.Intent, assembled.Query.Confidence, assembled.Text)
	for _, entry := range assembled.Manifest.Entries {
		fmt.Printf("  %-16s %-10s %d tokens\n", entry.Category, entry.Status, entry.Tokens)
	}

	// Verify a generated line against the graph
	scope, err := g.ScopeFor(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to build scope: %v", err)
	}
	verdict, err := g.Verify(ctx, model.TierFast, "Teodor rang the bell as Mara climbed the stairs.", scope)
	if err != nil {
		log.Fatalf("Failed to verify: %v", err)
	}
	fmt.Printf("\nFAST passed: %v\n", verdict.Passed)
	for _, issue := range verdict.Issues {
		fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Check, issue.Message)
	}

	fmt.Println("\nBasic example completed successfully!")
}
