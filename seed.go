package loregraph

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
	"gopkg.in/yaml.v3"
)

// Seed is a small graph described in YAML, used to fill a fresh backend
type Seed struct {
	Entities      []SeedEntity       `yaml:"entities"`
	Relationships []SeedRelationship `yaml:"relationships"`
}

type SeedEntity struct {
	Name        string           `yaml:"name"`
	Type        model.EntityType `yaml:"type"`
	Description string           `yaml:"description"`
}

// SeedRelationship references its endpoints by entity name
type SeedRelationship struct {
	Source      string                 `yaml:"source"`
	Target      string                 `yaml:"target"`
	Type        model.RelationshipType `yaml:"type"`
	Description string                 `yaml:"description"`
	Status      string                 `yaml:"status"`
	Weight      float64                `yaml:"weight"`
	// Active defaults to true
	Active *bool `yaml:"active"`
}

// LoadSeed reads a seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read seed", err)
	}
	seed := &Seed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, helper.NewError("parse seed", err)
	}
	return seed, nil
}

type graphWriter interface {
	InsertEntity(ctx context.Context, entity *model.Entity) error
	InsertRelationship(ctx context.Context, relationship *model.Relationship) error
}

type memoryWriter struct {
	g *Loregraph
}

func (w memoryWriter) InsertEntity(ctx context.Context, entity *model.Entity) error {
	w.g.Memory.AddEntity(entity)
	return nil
}

func (w memoryWriter) InsertRelationship(ctx context.Context, relationship *model.Relationship) error {
	return w.g.Memory.AddRelationship(relationship)
}

type postgresWriter struct {
	g *Loregraph
}

func (w postgresWriter) InsertEntity(ctx context.Context, entity *model.Entity) error {
	return w.g.Entities.InsertEntity(ctx, entity)
}

func (w postgresWriter) InsertRelationship(ctx context.Context, relationship *model.Relationship) error {
	return w.g.Relationships.InsertRelationship(ctx, relationship)
}

func (g *Loregraph) writer() (graphWriter, error) {
	switch {
	case g.Memory != nil:
		return memoryWriter{g}, nil
	case g.Entities != nil && g.Relationships != nil:
		return postgresWriter{g}, nil
	}
	if w, ok := g.Graph.(graphWriter); ok {
		return w, nil
	}
	return nil, fmt.Errorf("graph backend does not accept writes")
}

// ApplySeed inserts the seed entities, then its relationships. It returns
// the number of entities and relationships written.
func (g *Loregraph) ApplySeed(ctx context.Context, seed *Seed) (int, int, error) {
	w, err := g.writer()
	if err != nil {
		return 0, 0, helper.NewError("apply seed", err)
	}

	byName := make(map[string]*model.Entity, len(seed.Entities))
	for _, se := range seed.Entities {
		if strings.TrimSpace(se.Name) == "" {
			return len(byName), 0, helper.NewError("apply seed", fmt.Errorf("entity without name"))
		}
		entity := &model.Entity{
			Name:        se.Name,
			Type:        model.EntityType(strings.ToUpper(string(se.Type))),
			Description: se.Description,
			Provenance:  "seed",
		}
		if entity.Type == "" {
			entity.Type = model.EntityTypeConcept
		}
		if err := w.InsertEntity(ctx, entity); err != nil {
			return len(byName), 0, helper.NewError(fmt.Sprintf("insert entity %s", se.Name), err)
		}
		byName[strings.ToLower(se.Name)] = entity
	}

	written := 0
	for _, sr := range seed.Relationships {
		source, ok := byName[strings.ToLower(sr.Source)]
		if !ok {
			return len(byName), written, helper.NewError("apply seed", fmt.Errorf("unknown relationship source %q", sr.Source))
		}
		target, ok := byName[strings.ToLower(sr.Target)]
		if !ok {
			return len(byName), written, helper.NewError("apply seed", fmt.Errorf("unknown relationship target %q", sr.Target))
		}

		relationship := model.NewRelationship(source.ID, target.ID, model.RelationshipType(strings.ToUpper(string(sr.Type))), sr.Description)
		relationship.Status = sr.Status
		if sr.Weight != 0 {
			relationship.Weight = sr.Weight
		}
		if sr.Active != nil {
			relationship.Active = *sr.Active
		}
		if err := w.InsertRelationship(ctx, relationship); err != nil {
			return len(byName), written, helper.NewError(fmt.Sprintf("insert relationship %s %s %s", sr.Source, sr.Type, sr.Target), err)
		}
		written++
	}

	g.log.Info("Applied seed", "entities", len(byName), "relationships", written)
	return len(byName), written, nil
}
