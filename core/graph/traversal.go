package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

// GraphDB defines the store operations the traversal needs
type GraphDB interface {
	SelectEntities(ctx context.Context, ids []uuid.UUID) ([]*model.Entity, error)
	SelectRelationshipsTouching(ctx context.Context, ids []uuid.UUID, onlyActive bool) ([]*model.Relationship, error)
}

// TraversalOptions narrows which relationships a traversal follows
type TraversalOptions struct {
	// RelationshipTypes limits traversal to these types, empty follows all
	RelationshipTypes []model.RelationshipType
	// IncludeInactive also follows relationships whose active flag is false
	IncludeInactive bool
}

func (o TraversalOptions) follows(rel *model.Relationship) bool {
	if len(o.RelationshipTypes) == 0 {
		return true
	}
	for _, t := range o.RelationshipTypes {
		if rel.Type == t {
			return true
		}
	}
	return false
}

// EgoNetwork collects every entity within maxHops of the seeds, following
// relationships in both directions. It expands one hop per store round trip.
// Edges are kept only if both endpoints are inside the network.
// Nodes are ordered by (distance, name, id) and edges by (type, source, target, id).
func EgoNetwork(ctx context.Context, db GraphDB, seeds []uuid.UUID, maxHops int, opts TraversalOptions) (*model.EgoNetwork, error) {
	if maxHops < 0 {
		return nil, helper.NewError("ego network", fmt.Errorf("max hops must not be negative, got %d", maxHops))
	}

	network := &model.EgoNetwork{Nodes: []*model.EgoNode{}, Edges: []*model.Relationship{}}
	if len(seeds) == 0 {
		return network, nil
	}

	distance := make(map[uuid.UUID]int)
	var frontier []uuid.UUID
	for _, id := range seeds {
		if _, ok := distance[id]; ok {
			continue
		}
		distance[id] = 0
		frontier = append(frontier, id)
	}

	edges := make(map[uuid.UUID]*model.Relationship)
	for hop := 0; len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, helper.NewError("ego network", err)
		}

		relationships, err := db.SelectRelationshipsTouching(ctx, frontier, !opts.IncludeInactive)
		if err != nil {
			return nil, helper.NewError("select relationships", err)
		}

		var next []uuid.UUID
		for _, rel := range relationships {
			if !opts.follows(rel) {
				continue
			}
			edges[rel.ID] = rel

			if hop >= maxHops {
				continue
			}
			for _, endpoint := range []uuid.UUID{rel.SourceID, rel.TargetID} {
				if _, seen := distance[endpoint]; seen {
					continue
				}
				distance[endpoint] = hop + 1
				next = append(next, endpoint)
			}
		}
		frontier = next
	}

	ids := make([]uuid.UUID, 0, len(distance))
	for id := range distance {
		ids = append(ids, id)
	}
	entities, err := db.SelectEntities(ctx, ids)
	if err != nil {
		return nil, helper.NewError("select entities", err)
	}

	present := make(map[uuid.UUID]bool, len(entities))
	for _, entity := range entities {
		present[entity.ID] = true
		network.Nodes = append(network.Nodes, &model.EgoNode{Entity: entity, Distance: distance[entity.ID]})
	}
	sort.Slice(network.Nodes, func(i, j int) bool {
		a, b := network.Nodes[i], network.Nodes[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Entity.Name != b.Entity.Name {
			return a.Entity.Name < b.Entity.Name
		}
		return a.Entity.ID.String() < b.Entity.ID.String()
	})

	for _, rel := range edges {
		if present[rel.SourceID] && present[rel.TargetID] {
			network.Edges = append(network.Edges, rel)
		}
	}
	SortRelationships(network.Edges)

	return network, nil
}

// Neighbors returns the entities exactly one hop away from id
func Neighbors(ctx context.Context, db GraphDB, id uuid.UUID, opts TraversalOptions) ([]*model.Entity, error) {
	network, err := EgoNetwork(ctx, db, []uuid.UUID{id}, 1, opts)
	if err != nil {
		return nil, err
	}

	neighbors := make([]*model.Entity, 0, len(network.Nodes))
	for _, node := range network.Nodes {
		if node.Distance == 1 {
			neighbors = append(neighbors, node.Entity)
		}
	}
	return neighbors, nil
}

// SortRelationships orders relationships by (type, source, target, id) in place
func SortRelationships(relationships []*model.Relationship) {
	sort.Slice(relationships, func(i, j int) bool {
		a, b := relationships[i], relationships[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.SourceID != b.SourceID {
			return a.SourceID.String() < b.SourceID.String()
		}
		if a.TargetID != b.TargetID {
			return a.TargetID.String() < b.TargetID.String()
		}
		return a.ID.String() < b.ID.String()
	})
}
