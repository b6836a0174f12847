package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RelationshipType is the type of a directed edge between two entities.
// The constants form the core set; any other value is an extension type.
type RelationshipType string

const (
	RelationshipMotivates   RelationshipType = "MOTIVATES"
	RelationshipHinders     RelationshipType = "HINDERS"
	RelationshipContradicts RelationshipType = "CONTRADICTS"
	RelationshipCauses      RelationshipType = "CAUSES"
	RelationshipStatus      RelationshipType = "STATUS"
)

// IsCore reports whether t belongs to the fixed core set
func (t RelationshipType) IsCore() bool {
	switch t {
	case RelationshipMotivates, RelationshipHinders, RelationshipContradicts, RelationshipCauses, RelationshipStatus:
		return true
	}
	return false
}

// Relationship is a typed, directed edge. Both endpoints must reference
// existing entities. STATUS relationships carry their value in Status.
type Relationship struct {
	ID          uuid.UUID        `json:"id"`
	SourceID    uuid.UUID        `json:"source_id"`
	TargetID    uuid.UUID        `json:"target_id"`
	Type        RelationshipType `json:"relationship_type"`
	Description string           `json:"description,omitempty"`
	Weight      float64          `json:"weight"`
	Active      bool             `json:"active"`
	Status      string           `json:"status,omitempty"`
	Metadata    Metadata         `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewRelationship returns an active relationship with the default weight of 1.0
func NewRelationship(sourceID, targetID uuid.UUID, relType RelationshipType, description string) *Relationship {
	return &Relationship{
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        relType,
		Description: description,
		Weight:      1.0,
		Active:      true,
	}
}

// NewStatusRelationship returns an active STATUS relationship of an entity onto itself
func NewStatusRelationship(entityID uuid.UUID, status string) *Relationship {
	r := NewRelationship(entityID, entityID, RelationshipStatus, "")
	r.Status = status
	return r
}

// Touches reports whether id is one of the relationship endpoints
func (r *Relationship) Touches(id uuid.UUID) bool {
	return r.SourceID == id || r.TargetID == id
}

// Other returns the endpoint opposite of id
func (r *Relationship) Other(id uuid.UUID) uuid.UUID {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// RetirementStatuses are STATUS values that take an entity out of the story.
var RetirementStatuses = []string{"deceased", "dead", "killed", "retired", "destroyed", "departed"}

// IsRetirementStatus reports whether status marks retirement or death (case-insensitive)
func IsRetirementStatus(status string) bool {
	status = strings.ToLower(strings.TrimSpace(status))
	for _, s := range RetirementStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// EgoNode is an entity reached during an ego-network traversal
type EgoNode struct {
	Entity   *Entity `json:"entity"`
	Distance int     `json:"distance"`
}

// EgoNetwork is the subgraph within a fixed hop radius of the seed entities
type EgoNetwork struct {
	Nodes []*EgoNode      `json:"nodes"`
	Edges []*Relationship `json:"edges"`
}

// Entity looks up a node of the network by id
func (n *EgoNetwork) Entity(id uuid.UUID) *Entity {
	if n == nil {
		return nil
	}
	for _, node := range n.Nodes {
		if node.Entity != nil && node.Entity.ID == id {
			return node.Entity
		}
	}
	return nil
}

// Entities returns the network's entities in traversal order
func (n *EgoNetwork) Entities() []*Entity {
	if n == nil {
		return nil
	}
	entities := make([]*Entity, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		entities = append(entities, node.Entity)
	}
	return entities
}
