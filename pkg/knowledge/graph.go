// Package knowledge implements an NPC's knowledge graph: entities keyed by id
// and an ordered list of typed relationships between entity ids.
package knowledge

import (
	"maps"
	"slices"
	"strings"
)

// Entity is a node in the knowledge graph
type Entity struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties,omitempty"`
}

func NewEntity(id string, properties map[string]string) Entity {
	return Entity{ID: id, Properties: properties}
}

// Property returns a single property value
func (e Entity) Property(name string) (string, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

func (e Entity) clone() Entity {
	return Entity{ID: e.ID, Properties: maps.Clone(e.Properties)}
}

// Relationship is a directed, typed edge between two entity ids.
// Source and Target are not required to name an existing entity.
type Relationship struct {
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	RelationType string            `json:"relation_type"`
	Properties   map[string]string `json:"properties,omitempty"`
}

func NewRelationship(source, target, relationType string, properties map[string]string) Relationship {
	return Relationship{
		Source:       source,
		Target:       target,
		RelationType: relationType,
		Properties:   properties,
	}
}

// Involves reports whether id is the source or the target of the relationship
func (r Relationship) Involves(id string) bool {
	return r.Source == id || r.Target == id
}

func (r Relationship) clone() Relationship {
	r.Properties = maps.Clone(r.Properties)
	return r
}

// Graph holds what a single NPC knows. It is owned by one agent and is not
// safe for concurrent use.
type Graph struct {
	entities      map[string]Entity
	relationships []Relationship
}

func NewGraph() *Graph {
	return &Graph{
		entities: make(map[string]Entity),
	}
}

// AddEntity inserts e, replacing any entity with the same id.
func (g *Graph) AddEntity(e Entity) {
	g.entities[e.ID] = e.clone()
}

// AddRelationship appends r. Relationships are kept in insertion order.
func (g *Graph) AddRelationship(r Relationship) {
	g.relationships = append(g.relationships, r.clone())
}

// GetEntity returns a copy of the entity with the given id.
func (g *Graph) GetEntity(id string) (Entity, bool) {
	e, ok := g.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// GetRelationships returns every relationship whose source or target is id,
// in insertion order. The scan is linear in the number of relationships.
func (g *Graph) GetRelationships(id string) []Relationship {
	var out []Relationship
	for _, r := range g.relationships {
		if r.Involves(id) {
			out = append(out, r.clone())
		}
	}
	return out
}

// RelationshipsOfType narrows GetRelationships to a single relation type.
// Matching is case-insensitive.
func (g *Graph) RelationshipsOfType(id, relationType string) []Relationship {
	var out []Relationship
	for _, r := range g.GetRelationships(id) {
		if strings.EqualFold(r.RelationType, relationType) {
			out = append(out, r)
		}
	}
	return out
}

// Neighbors returns the ids on the far side of every relationship touching id,
// de-duplicated, in the order they were first related. A self-loop yields id itself.
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range g.relationships {
		if !r.Involves(id) {
			continue
		}
		other := r.Target
		if r.Target == id {
			other = r.Source
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out
}

// Entities returns copies of all entities sorted by id
func (g *Graph) Entities() []Entity {
	out := make([]Entity, 0, len(g.entities))
	for _, id := range slices.Sorted(maps.Keys(g.entities)) {
		out = append(out, g.entities[id].clone())
	}
	return out
}

// Relationships returns copies of all relationships in insertion order
func (g *Graph) Relationships() []Relationship {
	out := make([]Relationship, len(g.relationships))
	for i, r := range g.relationships {
		out[i] = r.clone()
	}
	return out
}

func (g *Graph) EntityCount() int {
	return len(g.entities)
}

func (g *Graph) RelationshipCount() int {
	return len(g.relationships)
}
