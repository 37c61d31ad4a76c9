// Package schema describes the shape of the Forge knowledge graph: which
// node labels exist, which properties they carry, and which relationship
// types connect them. The catalog is built once at startup and read-only
// afterwards; it is used for intent validation and LLM prompt context,
// never to mutate the store.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// PropertyType describes the value type of a node property.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeInt      PropertyType = "int"
	TypeFloat    PropertyType = "float"
	TypeBool     PropertyType = "bool"
	TypeDatetime PropertyType = "datetime"
)

// NodeDef describes one node label and its allowed properties.
type NodeDef struct {
	Label      string
	Properties map[string]PropertyType
}

// RelDef describes one relationship type and its allowed endpoint labels.
type RelDef struct {
	Type string
	// Endpoints lists allowed (source label, target label) pairs.
	Endpoints [][2]string
	// Directed is false for relationships traversed in both directions.
	Directed bool
}

// Graph is the immutable schema catalog.
type Graph struct {
	nodes   []NodeDef
	rels    []RelDef
	byLabel map[string]NodeDef
	byType  map[string]RelDef
}

// New builds a Graph from node and relationship definitions.
// Definition order is preserved for prompt rendering.
func New(nodes []NodeDef, rels []RelDef) *Graph {
	g := &Graph{
		nodes:   nodes,
		rels:    rels,
		byLabel: make(map[string]NodeDef, len(nodes)),
		byType:  make(map[string]RelDef, len(rels)),
	}
	for _, n := range nodes {
		g.byLabel[n.Label] = n
	}
	for _, r := range rels {
		g.byType[r.Type] = r
	}
	return g
}

// PrimaryLabel is the label fallback intent extraction targets when the
// question gives no better hint.
const PrimaryLabel = "Capsule"

// OwnerField is the property naming a capsule's creator.
const OwnerField = "created_by"

// SearchField is the property fallback CONTAINS constraints run against.
const SearchField = "content"

// Default returns the standard Forge knowledge-graph schema.
func Default() *Graph {
	return New(
		[]NodeDef{
			{Label: "Capsule", Properties: map[string]PropertyType{
				"id": TypeString, "title": TypeString, "content": TypeString,
				"summary": TypeString, "domain": TypeString, "created_by": TypeString,
				"trust_level": TypeInt, "created_at": TypeDatetime,
			}},
			{Label: "User", Properties: map[string]PropertyType{
				"id": TypeString, "username": TypeString,
				"trust_level": TypeInt, "reputation": TypeFloat,
			}},
			{Label: "Tag", Properties: map[string]PropertyType{
				"name": TypeString,
			}},
			{Label: "Agent", Properties: map[string]PropertyType{
				"id": TypeString, "name": TypeString, "kind": TypeString,
				"trust_level": TypeInt,
			}},
			{Label: "Insight", Properties: map[string]PropertyType{
				"id": TypeString, "text": TypeString,
				"confidence": TypeFloat, "trust_level": TypeInt, "created_at": TypeDatetime,
			}},
		},
		[]RelDef{
			{Type: "CREATED", Endpoints: [][2]string{{"User", "Capsule"}}, Directed: true},
			{Type: "LINKED_TO", Endpoints: [][2]string{{"Capsule", "Capsule"}}, Directed: false},
			{Type: "TAGGED", Endpoints: [][2]string{{"Capsule", "Tag"}}, Directed: true},
			{Type: "DERIVED_FROM", Endpoints: [][2]string{{"Insight", "Capsule"}}, Directed: true},
			{Type: "AUTHORED", Endpoints: [][2]string{{"Agent", "Insight"}}, Directed: true},
			{Type: "ENDORSES", Endpoints: [][2]string{{"User", "Capsule"}}, Directed: true},
		},
	)
}

// HasLabel reports whether the label exists in the catalog.
func (g *Graph) HasLabel(label string) bool {
	_, ok := g.byLabel[label]
	return ok
}

// HasRelationship reports whether the relationship type exists.
func (g *Graph) HasRelationship(relType string) bool {
	_, ok := g.byType[relType]
	return ok
}

// Node returns the definition for a label.
func (g *Graph) Node(label string) (NodeDef, bool) {
	n, ok := g.byLabel[label]
	return n, ok
}

// Relationship returns the definition for a relationship type.
func (g *Graph) Relationship(relType string) (RelDef, bool) {
	r, ok := g.byType[relType]
	return r, ok
}

// Labels returns all node labels in definition order.
func (g *Graph) Labels() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Label
	}
	return out
}

// RelationshipTypes returns all relationship types in definition order.
func (g *Graph) RelationshipTypes() []string {
	out := make([]string, len(g.rels))
	for i, r := range g.rels {
		out[i] = r.Type
	}
	return out
}

// PromptInventory renders the catalog as compact text for embedding into
// an LLM prompt.
func (g *Graph) PromptInventory() string {
	var b strings.Builder
	b.WriteString("Node labels:\n")
	for _, n := range g.nodes {
		props := make([]string, 0, len(n.Properties))
		for name, typ := range n.Properties {
			props = append(props, name+":"+string(typ))
		}
		sort.Strings(props)
		fmt.Fprintf(&b, "- %s (%s)\n", n.Label, strings.Join(props, ", "))
	}
	b.WriteString("Relationship types:\n")
	for _, r := range g.rels {
		arrow := "->"
		if !r.Directed {
			arrow = "--"
		}
		for _, ep := range r.Endpoints {
			fmt.Fprintf(&b, "- (%s)-[:%s]%s(%s)\n", ep[0], r.Type, arrow, ep[1])
		}
	}
	return b.String()
}
