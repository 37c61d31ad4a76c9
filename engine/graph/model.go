// Package graph owns all Neo4j operations for the Forge knowledge graph:
// capsule and user nodes, their relationships, seeding, statistics, and
// raw read-query execution for the query service.
package graph

import "time"

// Capsule is a unit of knowledge in the graph.
type Capsule struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary"`
	Domain     string    `json:"domain"`
	CreatedBy  string    `json:"created_by"`
	TrustLevel int       `json:"trust_level"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a platform account that creates and endorses capsules.
type User struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	TrustLevel int     `json:"trust_level"`
	Reputation float64 `json:"reputation"`
}

// Link is a typed relationship between two nodes.
type Link struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Type   string  `json:"type"` // CREATED, LINKED_TO, TAGGED, ENDORSES, ...
	Weight float64 `json:"weight,omitempty"`
}
