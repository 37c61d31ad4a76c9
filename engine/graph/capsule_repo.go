package graph

import (
	"time"

	"github.com/forgeai/forge-knowledge/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// newCapsuleRepo creates a Neo4j-backed repository for Capsule nodes.
func newCapsuleRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Capsule, string] {
	return repo.NewNeo4jRepo[Capsule, string](
		driver,
		"Capsule",
		capsuleToMap,
		capsuleFromRecord,
	)
}

func capsuleToMap(c Capsule) map[string]any {
	m := map[string]any{
		"id":          c.ID,
		"title":       c.Title,
		"content":     c.Content,
		"summary":     c.Summary,
		"domain":      c.Domain,
		"created_by":  c.CreatedBy,
		"trust_level": c.TrustLevel,
	}
	if !c.CreatedAt.IsZero() {
		m["created_at"] = c.CreatedAt.Format(time.RFC3339)
	}
	return m
}

func capsuleFromRecord(rec *neo4j.Record) (Capsule, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Capsule{}, err
	}
	return capsuleFromProps(node.Props), nil
}

func capsuleFromProps(props map[string]any) Capsule {
	c := Capsule{
		ID:         strProp(props, "id"),
		Title:      strProp(props, "title"),
		Content:    strProp(props, "content"),
		Summary:    strProp(props, "summary"),
		Domain:     strProp(props, "domain"),
		CreatedBy:  strProp(props, "created_by"),
		TrustLevel: intProp(props, "trust_level"),
	}
	if raw := strProp(props, "created_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			c.CreatedAt = t
		}
	}
	return c
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
