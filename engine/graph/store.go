package graph

import (
	"context"
	"fmt"

	"github.com/forgeai/forge-knowledge/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// CypherResult is the minimal surface needed from a neo4j result.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherSession is the minimal surface needed from a neo4j session.
type CypherSession interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions; injectable for tests.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// Store provides graph operations for Forge knowledge data.
type Store struct {
	opener   SessionOpener
	capsules *repo.Neo4jRepo[Capsule, string]
}

// New creates a Store backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		opener:   &driverOpener{driver: driver},
		capsules: newCapsuleRepo(driver),
	}
}

// NewWithOpener creates a Store with a custom session opener. The typed
// capsule repository is unavailable in this mode; raw operations work.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener}
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o *driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &sessionAdapter{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// ExecuteRead runs a read query with bound parameters and flattens every
// record into a field-name-to-value map. Node and relationship values are
// replaced by their property maps so callers never see driver types.
func (s *Store) ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("graph: run query: %w", err)
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rec := result.Record()
		row := make(map[string]any, len(rec.Keys))
		for _, key := range rec.Keys {
			val, _ := rec.Get(key)
			row[key] = flattenValue(val)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: read result: %w", err)
	}
	return rows, nil
}

// flattenValue converts driver node/relationship types into plain maps.
func flattenValue(val any) any {
	switch v := val.(type) {
	case dbtype.Node:
		return v.Props
	case dbtype.Relationship:
		return v.Props
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = flattenValue(item)
		}
		return out
	default:
		return val
	}
}

// GetCapsule returns a capsule by ID.
func (s *Store) GetCapsule(ctx context.Context, id string) (Capsule, error) {
	if s.capsules == nil {
		return Capsule{}, fmt.Errorf("graph: capsule repository not configured")
	}
	return s.capsules.Get(ctx, id)
}

// ListCapsules returns a page of capsules.
func (s *Store) ListCapsules(ctx context.Context, offset, limit int) ([]Capsule, error) {
	if s.capsules == nil {
		return nil, fmt.Errorf("graph: capsule repository not configured")
	}
	return s.capsules.List(ctx, repo.ListOpts{Offset: offset, Limit: limit})
}

// SaveCapsule creates or updates a capsule node.
func (s *Store) SaveCapsule(ctx context.Context, c Capsule) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:Capsule {id: $id}) SET n += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":    c.ID,
		"props": capsuleToMap(c),
	})
	return err
}

// SaveUser creates or updates a user node.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:User {id: $id})
	           SET n.username = $username, n.trust_level = $trust, n.reputation = $reputation`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"trust":      u.TrustLevel,
		"reputation": u.Reputation,
	})
	return err
}

// SaveLink creates or updates a relationship between two existing nodes.
func (s *Store) SaveLink(ctx context.Context, l Link) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a {id: $from}), (b {id: $to})
		 MERGE (a)-[r:%s]->(b)
		 SET r.weight = $weight`,
		sanitizeRelType(l.Type),
	)
	_, err := sess.Run(ctx, cypher, map[string]any{
		"from":   l.From,
		"to":     l.To,
		"weight": l.Weight,
	})
	return err
}

// SaveTag ensures a tag node exists and links a capsule to it.
func (s *Store) SaveTag(ctx context.Context, capsuleID, tag string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (t:Tag {name: $tag})
	           WITH t
	           MATCH (c:Capsule {id: $capsule})
	           MERGE (c)-[:TAGGED]->(t)`
	_, err := sess.Run(ctx, cypher, map[string]any{"tag": tag, "capsule": capsuleID})
	return err
}

// sanitizeRelType strips anything that is not a valid relationship type
// character and upper-cases the rest.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
