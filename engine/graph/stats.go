package graph

import "context"

// DomainStats holds aggregate counts for one knowledge domain.
type DomainStats struct {
	Domain   string `json:"domain"`
	Capsules int64  `json:"capsules"`
}

// NodeCounts returns node counts grouped by label.
func (s *Store) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) RETURN labels(n)[0] AS label, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		label, _ := rec.Get("label")
		cnt, _ := rec.Get("count")
		if l, ok := label.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[l] = c
			}
		}
	}
	return counts, nil
}

// RelationshipCounts returns relationship counts grouped by type.
func (s *Store) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// TopDomains returns domains ordered by capsule count.
func (s *Store) TopDomains(ctx context.Context, limit int) ([]DomainStats, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (c:Capsule)
		WHERE c.domain IS NOT NULL
		RETURN c.domain AS domain, count(*) AS capsules
		ORDER BY capsules DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []DomainStats
	for result.Next(ctx) {
		rec := result.Record()
		d, _ := rec.Get("domain")
		c, _ := rec.Get("capsules")
		st := DomainStats{}
		if ds, ok := d.(string); ok {
			st.Domain = ds
		}
		if ci, ok := c.(int64); ok {
			st.Capsules = ci
		}
		stats = append(stats, st)
	}
	return stats, nil
}
