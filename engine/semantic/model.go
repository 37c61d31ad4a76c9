package semantic

// Hit is a single vector search result.
type Hit struct {
	ID        string  `json:"id"`
	Score     float32 `json:"score"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	CapsuleID string  `json:"capsule_id"`
	Domain    string  `json:"domain"`
}

// Record is a capsule embedding to store.
type Record struct {
	ID        string
	Embedding []float32
	Title     string
	Summary   string
	CapsuleID string
	Domain    string
}
