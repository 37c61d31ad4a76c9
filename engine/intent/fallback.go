package intent

import (
	"strings"

	"github.com/forgeai/forge-knowledge/engine/schema"
)

// stopwords stripped from questions before building a topic string.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "will": true, "would": true,
	"should": true, "what": true, "which": true, "who": true, "whom": true,
	"when": true, "where": true, "why": true, "how": true, "find": true,
	"show": true, "list": true, "all": true, "any": true, "me": true,
	"of": true, "in": true, "on": true, "for": true, "to": true,
	"about": true, "with": true, "and": true, "or": true, "there": true,
	"exist": true, "exists": true, "many": true, "much": true,
}

// topicWordCap bounds the topic to the first few meaningful words.
const topicWordCap = 5

// ExtractTopic lower-cases the question, strips punctuation and stopwords,
// and joins at most the first five remaining words. The result feeds the
// fallback CONTAINS constraint.
func ExtractTopic(question string) string {
	words := strings.Fields(strings.ToLower(question))
	kept := make([]string, 0, topicWordCap)
	for _, w := range words {
		w = strings.Trim(w, "?.,!;:'\"()")
		if w == "" || stopwords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == topicWordCap {
			break
		}
	}
	return strings.Join(kept, " ")
}

// Fallback builds an intent from keyword heuristics alone. It is used when
// the completion backend is unavailable or returns garbage, and is fully
// deterministic.
func (e *Extractor) Fallback(question string) QueryIntent {
	lower := strings.ToLower(question)
	primary := EntityRef{Alias: "c", Label: schema.PrimaryLabel}

	qi := QueryIntent{
		Entities: []EntityRef{primary},
		Limit:    e.opts.DefaultLimit,
		Method:   MethodFallback,
	}

	switch {
	case strings.Contains(lower, "who created") ||
		strings.Contains(lower, "who made") ||
		strings.Contains(lower, "author"):
		qi.ReturnFields = []string{"c." + schema.OwnerField, "c.title"}

	case strings.Contains(lower, "how many") ||
		strings.Contains(lower, "count of"):
		qi.IsCount = true
		qi.IsAggregation = true
		qi.Aggregations = []Aggregation{{Func: AggCount, Field: "c", Alias: "total"}}

	default:
		if topic := ExtractTopic(question); topic != "" {
			qi.Constraints = []Constraint{{
				Field: "c." + schema.SearchField,
				Op:    OpContains,
				Value: topic,
			}}
		}
		qi.ReturnFields = []string{"c.title", "c.summary", "c." + schema.OwnerField}
	}

	return qi
}
