package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// synthesize renders a natural-language answer from query rows. Any
// oracle failure falls back to a templated summary so the caller always
// receives a usable answer string.
func (s *Service) synthesize(ctx context.Context, question string, result QueryResult) string {
	if s.oracle == nil {
		return templatedAnswer(result)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.OracleTimeout)
	defer cancel()

	prompt := s.buildSynthesisPrompt(ctx, question, result)
	answer, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("knowledge: synthesis failed, using template", "err", err)
		return templatedAnswer(result)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return templatedAnswer(result)
	}
	return answer
}

func (s *Service) buildSynthesisPrompt(ctx context.Context, question string, result QueryResult) string {
	var b strings.Builder
	b.WriteString("You are answering a question using rows returned from a knowledge graph.\n")
	b.WriteString("Answer concisely using only the data below. If the data does not answer the question, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", question)

	if s.enricher != nil {
		related, err := s.enricher.Related(ctx, question, 3)
		if err != nil {
			s.logger.Debug("knowledge: enrichment skipped", "err", err)
		} else if len(related) > 0 {
			b.WriteString("Related context:\n")
			for _, r := range related {
				fmt.Fprintf(&b, "- %s\n", r)
			}
			b.WriteString("\n")
		}
	}

	rows := result.Rows
	if len(rows) > s.opts.SummaryRows {
		rows = rows[:s.opts.SummaryRows]
	}
	fmt.Fprintf(&b, "Rows (%d of %d):\n", len(rows), result.TotalCount)
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatRow(row))
	}
	if result.Truncated {
		b.WriteString("\nNote: the row list was truncated.\n")
	}
	return b.String()
}

func formatRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}

func templatedAnswer(result QueryResult) string {
	return fmt.Sprintf("Found %d results (answer synthesis failed)", result.TotalCount)
}
