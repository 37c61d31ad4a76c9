// Package main is an interactive terminal client for the knowledge API.
// It reads questions from stdin, posts them to /api/query, and prints
// the answer and rows.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

type queryRequest struct {
	Question   string `json:"question"`
	UserTrust  int    `json:"user_trust"`
	Synthesize bool   `json:"synthesize_answer"`
	MaxResults int    `json:"max_results,omitempty"`
}

type queryResponse struct {
	Rows        []map[string]any `json:"rows"`
	TotalCount  int              `json:"total_count"`
	Truncated   bool             `json:"truncated"`
	Answer      string           `json:"answer"`
	Confidence  float64          `json:"confidence"`
	Explanation string           `json:"explanation"`
	Complexity  string           `json:"complexity"`
}

func main() {
	apiURL := envOr("FORGE_API_URL", "http://localhost:8080")
	trust := 50
	if v := os.Getenv("FORGE_TRUST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			trust = n
		}
	}
	synthesize := envOr("FORGE_SYNTHESIZE", "true") == "true"

	client := &http.Client{Timeout: 120 * time.Second}
	in := bufio.NewScanner(os.Stdin)

	fmt.Printf("forge knowledge client (%s, trust %d). Empty line quits.\n", apiURL, trust)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		question := strings.TrimSpace(in.Text())
		if question == "" {
			break
		}
		if err := ask(client, apiURL, question, trust, synthesize); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func ask(client *http.Client, apiURL, question string, trust int, synthesize bool) error {
	body, err := json.Marshal(queryRequest{
		Question:   question,
		UserTrust:  trust,
		Synthesize: synthesize,
	})
	if err != nil {
		return err
	}

	resp, err := client.Post(apiURL+"/api/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned %s", resp.Status)
	}

	var result queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	if result.Explanation != "" {
		fmt.Printf("  [%s] %s\n", result.Complexity, result.Explanation)
	}
	if result.Answer != "" {
		fmt.Printf("\n%s\n\n", result.Answer)
	}
	for i, row := range result.Rows {
		fmt.Printf("  %2d. %s\n", i+1, formatRow(row))
	}
	suffix := ""
	if result.Truncated {
		suffix = " (truncated)"
	}
	fmt.Printf("  %d results%s, confidence %.1f\n", result.TotalCount, suffix, result.Confidence)
	return nil
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
	return strings.Join(parts, "  ")
}
