// Package guard validates candidate Cypher before it reaches the store.
// It is the subsystem's hard safety boundary: whatever produced a query
// string, a read-only caller must not be able to mutate data, alter
// schema, invoke procedures, or smuggle a second statement through it.
// Every check fails closed.
package guard

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsafeQuery is the sentinel all guard rejections wrap.
var ErrUnsafeQuery = errors.New("unsafe cypher query")

// SecurityError reports why a query or parameter map was rejected.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("guard: %s", e.Reason)
}

func (e *SecurityError) Unwrap() error { return ErrUnsafeQuery }

func reject(reason string) error {
	return &SecurityError{Reason: reason}
}

// Policy relaxes the default read-only stance for trusted internal
// callers such as seeding. The zero value is the strictest setting.
type Policy struct {
	// AllowWrites permits CREATE/MERGE/SET clauses.
	AllowWrites bool
	// AllowedLabels restricts which labels writes may touch. Ignored
	// unless AllowWrites is set.
	AllowedLabels []string
}

// Validate checks a query under the default read-only policy.
func Validate(query string) error {
	return ValidatePolicy(query, Policy{})
}

// ValidatePolicy applies the full rule sequence, first match wins:
// empty input, forbidden operations/procedures, injection indicators,
// write clauses, statement splitting, quote balance, starting clause.
func ValidatePolicy(query string, p Policy) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return reject("Empty query")
	}

	for _, r := range forbiddenRules {
		if r.re.MatchString(trimmed) {
			return reject(r.reason)
		}
	}

	for _, r := range injectionRules {
		if r.re.MatchString(trimmed) {
			return reject(r.reason)
		}
	}

	if writeKeywordRe.MatchString(trimmed) {
		if !p.AllowWrites {
			return reject("Write operations not allowed")
		}
		allowed := make(map[string]bool, len(p.AllowedLabels))
		for _, l := range p.AllowedLabels {
			allowed[l] = true
		}
		for _, m := range writeLabelRe.FindAllStringSubmatch(trimmed, -1) {
			if !allowed[m[1]] {
				return reject("Label not allowed: " + m[1])
			}
		}
	}

	if hasBareSemicolon(trimmed) {
		return reject("Multiple statements not allowed")
	}

	if !quotesBalanced(trimmed) {
		return reject("Unbalanced quotes")
	}

	if !allowedStartRe.MatchString(trimmed) {
		return reject("Query must start with an allowed clause (MATCH, OPTIONAL MATCH, WITH, UNWIND)")
	}

	return nil
}

// ValidateParameters rejects parameter maps whose keys are not plain
// identifiers or whose string values carry structural fragments. Bound
// values never become query grammar on a conforming driver; this is
// defense in depth, not the primary mechanism.
func ValidateParameters(params map[string]any) error {
	for key, val := range params {
		if !identifierRe.MatchString(key) {
			return reject("invalid parameter name: " + key)
		}
		s, ok := val.(string)
		if !ok {
			continue
		}
		for _, r := range paramInjectionRules {
			if r.re.MatchString(s) {
				return reject(r.reason)
			}
		}
	}
	return nil
}

// IsReadOnly reports whether the query contains no write clause. It is a
// classification helper only and performs none of Validate's checks.
func IsReadOnly(query string) bool {
	return !writeKeywordRe.MatchString(query) &&
		!forbiddenOp(query)
}

func forbiddenOp(query string) bool {
	for _, r := range forbiddenRules {
		if r.re.MatchString(query) {
			return true
		}
	}
	return false
}

// hasBareSemicolon reports a semicolon outside any string literal.
func hasBareSemicolon(q string) bool {
	var inQuote byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case inQuote != 0:
			if c == '\\' {
				i++ // skip escaped char
			} else if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == ';':
			return true
		}
	}
	return false
}

// quotesBalanced verifies every quote opened outside an escape is closed.
func quotesBalanced(q string) bool {
	var inQuote byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case inQuote != 0:
			if c == '\\' {
				i++
			} else if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		}
	}
	return inQuote == 0
}
