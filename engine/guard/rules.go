package guard

import "regexp"

// rule pairs a compiled pattern with the rejection reason it produces.
// Rules are kept in explicit tables so the full set is auditable and each
// entry is unit-testable on its own.
type rule struct {
	re     *regexp.Regexp
	reason string
}

// forbiddenRules reject operations that mutate data, alter schema, or call
// into procedure namespaces. Evaluated before anything else that inspects
// query content; first match wins.
var forbiddenRules = []rule{
	{regexp.MustCompile(`(?i)\bDETACH\s+DELETE\b`), "Forbidden operation detected: DETACH DELETE"},
	{regexp.MustCompile(`(?i)\bDELETE\b`), "Forbidden operation detected: DELETE"},
	{regexp.MustCompile(`(?i)\bREMOVE\b`), "Forbidden operation detected: REMOVE"},
	{regexp.MustCompile(`(?i)\bDROP\b`), "Forbidden operation detected: DROP"},
	{regexp.MustCompile(`(?i)\bCREATE\s+INDEX\b`), "Forbidden operation detected: CREATE INDEX"},
	{regexp.MustCompile(`(?i)\bCREATE\s+CONSTRAINT\b`), "Forbidden operation detected: CREATE CONSTRAINT"},
	{regexp.MustCompile(`(?i)\bCALL\s+apoc\s*\.`), "Forbidden procedure detected: apoc.*"},
	{regexp.MustCompile(`(?i)\bCALL\s+db\s*\.`), "Forbidden procedure detected: db.*"},
	{regexp.MustCompile(`(?i)\bCALL\s+dbms\s*\.`), "Forbidden procedure detected: dbms.*"},
	{regexp.MustCompile(`(?i)\bapoc\.[a-z]`), "Forbidden procedure detected: apoc.*"},
	{regexp.MustCompile(`(?i)\bdbms\.[a-z]`), "Forbidden procedure detected: dbms.*"},
}

// injectionRules reject constructs that have no place in a generated query
// and typically indicate an attempt to smuggle content past tokenization.
var injectionRules = []rule{
	{regexp.MustCompile(`//`), "Possible injection pattern detected: line comment"},
	{regexp.MustCompile(`/\*`), "Possible injection pattern detected: block comment"},
	{regexp.MustCompile(`\\x[0-9a-fA-F]{2}`), "Possible injection pattern detected: hex escape"},
	{regexp.MustCompile(`\\u[0-9a-fA-F]{4}`), "Possible injection pattern detected: unicode escape"},
	// String concatenation splicing a write/admin keyword out of literals,
	// e.g. 'DEL' + 'ETE'.
	{regexp.MustCompile(`(?i)['"][^'"]*\+[^'"]*['"].*\b(DELETE|REMOVE|DROP|MERGE|SET|CALL)\b`), "Possible injection pattern detected: string concatenation"},
	{regexp.MustCompile(`(?i)\+\s*['"]\s*(DELETE|REMOVE|DROP|MERGE|SET|CALL)`), "Possible injection pattern detected: string concatenation"},
}

// writeKeywordRe matches clauses that create or mutate graph content.
var writeKeywordRe = regexp.MustCompile(`(?i)\b(CREATE|MERGE|SET)\b`)

// writeLabelRe captures labels referenced in CREATE/MERGE node patterns.
var writeLabelRe = regexp.MustCompile(`(?i)\b(?:CREATE|MERGE)\s*\(\s*\w*\s*:\s*([A-Za-z_][A-Za-z0-9_]*)`)

// identifierRe is the shape of a valid parameter name.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// paramInjectionRules guard string parameter values. Bound values cannot
// change query structure on a conforming driver, but structural fragments
// inside them are never legitimate for this subsystem.
var paramInjectionRules = []rule{
	{regexp.MustCompile(`(?i)\bapoc\.[a-z]`), "parameter value contains procedure call"},
	{regexp.MustCompile(`(?i)\bdbms\.[a-z]`), "parameter value contains procedure call"},
	{regexp.MustCompile(`(?i)\bCALL\s+[a-z]+\s*\.`), "parameter value contains procedure call"},
	{regexp.MustCompile(`\$\{`), "parameter value contains template escape"},
	{regexp.MustCompile(`\}\s*\)\s*(?i:WHERE|RETURN|DELETE|SET)\b`), "parameter value contains pattern escape"},
}

// allowedStartRe matches the clauses a query may begin with. CALL is
// deliberately absent: subqueries and procedure calls are not accepted
// entry points.
var allowedStartRe = regexp.MustCompile(`(?i)^(MATCH|OPTIONAL\s+MATCH|WITH|UNWIND)\b`)
