// Package sqlguard is the query safety core: it screens candidate SQL for
// injection patterns, extracts the tables and columns a statement touches,
// validates them against role grants, and appends row-level security
// filters. Candidate statements come from a text generator and are treated
// as adversarial until they clear every check.
package sqlguard

import "strings"

// Schema is the subset of the schema catalog the extractor needs to
// classify identifiers.
type Schema interface {
	HasTable(table string) bool
	HasColumn(table, column string) bool
	ColumnInAnyTable(column string) bool
}

// ColumnRef is one column reference. Table is empty for unqualified
// references, which must then match a column in some allowed table.
type ColumnRef struct {
	Table  string
	Column string
}

// String renders the reference the way denial details report it.
func (r ColumnRef) String() string {
	if r.Table == "" {
		return r.Column
	}
	return r.Table + "." + r.Column
}

// References is the set of schema objects a statement touches.
type References struct {
	Tables  map[string]struct{}
	Columns map[ColumnRef]struct{}
}

func newReferences() References {
	return References{
		Tables:  make(map[string]struct{}),
		Columns: make(map[ColumnRef]struct{}),
	}
}

func (r References) addTable(table string) {
	r.Tables[table] = struct{}{}
}

func (r References) addColumn(table, column string) {
	r.Columns[ColumnRef{Table: table, Column: column}] = struct{}{}
}

// keywords are identifiers never treated as table or column references.
var keywords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "join": {}, "inner": {},
	"left": {}, "right": {}, "full": {}, "outer": {}, "cross": {},
	"on": {}, "and": {}, "or": {}, "not": {}, "as": {}, "in": {},
	"is": {}, "null": {}, "like": {}, "ilike": {}, "between": {},
	"exists": {}, "group": {}, "by": {}, "order": {}, "having": {},
	"limit": {}, "offset": {}, "asc": {}, "desc": {}, "distinct": {},
	"union": {}, "all": {}, "intersect": {}, "except": {}, "case": {},
	"when": {}, "then": {}, "else": {}, "end": {}, "true": {}, "false": {},
}

// Extract walks a statement's token stream and records every table and
// column reference it can validate against the schema.
//
// Classification rules:
//   - identifiers immediately followed by "(" are function calls; the call
//     and its arguments are skipped entirely
//   - table references are only recorded after a FROM or JOIN keyword has
//     been seen, and only when the name exists in the schema
//   - qualified names record (table, column) when both validate against
//     the schema; a qualifier that does not validate (an alias, usually)
//     falls back to an unqualified reference so the column still reaches
//     authorization
//   - bare identifiers record ("", column) when the name exists as a
//     column in any known table
//
// The pass deliberately over-flags: an ambiguous token that matches a real
// schema object is recorded even if the statement uses it as something
// else. Spurious denial is the safe failure direction; a dropped real
// reference would bypass authorization.
func Extract(sql string, schema Schema) References {
	refs := newReferences()
	tokens := tokenize(sql)

	afterFrom := false
	i := 0
	for i < len(tokens) {
		t := tokens[i]
		if t.kind != tokenIdent {
			i++
			continue
		}

		if _, kw := keywords[t.text]; kw {
			if t.text == "from" || t.text == "join" {
				afterFrom = true
			}
			// The name after AS is an alias, never a reference.
			if t.text == "as" && i+1 < len(tokens) && tokens[i+1].kind == tokenIdent {
				i += 2
				continue
			}
			i++
			continue
		}

		// Function call: skip the name and everything inside the parens.
		if isSymbol(tokens, i+1, "(") {
			i = skipCall(tokens, i+1)
			continue
		}

		// Qualified name: walk the dotted chain and keep the last two parts.
		if isSymbol(tokens, i+1, ".") && i+2 < len(tokens) && tokens[i+2].kind == tokenIdent {
			qualifier, name := t.text, tokens[i+2].text
			j := i + 2
			for isSymbol(tokens, j+1, ".") && j+2 < len(tokens) && tokens[j+2].kind == tokenIdent {
				qualifier, name = name, tokens[j+2].text
				j += 2
			}
			if isSymbol(tokens, j+1, "(") {
				// Schema-qualified function call.
				i = skipCall(tokens, j+1)
				continue
			}
			if afterFrom && schema.HasTable(name) {
				refs.addTable(name)
			}
			if schema.HasColumn(qualifier, name) {
				refs.addColumn(qualifier, name)
			} else if schema.ColumnInAnyTable(name) {
				refs.addColumn("", name)
			}
			i = j + 1
			continue
		}

		if afterFrom && schema.HasTable(t.text) {
			refs.addTable(t.text)
		}
		if schema.ColumnInAnyTable(t.text) {
			refs.addColumn("", t.text)
		}
		i++
	}

	return refs
}

func isSymbol(tokens []token, i int, sym string) bool {
	return i < len(tokens) && tokens[i].kind == tokenSymbol && tokens[i].text == sym
}

// skipCall advances past a parenthesized argument list starting at the
// opening paren and returns the index of the first token after it.
func skipCall(tokens []token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		if tokens[i].kind != tokenSymbol {
			continue
		}
		switch tokens[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(tokens)
}

// firstKeyword returns the first identifier-like token of a statement,
// upper-cased, for query type checks and denial details.
func firstKeyword(sql string) string {
	tokens := tokenize(sql)
	for _, t := range tokens {
		if t.kind == tokenIdent {
			return strings.ToUpper(t.text)
		}
	}
	return ""
}
