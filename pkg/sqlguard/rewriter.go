package sqlguard

import (
	"strings"

	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/policy"
)

// ApplyRowFilter appends the identity's row-level security predicate to an
// already-authorized statement. Roles without a configured filter pass
// through unchanged.
//
// The operation is idempotent: if the exact predicate already appears in
// the statement, in either its table-qualified or unqualified column form,
// the statement is returned as-is. The check is a textual substring match.
// It can miss a semantically equal predicate written with different
// spacing, and it can match inside a string literal. Both failure modes
// only affect duplicate suppression, never whether a filter is applied to
// an unfiltered statement.
func ApplyRowFilter(sql string, identity models.Identity, store *policy.Store) string {
	filter, ok := store.RowFilterForRole(identity.Role)
	if !ok {
		return sql
	}

	literal := identity.SubjectLiteral()
	predicate := filter.Predicate(literal)
	unqualified := filter.Column + " = " + literal

	if strings.Contains(sql, predicate) || strings.Contains(sql, unqualified) {
		return sql
	}

	if hasKeywordOutsideStrings(sql, "where") {
		return sql + " AND " + predicate
	}
	return sql + " WHERE " + predicate
}

// hasKeywordOutsideStrings reports whether the statement contains the
// keyword as a standalone word outside string literals.
func hasKeywordOutsideStrings(sql, keyword string) bool {
	for _, t := range tokenize(sql) {
		if t.kind == tokenIdent && t.text == keyword {
			return true
		}
	}
	return false
}
