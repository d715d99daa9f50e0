// Package policy holds the static authorization configuration: role-based
// table/column allow-lists (RBAC), per-role row filter templates (RLS),
// sensitive column registries, and the SQL injection pattern list.
//
// A Store is loaded once at startup and is immutable afterwards, so it is
// safe for unsynchronized concurrent reads from every in-flight request.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnSet is a set of column names.
type ColumnSet map[string]struct{}

// Contains reports whether the set includes the given column.
func (s ColumnSet) Contains(column string) bool {
	_, ok := s[column]
	return ok
}

// TableGrants maps table name to the columns a role may read from it.
type TableGrants map[string]ColumnSet

// AllowsTable reports whether the role may touch the table at all.
func (g TableGrants) AllowsTable(table string) bool {
	_, ok := g[table]
	return ok
}

// AllowsColumn reports whether the role may read table.column.
func (g TableGrants) AllowsColumn(table, column string) bool {
	cols, ok := g[table]
	return ok && cols.Contains(column)
}

// AllowsColumnAnywhere reports whether any granted table carries the column.
// Used for unqualified column references. This is deliberately permissive:
// a column name shared between an allowed and a disallowed table passes as
// long as one allowed table has it.
func (g TableGrants) AllowsColumnAnywhere(column string) bool {
	for _, cols := range g {
		if cols.Contains(column) {
			return true
		}
	}
	return false
}

// RowFilter is a parsed RLS template such as "orders.employee_id = {user_id}".
// Table and Column are extracted at load time so the rewriter can also
// recognize the unqualified form of the predicate.
type RowFilter struct {
	Template string
	Table    string
	Column   string
}

// Placeholder is the token in an RLS template replaced by the caller's
// subject identifier.
const Placeholder = "{user_id}"

var filterShape = regexp.MustCompile(`(\w+)\.(\w+)\s*=`)

// parseRowFilter validates a template and extracts its table and column.
func parseRowFilter(template string) (RowFilter, error) {
	if !strings.Contains(template, Placeholder) {
		return RowFilter{}, fmt.Errorf("row filter %q missing %s placeholder", template, Placeholder)
	}
	m := filterShape.FindStringSubmatch(template)
	if m == nil {
		return RowFilter{}, fmt.Errorf("row filter %q is not of the form table.column = %s", template, Placeholder)
	}
	return RowFilter{Template: template, Table: m[1], Column: m[2]}, nil
}

// Predicate renders the filter with the subject literal substituted in.
func (f RowFilter) Predicate(subjectLiteral string) string {
	return strings.ReplaceAll(f.Template, Placeholder, subjectLiteral)
}

// Store is the immutable policy configuration shared by all requests.
type Store struct {
	rbac      map[string]TableGrants
	rls       map[string]RowFilter
	sensitive map[string]ColumnSet
	patterns  []*regexp.Regexp
}

// GrantsForRole returns the table/column grants for a role. An unknown role
// gets an empty grant set, which denies everything.
func (s *Store) GrantsForRole(role string) TableGrants {
	if g, ok := s.rbac[role]; ok {
		return g
	}
	return TableGrants{}
}

// RowFilterForRole returns the RLS filter for a role, if one is configured.
func (s *Store) RowFilterForRole(role string) (RowFilter, bool) {
	f, ok := s.rls[role]
	return f, ok
}

// SensitiveColumns returns the audited columns for a table.
func (s *Store) SensitiveColumns(table string) ColumnSet {
	return s.sensitive[table]
}

// InjectionPatterns returns the compiled pattern list in configured order.
func (s *Store) InjectionPatterns() []*regexp.Regexp {
	return s.patterns
}

// file is the on-disk shape of policy.yaml.
type file struct {
	RBAC      map[string]map[string][]string `yaml:"rbac"`
	RLS       map[string]string              `yaml:"rls"`
	Sensitive map[string][]string            `yaml:"sensitive_columns"`
	Patterns  []string                       `yaml:"injection_patterns"`
}

// Load reads and validates the policy file. Any malformed row filter or
// injection pattern fails the load; the engine must not start with a
// partially usable policy.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return build(f)
}

func build(f file) (*Store, error) {
	s := &Store{
		rbac:      make(map[string]TableGrants, len(f.RBAC)),
		rls:       make(map[string]RowFilter, len(f.RLS)),
		sensitive: make(map[string]ColumnSet, len(f.Sensitive)),
	}

	for role, tables := range f.RBAC {
		grants := make(TableGrants, len(tables))
		for table, cols := range tables {
			set := make(ColumnSet, len(cols))
			for _, c := range cols {
				set[c] = struct{}{}
			}
			grants[table] = set
		}
		s.rbac[role] = grants
	}

	for role, template := range f.RLS {
		filter, err := parseRowFilter(template)
		if err != nil {
			return nil, fmt.Errorf("rls policy for role %q: %w", role, err)
		}
		s.rls[role] = filter
	}

	for table, cols := range f.Sensitive {
		set := make(ColumnSet, len(cols))
		for _, c := range cols {
			set[c] = struct{}{}
		}
		s.sensitive[table] = set
	}

	for _, p := range f.Patterns {
		// Patterns are matched case-insensitively regardless of how they
		// are written in the file.
		if !strings.HasPrefix(p, "(?i)") {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("injection pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}

	return s, nil
}

// NewStore builds a Store directly from in-memory maps. Intended for tests.
func NewStore(rbac map[string]map[string][]string, rls map[string]string, sensitive map[string][]string, patterns []string) (*Store, error) {
	return build(file{RBAC: rbac, RLS: rls, Sensitive: sensitive, Patterns: patterns})
}
