package schema

import (
	"github.com/queryshield/queryshield-engine/pkg/policy"
)

// FilterForRole returns the subset of the catalog granted to a role:
// only allowed tables, and within each table only allowed columns, in
// catalog order. Foreign keys are kept only when both endpoints survive
// the filter. The result is what the generator is allowed to see.
func (c *Catalog) FilterForRole(grants policy.TableGrants) *Catalog {
	tables := make(map[string][]string)
	for table, cols := range c.tables {
		if !grants.AllowsTable(table) {
			continue
		}
		var kept []string
		for _, col := range cols {
			if grants.AllowsColumn(table, col) {
				kept = append(kept, col)
			}
		}
		if len(kept) > 0 {
			tables[table] = kept
		}
	}

	var keys []ForeignKey
	for _, fk := range c.keys {
		if _, ok := tables[fk.ChildTable]; !ok {
			continue
		}
		if _, ok := tables[fk.ParentTable]; !ok {
			continue
		}
		keys = append(keys, fk)
	}

	return New(tables, keys)
}
