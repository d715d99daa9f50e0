// Package schema introspects the target database and exposes an immutable
// catalog of tables, columns, and foreign key relationships. Every
// authorization decision downstream depends on this catalog being accurate,
// so a failed load is fatal for the process.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/apperrors"
)

// ForeignKey records one child→parent relationship.
type ForeignKey struct {
	ChildTable   string
	ChildColumn  string
	ParentTable  string
	ParentColumn string
}

// TablePair keys a foreign key by its endpoints.
type TablePair struct {
	Child  string
	Parent string
}

// ColumnPair is the joined column pair of a foreign key.
type ColumnPair struct {
	ChildColumn  string
	ParentColumn string
}

// Catalog is the introspected schema. Built once at startup; read
// concurrently by all requests without synchronization.
type Catalog struct {
	tables    map[string][]string
	columnSet map[string]map[string]struct{}
	relations map[TablePair]ColumnPair
	keys      []ForeignKey
}

// Load enumerates user tables, their columns, and foreign keys from the
// live database.
func Load(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Catalog{
		tables:    make(map[string][]string),
		columnSet: make(map[string]map[string]struct{}),
		relations: make(map[TablePair]ColumnPair),
	}

	if err := c.loadColumns(ctx, pool); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSchemaUnavailable, err)
	}
	if err := c.loadForeignKeys(ctx, pool); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSchemaUnavailable, err)
	}

	logger.Info("Schema catalog loaded",
		zap.Int("tables", len(c.tables)),
		zap.Int("foreign_keys", len(c.keys)))

	return c, nil
}

func (c *Catalog) loadColumns(ctx context.Context, pool *pgxpool.Pool) error {
	const query = `
		SELECT c.table_name, c.column_name
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND c.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY c.table_name, c.ordinal_position
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		c.tables[table] = append(c.tables[table], column)
		if c.columnSet[table] == nil {
			c.columnSet[table] = make(map[string]struct{})
		}
		c.columnSet[table][column] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}

	return nil
}

func (c *Catalog) loadForeignKeys(ctx context.Context, pool *pgxpool.Pool) error {
	const query = `
		SELECT
			kcu.table_name AS child_table,
			kcu.column_name AS child_column,
			ccu.table_name AS parent_table,
			ccu.column_name AS parent_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.ChildTable, &fk.ChildColumn, &fk.ParentTable, &fk.ParentColumn); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		c.addForeignKey(fk)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign keys: %w", err)
	}

	return nil
}

func (c *Catalog) addForeignKey(fk ForeignKey) {
	c.keys = append(c.keys, fk)
	c.relations[TablePair{Child: fk.ChildTable, Parent: fk.ParentTable}] = ColumnPair{
		ChildColumn:  fk.ChildColumn,
		ParentColumn: fk.ParentColumn,
	}
}

// New builds a catalog from in-memory table definitions. Intended for tests
// and for callers that already hold schema metadata.
func New(tables map[string][]string, keys []ForeignKey) *Catalog {
	c := &Catalog{
		tables:    make(map[string][]string, len(tables)),
		columnSet: make(map[string]map[string]struct{}, len(tables)),
		relations: make(map[TablePair]ColumnPair),
	}
	for table, cols := range tables {
		c.tables[table] = append([]string(nil), cols...)
		set := make(map[string]struct{}, len(cols))
		for _, col := range cols {
			set[col] = struct{}{}
		}
		c.columnSet[table] = set
	}
	for _, fk := range keys {
		c.addForeignKey(fk)
	}
	return c
}

// Tables returns all table names in sorted order.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for t := range c.tables {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

// Columns returns the ordered column list for a table, or nil if unknown.
func (c *Catalog) Columns(table string) []string {
	return c.tables[table]
}

// HasTable reports whether the catalog knows the table.
func (c *Catalog) HasTable(table string) bool {
	_, ok := c.tables[table]
	return ok
}

// HasColumn reports whether table.column exists.
func (c *Catalog) HasColumn(table, column string) bool {
	cols, ok := c.columnSet[table]
	if !ok {
		return false
	}
	_, ok = cols[column]
	return ok
}

// ColumnInAnyTable reports whether any table carries the column. Used to
// classify unqualified identifiers as column references.
func (c *Catalog) ColumnInAnyTable(column string) bool {
	for _, cols := range c.columnSet {
		if _, ok := cols[column]; ok {
			return true
		}
	}
	return false
}

// Relation returns the joined column pair for a (child, parent) table pair.
func (c *Catalog) Relation(child, parent string) (ColumnPair, bool) {
	p, ok := c.relations[TablePair{Child: child, Parent: parent}]
	return p, ok
}

// ForeignKeys returns every known relationship.
func (c *Catalog) ForeignKeys() []ForeignKey {
	return c.keys
}
