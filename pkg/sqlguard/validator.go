package sqlguard

import (
	"context"
	"sort"

	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/policy"
)

// DenyReason classifies why a statement was rejected.
type DenyReason string

const (
	DenyForbiddenQueryType DenyReason = "ForbiddenQueryType"
	DenyInjectionSuspected DenyReason = "InjectionSuspected"
	DenyUnauthorizedTable  DenyReason = "UnauthorizedTable"
	DenyUnauthorizedColumn DenyReason = "UnauthorizedColumn"
)

// Verdict is the authorization outcome for a candidate statement: either
// authorized, or denied with a reason and detail. Never both.
type Verdict struct {
	authorized bool
	reason     DenyReason
	detail     string
}

// Authorized builds a passing verdict.
func Authorized() Verdict {
	return Verdict{authorized: true}
}

// Denied builds a rejecting verdict.
func Denied(reason DenyReason, detail string) Verdict {
	return Verdict{reason: reason, detail: detail}
}

// IsAuthorized reports whether the statement may proceed.
func (v Verdict) IsAuthorized() bool { return v.authorized }

// Reason returns the denial reason; empty for authorized verdicts.
func (v Verdict) Reason() DenyReason { return v.reason }

// Detail returns the offending object, if any (table, table.column, or
// the matched pattern).
func (v Verdict) Detail() string { return v.detail }

// SecurityLogger receives every denial before the verdict is returned,
// whether or not the caller acts on it.
type SecurityLogger interface {
	LogSecurityViolation(ctx context.Context, identity models.Identity, sql string, reason string, detail string)
}

// Validator combines the screener, the extractor, and the RBAC grants into
// a single accept/reject decision per statement and identity.
type Validator struct {
	schema   Schema
	store    *policy.Store
	screener *Screener
	security SecurityLogger
}

// NewValidator wires a validator. security may be nil, in which case
// denials are not reported anywhere but still returned.
func NewValidator(schema Schema, store *policy.Store, security SecurityLogger) *Validator {
	return &Validator{
		schema:   schema,
		store:    store,
		screener: NewScreener(store.InjectionPatterns()),
		security: security,
	}
}

// Authorize runs the full check sequence against a normalized statement,
// short-circuiting on the first failure:
//
//  1. the statement must be a single SELECT
//  2. it must not match any injection pattern
//  3. every referenced table must be granted to the role
//  4. every qualified column must be granted on its table
//  5. every unqualified column must exist in some granted table
//
// An unknown role has an empty grant set and is denied at the first table
// reference.
func (v *Validator) Authorize(ctx context.Context, sql string, identity models.Identity) Verdict {
	if firstKeyword(sql) != "SELECT" {
		return v.deny(ctx, identity, sql, DenyForbiddenQueryType, firstKeyword(sql))
	}

	if pattern, matched := v.screener.Scan(sql); matched {
		return v.deny(ctx, identity, sql, DenyInjectionSuspected, pattern)
	}

	refs := Extract(sql, v.schema)
	grants := v.store.GrantsForRole(identity.Role)

	for _, table := range sortedTables(refs) {
		if !grants.AllowsTable(table) {
			return v.deny(ctx, identity, sql, DenyUnauthorizedTable, table)
		}
	}

	for _, ref := range sortedColumns(refs) {
		if ref.Table != "" {
			if !grants.AllowsColumn(ref.Table, ref.Column) {
				return v.deny(ctx, identity, sql, DenyUnauthorizedColumn, ref.String())
			}
			continue
		}
		if !grants.AllowsColumnAnywhere(ref.Column) {
			return v.deny(ctx, identity, sql, DenyUnauthorizedColumn, v.attribute(refs, ref.Column))
		}
	}

	return Authorized()
}

// attribute names the table of a denied unqualified column when exactly
// one referenced table carries it, so denial details point at a concrete
// schema object where possible.
func (v *Validator) attribute(refs References, column string) string {
	var owner string
	for _, table := range sortedTables(refs) {
		if v.schema.HasColumn(table, column) {
			if owner != "" {
				return column
			}
			owner = table
		}
	}
	if owner == "" {
		return column
	}
	return owner + "." + column
}

func (v *Validator) deny(ctx context.Context, identity models.Identity, sql string, reason DenyReason, detail string) Verdict {
	if v.security != nil {
		v.security.LogSecurityViolation(ctx, identity, sql, string(reason), detail)
	}
	return Denied(reason, detail)
}

// Map iteration order is random; sort so the first denial is deterministic.
func sortedTables(refs References) []string {
	tables := make([]string, 0, len(refs.Tables))
	for t := range refs.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

func sortedColumns(refs References) []ColumnRef {
	cols := make([]ColumnRef, 0, len(refs.Columns))
	for c := range refs.Columns {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Table != cols[j].Table {
			return cols[i].Table < cols[j].Table
		}
		return cols[i].Column < cols[j].Column
	})
	return cols
}
