package schema_test

import (
	"context"
	"testing"

	"github.com/queryshield/queryshield-engine/pkg/schema"
	"github.com/queryshield/queryshield-engine/pkg/testhelpers"
)

func TestLoad(t *testing.T) {
	db := testhelpers.GetTestDB(t)

	catalog, err := schema.Load(context.Background(), db.Pool, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, table := range []string{"customers", "orders", "employees"} {
		if !catalog.HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}

	if !catalog.HasColumn("orders", "total") {
		t.Error("missing orders.total")
	}
	if !catalog.HasColumn("customers", "email") {
		t.Error("missing customers.email")
	}

	// Ordinal order from information_schema.
	cols := catalog.Columns("orders")
	if len(cols) == 0 || cols[0] != "id" {
		t.Errorf("orders columns = %v, want id first", cols)
	}

	pair, ok := catalog.Relation("orders", "customers")
	if !ok {
		t.Fatal("orders -> customers foreign key not discovered")
	}
	if pair.ChildColumn != "customer_id" || pair.ParentColumn != "id" {
		t.Errorf("relation = %+v", pair)
	}
}
