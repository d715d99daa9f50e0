package generator

import (
	"strings"
	"testing"

	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/schema"
)

func promptContext() PromptContext {
	return PromptContext{
		Question: "Who are my customers?",
		Schema: schema.New(map[string][]string{
			"customers": {"id", "name"},
			"orders":    {"id", "customer_id", "total"},
		}, []schema.ForeignKey{
			{ChildTable: "orders", ChildColumn: "customer_id", ParentTable: "customers", ParentColumn: "id"},
		}),
		RowFilter: "orders.customer_id = 42",
		Identity:  models.Identity{Role: "support", SubjectID: "42"},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(promptContext())

	for _, want := range []string{
		"'support' role",
		"user_id = 42",
		"orders.customer_id = 42",
		`Table "customers" (customer): id, name`,
		`Table "orders" (order): id, customer_id, total`,
		"- orders.customer_id -> customers.id",
		"User question: Who are my customers?",
		"ONLY generate SELECT queries",
		"never use SELECT *",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_NoRowFilter(t *testing.T) {
	pc := promptContext()
	pc.RowFilter = ""

	prompt := buildPrompt(pc)

	if strings.Contains(prompt, "Automatically apply") {
		t.Error("row filter instruction present without a configured filter")
	}
}

func TestBuildPrompt_OnlyFilteredSchemaVisible(t *testing.T) {
	pc := promptContext()

	prompt := buildPrompt(pc)

	// The prompt may only name what the filtered catalog contains.
	if strings.Contains(prompt, "employees") || strings.Contains(prompt, "salary") {
		t.Error("prompt leaked schema outside the filtered catalog")
	}
}
