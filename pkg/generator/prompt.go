package generator

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// systemMessage frames every generation request.
const systemMessage = "You translate user questions into a single PostgreSQL SELECT statement. " +
	"You only ever answer with SQL, a CLARIFY: question, or a refusal."

// buildPrompt renders the generation prompt: rules, the role-filtered
// schema, the foreign key map, and the question. Tables get a singular
// entity label so the model ties "customer" in a question to the
// "customers" table.
func buildPrompt(pc PromptContext) string {
	var b strings.Builder

	b.WriteString("- You are working with a PostgreSQL database.\n")
	b.WriteString("- Generate a valid SQL query answering the user question for the '" + pc.Identity.Role + "' role.\n")
	b.WriteString("- The user is identified by user_id = " + pc.Identity.SubjectID + ".\n")
	if pc.RowFilter != "" {
		b.WriteString("- Automatically apply the following WHERE condition: " + pc.RowFilter + "\n")
	}
	b.WriteString("- Users can only access the tables and columns listed below.\n")
	b.WriteString("- If a request requires anything else, answer exactly: Access Denied.\n")
	b.WriteString("- ONLY generate SELECT queries. Never modify data or the database.\n")
	b.WriteString("- Always join tables using the foreign key mappings below; never invent join conditions.\n")
	b.WriteString("- Do not use table aliases; reference tables by their full names.\n")
	b.WriteString("- Always list column names in the SELECT clause; never use SELECT *.\n")
	b.WriteString("- If the question is unrelated to this database, answer exactly: I don't know.\n")
	b.WriteString("- If the question is vague, do not guess; answer with CLARIFY: followed by one short question.\n")
	b.WriteString("- Your response must contain only the SQL query, with no additional text.\n")

	b.WriteString("\nDatabase schema:\n")
	for _, table := range pc.Schema.Tables() {
		entity := inflection.Singular(table)
		fmt.Fprintf(&b, "Table %q (%s): %s\n", table, entity, strings.Join(pc.Schema.Columns(table), ", "))
	}

	if keys := pc.Schema.ForeignKeys(); len(keys) > 0 {
		b.WriteString("\nForeign key relationships:\n")
		for _, fk := range keys {
			fmt.Fprintf(&b, "- %s.%s -> %s.%s\n", fk.ChildTable, fk.ChildColumn, fk.ParentTable, fk.ParentColumn)
		}
	}

	b.WriteString("\nUser question: " + pc.Question + "\n")

	return b.String()
}
