package generator

import (
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	sqlFence   = regexp.MustCompile("(?s)```sql(.*?)```")
	bareFence  = regexp.MustCompile("(?s)```(.*?)```")
	firstSel   = regexp.MustCompile(`(?is)\bSELECT\b\s+.*`)
)

// classifyResponse turns raw provider text into a structured outcome.
// Providers wrap SQL in code fences, prepend reasoning, or answer with one
// of the instructed refusal phrases; this recovers the statement or the
// refusal without ever trusting the text.
func classifyResponse(text string) Outcome {
	text = strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))

	if m := sqlFence.FindStringSubmatch(text); m != nil {
		return Outcome{Kind: OutcomeSQL, SQL: strings.TrimSpace(m[1])}
	}
	if m := bareFence.FindStringSubmatch(text); m != nil {
		inner := strings.TrimSpace(m[1])
		if firstSel.MatchString(inner) {
			return Outcome{Kind: OutcomeSQL, SQL: inner}
		}
	}

	lower := strings.ToLower(text)

	if idx := strings.Index(lower, "clarify:"); idx >= 0 {
		question := strings.TrimSpace(text[idx+len("clarify:"):])
		return Outcome{Kind: OutcomeClarification, Message: question}
	}

	switch {
	case strings.Contains(lower, "access denied"):
		return Outcome{Kind: OutcomeRefusal, Message: "You do not have permission to access this data."}
	case strings.Contains(lower, "i don't know"):
		return Outcome{Kind: OutcomeRefusal, Message: "I can only answer questions about the connected database."}
	case strings.Contains(lower, "not authorized"):
		return Outcome{Kind: OutcomeRefusal, Message: "Your role does not allow this action."}
	}

	if m := firstSel.FindString(text); m != "" {
		return Outcome{Kind: OutcomeSQL, SQL: strings.TrimSpace(m)}
	}

	return Outcome{Kind: OutcomeRefusal, Message: "No usable SQL query in the model response."}
}
