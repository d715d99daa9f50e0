package sqlguard

import (
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// Screener rejects statements matching known-dangerous SQL constructs.
// It is a defense-in-depth layer that runs before structural parsing so
// malformed adversarial input never reaches the extractor.
type Screener struct {
	patterns []*regexp.Regexp
}

// NewScreener builds a screener from an ordered list of compiled
// case-insensitive patterns.
func NewScreener(patterns []*regexp.Regexp) *Screener {
	return &Screener{patterns: patterns}
}

// Scan checks the statement against every configured pattern in order and
// returns the source text of the first match. A statement containing a
// semicolon outside string literals is always flagged, regardless of the
// configured patterns: after normalization a remaining semicolon means a
// second statement is stacked behind the first.
func (s *Screener) Scan(sql string) (pattern string, matched bool) {
	if hasSemicolonOutsideStrings(sql) {
		return "multiple statements", true
	}
	for _, re := range s.patterns {
		if re.MatchString(sql) {
			return re.String(), true
		}
	}
	return "", false
}

// ScreenValue checks an untrusted scalar (such as the caller-supplied
// subject identifier) for SQL injection patterns using libinjection.
// Returns the libinjection fingerprint when flagged.
func ScreenValue(value string) (fingerprint string, flagged bool) {
	isSQLi, fp := libinjection.IsSQLi(value)
	if isSQLi {
		return string(fp), true
	}
	return "", false
}

// Normalize trims whitespace and strips a trailing semicolon so that a
// well-formed single statement carries no semicolons at all.
func Normalize(sql string) string {
	sql = strings.TrimSpace(sql)
	if strings.HasSuffix(sql, ";") {
		sql = strings.TrimRight(strings.TrimSuffix(sql, ";"), " \t\n\r")
	}
	return sql
}

// hasSemicolonOutsideStrings reports whether the SQL contains a semicolon
// outside single-quoted strings and double-quoted identifiers.
func hasSemicolonOutsideStrings(sql string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prev := rune(0)

	for _, r := range sql {
		switch state {
		case stateNormal:
			switch r {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Both backslash escape (\') and SQL doubled quotes ('') keep
			// us effectively inside the string.
			if r == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if r == '"' && prev != '\\' {
				state = stateNormal
			}
		}
		prev = r
	}

	return false
}
