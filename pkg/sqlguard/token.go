package sqlguard

import "strings"

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenSymbol
)

// token is one lexical unit of a SQL statement. Unquoted identifiers are
// folded to lower case the way PostgreSQL folds them; quoted identifiers
// keep their exact spelling.
type token struct {
	kind tokenKind
	text string
}

// tokenize splits a SQL statement into tokens, discarding whitespace and
// comments. It never fails: unterminated strings or comments simply consume
// the rest of the input, which is the safe direction for a screener that
// runs before this pass anyway.
func tokenize(sql string) []token {
	var tokens []token
	runes := []rune(sql)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++

		case r == '-' && peek(runes, i+1) == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		case r == '/' && peek(runes, i+1) == '*':
			i += 2
			for i < len(runes) {
				if runes[i] == '*' && peek(runes, i+1) == '/' {
					i += 2
					break
				}
				i++
			}

		case r == '\'':
			start := i
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					if peek(runes, i+1) == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, token{kind: tokenString, text: string(runes[start:i])})

		case r == '"':
			i++
			start := i
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: string(runes[start:i])})
			if i < len(runes) {
				i++
			}

		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: strings.ToLower(string(runes[start:i]))})

		case r >= '0' && r <= '9':
			start := i
			for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i])})

		default:
			tokens = append(tokens, token{kind: tokenSymbol, text: string(r)})
			i++
		}
	}

	return tokens
}

func peek(runes []rune, i int) rune {
	if i < len(runes) {
		return runes[i]
	}
	return 0
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '$'
}
