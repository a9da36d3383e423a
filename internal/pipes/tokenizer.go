package pipes

import "strings"

// Tokenize splits an operation's raw argument text into arguments.
//
// Spaces separate arguments. A backslash makes the next character literal.
// Single or double quotes group text (quotes are dropped); inside a quoted
// run the other quote character is ordinary content, and closing the run
// always yields an argument, even an empty one. An unterminated quote
// absorbs the rest of the input without error.
func Tokenize(raw string) []string {
	tokens := []string{}
	var current strings.Builder
	inQuotes := false
	escaped := false
	var quote rune

	for _, ch := range raw {
		switch {
		case escaped:
			current.WriteRune(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case (ch == '"' || ch == '\'') && !inQuotes:
			inQuotes = true
			quote = ch
		case inQuotes && ch == quote:
			tokens = append(tokens, current.String())
			current.Reset()
			inQuotes = false
			quote = 0
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
