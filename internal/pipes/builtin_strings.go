package pipes

import (
	"fmt"
	"strings"
)

func opTrim(value any, _ []string, _ Context) (any, error) {
	return strings.TrimSpace(stringOf(value)), nil
}

func opToUpperCase(value any, _ []string, _ Context) (any, error) {
	return strings.ToUpper(stringOf(value)), nil
}

func opToLowerCase(value any, _ []string, _ Context) (any, error) {
	return strings.ToLower(stringOf(value)), nil
}

// opSubstring slices by character: non-numeric bounds count as 0,
// bounds clamp to the string, and reversed bounds are swapped.
func opSubstring(value any, args []string, _ Context) (any, error) {
	runes := []rune(stringOf(value))
	n := len(runes)

	clamp := func(s string) int {
		i, ok := toIndex(s)
		switch {
		case !ok || i < 0:
			return 0
		case i > n:
			return n
		}
		return i
	}

	start := clamp(arg(args, 0, "0"))
	end := n
	if len(args) > 1 {
		end = clamp(args[1])
	}
	if start > end {
		start, end = end, start
	}
	return string(runes[start:end]), nil
}

// opReplace is a literal, global replacement.
func opReplace(value any, args []string, _ Context) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: replace requires exactly 2 arguments (pattern, replacement), got %d", ErrContractViolation, len(args))
	}
	return strings.ReplaceAll(stringOf(value), args[0], args[1]), nil
}

func opSplit(value any, args []string, _ Context) (any, error) {
	parts := strings.Split(stringOf(value), arg(args, 0, ","))
	items := make([]any, len(parts))
	for i, p := range parts {
		items[i] = p
	}
	return items, nil
}
