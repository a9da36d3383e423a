package pipes

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func opJoin(value any, args []string, _ Context) (any, error) {
	items, err := requireList("join", value)
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = stringOf(item)
	}
	return strings.Join(parts, arg(args, 0, ",")), nil
}

// opMap plucks a property from every object in the list. Items that are
// not objects pass through unchanged.
func opMap(value any, args []string, _ Context) (any, error) {
	items, err := requireList("map", value)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: map requires a property name", ErrContractViolation)
	}
	prop := args[0]

	out := make([]any, len(items))
	for i, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out[i] = obj[prop]
		} else {
			out[i] = item
		}
	}
	return out, nil
}

// opSelect indexes into a list; a missing or unusable index yields nil.
func opSelect(value any, args []string, _ Context) (any, error) {
	items, err := requireList("select", value)
	if err != nil {
		return nil, err
	}
	i, ok := toIndex(arg(args, 0, ""))
	if !ok || i < 0 || i >= len(items) {
		return nil, nil
	}
	return items[i], nil
}

func opFirst(value any, _ []string, _ Context) (any, error) {
	items, err := requireList("first", value)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func opLast(value any, _ []string, _ Context) (any, error) {
	items, err := requireList("last", value)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[len(items)-1], nil
}

func opLength(value any, _ []string, _ Context) (any, error) {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	if items, ok := toList(value); ok {
		return len(items), nil
	}
	return nil, fmt.Errorf("%w: length requires a list or string value, got %s", ErrContractViolation, describe(value))
}
