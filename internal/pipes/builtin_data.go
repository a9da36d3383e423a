package pipes

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

func opParseJSON(value any, _ []string, _ Context) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(stringOf(value)), &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrParse, err)
	}
	return out, nil
}

// opStringify serializes value as JSON. A numeric indent means that many
// spaces (at most 10, 0 for compact output); any other argument is used
// as the indent string itself.
func opStringify(value any, args []string, _ Context) (any, error) {
	indent := "  "
	if len(args) > 0 {
		if n, ok := toIndex(args[0]); ok {
			n = min(max(n, 0), 10)
			indent = strings.Repeat(" ", n)
		} else {
			indent = args[0]
			if len(indent) > 10 {
				indent = indent[:10]
			}
		}
	}

	out, err := MarshalJSON(value, indent)
	if err != nil {
		return nil, fmt.Errorf("%w: stringify: %v", ErrContractViolation, err)
	}
	return out, nil
}

// opParseYAML extracts flat "key: value" pairs line by line. It is not a
// YAML parser: nesting, lists and multi-line values are not understood.
func opParseYAML(value any, _ []string, _ Context) (any, error) {
	out := map[string]any{}
	for _, line := range strings.Split(stringOf(value), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = unquote(strings.TrimSpace(val))
	}
	return out, nil
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// opParseInt parses the leading integer of the value. Results are float64
// like every other number in a chain; NaN when nothing parses or the radix
// is outside 2..36.
func opParseInt(value any, args []string, _ Context) (any, error) {
	radix := 10
	if len(args) > 0 {
		r, ok := toIndex(args[0])
		if !ok || r == 0 {
			r = 10
		}
		radix = r
	}
	if radix < 2 || radix > 36 {
		return math.NaN(), nil
	}
	n, ok := parseIntPrefix(stringOf(value), radix)
	if !ok {
		return math.NaN(), nil
	}
	return n, nil
}

func opParseFloat(value any, _ []string, _ Context) (any, error) {
	f, ok := parseFloatPrefix(stringOf(value))
	if !ok {
		return math.NaN(), nil
	}
	return f, nil
}

// opDefault substitutes the fallback only for nil or the empty string.
func opDefault(value any, args []string, _ Context) (any, error) {
	if value == nil {
		return arg(args, 0, ""), nil
	}
	if s, ok := value.(string); ok && s == "" {
		return arg(args, 0, ""), nil
	}
	return value, nil
}
