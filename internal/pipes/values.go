package pipes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// stringOf returns the string form of a chain value: nil is empty, numbers
// use their shortest decimal form, lists join their items with commas and
// objects render as compact JSON.
func stringOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	}

	if items, ok := toList(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = stringOf(item)
		}
		return strings.Join(parts, ",")
	}

	if data, err := MarshalJSON(v, ""); err == nil {
		return data
	}
	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toList reports whether v is a list and returns its items. Any slice or
// array except []byte counts.
func toList(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []any:
		return val, true
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return items, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// requireList is toList for operations that reject non-list values.
func requireList(op string, v any) ([]any, error) {
	items, ok := toList(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a list value, got %s", ErrContractViolation, op, describe(v))
	}
	return items, nil
}

// describe names a value's type for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// arg returns args[i] or fallback when absent.
func arg(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}
	return fallback
}

// MarshalJSON renders a chain value without HTML escaping. indent "" is
// compact. NaN and infinities encode as null.
func MarshalJSON(v any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(finite(v)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// finite returns v with every non-finite number replaced by nil. Lists and
// objects are copied, never modified in place.
func finite(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
	case float32:
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = finite(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = finite(item)
		}
		return out
	}
	return v
}

// parseIntPrefix parses the longest leading integer in s using radix,
// after optional whitespace and sign. ok is false when no digit parses.
func parseIntPrefix(s string, radix int) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		negative = s[0] == '-'
		s = s[1:]
	}
	if radix == 16 && len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}

	result := 0.0
	digits := 0
	for _, ch := range strings.ToLower(s) {
		var d int
		switch {
		case ch >= '0' && ch <= '9':
			d = int(ch - '0')
		case ch >= 'a' && ch <= 'z':
			d = int(ch-'a') + 10
		default:
			d = radix
		}
		if d >= radix {
			break
		}
		result = result*float64(radix) + float64(d)
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if negative {
		result = -result
	}
	return result, true
}

// parseFloatPrefix parses the longest leading decimal number in s.
func parseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "Infinity") || strings.HasPrefix(s, "+Infinity") {
		return math.Inf(1), true
	}
	if strings.HasPrefix(s, "-Infinity") {
		return math.Inf(-1), true
	}

	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			seenDigit = true
			end = i + 1
		case (ch == '+' || ch == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		case ch == '.' && !seenDot && !seenExp:
			seenDot = true
		case (ch == 'e' || ch == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			i = len(s)
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		// Out of range still yields ±Inf or ±0, as in JavaScript.
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// toIndex converts a numeric-looking argument to an int, as parseInt would.
func toIndex(s string) (int, bool) {
	f, ok := parseIntPrefix(s, 10)
	if !ok {
		return 0, false
	}
	return int(f), true
}
