package pipes

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// regexTimeout bounds a single match so a pathological pattern in a
// config file cannot hang rendering.
const regexTimeout = 2 * time.Second

// compilePattern compiles pattern in ECMAScript mode with JavaScript-style
// flag letters. global reports whether the g flag was present.
func compilePattern(op, pattern, flags string) (re *regexp2.Regexp, global bool, err error) {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	for _, f := range flags {
		switch f {
		case 'g':
			global = true
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'u':
			opts |= regexp2.Unicode
		case 'y':
		default:
			return nil, false, fmt.Errorf("%w: %s: invalid regular expression flag %q", ErrContractViolation, op, f)
		}
	}

	re, err = regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: invalid regular expression /%s/: %v", ErrContractViolation, op, pattern, err)
	}
	re.MatchTimeout = regexTimeout
	return re, global, nil
}

// opMatch returns [full, group1, ...] for the first match, or every full
// match with the g flag. No match yields an empty list.
func opMatch(value any, args []string, _ Context) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: match requires a pattern", ErrContractViolation)
	}
	re, global, err := compilePattern("match", args[0], arg(args, 1, ""))
	if err != nil {
		return nil, err
	}

	input := stringOf(value)
	m, err := re.FindStringMatch(input)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	result := []any{}
	if m == nil {
		return result, nil
	}

	if !global {
		for _, g := range m.Groups() {
			if len(g.Captures) == 0 {
				result = append(result, nil)
				continue
			}
			result = append(result, g.String())
		}
		return result, nil
	}

	for m != nil {
		result = append(result, m.String())
		if m, err = re.FindNextMatch(m); err != nil {
			return nil, fmt.Errorf("match: %w", err)
		}
	}
	return result, nil
}

func opTest(value any, args []string, _ Context) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: test requires a pattern", ErrContractViolation)
	}
	re, _, err := compilePattern("test", args[0], arg(args, 1, ""))
	if err != nil {
		return nil, err
	}
	ok, err := re.MatchString(stringOf(value))
	if err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}
	return ok, nil
}

// opFilter keeps the list items whose string form matches the pattern.
func opFilter(value any, args []string, _ Context) (any, error) {
	items, err := requireList("filter", value)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: filter requires a pattern", ErrContractViolation)
	}
	re, _, err := compilePattern("filter", args[0], "")
	if err != nil {
		return nil, err
	}

	out := []any{}
	for _, item := range items {
		ok, err := re.MatchString(stringOf(item))
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
