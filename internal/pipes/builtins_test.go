package pipes

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, name string, value any, args ...string) any {
	t.Helper()
	got, err := NewRegistry().Execute(name, value, args, Context{})
	require.NoError(t, err, "%s(%v, %q)", name, value, args)
	return got
}

func runErr(t *testing.T, name string, value any, args ...string) error {
	t.Helper()
	_, err := NewRegistry().Execute(name, value, args, Context{})
	require.Error(t, err, "%s(%v, %q)", name, value, args)
	return err
}

func TestStringOperations(t *testing.T) {
	assert.Equal(t, "x y", run(t, "trim", "\t x y \n"))
	assert.Equal(t, "ABC", run(t, "toUpperCase", "abc"))
	assert.Equal(t, "abc", run(t, "toLowerCase", "ABC"))
	assert.Equal(t, "", run(t, "trim", nil))
	assert.Equal(t, "42", run(t, "trim", 42.0))
}

func TestSubstring(t *testing.T) {
	tests := []struct {
		value string
		args  []string
		want  string
	}{
		{"hello", []string{"1", "3"}, "el"},
		{"hello", []string{"2"}, "llo"},
		{"hello", []string{"abc"}, "hello"},
		{"hello", []string{"3", "1"}, "el"},
		{"hello", []string{"-2", "99"}, "hello"},
		{"héllo", []string{"1", "2"}, "é"},
		{"hello", nil, "hello"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, run(t, "substring", tt.value, tt.args...), "substring(%q, %q)", tt.value, tt.args)
	}
}

func TestReplace(t *testing.T) {
	assert.Equal(t, "a-b-c", run(t, "replace", "a.b.c", ".", "-"))
	assert.Equal(t, "literal (x)", run(t, "replace", "literal (.*)", ".*", "x"))

	for _, args := range [][]string{nil, {"a"}, {"a", "b", "c"}} {
		err := runErr(t, "replace", "abc", args...)
		assert.True(t, errors.Is(err, ErrContractViolation))
	}
}

func TestSplitAndJoin(t *testing.T) {
	assert.Equal(t, []any{"a", "b", "c"}, run(t, "split", "a,b,c"))
	assert.Equal(t, []any{"a", "b"}, run(t, "split", "a::b", "::"))
	assert.Equal(t, []any{""}, run(t, "split", ""))

	assert.Equal(t, "a,b", run(t, "join", []any{"a", "b"}))
	assert.Equal(t, "a b", run(t, "join", []any{"a", "b"}, " "))
	assert.Equal(t, "1,,true", run(t, "join", []any{1.0, nil, true}))
	assert.Equal(t, "x|y", run(t, "join", []string{"x", "y"}, "|"))
}

func TestListOperationsRequireList(t *testing.T) {
	for _, op := range []string{"join", "filter", "map", "select", "first", "last"} {
		t.Run(op, func(t *testing.T) {
			err := runErr(t, op, "not-a-list", "x")
			assert.True(t, errors.Is(err, ErrContractViolation))
			assert.Contains(t, err.Error(), op)
		})
	}
}

func TestListAccessors(t *testing.T) {
	list := []any{"a", "b", "c"}
	assert.Equal(t, "a", run(t, "first", list))
	assert.Equal(t, "c", run(t, "last", list))
	assert.Nil(t, run(t, "first", []any{}))
	assert.Nil(t, run(t, "last", []any{}))

	assert.Equal(t, "b", run(t, "select", list, "1"))
	assert.Nil(t, run(t, "select", list, "9"))
	assert.Nil(t, run(t, "select", list, "-1"))
	assert.Nil(t, run(t, "select", list))
}

func TestLength(t *testing.T) {
	assert.Equal(t, 3, run(t, "length", []any{1, 2, 3}))
	assert.Equal(t, 5, run(t, "length", "héllo"))
	assert.Equal(t, 0, run(t, "length", ""))

	err := runErr(t, "length", 12.0)
	assert.True(t, errors.Is(err, ErrContractViolation))
}

func TestMap(t *testing.T) {
	list := []any{
		map[string]any{"name": "a"},
		map[string]any{"other": 1},
		"plain",
	}
	got := run(t, "map", list, "name")
	if diff := cmp.Diff([]any{"a", nil, "plain"}, got); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}

	err := runErr(t, "map", list)
	assert.True(t, errors.Is(err, ErrContractViolation))
}

func TestRegexOperations(t *testing.T) {
	assert.Equal(t, true, run(t, "test", "Hello", "^h", "i"))
	assert.Equal(t, false, run(t, "test", "Hello", "^h"))

	assert.Equal(t, []any{"v1.2", "1", "2"}, run(t, "match", "tag v1.2 v3.4", `v(\d)\.(\d)`))
	assert.Equal(t, []any{"v1.2", "v3.4"}, run(t, "match", "tag v1.2 v3.4", `v\d\.\d`, "g"))
	assert.Equal(t, []any{}, run(t, "match", "nothing", `\d+`))
	assert.Equal(t, []any{"a", nil}, run(t, "match", "a", `a(b)?`))

	assert.Equal(t, []any{"apple", "apricot"}, run(t, "filter", []any{"apple", "banana", "apricot"}, "^ap"))

	// Character classes are ASCII-only, as in JavaScript.
	assert.Equal(t, false, run(t, "test", "٣", `^\d$`))
	assert.Equal(t, true, run(t, "test", "3", `^\d$`))
	assert.Equal(t, false, run(t, "test", "é", `^\w$`))
	assert.Equal(t, true, run(t, "test", "a\nb", `a.b`, "s"))
	assert.Equal(t, true, run(t, "test", "x", `^\u{78}$`, "u"))

	for _, op := range []string{"match", "test"} {
		err := runErr(t, op, "x")
		assert.True(t, errors.Is(err, ErrContractViolation), op)
	}

	err := runErr(t, "test", "x", "(")
	assert.True(t, errors.Is(err, ErrContractViolation))

	err = runErr(t, "test", "x", "x", "q")
	assert.True(t, errors.Is(err, ErrContractViolation))
}

func TestParseJSON(t *testing.T) {
	got := run(t, "parseJson", `{"a":[1,"two",null]}`)
	assert.Equal(t, map[string]any{"a": []any{1.0, "two", nil}}, got)

	err := runErr(t, "parseJson", `{"a":`)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "failed to parse JSON")
}

func TestStringify(t *testing.T) {
	v := map[string]any{"a": 1.0, "b": "<x>"}
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": \"<x>\"\n}", run(t, "stringify", v))
	assert.Equal(t, `{"a":1,"b":"<x>"}`, run(t, "stringify", v, "0"))
	assert.Equal(t, "{\n    \"a\": 1,\n    \"b\": \"<x>\"\n}", run(t, "stringify", v, "4"))
	assert.Equal(t, "{\n\t\"a\": 1,\n\t\"b\": \"<x>\"\n}", run(t, "stringify", v, "\t"))
	assert.Equal(t, `"s"`, run(t, "stringify", "s"))
}

func TestStringifyNonFiniteNumbers(t *testing.T) {
	assert.Equal(t, "null", run(t, "stringify", math.NaN()))
	assert.Equal(t, `[1,null,null]`, run(t, "stringify", []any{1.0, math.Inf(1), math.Inf(-1)}, "0"))
	assert.Equal(t, `{"n":null}`, run(t, "stringify", map[string]any{"n": math.NaN()}, "0"))

	got, err := newTestExecutor().Evaluate(`abc ~> parseInt ~> stringify`, nil)
	require.NoError(t, err)
	assert.Equal(t, "null", got)
}

func TestParseYAML(t *testing.T) {
	doc := "# comment\nname: \"geese\"\n\nversion: 1.2\nurl: http://x:80\nbad line\n: empty\n"
	want := map[string]any{
		"name":    "geese",
		"version": "1.2",
		"url":     "http://x:80",
	}
	assert.Equal(t, want, run(t, "parseYaml", doc))
}

func TestParseNumbers(t *testing.T) {
	assert.Equal(t, 42.0, run(t, "parseInt", "42px"))
	assert.Equal(t, -7.0, run(t, "parseInt", "  -7"))
	assert.Equal(t, 255.0, run(t, "parseInt", "ff", "16"))
	assert.Equal(t, 255.0, run(t, "parseInt", "0xff", "16"))
	assert.Equal(t, 5.0, run(t, "parseInt", "101", "2"))
	assert.True(t, math.IsNaN(run(t, "parseInt", "abc").(float64)))
	assert.True(t, math.IsNaN(run(t, "parseInt", "10", "1").(float64)))
	assert.True(t, math.IsNaN(run(t, "parseInt", "10", "37").(float64)))

	assert.Equal(t, 3.5, run(t, "parseFloat", "3.5kg"))
	assert.Equal(t, 1500.0, run(t, "parseFloat", "1.5e3"))
	assert.Equal(t, -0.5, run(t, "parseFloat", "-.5"))
	assert.True(t, math.IsInf(run(t, "parseFloat", "Infinity").(float64), 1))
	assert.True(t, math.IsNaN(run(t, "parseFloat", "x1").(float64)))

	assert.True(t, math.IsInf(run(t, "parseFloat", "1e999").(float64), 1))
	assert.True(t, math.IsInf(run(t, "parseFloat", "-1e999").(float64), -1))
	assert.Equal(t, 0.0, run(t, "parseFloat", "1e-999"))
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "fb", run(t, "default", nil, "fb"))
	assert.Equal(t, "fb", run(t, "default", "", "fb"))
	assert.Equal(t, "", run(t, "default", nil))
	assert.Equal(t, "x", run(t, "default", "x", "fb"))
	assert.Equal(t, 0.0, run(t, "default", 0.0, "fb"))
	assert.Equal(t, false, run(t, "default", false, "fb"))
}

func TestStringOf(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{3.0, "3"},
		{0.1, "0.1"},
		{math.NaN(), "NaN"},
		{3, "3"},
		{true, "true"},
		{[]any{"a", 1.0, nil}, "a,1,"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stringOf(tt.in), "stringOf(%#v)", tt.in)
	}
}
