package pipes

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor() *Executor {
	return NewExecutor(NewRegistry())
}

func TestEvaluateWithoutOperations(t *testing.T) {
	ex := newTestExecutor()

	tests := []struct {
		raw  string
		want string
	}{
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{`"  keeps inner space  "`, "  keeps inner space  "},
		{`""double""`, `"double"`},
		{`"mismatched'`, `"mismatched'`},
		{`"`, `"`},
		{`a\"b`, `a\"b`},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := ex.Evaluate(tt.raw, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Evaluate(%q)", tt.raw)
	}
}

func TestEvaluateNonStringPassesThrough(t *testing.T) {
	ex := newTestExecutor()
	for _, v := range []any{nil, 42.0, true, []any{"a"}, map[string]any{"k": "v"}} {
		got, err := ex.Evaluate(v, nil)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEvaluateChains(t *testing.T) {
	ex := newTestExecutor()

	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"trim and upper", `"  Hello World  " ~> trim ~> toUpperCase`, "HELLO WORLD"},
		{"split then length", `"a,b,c" ~> split , ~> length`, 3},
		{"initial value not tokenized", `a\ "b" ~> toUpperCase`, `A\ "B"`},
		{"quoted argument", `hello world ~> replace "hello" "goodbye cruel"`, "goodbye cruel world"},
		{"split join", `a-b-c ~> split - ~> join +`, "a+b+c"},
		{"select", `x,y,z ~> split ~> select 1`, "y"},
		{"json path", `{"items":[{"n":"a"},{"n":"b"}]} ~> parseJson`, map[string]any{"items": []any{map[string]any{"n": "a"}, map[string]any{"n": "b"}}}},
		{"default on empty", `"" ~> default fallback`, "fallback"},
		{"segment without args", `abc ~> length`, 3},
		{"extra spaces around segments", `abc   ~>   toUpperCase   `, "ABC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ex.Evaluate(tt.raw, Context{})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestEvaluateStopsAtFirstError(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	require.NoError(t, reg.Register("count", func(v any, _ []string, _ Context) (any, error) {
		calls++
		return v, nil
	}, SourceLocal))
	ex := NewExecutor(reg)

	_, err := ex.Evaluate(`x ~> count ~> join ~> count`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContractViolation))
	assert.Equal(t, 1, calls)
}

func TestEvaluateUnknownOperation(t *testing.T) {
	ex := newTestExecutor()
	_, err := ex.Evaluate(`x ~> frobnicate`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperationNotFound))
	assert.Contains(t, err.Error(), "frobnicate")

	_, err = ex.Evaluate(`x ~> `, nil)
	assert.True(t, errors.Is(err, ErrOperationNotFound), "empty segment names no operation")
}

func TestEvaluatePassesContext(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("env", func(_ any, args []string, ctx Context) (any, error) {
		return ctx[args[0]], nil
	}, SourceLocal))

	got, err := NewExecutor(reg).Evaluate(`ignored ~> env user`, Context{"user": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada", got)
}

func TestEchoPublishesEvent(t *testing.T) {
	reg := NewRegistry()
	var echoed []any
	reg.Subscribe(func(e Event) {
		if e.Kind == EventEcho {
			echoed = append(echoed, e.Value)
		}
	})

	got, err := NewExecutor(reg).Evaluate(`abc ~> echo ~> toUpperCase ~> echo`, nil)
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)
	assert.Equal(t, []any{"abc", "ABC"}, echoed)
}

func TestParse(t *testing.T) {
	initial, segs := Parse(`'v' ~> op a "b c" ~> bare`)
	assert.Equal(t, "v", initial)
	want := []Segment{
		{Name: "op", Args: []string{"a", "b c"}},
		{Name: "bare", Args: []string{}},
	}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, IsChain("a ~> b"))
	assert.False(t, IsChain("a > b"))
}
