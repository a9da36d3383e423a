package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geese/internal/pipes"
)

func newRenderer() *Renderer {
	return New(pipes.NewExecutor(pipes.NewRegistry()))
}

func TestRenderIsolatesFailures(t *testing.T) {
	doc := map[string]any{
		"title": "plain text",
		"upper": "abc ~> toUpperCase",
		"nested": map[string]any{
			"bad":  "x ~> nope",
			"list": []any{"a,b ~> split ~> length", 7.0, "y ~> join"},
		},
	}

	res := newRenderer().Render(doc, pipes.Context{})

	want := map[string]any{
		"title": "plain text",
		"upper": "ABC",
		"nested": map[string]any{
			"bad":  "x ~> nope",
			"list": []any{2, 7.0, "y ~> join"},
		},
	}
	if diff := cmp.Diff(want, res.Document); diff != "" {
		t.Errorf("rendered document mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, res.OK())
	assert.Equal(t, 4, res.Evaluated)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "nested.bad", res.Errors[0].Path)
	assert.True(t, errors.Is(res.Errors[0], pipes.ErrOperationNotFound))
	assert.Equal(t, "nested.list[2]", res.Errors[1].Path)
	assert.True(t, errors.Is(res.Errors[1], pipes.ErrContractViolation))
}

func TestRenderLeavesPlainStringsAlone(t *testing.T) {
	res := newRenderer().Render(`"  quoted  "`, nil)
	assert.Equal(t, `"  quoted  "`, res.Document)
	assert.True(t, res.OK())
	assert.Zero(t, res.Evaluated)
}

func TestRenderRootChain(t *testing.T) {
	res := newRenderer().Render("x ~> nope", nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "$", res.Errors[0].Path)
	assert.Contains(t, res.Errors[0].Error(), "$: ")
}

func TestRenderFileSetsFileDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt.md"), []byte("You are helpful."), 0644))
	docPath := filepath.Join(dir, "geese.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{
  "system": "./prompt.md ~> readFile ~> trim",
  "name": "bot",
  "who": "ignored ~> user"
}`), 0644))

	reg := pipes.NewRegistry()
	require.NoError(t, reg.Register("user", func(_ any, _ []string, ctx pipes.Context) (any, error) {
		return ctx["user"], nil
	}, pipes.SourceLocal))

	res, err := New(pipes.NewExecutor(reg)).RenderFile(docPath, map[string]any{"user": "ada"})
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Errors)

	assert.Equal(t, map[string]any{
		"system": "You are helpful.",
		"name":   "bot",
		"who":    "ada",
	}, res.Document)
}

func TestRenderFileYAML(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "geese.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte("count: 3\nitems:\n  - a ~> toUpperCase\n  - b\n"), 0644))

	res, err := newRenderer().RenderFile(docPath, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"count": 3.0,
		"items": []any{"A", "b"},
	}, res.Document)
}

func TestRenderFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := newRenderer().RenderFile(filepath.Join(dir, "missing.json"), nil)
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"a":`), 0644))
	_, err = newRenderer().RenderFile(bad, nil)
	assert.True(t, errors.Is(err, pipes.ErrParse))
}
