// Package render applies pipe chains to configuration documents.
//
// Every string leaf that contains the chain delimiter is evaluated; all
// other values are copied unchanged. A failing chain is recorded against
// its property path and leaves the original string in place, so one bad
// property never aborts the rest of the document.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geese/internal/logging"
	"geese/internal/pipes"
)

// PropertyError is a chain failure at one property of a document.
type PropertyError struct {
	Path string
	Err  error
}

func (e PropertyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e PropertyError) Unwrap() error {
	return e.Err
}

// Result is a rendered document and the properties that failed.
type Result struct {
	Document  any
	Errors    []PropertyError
	Evaluated int
}

// OK reports whether every chain evaluated.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Renderer evaluates the chains in a document.
type Renderer struct {
	executor *pipes.Executor
}

// New creates a Renderer backed by exec.
func New(exec *pipes.Executor) *Renderer {
	return &Renderer{executor: exec}
}

// Render walks doc and evaluates every chain in it with ctx.
func (r *Renderer) Render(doc any, ctx pipes.Context) *Result {
	res := &Result{}
	res.Document = r.walk("", doc, ctx, res)
	return res
}

func (r *Renderer) walk(path string, v any, ctx pipes.Context, res *Result) any {
	switch val := v.(type) {
	case string:
		if !pipes.IsChain(val) {
			return val
		}
		res.Evaluated++
		out, err := r.executor.Evaluate(val, ctx)
		if err != nil {
			logging.RenderWarn("Property %s failed: %v", displayPath(path), err)
			res.Errors = append(res.Errors, PropertyError{Path: displayPath(path), Err: err})
			return val
		}
		return out

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(val))
		for _, k := range keys {
			out[k] = r.walk(joinKey(path, k), val[k], ctx, res)
		}
		return out

	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.walk(path+"["+strconv.Itoa(i)+"]", item, ctx, res)
		}
		return out
	}
	return v
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

// SlowRenderThreshold is how long RenderFile may take before it logs a
// warning instead of a debug timing line.
const SlowRenderThreshold = 2 * time.Second

// RenderFile reads a JSON or YAML document and renders it. Relative file
// paths in its chains resolve against the document's directory. vars are
// copied into the evaluation context.
func (r *Renderer) RenderFile(path string, vars map[string]any) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryRender, "render "+path)
	defer timer.StopWithThreshold(SlowRenderThreshold)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := Decode(abs, data)
	if err != nil {
		return nil, err
	}

	ctx := make(pipes.Context, len(vars)+1)
	for k, v := range vars {
		ctx[k] = v
	}
	ctx[pipes.FileDirKey] = filepath.Dir(abs)

	res := r.Render(doc, ctx)
	logging.Render("Rendered %s: %d chains, %d failed", abs, res.Evaluated, len(res.Errors))
	return res, nil
}

// Decode parses data as YAML for .yaml/.yml files and as JSON otherwise.
func Decode(path string, data []byte) (any, error) {
	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", pipes.ErrParse, path, err)
		}
		return normalize(doc), nil
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", pipes.ErrParse, path, err)
		}
		return doc, nil
	}
}

// normalize converts YAML-decoded values into the shapes chains expect:
// non-string map keys become strings and integers become float64.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	}
	return v
}
