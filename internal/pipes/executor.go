package pipes

import (
	"strings"

	"github.com/google/uuid"

	"geese/internal/logging"
)

// Delimiter separates the segments of a pipe chain.
const Delimiter = "~>"

// Executor evaluates pipe chains against a Registry.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor bound to reg.
func NewExecutor(reg *Registry) *Executor {
	return &Executor{registry: reg}
}

// Registry returns the registry operations are resolved against.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Segment is one parsed operation of a chain.
type Segment struct {
	Name string
	Args []string
}

// Parse splits a chain into its initial value and operation segments.
// The initial value is trimmed and loses one layer of matching quotes; it
// is never tokenized. Operation arguments go through Tokenize.
func Parse(raw string) (string, []Segment) {
	parts := strings.Split(raw, Delimiter)
	initial := unquote(strings.TrimSpace(parts[0]))

	segments := make([]Segment, 0, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		name, rest, found := strings.Cut(part, " ")
		args := []string{}
		if found {
			args = Tokenize(rest)
		}
		segments = append(segments, Segment{Name: name, Args: args})
	}
	return initial, segments
}

// Evaluate runs a chain. Non-string input is returned unchanged. The first
// error from any operation aborts the chain and is returned as-is.
func (e *Executor) Evaluate(raw any, ctx Context) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}

	initial, segments := Parse(s)
	if len(segments) == 0 {
		return initial, nil
	}

	log := logging.WithRequestID(logging.CategoryChain, uuid.NewString()).
		WithField("ops", len(segments))
	log.Debug("evaluating chain")

	var value any = initial
	for _, seg := range segments {
		result, err := e.registry.Execute(seg.Name, value, seg.Args, ctx)
		if err != nil {
			log.Error("operation %s failed: %v", seg.Name, err)
			return nil, err
		}
		log.Debug("operation %s args=%q ok", seg.Name, seg.Args)
		value = result
	}
	log.Info("chain evaluated")
	return value, nil
}

// IsChain reports whether s contains the chain delimiter.
func IsChain(s string) bool {
	return strings.Contains(s, Delimiter)
}
