package pipes

import (
	"fmt"
	"sync"
)

// EventKind distinguishes the diagnostics a Registry publishes.
type EventKind int

const (
	// EventOverride fires when a registration replaces an existing name.
	EventOverride EventKind = iota

	// EventEcho fires when the echo operation passes a value through.
	EventEcho
)

func (k EventKind) String() string {
	switch k {
	case EventOverride:
		return "override"
	case EventEcho:
		return "echo"
	default:
		return "unknown"
	}
}

// OverrideKind describes which provenance rule an override hit.
type OverrideKind int

const (
	// OverrideGeneric covers every combination without a dedicated message.
	OverrideGeneric OverrideKind = iota

	// OverrideBuiltin: a custom operation replaced a built-in.
	OverrideBuiltin

	// OverrideGlobalByLocal: a project-local operation replaced a global one.
	OverrideGlobalByLocal

	// OverrideLocalRedefinition: a local operation was defined twice.
	OverrideLocalRedefinition
)

func (k OverrideKind) String() string {
	switch k {
	case OverrideBuiltin:
		return "builtin-overridden"
	case OverrideGlobalByLocal:
		return "global-overridden-by-local"
	case OverrideLocalRedefinition:
		return "local-redefinition"
	default:
		return "generic"
	}
}

// classifyOverride applies the provenance precedence rules.
func classifyOverride(previous, next Source) OverrideKind {
	switch {
	case previous == SourceBuiltin && next != SourceBuiltin:
		return OverrideBuiltin
	case previous == SourceGlobal && next == SourceLocal:
		return OverrideGlobalByLocal
	case previous == SourceLocal && next == SourceLocal:
		return OverrideLocalRedefinition
	default:
		return OverrideGeneric
	}
}

// Event is a diagnostic published by a Registry. Fields not relevant to
// Kind are left zero.
type Event struct {
	Kind EventKind

	// Name of the operation involved.
	Name string

	// Override details (EventOverride).
	Override OverrideKind
	Previous Source
	Source   Source

	// Value passed through echo (EventEcho).
	Value any
}

// Message renders the event the way the CLI reports it.
func (e Event) Message() string {
	switch e.Kind {
	case EventOverride:
		switch e.Override {
		case OverrideBuiltin:
			return fmt.Sprintf("custom operation %q overrides the built-in", e.Name)
		case OverrideGlobalByLocal:
			return fmt.Sprintf("local operation %q overrides the global one", e.Name)
		case OverrideLocalRedefinition:
			return fmt.Sprintf("local operation %q is defined more than once", e.Name)
		default:
			return fmt.Sprintf("operation %q (%s) replaced by %s definition", e.Name, e.Previous, e.Source)
		}
	case EventEcho:
		return fmt.Sprintf("echo: %s", stringOf(e.Value))
	default:
		return e.Name
	}
}

// Listener receives registry events. Listeners run synchronously on the
// goroutine that triggered the event.
type Listener func(Event)

type listenerSet struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func (s *listenerSet) add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]Listener)
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *listenerSet) publish(e Event) {
	s.mu.RLock()
	snapshot := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			snapshot = append(snapshot, l)
		}
	}
	s.mu.RUnlock()

	for _, l := range snapshot {
		l(e)
	}
}
