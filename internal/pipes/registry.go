package pipes

import (
	"fmt"
	"sort"
	"sync"

	"geese/internal/logging"
)

// DefaultReadsPerSecond is the file-read budget of a registry built without
// WithRateLimiter.
const DefaultReadsPerSecond = 10

// Registry maps operation names to functions and records their provenance.
// It is thread-safe: registration is serialized against concurrent lookups.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation

	// shipped keeps the built-in definition of every built-in name so that
	// unregistering a custom override restores it.
	shipped map[string]Operation

	// shadowed holds, oldest first, the custom definitions hidden by a
	// later registration of the same name.
	shadowed map[string][]Operation

	limiter *RateLimiter
	events  listenerSet
	loader  *Loader
}

// Option configures a Registry.
type Option func(*Registry)

// WithRateLimiter replaces the default file-read limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(r *Registry) {
		if rl != nil {
			r.limiter = rl
		}
	}
}

// WithLoaderConfig configures where InitializeHierarchy looks for custom
// operations and which imports modules may use.
func WithLoaderConfig(cfg LoaderConfig) Option {
	return func(r *Registry) {
		r.loader = newLoader(r, cfg)
	}
}

// WithListener subscribes l before the built-ins are registered.
func WithListener(l Listener) Option {
	return func(r *Registry) {
		r.events.add(l)
	}
}

// NewRegistry creates a registry holding the built-in library.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ops:      make(map[string]Operation),
		shipped:  make(map[string]Operation),
		shadowed: make(map[string][]Operation),
		limiter:  MustRateLimiter(DefaultReadsPerSecond, DefaultReadsPerSecond),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = newLoader(r, LoaderConfig{})
	}

	for name, fn := range r.builtins() {
		op := Operation{Name: name, Func: fn, Source: SourceBuiltin}
		r.ops[name] = op
		r.shipped[name] = op
	}
	logging.RegistryDebug("Registered %d built-in operations", len(r.ops))
	return r
}

// Register adds or replaces an operation. Replacing an existing name is
// not an error: it publishes an EventOverride and the new definition wins.
func (r *Registry) Register(name string, fn Func, source Source) error {
	return r.register(Operation{Name: name, Func: fn, Source: source})
}

func (r *Registry) register(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("%w: operation name cannot be empty", ErrInvalidOperation)
	}
	if op.Func == nil {
		return fmt.Errorf("%w: operation %q must be a function", ErrInvalidOperation, op.Name)
	}
	if !op.Source.Valid() {
		return fmt.Errorf("%w: operation %q has unknown source %q", ErrInvalidOperation, op.Name, op.Source)
	}

	r.mu.Lock()
	previous, exists := r.ops[op.Name]
	if exists && !previous.IsBuiltin() {
		// A module reloaded from the same file replaces itself.
		stack := withoutPath(r.shadowed[op.Name], op.Path)
		if op.Path == "" || previous.Path != op.Path {
			stack = append(stack, previous)
		}
		r.shadowed[op.Name] = stack
	}
	r.ops[op.Name] = op
	if op.IsBuiltin() {
		r.shipped[op.Name] = op
	}
	r.mu.Unlock()

	logging.RegistryDebug("Registered operation: %s (source=%s)", op.Name, op.Source)
	if exists {
		kind := classifyOverride(previous.Source, op.Source)
		logging.RegistryWarn("Operation %s overridden: %s (%s -> %s)", op.Name, kind, previous.Source, op.Source)
		r.events.publish(Event{
			Kind:     EventOverride,
			Name:     op.Name,
			Override: kind,
			Previous: previous.Source,
			Source:   op.Source,
		})
	}
	return nil
}

// Unregister removes name. The definition it was shadowing becomes
// visible again: the previous custom operation if there is one, otherwise
// the built-in. Reports whether anything was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(name)
}

func (r *Registry) unregisterLocked(name string) bool {
	current, ok := r.ops[name]
	if !ok {
		return false
	}
	if current.IsBuiltin() {
		delete(r.shipped, name)
	}

	if stack := r.shadowed[name]; len(stack) > 0 {
		previous := stack[len(stack)-1]
		r.setShadowed(name, stack[:len(stack)-1])
		r.ops[name] = previous
		logging.Registry("Unregistered %s (%s); %s definition restored", name, current.Source, previous.Source)
		return true
	}
	if builtin, ok := r.shipped[name]; ok {
		r.ops[name] = builtin
		logging.Registry("Unregistered %s (%s); built-in restored", name, current.Source)
		return true
	}
	delete(r.ops, name)
	logging.RegistryDebug("Unregistered %s (%s)", name, current.Source)
	return true
}

// unregisterPath removes the definition of name that was loaded from path,
// whether it is the visible one or a shadowed one.
func (r *Registry) unregisterPath(name, path string) bool {
	if path == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.ops[name]; ok && current.Path == path {
		return r.unregisterLocked(name)
	}
	stack := r.shadowed[name]
	rest := withoutPath(stack, path)
	if len(rest) == len(stack) {
		return false
	}
	r.setShadowed(name, rest)
	logging.RegistryDebug("Dropped shadowed %s from %s", name, path)
	return true
}

func (r *Registry) setShadowed(name string, stack []Operation) {
	if len(stack) == 0 {
		delete(r.shadowed, name)
		return
	}
	r.shadowed[name] = stack
}

// withoutPath returns ops minus the entries loaded from path. A fresh
// slice is returned so callers may append without aliasing.
func withoutPath(ops []Operation, path string) []Operation {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if path != "" && op.Path == path {
			continue
		}
		out = append(out, op)
	}
	return out
}

// Has returns true if an operation with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ops[name]
	return ok
}

// Get returns the function registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	op, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return op.Func, true
}

// Lookup returns the full operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Execute runs an operation by name. The operation's result and error are
// returned unchanged; ErrOperationNotFound if the name is unknown.
func (r *Registry) Execute(name string, value any, args []string, ctx Context) (any, error) {
	fn, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}
	if args == nil {
		args = []string{}
	}
	return fn(value, args, ctx)
}

// List returns all registered operation names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListWithSources returns every operation with its provenance, sorted by name.
func (r *Registry) ListWithSources() []OperationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]OperationInfo, 0, len(r.ops))
	for name, op := range r.ops {
		infos = append(infos, OperationInfo{
			Name:      name,
			Exists:    op.Func != nil,
			Source:    op.Source,
			IsBuiltin: op.IsBuiltin(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Count returns the number of registered operations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// Subscribe registers a listener for override and echo events.
// The returned function removes it.
func (r *Registry) Subscribe(l Listener) func() {
	return r.events.add(l)
}

// RateLimiter returns the limiter consulted by readFile and loadFile.
func (r *Registry) RateLimiter() *RateLimiter {
	return r.limiter
}

// Loader returns the custom operation loader bound to this registry.
func (r *Registry) Loader() *Loader {
	return r.loader
}

// LoadCustomPipe interprets one module file and registers its operation.
func (r *Registry) LoadCustomPipe(path string, source Source) (string, error) {
	return r.loader.LoadFile(path, source)
}

// LoadFromDirectory loads every module in dir. Invalid modules are logged
// and reported, not fatal.
func (r *Registry) LoadFromDirectory(dir string, source Source) (*LoadReport, error) {
	return r.loader.LoadDirectory(dir, source)
}

// InitializeHierarchy (re)loads the global scope and then the project-local
// scope found from workingDir.
func (r *Registry) InitializeHierarchy(workingDir string) error {
	return r.loader.InitializeHierarchy(workingDir)
}
