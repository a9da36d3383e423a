package pipes

// FileDirKey is the one context key the engine reserves. File operations
// resolve relative paths against its value.
const FileDirKey = "_geeseFileDir"

// Context is the caller-supplied map passed unchanged to every operation
// in a chain. The engine never mutates it.
type Context map[string]any

// FileDir returns the directory relative file paths resolve against.
func (c Context) FileDir() string {
	dir, _ := c[FileDirKey].(string)
	return dir
}

// Func is the signature every operation implements.
// args is always the tokenized argument list, possibly empty.
type Func func(value any, args []string, ctx Context) (any, error)

// Source records where an operation was registered from.
type Source string

const (
	// SourceBuiltin marks the operations shipped with the engine.
	SourceBuiltin Source = "builtin"

	// SourceGlobal marks operations loaded from the user-global pipes directory.
	SourceGlobal Source = "global"

	// SourceLocal marks operations loaded from the project-local pipes directory.
	SourceLocal Source = "local"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceBuiltin, SourceGlobal, SourceLocal:
		return true
	}
	return false
}

// Operation is a registered, named function together with its provenance.
type Operation struct {
	// Name is the unique key in the registry.
	Name string

	// Func is invoked by Registry.Execute.
	Func Func

	// Source is the registration origin.
	Source Source

	// Path is the module file a custom operation was loaded from.
	// Empty for built-ins and operations registered in code.
	Path string
}

// IsBuiltin reports whether the operation ships with the engine.
func (o Operation) IsBuiltin() bool {
	return o.Source == SourceBuiltin
}

// OperationInfo is one row of Registry.ListWithSources.
type OperationInfo struct {
	Name      string `json:"name"`
	Exists    bool   `json:"exists"`
	Source    Source `json:"source"`
	IsBuiltin bool   `json:"isBuiltin"`
}
