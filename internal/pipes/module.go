package pipes

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ModuleShape identifies how a module file exports its operation.
type ModuleShape int

const (
	// ShapeInvalid is returned alongside an error.
	ShapeInvalid ModuleShape = iota

	// ShapeFunc: the file declares func Pipe; the operation is named
	// after the file.
	ShapeFunc

	// ShapeNamed: the file declares a string Name and func Fn.
	ShapeNamed

	// ShapeDefault: the file declares func Default; the operation is
	// named after the file.
	ShapeDefault
)

func (s ModuleShape) String() string {
	switch s {
	case ShapeFunc:
		return "func"
	case ShapeNamed:
		return "named"
	case ShapeDefault:
		return "default"
	default:
		return "invalid"
	}
}

// Exported identifiers a module may declare.
const (
	symbolPipe    = "Pipe"
	symbolName    = "Name"
	symbolFn      = "Fn"
	symbolDefault = "Default"
)

// DefaultBlockedImports are rejected in every module.
var DefaultBlockedImports = []string{"unsafe", "syscall", "os/exec", "plugin"}

// moduleFunc is the interpreted form of Func. Modules cannot name the
// pipes package, so they use the underlying map type for the context.
type moduleFunc = func(value interface{}, args []string, ctx map[string]interface{}) (interface{}, error)

// Module is a parsed and interpreted custom operation file.
type Module struct {
	Path  string
	Name  string
	Shape ModuleShape
	Func  Func
}

// moduleDecls is what classifyModule needs from a file's top-level declarations.
type moduleDecls struct {
	pkg   string
	funcs map[string]*ast.FuncDecl
	names map[string]bool
}

// classifyModule resolves the export shape from the file's AST.
func classifyModule(path string, src []byte, blocked []string) (ModuleShape, *moduleDecls, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		return ShapeInvalid, nil, fmt.Errorf("%w: %s: %v", ErrInvalidModule, path, err)
	}

	for _, imp := range file.Imports {
		importPath, _ := strconv.Unquote(imp.Path.Value)
		for _, b := range blocked {
			if importPath == b || strings.HasPrefix(importPath, b+"/") {
				return ShapeInvalid, nil, fmt.Errorf("%w: %s: import %q is not allowed", ErrInvalidModule, path, importPath)
			}
		}
	}

	decls := &moduleDecls{
		pkg:   file.Name.Name,
		funcs: make(map[string]*ast.FuncDecl),
		names: make(map[string]bool),
	}
	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.FuncDecl:
			if decl.Recv == nil {
				decls.funcs[decl.Name.Name] = decl
			}
		case *ast.GenDecl:
			if decl.Tok != token.CONST && decl.Tok != token.VAR {
				continue
			}
			for _, spec := range decl.Specs {
				if vs, ok := spec.(*ast.ValueSpec); ok {
					for _, ident := range vs.Names {
						decls.names[ident.Name] = true
					}
				}
			}
		}
	}

	_, hasPipe := decls.funcs[symbolPipe]
	_, hasFn := decls.funcs[symbolFn]
	_, hasDefault := decls.funcs[symbolDefault]
	hasName := decls.names[symbolName]

	if hasName != hasFn {
		return ShapeInvalid, nil, fmt.Errorf("%w: %s: Name and Fn must be declared together", ErrInvalidModule, path)
	}

	var shapes []ModuleShape
	if hasPipe {
		shapes = append(shapes, ShapeFunc)
	}
	if hasName && hasFn {
		shapes = append(shapes, ShapeNamed)
	}
	if hasDefault {
		shapes = append(shapes, ShapeDefault)
	}

	switch len(shapes) {
	case 0:
		return ShapeInvalid, nil, fmt.Errorf("%w: %s: expected func Pipe, Name with func Fn, or func Default", ErrInvalidModule, path)
	case 1:
		if fn := decls.funcs[entrySymbol(shapes[0])]; !hasPipeSignature(fn) {
			return ShapeInvalid, nil, fmt.Errorf("%w: %s: %s must be func(value any, args []string, ctx map[string]any) (any, error)",
				ErrInvalidModule, path, fn.Name.Name)
		}
		return shapes[0], decls, nil
	default:
		return ShapeInvalid, nil, fmt.Errorf("%w: %s: ambiguous module exports %v", ErrInvalidModule, path, shapes)
	}
}

func entrySymbol(shape ModuleShape) string {
	switch shape {
	case ShapeNamed:
		return symbolFn
	case ShapeDefault:
		return symbolDefault
	default:
		return symbolPipe
	}
}

// hasPipeSignature checks parameter and result counts. Exact types are
// checked after interpretation.
func hasPipeSignature(fn *ast.FuncDecl) bool {
	if fn == nil || fn.Type.Params == nil || fn.Type.Results == nil {
		return false
	}
	return fn.Type.Params.NumFields() == 3 && fn.Type.Results.NumFields() == 2
}

// ParseModule reads, classifies and interprets a module file. It does not
// touch any registry and is safe to call concurrently.
func ParseModule(path string, blocked []string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidModule, path, err)
	}
	return parseModuleSource(path, src, blocked)
}

func parseModuleSource(path string, src []byte, blocked []string) (*Module, error) {
	if blocked == nil {
		blocked = DefaultBlockedImports
	}
	shape, decls, err := classifyModule(path, src, blocked)
	if err != nil {
		return nil, err
	}

	// A fresh interpreter per load, so edits on disk are always seen.
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("%w: %s: evaluation failed: %v", ErrInvalidModule, path, err)
	}

	entry := entrySymbol(shape)
	v, err := i.Eval(decls.pkg + "." + entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s not found: %v", ErrInvalidModule, path, entry, err)
	}
	fn, ok := v.Interface().(moduleFunc)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s has type %s, expected func(any, []string, map[string]any) (any, error)",
			ErrInvalidModule, path, entry, v.Type())
	}

	name := baseName(path)
	if shape == ShapeNamed {
		nv, err := i.Eval(decls.pkg + "." + symbolName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: Name: %v", ErrInvalidModule, path, err)
		}
		if nv.Kind() != reflect.String || nv.String() == "" {
			return nil, fmt.Errorf("%w: %s: Name must be a non-empty string", ErrInvalidModule, path)
		}
		name = nv.String()
	}

	return &Module{
		Path:  path,
		Name:  name,
		Shape: shape,
		Func: func(value any, args []string, ctx Context) (any, error) {
			return fn(value, args, ctx)
		},
	}, nil
}

// baseName is the file name without directory or extension.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
