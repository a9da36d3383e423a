// Package pipes implements the pipe operation engine used in geese
// configuration values.
//
// A pipe chain is a string of the form
//
//	value ~> op arg ~> op "quoted arg" ...
//
// evaluated left to right: the quote-stripped initial segment becomes the
// running value and each operation's result feeds the next one.
//
// Architecture:
//
//	Executor.Evaluate → Tokenize(args) → Registry.Execute → Func(value, args, ctx)
//
// The Registry is populated with the built-in library at construction and
// with custom operations (Go source interpreted by yaegi) from the global
// and project-local pipes directories by InitializeHierarchy.
package pipes
