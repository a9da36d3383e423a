package pipes

import "geese/internal/logging"

// builtins returns the built-in library. Operations that need registry
// state (the file limiter, the event bus) are bound to r.
func (r *Registry) builtins() map[string]Func {
	return map[string]Func{
		// Strings
		"trim":        opTrim,
		"substring":   opSubstring,
		"toUpperCase": opToUpperCase,
		"toLowerCase": opToLowerCase,
		"replace":     opReplace,
		"split":       opSplit,

		// Lists
		"join":   opJoin,
		"filter": opFilter,
		"map":    opMap,
		"select": opSelect,
		"first":  opFirst,
		"last":   opLast,
		"length": opLength,

		// Regular expressions
		"match": opMatch,
		"test":  opTest,

		// Files
		"readFile": r.readFile,
		"loadFile": r.readFile,

		// Types and documents
		"parseJson":  opParseJSON,
		"stringify":  opStringify,
		"parseYaml":  opParseYAML,
		"parseInt":   opParseInt,
		"parseFloat": opParseFloat,
		"default":    opDefault,

		// Diagnostics
		"echo": r.echo,
	}
}

// echo passes the value through and publishes it as an EventEcho.
func (r *Registry) echo(value any, _ []string, _ Context) (any, error) {
	logging.ChainDebug("echo: %s", stringOf(value))
	r.events.publish(Event{Kind: EventEcho, Name: "echo", Value: value})
	return value, nil
}
