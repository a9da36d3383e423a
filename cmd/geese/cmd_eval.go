package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geese/internal/pipes"
)

var (
	evalDir  string
	evalVars []string
)

// evalCmd evaluates a single pipe chain
var evalCmd = &cobra.Command{
	Use:   "eval [chain]",
	Short: "Evaluate a pipe chain and print the result",
	Long: `Evaluates one pipe chain with the built-in and custom operations.

Examples:
  geese eval '"  Hello World  " ~> trim ~> toUpperCase'
  geese eval './prompt.md ~> readFile' --dir ./prompts
  geese eval 'x ~> greet' --var user=ada`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	eng, err := setupEngine(ws)
	if err != nil {
		return err
	}

	ctx, err := parseVars(evalVars)
	if err != nil {
		return err
	}
	dir := evalDir
	if dir == "" {
		dir = ws
	}
	ctx[pipes.FileDirKey] = dir

	logger.Debug("Evaluating chain", zap.String("chain", args[0]), zap.String("dir", dir))
	result, err := eng.executor.Evaluate(args[0], ctx)
	if err != nil {
		return err
	}

	out, err := formatResult(result)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// parseVars turns key=value flags into an evaluation context.
func parseVars(vars []string) (pipes.Context, error) {
	ctx := pipes.Context{}
	for _, kv := range vars {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q (expected key=value)", kv)
		}
		if key == pipes.FileDirKey {
			return nil, fmt.Errorf("--var cannot set %s; use --dir", pipes.FileDirKey)
		}
		ctx[key] = value
	}
	return ctx, nil
}

// formatResult prints strings as-is and everything else as JSON.
func formatResult(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := pipes.MarshalJSON(v, "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format result: %w", err)
	}
	return data, nil
}
