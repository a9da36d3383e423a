package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geese/internal/pipes"
	"geese/internal/render"
)

var (
	renderVars []string
	renderOut  string
)

// renderCmd renders every chain in a JSON or YAML document
var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render the pipe chains in a configuration document",
	Long: `Evaluates every string value containing "~>" in a JSON or YAML document
and prints the result as JSON. Relative paths resolve against the document's
directory. A failing property keeps its original text and is reported; the
rest of the document still renders.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	eng, err := setupEngine(ws)
	if err != nil {
		return err
	}

	vars, err := parseVars(renderVars)
	if err != nil {
		return err
	}

	res, err := render.New(eng.executor).RenderFile(args[0], vars)
	if err != nil {
		return err
	}
	for _, perr := range res.Errors {
		logger.Warn("Property failed", zap.String("property", perr.Path), zap.Error(perr.Err))
	}

	data, err := pipes.MarshalJSON(res.Document, "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if renderOut != "" {
		if err := os.WriteFile(renderOut, []byte(data+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", renderOut, err)
		}
		logger.Info("Rendered document written", zap.String("path", renderOut))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), data)
	}

	if !res.OK() {
		return fmt.Errorf("%d of %d properties failed", len(res.Errors), res.Evaluated)
	}
	return nil
}
