package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"geese/internal/config"
	"geese/internal/logging"
	"geese/internal/pipes"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geese",
	Short: "geese - pipe chains for AI tool configuration",
	Long: `geese renders configuration values written as pipe chains:

  "./prompt.md ~> readFile ~> trim"

Each chain starts with a value and applies operations left to right.
Built-in operations can be overridden by Go modules in ~/.geese/pipes
(global) or <project>/.geese/pipes (local).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	evalCmd.Flags().StringVar(&evalDir, "dir", "", "Directory relative file paths resolve against (default: workspace)")
	evalCmd.Flags().StringArrayVar(&evalVars, "var", nil, "Context variable as key=value (repeatable)")

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print operations as JSON")

	renderCmd.Flags().StringArrayVar(&renderVars, "var", nil, "Context variable as key=value (repeatable)")
	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "", "Write the rendered document to a file instead of stdout")

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engine bundles what every command needs.
type engine struct {
	root     string
	cfg      *config.Config
	registry *pipes.Registry
	executor *pipes.Executor
}

// resolveWorkspace returns the --workspace flag or the working directory.
func resolveWorkspace() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	return os.Getwd()
}

// setupEngine loads configuration, initializes file logging and builds a
// registry with the global and local custom operations loaded.
func setupEngine(ws string) (*engine, error) {
	cfg, root, err := config.LoadForWorkspace(ws)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Initialize(root); err != nil {
		logger.Warn("File logging disabled", zap.Error(err))
	}

	limiter, err := pipes.NewRateLimiter(cfg.Pipes.ReadsPerSecond, cfg.Pipes.ReadBurst)
	if err != nil {
		return nil, err
	}
	reg := pipes.NewRegistry(
		pipes.WithRateLimiter(limiter),
		pipes.WithLoaderConfig(pipes.LoaderConfig{
			GlobalRoot:     cfg.Pipes.GlobalRoot(),
			Marker:         cfg.Pipes.Marker(),
			BlockedImports: cfg.Pipes.BlockedImports,
		}),
		pipes.WithListener(reportEvent),
	)

	logging.Boot("Loading custom operations for %s", ws)
	if err := reg.InitializeHierarchy(ws); err != nil {
		return nil, fmt.Errorf("failed to load custom operations: %w", err)
	}
	logger.Debug("Engine ready",
		zap.String("root", root),
		zap.Int("operations", reg.Count()))

	return &engine{
		root:     root,
		cfg:      cfg,
		registry: reg,
		executor: pipes.NewExecutor(reg),
	}, nil
}

// reportEvent surfaces registry diagnostics through the CLI logger.
func reportEvent(e pipes.Event) {
	switch e.Kind {
	case pipes.EventOverride:
		logger.Warn(e.Message(),
			zap.String("operation", e.Name),
			zap.Stringer("kind", e.Override),
			zap.String("previous", string(e.Previous)),
			zap.String("source", string(e.Source)))
	case pipes.EventEcho:
		logger.Info(e.Message(), zap.Any("value", e.Value))
	}
}
