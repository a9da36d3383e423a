package pipes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"geese/internal/config"
	"geese/internal/logging"
)

// PipesDir is the subdirectory of each scope root that holds module files.
const PipesDir = "pipes"

// LoaderConfig locates the global and local scopes.
type LoaderConfig struct {
	// GlobalRoot is the user-global scope root. Empty means GEESE_HOME,
	// then ~/.geese.
	GlobalRoot string

	// Marker is the project marker directory name. Empty means ".geese".
	Marker string

	// BlockedImports overrides DefaultBlockedImports when non-nil.
	BlockedImports []string
}

func (c LoaderConfig) withDefaults() LoaderConfig {
	if c.GlobalRoot == "" {
		if home := os.Getenv("GEESE_HOME"); home != "" {
			c.GlobalRoot = home
		} else {
			c.GlobalRoot = config.PipesConfig{}.GlobalRoot()
		}
	}
	if c.Marker == "" {
		c.Marker = config.MarkerDir
	}
	if c.BlockedImports == nil {
		c.BlockedImports = DefaultBlockedImports
	}
	return c
}

// LoadFailure records one module that could not be loaded.
type LoadFailure struct {
	Path string
	Err  error
}

// LoadReport summarizes a directory load.
type LoadReport struct {
	Dir    string
	Source Source
	Loaded []string
	Failed []LoadFailure
}

// Loader interprets module files and registers them with a Registry.
type Loader struct {
	registry *Registry
	cfg      LoaderConfig

	mu     sync.Mutex
	loaded map[string]string // module path -> operation name
}

func newLoader(r *Registry, cfg LoaderConfig) *Loader {
	return &Loader{
		registry: r,
		cfg:      cfg.withDefaults(),
		loaded:   make(map[string]string),
	}
}

// Config returns the effective loader configuration.
func (l *Loader) Config() LoaderConfig {
	return l.cfg
}

// GlobalDir is the directory holding global modules.
func (l *Loader) GlobalDir() string {
	return filepath.Join(l.cfg.GlobalRoot, PipesDir)
}

// LocalDir returns the project-local modules directory for workingDir,
// or false when no marker directory is found above it.
func (l *Loader) LocalDir(workingDir string) (string, bool) {
	marker, ok := config.FindMarkerDir(workingDir, l.cfg.Marker)
	if !ok {
		return "", false
	}
	return filepath.Join(marker, PipesDir), true
}

// LoadFile interprets one module and registers it. Returns the operation name.
func (l *Loader) LoadFile(path string, source Source) (string, error) {
	mod, err := ParseModule(path, l.cfg.BlockedImports)
	if err != nil {
		return "", err
	}
	if err := l.register(mod, source); err != nil {
		return "", err
	}
	return mod.Name, nil
}

func (l *Loader) register(mod *Module, source Source) error {
	err := l.registry.register(Operation{
		Name:   mod.Name,
		Func:   mod.Func,
		Source: source,
		Path:   mod.Path,
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.loaded[mod.Path] = mod.Name
	l.mu.Unlock()

	logging.Loader("Loaded %s operation %s from %s (%s)", source, mod.Name, mod.Path, mod.Shape)
	return nil
}

// moduleFiles lists the .go files of dir in name order. Test files are
// skipped. A missing directory yields no files and no error.
func moduleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pipes directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isModuleFile(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func isModuleFile(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") && !strings.HasPrefix(name, ".")
}

// LoadDirectory parses every module in dir concurrently, then registers
// the valid ones in file-name order. Invalid modules are logged and
// reported; only an unreadable directory is an error.
func (l *Loader) LoadDirectory(dir string, source Source) (*LoadReport, error) {
	report := &LoadReport{Dir: dir, Source: source}
	timer := logging.StartTimer(logging.CategoryLoader, "load "+dir)
	defer timer.Stop()

	files, err := moduleFiles(dir)
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		logging.LoaderDebug("No modules in %s", dir)
		return report, nil
	}

	mods := make([]*Module, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for idx, path := range files {
		idx, path := idx, path
		g.Go(func() error {
			mods[idx], errs[idx] = ParseModule(path, l.cfg.BlockedImports)
			return nil
		})
	}
	_ = g.Wait()

	for idx, path := range files {
		if errs[idx] == nil {
			errs[idx] = l.register(mods[idx], source)
		}
		if errs[idx] != nil {
			logging.LoaderError("Skipping %s: %v", path, errs[idx])
			report.Failed = append(report.Failed, LoadFailure{Path: path, Err: errs[idx]})
			continue
		}
		report.Loaded = append(report.Loaded, mods[idx].Name)
	}

	logging.Loader("Loaded %d/%d %s modules from %s", len(report.Loaded), len(files), source, dir)
	return report, nil
}

// Unload removes the operation this loader registered from path. A
// definition it was shadowing becomes visible again. Returns the removed
// names.
func (l *Loader) Unload(path string) []string {
	l.mu.Lock()
	name, ok := l.loaded[path]
	delete(l.loaded, path)
	l.mu.Unlock()

	if !ok || !l.registry.unregisterPath(name, path) {
		return nil
	}
	return []string{name}
}

// UnloadAll removes every operation this loader registered. An operation
// since replaced from code survives.
func (l *Loader) UnloadAll() int {
	l.mu.Lock()
	loaded := l.loaded
	l.loaded = make(map[string]string)
	l.mu.Unlock()

	paths := make([]string, 0, len(loaded))
	for path := range loaded {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	count := 0
	for _, path := range paths {
		if l.registry.unregisterPath(loaded[path], path) {
			count++
		}
	}
	return count
}

// InitializeHierarchy unloads previously loaded modules, then loads the
// global scope and the project-local scope above workingDir. Local loads
// last, so local definitions win.
func (l *Loader) InitializeHierarchy(workingDir string) error {
	if n := l.UnloadAll(); n > 0 {
		logging.LoaderDebug("Unloaded %d custom operations before reload", n)
	}

	globalDir := l.GlobalDir()
	if _, err := l.LoadDirectory(globalDir, SourceGlobal); err != nil {
		return err
	}

	localDir, ok := l.LocalDir(workingDir)
	if !ok {
		logging.LoaderDebug("No %s directory above %s; skipping local scope", l.cfg.Marker, workingDir)
		return nil
	}
	if samePath(localDir, globalDir) {
		logging.LoaderDebug("Local scope %s is the global scope; skipping", localDir)
		return nil
	}
	if _, err := l.LoadDirectory(localDir, SourceLocal); err != nil {
		return err
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
