package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/config"
	"github.com/harrison/stagehand/internal/content"
	"github.com/harrison/stagehand/internal/discovery"
	"github.com/harrison/stagehand/internal/exclude"
	"github.com/harrison/stagehand/internal/fileutil"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/storage"
	"github.com/harrison/stagehand/internal/track"
)

// app bundles everything a subcommand needs for one workspace
type app struct {
	workspace   string
	cfg         *config.Config
	console     *logger.ConsoleLogger
	fileLog     *logger.FileLogger
	log         logger.Logger
	memento     storage.Memento
	store       *track.Store
	fs          fileutil.FS
	excludeGlob string
	out         io.Writer
	errOut      io.Writer
}

// openApp resolves the workspace, loads config, and opens the track store
func openApp(cmd *cobra.Command) (*app, error) {
	workspaceFlag, _ := cmd.Flags().GetString("workspace")
	workspace, err := config.FindWorkspace(workspaceFlag)
	if err != nil {
		return nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var logLevelPtr, storagePtr *string
	var concurrencyPtr *int
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &v
	}
	if cmd.Flags().Changed("storage") {
		v, _ := cmd.Flags().GetString("storage")
		storagePtr = &v
	}
	if cmd.Flags().Changed("max-concurrency") {
		v, _ := cmd.Flags().GetInt("max-concurrency")
		concurrencyPtr = &v
	}
	extraExclude, _ := cmd.Flags().GetStringSlice("exclude")
	cfg.MergeWithFlags(logLevelPtr, storagePtr, concurrencyPtr, extraExclude)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{
		workspace: workspace,
		cfg:       cfg,
		fs:        fileutil.NewWorkspaceFS(workspace),
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
	}

	a.console = logger.NewConsoleLogger(a.errOut, cfg.LogLevel)
	a.log = a.console
	if logDir := cfg.ResolveLogDir(workspace); logDir != "" {
		fileLog, err := logger.NewFileLogger(logDir, cfg.LogLevel)
		if err != nil {
			a.console.LogWarn(fmt.Sprintf("file logging disabled: %v", err))
		} else {
			a.fileLog = fileLog
			a.log = logger.Multi(a.console, fileLog)
		}
	}

	a.memento, err = storage.Open(cfg.Storage, cfg.ResolveStateDir(workspace))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}

	a.store, err = track.NewStore(a.memento, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.fileLog != nil {
		a.store.Subscribe(a.fileLog.LogTrackChange)
	}

	a.excludeGlob, err = exclude.CompileWorkspace(workspace, cfg.Exclude, cfg.DefaultExclude)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("compile exclusions: %w", err)
	}
	a.log.LogDebug(fmt.Sprintf("workspace %s, exclusions %s", workspace, a.excludeGlob))

	return a, nil
}

// Close releases the log file and any database handle
func (a *app) Close() error {
	var firstErr error
	if c, ok := a.memento.(io.Closer); ok {
		if err := c.Close(); err != nil {
			firstErr = err
		}
	}
	if a.fileLog != nil {
		if err := a.fileLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *app) engine() *discovery.Engine {
	return discovery.NewEngine(a.fs, a.log, a.cfg.MaxConcurrency)
}

func (a *app) formatter() *content.Formatter {
	return content.NewFormatter(a.fs, a.log, a.workspace, a.cfg.MaxConcurrency)
}

func (a *app) analyzer() *content.Analyzer {
	return content.NewAnalyzer(a.fs, a.log, a.cfg.MaxConcurrency)
}

// absPaths resolves command arguments against the current directory
func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// stagedIDs maps paths to the ids the active track holds them under.
// Paths that are not staged are returned in missing.
func (a *app) stagedIDs(args []string) (ids []string, missing []string, err error) {
	paths, err := absPaths(args)
	if err != nil {
		return nil, nil, err
	}

	active := a.store.ActiveTrack()
	for _, p := range paths {
		switch {
		case active.Contains(p):
			ids = append(ids, p)
		case active.Contains(models.FileURI(p)):
			ids = append(ids, models.FileURI(p))
		default:
			missing = append(missing, p)
		}
	}
	return ids, missing, nil
}

// resolveTrack finds a track by name first, then by id
func (a *app) resolveTrack(ref string) (models.ContextTrack, error) {
	if t, ok := a.store.TrackByName(ref); ok {
		return t, nil
	}
	for _, t := range a.store.Tracks() {
		if t.ID == ref {
			return t, nil
		}
	}
	return models.ContextTrack{}, fmt.Errorf("%w: %s", track.ErrTrackNotFound, ref)
}
