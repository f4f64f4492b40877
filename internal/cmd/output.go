package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/content"
	"github.com/harrison/stagehand/internal/debounce"
	"github.com/harrison/stagehand/internal/display"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/preview"
	"github.com/harrison/stagehand/internal/storage"
	"github.com/harrison/stagehand/internal/watcher"
)

// clipboardWrite is replaced in tests
var clipboardWrite = clipboard.WriteAll

// NewCopyCommand creates the 'stagehand copy' command
func NewCopyCommand() *cobra.Command {
	var toClipboard bool
	var outFile string
	var from []string

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Render the active track into one LLM-ready text payload",
		Long: `Render the active track into one LLM-ready text payload.

Each text file becomes a "File: <path>" header followed by a fenced block
tagged with the file extension. Binary files are replaced by a skip marker and
unreadable files by an error marker.

Examples:
  stagehand copy                  # print to stdout
  stagehand copy --clipboard      # copy to the system clipboard
  stagehand copy -o context.md    # write to a file
  stagehand copy --from internal  # render paths directly, without staging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runCopy(cmd.Context(), a, from, toClipboard, outFile)
		},
	}

	cmd.Flags().BoolVarP(&toClipboard, "clipboard", "c", false, "Copy the payload to the clipboard")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the payload to a file")
	cmd.Flags().StringSliceVar(&from, "from", nil, "Render these files and folders instead of the active track")

	return cmd
}

func runCopy(ctx context.Context, a *app, from []string, toClipboard bool, outFile string) error {
	files := a.store.ActiveTrack().Files
	if len(from) > 0 {
		collected, err := collect(ctx, a, from)
		if err != nil {
			return err
		}
		files = collected
	}

	text := a.formatter().Format(ctx, files)
	stats := content.Measure(text)

	switch {
	case outFile != "":
		if err := storage.AtomicWrite(outFile, []byte(text)); err != nil {
			return err
		}
	case toClipboard:
		if err := clipboardWrite(text); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	default:
		fmt.Fprintln(a.out, text)
	}

	skipped := len(preview.Placeholders(text))
	msg := fmt.Sprintf("Rendered %d of %d files, %s", preview.CountBlocks(text), len(files), content.FormatTokenCount(stats.TokenCount))
	if skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", skipped)
	}
	a.log.LogInfo(msg)
	return nil
}

// collect expands paths into staged-file values without touching any track
func collect(ctx context.Context, a *app, paths []string) ([]models.StagedFile, error) {
	targets, err := absPaths(paths)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var files []models.StagedFile
	err = a.engine().CollectFiles(ctx, targets, a.excludeGlob, func(_ string, found []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, models.NewStagedFile(f))
			}
		}
	})
	return files, err
}

// NewPreviewCommand creates the 'stagehand preview' command
func NewPreviewCommand() *cobra.Command {
	var outFile string
	var watch bool

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the active track to an HTML page",
		Long: `Render the active track to an HTML page with a token summary.

With --watch the page is re-rendered whenever a staged file changes on disk;
deleted and renamed files are removed from or updated in every track.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if outFile == "" {
				outFile = filepath.Join(a.cfg.ResolveStateDir(a.workspace), "preview.html")
			}
			return runPreview(cmd.Context(), a, outFile, watch)
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "HTML output file (default: <state_dir>/preview.html)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and re-render on changes")

	return cmd
}

func runPreview(ctx context.Context, a *app, outFile string, watch bool) error {
	registry := preview.NewRegistry()
	defer registry.CloseAll()

	factory := func() (preview.Panel, error) {
		return preview.NewHTMLPanel(outFile), nil
	}
	formatter := a.formatter()
	render := func() error {
		if err := a.store.Refresh(); err != nil {
			a.log.LogWarn(err.Error())
		}
		active := a.store.ActiveTrack()
		return registry.Show(preview.PanelKey, factory, preview.Payload{
			Title:   active.Name,
			Text:    formatter.Format(ctx, active.Files),
			Summary: content.Summarize(active.Files),
		})
	}

	a.analyzer().EnrichStats(ctx, a.store.ActiveTrack().Files, a.store)
	if err := render(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Preview written to %s\n", outFile)
	if !watch {
		return nil
	}

	// Stop runs before the deferred CloseAll and waits for a running render
	refresh := debounce.New(a.cfg.PreviewDebounce, func() {
		if err := render(); err != nil {
			a.log.LogError(fmt.Sprintf("preview refresh failed: %v", err))
			return
		}
		a.log.LogDebug("preview refreshed")
	})
	defer refresh.Stop()

	unsubscribe := a.store.Subscribe(func(models.ContextTrack) { refresh.Trigger() })
	defer unsubscribe()

	return watchWorkspace(ctx, a, func(watcher.Event) {})
}

// NewWatchCommand creates the 'stagehand watch' command
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep staged files in sync with renames and deletions until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(a.out, "Watching %s (Ctrl+C to stop)\n", a.workspace)
			return watchWorkspace(cmd.Context(), a, func(ev watcher.Event) {
				switch ev.Kind {
				case watcher.Renamed:
					fmt.Fprintf(a.out, "%s %s -> %s\n", ev.Kind, models.LabelFor(ev.ID), models.LabelFor(ev.NewID))
				default:
					fmt.Fprintf(a.out, "%s %s\n", ev.Kind, models.LabelFor(ev.ID))
				}
			})
		},
	}
}

// watchWorkspace runs the file watcher until ctx is done, re-measuring files
// whose content changed and passing every event to onEvent
func watchWorkspace(ctx context.Context, a *app, onEvent func(watcher.Event)) error {
	w, err := watcher.New(a.workspace, a.store, watcher.Options{
		ExcludeGlob: a.excludeGlob,
		Logger:      a.log,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	analyzer := a.analyzer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			a.log.LogWarn(fmt.Sprintf("watcher: %v", err))
		case ev := <-w.Events():
			if ev.Kind == watcher.ContentChanged {
				if res, err := analyzer.Analyze(ctx, ev.ID); err == nil {
					a.store.UpdateFileStats(ev.ID, res.Stats, res.IsBinary)
				}
			}
			onEvent(ev)
		}
	}
}

// NewFoldersCommand creates the 'stagehand folders' command
func NewFoldersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List candidate folders in the workspace for staging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			folders, err := a.engine().DiscoverWorkspaceFolders(cmd.Context(), []string{a.workspace}, a.excludeGlob)
			if err != nil {
				return err
			}
			rels := make([]string, 0, len(folders))
			for _, f := range folders {
				rel, err := filepath.Rel(a.workspace, f)
				if err != nil {
					rel = f
				}
				rels = append(rels, filepath.ToSlash(rel))
			}
			display.NewTrackView(a.out, a.cfg.LargeFileThreshold).Folders(rels)
			return nil
		},
	}
}
