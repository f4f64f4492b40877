package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/content"
	"github.com/harrison/stagehand/internal/discovery"
	"github.com/harrison/stagehand/internal/display"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
)

// NewAddCommand creates the 'stagehand add' command
func NewAddCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Stage files and folders into the active track",
		Long: `Stage files and folders into the active track.

Folders are scanned recursively; files matching .gitignore, the configured
exclude patterns, or the built-in defaults are skipped. Adding a file that is
already staged has no effect.

Examples:
  stagehand add main.go
  stagehand add internal/ docs/README.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runAdd(cmd.Context(), a, args, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print per-folder progress")

	return cmd
}

func runAdd(ctx context.Context, a *app, args []string, quiet bool) error {
	targets, err := absPaths(args)
	if err != nil {
		return err
	}

	engine := a.engine()
	cat, err := engine.Categorize(ctx, targets)
	if err != nil {
		return err
	}
	folders := discovery.PruneNestedFolders(cat.Folders)

	var (
		mu       sync.Mutex
		added    []models.StagedFile
		stageErr error
	)
	stage := func(files []string) {
		newFiles, err := a.store.AddFilesToActive(files)
		mu.Lock()
		defer mu.Unlock()
		added = append(added, newFiles...)
		if err != nil && stageErr == nil {
			stageErr = err
		}
	}

	if len(cat.Files) > 0 {
		stage(cat.Files)
	}

	if len(folders) > 0 {
		var progress *display.ProgressIndicator
		if !quiet {
			progress = display.NewProgressIndicator(a.out, len(folders))
			progress.Start()
		}
		err := engine.Scan(ctx, folders, a.excludeGlob, func(folder string, files []string) {
			stage(files)
			if progress != nil {
				progress.Step(folder, len(files))
			}
		})
		if err != nil {
			return err
		}
		if progress != nil {
			progress.Complete(len(added))
		}
	}

	if stageErr != nil {
		return fmt.Errorf("stage files: %w", stageErr)
	}

	var sink content.StatsSink = a.store
	var bar *progressSink
	if !quiet && len(added) > 0 && display.ColorEnabled(a.errOut) {
		bar = newProgressSink(a.store, a.errOut, len(added), true)
		sink = bar
	}
	a.analyzer().EnrichStats(ctx, added, sink)
	if bar != nil {
		bar.Done()
	}

	sum := content.Summarize(a.store.ActiveTrack().Files)
	fmt.Fprintf(a.out, "Staged %d new files into %q (%d total, %s)\n",
		len(added), a.store.ActiveTrack().Name, sum.Files, content.FormatTokenCount(sum.Tokens))
	warnLarge(a, added)
	return nil
}

// progressSink forwards stats and redraws a progress bar per measured file
type progressSink struct {
	content.StatsSink
	bar *logger.ProgressBar
	w   io.Writer
	mu  sync.Mutex
}

func newProgressSink(next content.StatsSink, w io.Writer, total int, color bool) *progressSink {
	bar := logger.NewProgressBar(total, 20, color)
	bar.SetPrefix("Measuring ")
	return &progressSink{StatsSink: next, bar: bar, w: w}
}

func (p *progressSink) UpdateFileStats(id string, stats models.FileStats, isBinary bool) {
	p.StatsSink.UpdateFileStats(id, stats, isBinary)
	p.bar.Increment()

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s", p.bar.Render())
}

// Done ends the progress line
func (p *progressSink) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar.Current() > 0 {
		fmt.Fprintln(p.w)
	}
}

// warnLarge shows a warning for files above the large-file threshold
func warnLarge(a *app, files []models.StagedFile) {
	active := a.store.ActiveTrack()
	formatter := a.formatter()

	var large []string
	for _, f := range files {
		i := active.IndexOf(f.ID)
		if i < 0 {
			continue
		}
		if st := active.Files[i].Stats; st != nil && st.TokenCount > a.cfg.LargeFileThreshold {
			large = append(large, formatter.DisplayPath(f.ID))
		}
	}
	if len(large) > 0 {
		display.WarnLargeFiles(large, a.cfg.LargeFileThreshold).Display(a.errOut)
	}
}

// NewRemoveCommand creates the 'stagehand remove' command
func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>...",
		Aliases: []string{"rm"},
		Short:   "Remove files from the active track",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, missing, err := a.stagedIDs(args)
			if err != nil {
				return err
			}
			if err := a.store.RemoveFilesFromActive(ids); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %d files\n", len(ids))
			if len(missing) > 0 {
				display.Warning{Title: "Not staged", Files: missing}.Display(a.errOut)
			}
			return nil
		},
	}
}

// NewPinCommand creates the 'stagehand pin' command
func NewPinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <path>...",
		Short: "Toggle the pin on staged files (pinned files survive clear)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, missing, err := a.stagedIDs(args)
			if err != nil {
				return err
			}
			if err := a.store.ToggleFilesPin(ids); err != nil {
				return err
			}

			active := a.store.ActiveTrack()
			for _, id := range ids {
				state := "unpinned"
				if i := active.IndexOf(id); i >= 0 && active.Files[i].IsPinned {
					state = "pinned"
				}
				fmt.Fprintf(a.out, "%s %s\n", state, models.LabelFor(id))
			}
			if len(missing) > 0 {
				display.Warning{Title: "Not staged", Files: missing}.Display(a.errOut)
			}
			return nil
		},
	}
}

// NewClearCommand creates the 'stagehand clear' command
func NewClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every unpinned file from the active track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			before := len(a.store.ActiveTrack().Files)
			if err := a.store.ClearActive(); err != nil {
				return err
			}
			kept := len(a.store.ActiveTrack().Files)
			fmt.Fprintf(a.out, "Cleared %d files, kept %d pinned\n", before-kept, kept)
			return nil
		},
	}
}

// NewListCommand creates the 'stagehand list' command
func NewListCommand() *cobra.Command {
	var summaryOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the files in the active track with token estimates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			// Stats are not persisted, measure on every listing
			a.analyzer().EnrichStats(cmd.Context(), a.store.ActiveTrack().Files, a.store)
			active := a.store.ActiveTrack()

			if summaryOnly {
				a.console.LogTrackSummary(active)
				return nil
			}

			view := display.NewTrackView(a.out, a.cfg.LargeFileThreshold)
			view.PathFor = a.formatter().DisplayPath
			if large := view.Files(active); len(large) > 0 {
				display.WarnLargeFiles(large, view.Threshold).Display(a.errOut)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Log a one-line summary instead of the file list")

	return cmd
}
