package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for stagehand
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Stage files into named tracks and render them as LLM context",
		Long: `Stagehand curates a working set of files ("staged files") grouped into
named, persisted tracks, discovers files from folders while respecting ignore
rules, and renders the staged set into a single LLM-ready text payload with
token-size estimates.

State lives in .stagehand/ at the workspace root, which is the nearest
ancestor containing .stagehand or .git.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("workspace", "", "Workspace root (default: nearest .stagehand or .git ancestor)")
	flags.String("config", "", "Path to config file (default: <workspace>/.stagehand/config.yaml)")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	flags.String("storage", "", "State backend: file or sqlite")
	flags.Int("max-concurrency", 0, "Concurrent folder scans and file reads (0 = max(2, CPUs))")
	flags.StringSlice("exclude", nil, "Extra exclusion patterns for this run")

	cmd.AddCommand(NewAddCommand())
	cmd.AddCommand(NewRemoveCommand())
	cmd.AddCommand(NewPinCommand())
	cmd.AddCommand(NewClearCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewTrackCommand())
	cmd.AddCommand(NewCopyCommand())
	cmd.AddCommand(NewPreviewCommand())
	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewFoldersCommand())

	return cmd
}
