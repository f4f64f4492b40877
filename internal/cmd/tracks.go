package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/display"
	"github.com/harrison/stagehand/internal/track"
)

// NewTrackCommand creates the 'stagehand track' command group
func NewTrackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Manage named tracks of staged files",
		Long: `Manage named tracks of staged files.

Each track is an independent set of staged files. Exactly one track is active;
add, remove, pin, clear, copy and preview operate on it.`,
	}

	cmd.AddCommand(newTrackNewCommand())
	cmd.AddCommand(newTrackListCommand())
	cmd.AddCommand(newTrackSwitchCommand())
	cmd.AddCommand(newTrackRenameCommand())
	cmd.AddCommand(newTrackDeleteCommand())

	return cmd
}

func newTrackNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty track and switch to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.store.CreateTrack(args[0])
			if errors.Is(err, track.ErrDuplicateTrackName) || errors.Is(err, track.ErrEmptyTrackName) {
				display.WarnRejected("Cannot create track", err, "Pick a different name").Display(a.errOut)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created track %q (%s)\n", t.Name, t.ID)
			return nil
		},
	}
}

func newTrackListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracks; the active one is marked with *",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			view := display.NewTrackView(a.out, a.cfg.LargeFileThreshold)
			view.Tracks(a.store.Tracks(), a.store.ActiveTrackID())
			return nil
		},
	}
}

func newTrackSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <name|id>",
		Short: "Make a track the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.resolveTrack(args[0])
			if err != nil {
				display.WarnRejected("Cannot switch track", err, "Run 'stagehand track list' to see track names").Display(a.errOut)
				return nil
			}
			if err := a.store.SwitchToTrack(t.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Switched to %q\n", t.Name)
			return nil
		},
	}
}

func newTrackRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name|id> <new-name>",
		Short: "Rename a track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.resolveTrack(args[0])
			if err != nil {
				display.WarnRejected("Cannot rename track", err, "").Display(a.errOut)
				return nil
			}
			if err := a.store.RenameTrack(t.ID, args[1]); err != nil {
				if errors.Is(err, track.ErrEmptyTrackName) {
					display.WarnRejected("Cannot rename track", err, "").Display(a.errOut)
					return nil
				}
				return err
			}
			fmt.Fprintf(a.out, "Renamed %q to %q\n", t.Name, args[1])
			return nil
		},
	}
}

func newTrackDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a track (the last remaining track cannot be deleted)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.resolveTrack(args[0])
			if err != nil {
				display.WarnRejected("Cannot delete track", err, "").Display(a.errOut)
				return nil
			}
			err = a.store.DeleteTrack(t.ID)
			if errors.Is(err, track.ErrLastTrack) {
				display.WarnRejected("Cannot delete track", err, "Create another track first").Display(a.errOut)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %q, active track is now %q\n", t.Name, a.store.ActiveTrack().Name)
			return nil
		},
	}
}
