// Package display provides terminal output for the stagehand CLI.
//
// # Track Listings
//
// TrackView renders tracks and their staged files with pin markers, token
// estimates, and a marker on files above the large-file threshold:
//
//	view := display.NewTrackView(os.Stdout, cfg.LargeFileThreshold)
//	view.Tracks(store.Tracks(), store.ActiveTrackID())
//	large := view.Files(store.ActiveTrack())
//	if len(large) > 0 {
//	    display.WarnLargeFiles(large, view.Threshold).Display(os.Stderr)
//	}
//
// # Progress Indicators
//
// Use ProgressIndicator while folders are scanned:
//
//	progress := display.NewProgressIndicator(os.Stdout, len(folders))
//	progress.Start()
//	progress.Step(folder, len(files))
//	progress.Complete(added)
//
// # Warning Messages
//
// Warnings are shown for rejected operations and oversized payloads:
//
//	display.WarnRejected("Cannot delete track", err, "Create another track first").Display(os.Stderr)
//
// # Token Counts
//
// ShortTokens renders "~950" or "~1.2k"; LongTokens renders "~1,234 tokens".
//
// Color is used only when the writer is a terminal (mattn/go-isatty) and
// NO_COLOR is not set (fatih/color). All functions accept io.Writer for
// testability.
package display
