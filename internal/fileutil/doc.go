// Package fileutil provides the host file-system services used by discovery
// and the content pipeline.
//
// The FS interface is the boundary between the staging pipeline and the
// underlying storage: stat, read, recursive glob search and direct-children
// listing. OSFS is the local implementation.
//
// # Glob search
//
// OSFS.Glob walks a single root with filepath.WalkDir and never leaves it.
// Candidate paths are matched relative to the root using doublestar syntax
// ("**" crosses directories). Excluded directories are pruned before they are
// entered, which keeps scans of large dependency trees cheap:
//
//	files, err := fsys.Glob(ctx, "/repo/src", fileutil.MatchAll, excludeGlob, 0)
//
// Exclusions are matched relative to the searched root, or relative to
// OSFS.Base when the candidate lies inside it. NewWorkspaceFS sets Base to the
// workspace so a pattern such as "docs/build" also applies when only "docs" is
// searched.
//
// Results are sorted. A positive limit stops the walk once that many files
// have been collected. Cancellation returns the files found so far together
// with the context error.
//
// # Error tolerance
//
// Unreadable subdirectories are skipped and the walk continues. Only a missing
// or non-directory root, an invalid pattern, or cancellation ends a search
// early.
package fileutil
