package models

import (
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultTrackName is the name given to tracks synthesized on first run or after recovery
const DefaultTrackName = "Default"

// FileStats holds the token and character estimates for a staged file
type FileStats struct {
	TokenCount int `json:"tokenCount"`
	CharCount  int `json:"charCount"`
}

// StagedFile represents one staged file reference
type StagedFile struct {
	ID       string     // Canonical resource identifier (absolute path or file:// URI)
	Label    string     // Display name (last path segment)
	IsPinned bool       // Pinned files survive ClearActive
	IsBinary *bool      // Set by content analysis, nil until analyzed
	Stats    *FileStats // Populated after staging, nil while pending
}

// NewStagedFile creates an unpinned StagedFile for the given resource id
func NewStagedFile(id string) StagedFile {
	return StagedFile{
		ID:    id,
		Label: LabelFor(id),
	}
}

// Binary reports whether content analysis flagged the file as binary
func (f StagedFile) Binary() bool {
	return f.IsBinary != nil && *f.IsBinary
}

// Clone returns a deep copy of the file so callers never share pointers with the owner
func (f StagedFile) Clone() StagedFile {
	out := f
	if f.IsBinary != nil {
		b := *f.IsBinary
		out.IsBinary = &b
	}
	if f.Stats != nil {
		s := *f.Stats
		out.Stats = &s
	}
	return out
}

// ContextTrack is a named, ordered collection of staged files
type ContextTrack struct {
	ID    string
	Name  string
	Files []StagedFile
}

// Clone returns a deep copy of the track
func (t *ContextTrack) Clone() ContextTrack {
	out := ContextTrack{
		ID:    t.ID,
		Name:  t.Name,
		Files: make([]StagedFile, len(t.Files)),
	}
	for i, f := range t.Files {
		out.Files[i] = f.Clone()
	}
	return out
}

// IndexOf returns the position of the file with the given id, or -1
func (t *ContextTrack) IndexOf(id string) int {
	for i := range t.Files {
		if t.Files[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether the track holds a file with the given id
func (t *ContextTrack) Contains(id string) bool {
	return t.IndexOf(id) >= 0
}

// TrackCollection is the full Track Store state
type TrackCollection struct {
	Tracks        map[string]*ContextTrack
	Order         []string // Track ids in creation order
	ActiveTrackID string
}

// NewTrackCollection returns an empty collection
func NewTrackCollection() *TrackCollection {
	return &TrackCollection{
		Tracks: make(map[string]*ContextTrack),
	}
}

// LabelFor derives the display label (last path segment) from a resource id
func LabelFor(id string) string {
	return filepath.Base(PathFromID(id))
}

// PathFromID converts a resource id into a filesystem path.
// file:// URIs are decoded; anything else is returned unchanged.
func PathFromID(id string) string {
	if !strings.HasPrefix(id, "file://") {
		return id
	}
	u, err := url.Parse(id)
	if err != nil {
		return strings.TrimPrefix(id, "file://")
	}
	return filepath.FromSlash(u.Path)
}

// FileURI returns the file:// URI form of an absolute path
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
