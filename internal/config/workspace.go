package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkspaceEnv overrides workspace detection when set
const WorkspaceEnv = "STAGEHAND_WORKSPACE"

// FindWorkspace returns the workspace root for start
// Priority order:
//  1. STAGEHAND_WORKSPACE environment variable (if set)
//  2. Nearest ancestor of start containing .stagehand
//  3. Nearest ancestor of start containing .git
//  4. start itself (fallback)
func FindWorkspace(start string) (string, error) {
	if ws := os.Getenv(WorkspaceEnv); ws != "" {
		return filepath.Abs(ws)
	}

	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		start = cwd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for _, marker := range []string{StateDirName, ".git"} {
		if root, ok := findUp(start, marker); ok {
			return root, nil
		}
	}
	return start, nil
}

// findUp walks from dir towards the filesystem root looking for marker
func findUp(dir, marker string) (string, bool) {
	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
			return current, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}
