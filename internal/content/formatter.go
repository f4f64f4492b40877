// Package content turns staged file references into the final text payload
// and estimates its size in tokens.
package content

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/stagehand/internal/fileutil"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
)

// BinarySniffBytes is how much of a file is inspected for a NUL byte
const BinarySniffBytes = 512

// DefaultConcurrency bounds how many files are read at once
const DefaultConcurrency = 16

// IsBinaryContent reports whether data looks binary: a NUL byte within the
// first BinarySniffBytes bytes.
func IsBinaryContent(data []byte) bool {
	if len(data) > BinarySniffBytes {
		data = data[:BinarySniffBytes]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// SkippedBinaryPlaceholder is emitted for files already flagged as binary
func SkippedBinaryPlaceholder(path string) string {
	return fmt.Sprintf("[Skipped binary file: %s]", path)
}

// ReadErrorPlaceholder is emitted when a file cannot be read
func ReadErrorPlaceholder(path string) string {
	return fmt.Sprintf("[Error reading file: %s]", path)
}

// Formatter renders staged files into one text payload
type Formatter struct {
	fs          fileutil.FS
	log         logger.Logger
	root        string
	concurrency int
}

// NewFormatter creates a Formatter. Paths inside workspaceRoot are shown
// relative to it; concurrency below 1 uses DefaultConcurrency.
func NewFormatter(fsys fileutil.FS, log logger.Logger, workspaceRoot string, concurrency int) *Formatter {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Formatter{
		fs:          fsys,
		log:         logger.OrNoOp(log),
		root:        workspaceRoot,
		concurrency: concurrency,
	}
}

// Format reads every file concurrently and joins the non-empty blocks with
// newlines in input order. A failing file only affects its own block. Files
// not yet started when ctx is cancelled contribute nothing.
func (f *Formatter) Format(ctx context.Context, files []models.StagedFile) string {
	blocks := make([]string, len(files))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, file := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			blocks[i] = f.formatFile(file)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b != "" {
			out = append(out, b)
		}
	}
	return strings.Join(out, "\n")
}

func (f *Formatter) formatFile(file models.StagedFile) string {
	path := models.PathFromID(file.ID)
	shown := f.DisplayPath(file.ID)

	if file.Binary() {
		f.log.LogWarn(fmt.Sprintf("skipping binary file %s", shown))
		return SkippedBinaryPlaceholder(shown)
	}

	data, err := f.fs.ReadFile(path)
	if err != nil {
		f.log.LogError(fmt.Sprintf("failed to read %s: %v", shown, err))
		return ReadErrorPlaceholder(shown)
	}

	if IsBinaryContent(data) {
		f.log.LogWarn(fmt.Sprintf("%s looks binary, leaving it out", shown))
		return ""
	}

	return RenderBlock(shown, decodeText(data))
}

// RenderBlock renders one file as a path header and a fenced block tagged
// with the file extension
func RenderBlock(path, text string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return fmt.Sprintf("File: %s\n```%s\n%s\n```", path, ext, text)
}

// DisplayPath returns the path shown for id: relative to the workspace root
// when inside it, otherwise the absolute path
func (f *Formatter) DisplayPath(id string) string {
	path := models.PathFromID(id)
	if f.root == "" || !fileutil.IsWithin(f.root, path) {
		return path
	}
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." {
		return path
	}
	return filepath.ToSlash(rel)
}

// decodeText decodes data as UTF-8, replacing invalid sequences
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
