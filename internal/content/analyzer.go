package content

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/stagehand/internal/fileutil"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
)

// Analysis is the outcome of inspecting one file
type Analysis struct {
	Stats    models.FileStats
	IsBinary bool
}

// StatsSink receives analysis results. track.Store satisfies it.
type StatsSink interface {
	UpdateFileStats(id string, stats models.FileStats, isBinary bool)
}

// Analyzer computes stats and the binary flag for staged files
type Analyzer struct {
	fs          fileutil.FS
	log         logger.Logger
	concurrency int
}

// NewAnalyzer creates an Analyzer; concurrency below 1 uses DefaultConcurrency
func NewAnalyzer(fsys fileutil.FS, log logger.Logger, concurrency int) *Analyzer {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Analyzer{fs: fsys, log: logger.OrNoOp(log), concurrency: concurrency}
}

// Analyze reads one file and measures it. Binary files get zero stats.
func (a *Analyzer) Analyze(ctx context.Context, id string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	data, err := a.fs.ReadFile(models.PathFromID(id))
	if err != nil {
		return Analysis{}, fmt.Errorf("read %s: %w", id, err)
	}
	if IsBinaryContent(data) {
		return Analysis{IsBinary: true}, nil
	}
	return Analysis{Stats: Measure(decodeText(data))}, nil
}

// EnrichStats analyzes files concurrently and pushes each result into sink as
// soon as it is ready. Unreadable files are logged and skipped. It returns the
// number of files delivered; cancellation stops scheduling new files.
func (a *Analyzer) EnrichStats(ctx context.Context, files []models.StagedFile, sink StatsSink) int {
	var delivered atomic.Int64

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := a.Analyze(ctx, file.ID)
			if err != nil {
				if ctx.Err() == nil {
					a.log.LogWarn(fmt.Sprintf("could not analyze %s: %v", file.Label, err))
				}
				return nil
			}
			sink.UpdateFileStats(file.ID, result.Stats, result.IsBinary)
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(delivered.Load())
}

// Summary totals a file set for display
type Summary struct {
	Files   int
	Pinned  int
	Pending int
	Binary  int
	Tokens  int
	Chars   int
}

// Summarize totals token and character counts. Files without stats are
// counted as pending; binary files add nothing to the totals.
func Summarize(files []models.StagedFile) Summary {
	s := Summary{Files: len(files)}
	for _, f := range files {
		if f.IsPinned {
			s.Pinned++
		}
		switch {
		case f.Binary():
			s.Binary++
		case f.Stats == nil:
			s.Pending++
		default:
			s.Tokens += f.Stats.TokenCount
			s.Chars += f.Stats.CharCount
		}
	}
	return s
}
