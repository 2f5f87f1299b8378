// Package snapshot performs a single capture → optimize → publish run.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chimbori.dev/calshot/capture"
	"chimbori.dev/calshot/optimize"
	"chimbori.dev/calshot/publish"
	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
)

// Capturer produces a raw screenshot. [capture.Browser] is the production implementation.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

type Options struct {
	Dir      string
	Slug     string
	BudgetKB int
	Target   *optimize.Target

	// Archives older than ArchiveMaxAge, or beyond ArchiveMaxSize in total, are pruned after
	// a successful run. Zero disables each rule.
	ArchiveMaxAge  time.Duration
	ArchiveMaxSize int64

	// Now is used to timestamp the archive; defaults to [time.Now].
	Now func() time.Time
}

type Result struct {
	ArchivePath string
	LatestPath  string
	Image       *optimize.Result
}

// Run captures one screenshot, optimizes it, and publishes it. Errors wrap either
// [capture.ErrCaptureFailed] or [publish.ErrIOFailed].
func Run(ctx context.Context, c Capturer, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	raw, err := c.Capture(ctx)
	if err != nil {
		if !errors.Is(err, capture.ErrCaptureFailed) {
			err = fmt.Errorf("%w: %w", capture.ErrCaptureFailed, err)
		}
		return nil, err
	}
	capturedAt := now()

	img, err := optimize.Optimize(raw, opts.BudgetKB, opts.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", publish.ErrIOFailed, err)
	}
	attrs := []any{
		"quality", img.Quality,
		"attempts", img.Attempts,
		"dimensions", fmt.Sprintf("%d×%d", img.Width, img.Height),
		"size", humanize.IBytes(uint64(len(img.Bytes))),
		"budget", humanize.IBytes(uint64(budgetBytes(opts.BudgetKB))),
	}
	if img.WithinBudget {
		slog.Info("image optimized", attrs...)
	} else {
		slog.Warn("image exceeds budget at minimum quality", attrs...)
	}

	res := &Result{
		ArchivePath: publish.ArchivePath(opts.Dir, opts.Slug, capturedAt),
		LatestPath:  publish.LatestPath(opts.Dir),
		Image:       img,
	}
	if err := publish.Publish(img.Bytes, res.ArchivePath, res.LatestPath); err != nil {
		return nil, err
	}

	// Pruning is housekeeping; the run has already succeeded, and its archive is kept regardless.
	if _, err := publish.Prune(opts.Dir, opts.Slug, res.ArchivePath, opts.ArchiveMaxAge, opts.ArchiveMaxSize); err != nil {
		slog.Error("failed to prune archives", tint.Err(err), "dir", opts.Dir)
	}
	return res, nil
}

func budgetBytes(budgetKB int) int {
	if budgetKB <= 0 {
		budgetKB = optimize.DefaultBudgetKB
	}
	return budgetKB * 1024
}
