// Package publish writes optimized screenshots to disk: a timestamped archive copy,
// and an atomically-replaced “latest” copy.
package publish

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chimbori.dev/calshot/core"
	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
)

// ErrIOFailed marks failures to read or write image bytes.
var ErrIOFailed = errors.New("i/o failure")

const (
	LatestName = "latest.jpg"
	Ext        = ".jpg"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// Timestamp formats t as an ISO-8601 UTC timestamp with millisecond precision, with “:” and “.”
// replaced by “-” so that it is safe to use in file names, e.g. “2024-01-02T03-04-05-678Z”.
func Timestamp(t time.Time) string {
	iso := t.UTC().Format(isoMillis)
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// ParseTimestamp is the inverse of [Timestamp].
func ParseTimestamp(s string) (time.Time, error) {
	// Only the time-of-day separators were replaced; the date keeps its dashes.
	if len(s) != len(isoMillis) || s[13] != '-' || s[16] != '-' || s[19] != '-' {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	b := []byte(s)
	b[13], b[16], b[19] = ':', ':', '.'
	t, err := time.Parse(isoMillis, string(b))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// isArchiveName reports whether name is exactly “<slug>-<timestamp>.jpg”.
func isArchiveName(name, slug string) bool {
	ts, ok := strings.CutPrefix(name, slug+"-")
	if !ok {
		return false
	}
	ts, ok = strings.CutSuffix(ts, Ext)
	if !ok {
		return false
	}
	_, err := ParseTimestamp(ts)
	return err == nil
}

// ArchivePath returns the path of the archive copy for a run that started at t.
func ArchivePath(dir, slug string, t time.Time) string {
	return filepath.Join(dir, slug+"-"+Timestamp(t)+Ext)
}

// LatestPath returns the path of the “latest” copy within dir.
func LatestPath(dir string) string {
	return filepath.Join(dir, LatestName)
}

// Publish writes data to archivePath, then atomically replaces latestPath with the same bytes.
// Either both files are written, or an error wrapping [ErrIOFailed] is returned; an archive
// written by a failed run is removed.
func Publish(data []byte, archivePath, latestPath string) error {
	if err := core.WriteFile(archivePath, data); err != nil {
		return fmt.Errorf("%w: failed to write archive %s: %w", ErrIOFailed, archivePath, err)
	}

	if err := core.ReplaceFile(latestPath, data); err != nil {
		if rmErr := os.Remove(archivePath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove archive of failed run", tint.Err(rmErr), "path", archivePath)
		}
		return fmt.Errorf("%w: failed to replace %s: %w", ErrIOFailed, latestPath, err)
	}

	slog.Info("published",
		"archive", archivePath,
		"latest", latestPath,
		"size", humanize.IBytes(uint64(len(data))),
		"sha256", core.SHA256(data)[:12])
	return nil
}
