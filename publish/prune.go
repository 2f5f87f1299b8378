package publish

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
)

// archiveFile represents an archived screenshot for pruning purposes.
type archiveFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Prune deletes archives of slug within dir: first those older than maxAge, then the oldest ones
// until the total size of the remaining archives is at most maxSize. A zero value disables the
// corresponding rule. Only files named like [ArchivePath] for this slug are considered; the
// “latest” copy, archives of other slugs, and keep (the current run’s archive) are never deleted,
// though keep still counts towards maxSize.
// Returns the number of archives deleted.
func Prune(dir, slug, keep string, maxAge time.Duration, maxSize int64) (int, error) {
	if maxAge <= 0 && maxSize <= 0 {
		return 0, nil
	}

	archives, err := listArchives(dir, slug)
	if err != nil {
		return 0, err
	}

	// Oldest first.
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].modTime.Before(archives[j].modTime)
	})

	var totalSize int64
	for _, f := range archives {
		totalSize += f.size
	}

	if keep != "" {
		keep = filepath.Clean(keep)
	}

	deleted := 0
	now := time.Now()
	for _, f := range archives {
		if f.path == keep {
			continue
		}
		expired := maxAge > 0 && now.Sub(f.modTime) > maxAge
		oversize := maxSize > 0 && totalSize > maxSize
		if !expired && !oversize {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			slog.Warn("failed to delete archive", tint.Err(err), "path", f.path)
			continue
		}
		totalSize -= f.size
		deleted++
	}

	slog.Info("archives pruned",
		"dir", dir,
		"deleted", deleted,
		"remaining", len(archives)-deleted,
		"size", humanize.Bytes(uint64(totalSize)),
		"limit", humanize.Bytes(uint64(maxSize)),
		"max-age", maxAge,
	)
	return deleted, nil
}

func listArchives(dir, slug string) ([]archiveFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading archive dir: %w", err)
	}

	var archives []archiveFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isArchiveName(name, slug) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Deleted concurrently, or unreadable; skip it rather than fail the whole prune.
			continue
		}
		archives = append(archives, archiveFile{
			path:    filepath.Join(dir, name),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return archives, nil
}
