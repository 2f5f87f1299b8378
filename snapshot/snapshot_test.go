package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chimbori.dev/calshot/capture"
	"chimbori.dev/calshot/optimize"
	"chimbori.dev/calshot/publish"
	"github.com/disintegration/imaging"
)

type fakeCapturer struct {
	png []byte
	err error
}

func (f fakeCapturer) Capture(ctx context.Context) ([]byte, error) {
	return f.png, f.err
}

func testPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(w, h, c)); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestRun_PublishesArchiveAndLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screenshots")
	ts := time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC)

	res, err := Run(context.Background(), fakeCapturer{png: testPNG(t, 750, 1624, color.NRGBA{B: 0xff, A: 0xff})}, Options{
		Dir:      dir,
		Slug:     "calendar",
		BudgetKB: 70,
		Target:   &optimize.Target{Width: 360, Height: 376, Fit: optimize.FitContain},
		Now:      fixedClock(ts),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantArchive := filepath.Join(dir, "calendar-2024-03-10T06-30-00-000Z.jpg")
	if res.ArchivePath != wantArchive {
		t.Errorf("Expected archive %s, got %s", wantArchive, res.ArchivePath)
	}
	if res.LatestPath != filepath.Join(dir, "latest.jpg") {
		t.Errorf("Unexpected latest path %s", res.LatestPath)
	}

	for _, path := range []string{res.ArchivePath, res.LatestPath} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) failed: %v", path, err)
		}
		if !bytes.Equal(data, res.Image.Bytes) {
			t.Errorf("%s does not contain the optimized bytes", filepath.Base(path))
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Expected a valid JPEG at %s: %v", path, err)
		}
		if got := img.Bounds().Size(); got != (image.Point{X: 360, Y: 376}) {
			t.Errorf("Expected 360×376, got %v", got)
		}
	}
}

func TestRun_SecondRunReplacesLatestOnly(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC)
	opts := Options{Dir: dir, Slug: "calendar", BudgetKB: 70}

	opts.Now = fixedClock(ts)
	first, err := Run(context.Background(), fakeCapturer{png: testPNG(t, 100, 100, color.Black)}, opts)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	opts.Now = fixedClock(ts.Add(time.Hour))
	second, err := Run(context.Background(), fakeCapturer{png: testPNG(t, 200, 50, color.White)}, opts)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.ArchivePath == second.ArchivePath {
		t.Fatal("Expected distinct archive paths")
	}
	for _, path := range []string{first.ArchivePath, second.ArchivePath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected archive %s to exist: %v", filepath.Base(path), err)
		}
	}
	latest, err := os.ReadFile(second.LatestPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(latest, second.Image.Bytes) {
		t.Error("Expected latest.jpg to contain the second run’s bytes")
	}
}

func TestRun_CaptureFailure(t *testing.T) {
	dir := t.TempDir()

	_, err := Run(context.Background(), fakeCapturer{err: errors.New("navigation timeout")}, Options{Dir: dir, Slug: "calendar"})
	if !errors.Is(err, capture.ErrCaptureFailed) {
		t.Fatalf("Expected ErrCaptureFailed, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no output files after a failed capture, got %d", len(entries))
	}
}

func TestRun_UndecodableCapture(t *testing.T) {
	_, err := Run(context.Background(), fakeCapturer{png: []byte("garbage")}, Options{Dir: t.TempDir(), Slug: "calendar"})
	if !errors.Is(err, publish.ErrIOFailed) {
		t.Fatalf("Expected ErrIOFailed, got %v", err)
	}
}

func TestRun_WriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Run(context.Background(), fakeCapturer{png: testPNG(t, 10, 10, color.Black)}, Options{Dir: blocker, Slug: "calendar"})
	if !errors.Is(err, publish.ErrIOFailed) {
		t.Fatalf("Expected ErrIOFailed, got %v", err)
	}
}

func TestRun_PrunesOldArchives(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-30 * 24 * time.Hour)
	stale := publish.ArchivePath(dir, "calendar", old)
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	res, err := Run(context.Background(), fakeCapturer{png: testPNG(t, 10, 10, color.Black)}, Options{
		Dir:           dir,
		Slug:          "calendar",
		ArchiveMaxAge: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Expected stale archive to be pruned")
	}
	if _, err := os.Stat(res.ArchivePath); err != nil {
		t.Errorf("Expected new archive to be kept: %v", err)
	}
}

func TestRun_KeepsOwnArchiveWhenOverSizeLimit(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(context.Background(), fakeCapturer{png: testPNG(t, 10, 10, color.Black)}, Options{
		Dir:            dir,
		Slug:           "calendar",
		ArchiveMaxSize: 1,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, path := range []string{res.ArchivePath, res.LatestPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist after a successful run: %v", filepath.Base(path), err)
		}
	}
}
