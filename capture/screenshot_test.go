package capture

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

// requireChrome skips tests that need a Chrome/Chromium binary when running in short mode,
// or when none is installed.
func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping test that requires Chrome/Chromium in short mode")
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("Skipping test: Chrome/Chromium not found")
}

const calendarPage = "data:text/html,<html><body style='margin:0'>" +
	"<div id='header' style='width:375px;height:50px;background:blue;'>Header</div>" +
	"<div class='calendar' style='width:360px;height:376px;background:green;'>Calendar</div>" +
	"</body></html>"

func TestCapture_SelectedElement(t *testing.T) {
	requireChrome(t)

	b := &Browser{
		Url:     calendarPage,
		Timeout: 20 * time.Second,
		Locator: SelectorLocator{Selectors: []string{"#missing", ".calendar"}},
	}
	screenshot, err := b.Capture(context.Background())
	if err != nil {
		t.Fatalf("Expected no error for valid page and selector, got: %s", err.Error())
	}
	assertValidPNG(t, screenshot)
}

func TestCapture_WholeViewport(t *testing.T) {
	requireChrome(t)

	b := &Browser{
		Url:             calendarPage,
		Timeout:         20 * time.Second,
		WaitNetworkIdle: true,
	}
	screenshot, err := b.Capture(context.Background())
	if err != nil {
		t.Fatalf("Expected no error capturing the viewport, got: %s", err.Error())
	}
	assertValidPNG(t, screenshot)
}

func TestCapture_NonExistentSelector(t *testing.T) {
	requireChrome(t)

	b := &Browser{
		Url:     calendarPage,
		Timeout: 20 * time.Second,
		Locator: SelectorLocator{Selectors: []string{"#non-existent-element", "div[", ".also-missing"}},
	}
	_, err := b.Capture(context.Background())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed, got: %v", err)
	}
	if !errors.Is(err, ErrElementNotFound) {
		t.Errorf("Expected ErrElementNotFound, got: %v", err)
	}
}

func TestCapture_InvalidURL(t *testing.T) {
	requireChrome(t)

	b := &Browser{Url: "not-a-valid-url", Timeout: 10 * time.Second}
	if _, err := b.Capture(context.Background()); !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed for invalid URL, got: %v", err)
	}
}

func TestCapture_ContextCancellation(t *testing.T) {
	requireChrome(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &Browser{Url: calendarPage}
	if _, err := b.Capture(ctx); !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed when context is cancelled, got: %v", err)
	}
}

func TestCapture_MissingURL(t *testing.T) {
	b := &Browser{}
	_, err := b.Capture(context.Background())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed for missing URL, got: %v", err)
	}
}

func TestSelectorLocator_NoSelectors(t *testing.T) {
	// No browser is needed when there is nothing to probe.
	selector, err := SelectorLocator{}.Locate(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if selector != "" {
		t.Errorf("Expected empty selector for the whole viewport, got %q", selector)
	}
}

// assertValidPNG checks that the given byte slice is a valid PNG file
// by verifying it starts with the PNG magic bytes: 137 80 78 71 13 10 26 10
func assertValidPNG(t *testing.T, data []byte) {
	t.Helper()

	if len(data) < 8 {
		t.Fatalf("PNG data too small (%d bytes), expected at least 8 bytes", len(data))
	}

	if data[0] != 137 || data[1] != 80 || data[2] != 78 || data[3] != 71 {
		t.Errorf("Invalid PNG magic bytes: got [%d %d %d %d], expected [137 80 78 71]",
			data[0], data[1], data[2], data[3])
	}
}
