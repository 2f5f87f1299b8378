// Package capture renders a web page in headless Chrome and screenshots a region of it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/dustin/go-humanize"
)

// ErrCaptureFailed wraps every failure to produce a screenshot: navigation errors, timeouts,
// and a missing region of interest.
var ErrCaptureFailed = errors.New("capture failed")

type Viewport struct {
	Width  int
	Height int
	Scale  float64
}

// Browser captures screenshots of a single page.
type Browser struct {
	Url      string
	Viewport Viewport

	// Timeout bounds the entire capture, from browser launch to screenshot.
	Timeout time.Duration

	// Settle is an extra delay after the page is ready, so that fonts & late scripts can finish.
	Settle time.Duration

	// WaitNetworkIdle waits for the page’s main frame to report no network activity before settling.
	WaitNetworkIdle bool

	UserAgent string
	ExecPath  string
	Locator   Locator
	Debug     bool
}

var DefaultViewport = Viewport{Width: 375, Height: 812, Scale: 2}

const DefaultTimeout = 30 * time.Second

// Capture launches headless Chrome, loads the page, locates the region of interest, and returns
// a PNG screenshot of it. Every error wraps [ErrCaptureFailed].
func (b *Browser) Capture(ctx context.Context) (png []byte, err error) {
	png, err = b.capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCaptureFailed, b.Url, err)
	}
	return png, nil
}

func (b *Browser) capture(ctx context.Context) ([]byte, error) {
	if b.Url == "" {
		return nil, fmt.Errorf("missing url")
	}

	viewport := b.Viewport
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = DefaultViewport
	}
	if viewport.Scale <= 0 {
		viewport.Scale = 1
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	locator := b.Locator
	if locator == nil {
		locator = SelectorLocator{}
	}

	slog.Debug("capture",
		"url", b.Url,
		"viewport", fmt.Sprintf("%d×%d@%gx", viewport.Width, viewport.Height, viewport.Scale),
		"timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.WindowSize(viewport.Width, viewport.Height),
	)
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	ctx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	var cancelTab context.CancelFunc
	if b.Debug {
		ctx, cancelTab = chromedp.NewContext(ctx, chromedp.WithErrorf(log.Printf))
	} else {
		ctx, cancelTab = chromedp.NewContext(ctx)
	}
	defer cancelTab()

	load := chromedp.Tasks{
		chromedp.EmulateViewport(int64(viewport.Width), int64(viewport.Height), chromedp.EmulateScale(viewport.Scale)),
	}
	if b.WaitNetworkIdle {
		w := newIdleWatcher()
		chromedp.ListenTarget(ctx, w.listen)
		load = append(load,
			page.SetLifecycleEventsEnabled(true),
			w.arm(),
			chromedp.Navigate(b.Url),
			w.wait(),
		)
	} else {
		load = append(load,
			chromedp.Navigate(b.Url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}
	if b.Settle > 0 {
		load = append(load, chromedp.Sleep(b.Settle)) // Allow fonts & animations to finish.
	}
	if err := chromedp.Run(ctx, load); err != nil {
		return nil, err
	}

	selector, err := locator.Locate(ctx)
	if err != nil {
		return nil, err
	}

	var buf []byte
	var shot chromedp.Action
	if selector == "" {
		shot = chromedp.CaptureScreenshot(&buf)
	} else {
		shot = chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery)
	}
	if err := chromedp.Run(ctx, shot); err != nil {
		return nil, err
	}

	slog.Info("screenshot captured",
		"url", b.Url,
		"selector", selector,
		"size", humanize.IBytes(uint64(len(buf))))
	return buf, nil
}

// idleWatcher reports when the main frame of a page reaches the “networkIdle” lifecycle state
// for the navigation that started after arm().
type idleWatcher struct {
	mu       sync.Mutex
	armed    bool
	frameID  cdp.FrameID
	loaderID cdp.LoaderID
	idle     chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{idle: make(chan struct{}, 1)}
}

func (w *idleWatcher) listen(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed || e.FrameID != w.frameID {
		return
	}
	switch e.Name {
	case "init":
		w.loaderID = e.LoaderID
	case "networkIdle":
		if w.loaderID != "" && e.LoaderID == w.loaderID {
			select {
			case w.idle <- struct{}{}:
			default:
			}
		}
	}
}

// arm starts tracking lifecycle events; events replayed for the initial blank page are ignored.
func (w *idleWatcher) arm() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Target == nil {
			return fmt.Errorf("no target to watch")
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		// The main frame shares its ID with the target.
		w.frameID = cdp.FrameID(c.Target.TargetID)
		w.armed = true
		return nil
	}
}

func (w *idleWatcher) wait() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		select {
		case <-w.idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		}
	}
}
