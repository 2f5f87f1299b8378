package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
)

var ErrElementNotFound = errors.New("element not found")

// Locator finds the region of interest on a loaded page.
// Locate runs against the chromedp context of the page, and returns a CSS selector for the region,
// or "" to capture the whole viewport.
type Locator interface {
	Locate(ctx context.Context) (selector string, err error)
}

// SelectorLocator probes a list of CSS selectors in order, & picks the first one present on the page.
// With no selectors, the whole viewport is captured.
type SelectorLocator struct {
	Selectors []string
}

func (l SelectorLocator) Locate(ctx context.Context) (string, error) {
	if len(l.Selectors) == 0 {
		return "", nil
	}

	for _, selector := range l.Selectors {
		// Invalid selectors make querySelector throw; treat them as not found and keep probing.
		js := fmt.Sprintf(`(function() {
			try {
				return document.querySelector(%s) !== null;
			} catch (e) {
				return false;
			}
		})()`, strconv.Quote(selector))

		var found bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(js, &found)); err != nil {
			return "", err
		}
		if found {
			slog.Debug("region located", "selector", selector)
			return selector, nil
		}
		slog.Debug("selector not present", "selector", selector)
	}
	return "", fmt.Errorf("%w: tried %s", ErrElementNotFound, strings.Join(l.Selectors, ", "))
}
