package conf

// App-specific configuration structs & data.
// Must live in a package of its own so other packages within the app can depend on it without
// causing a circular dependency.

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"chimbori.dev/calshot/core"
	"chimbori.dev/calshot/optimize"
	"github.com/dustin/go-humanize"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

var AppName = "calshot"

var BuildTimestamp string

var Config AppConfig

const DefaultUrl = "https://hijri-waras-cal.netlify.app/"

// DefaultSlug names archives of [DefaultUrl]; other pages are named after their domain.
const DefaultSlug = "calendar"

type AppConfig struct {
	Capture struct {
		Url       string   `yaml:"url"`
		Selectors []string `yaml:"selectors"` // Probed in order; empty captures the whole viewport.
		Viewport  struct {
			Width  int     `yaml:"width"`
			Height int     `yaml:"height"`
			Scale  float64 `yaml:"scale"`
		} `yaml:"viewport"`
		Timeout         time.Duration  `yaml:"timeout"`
		Settle          *time.Duration `yaml:"settle"`
		WaitNetworkIdle *bool          `yaml:"wait-network-idle"`
		UserAgent       string         `yaml:"user-agent"`
		ChromePath      string         `yaml:"chrome-path"`
	} `yaml:"capture"`
	Image struct {
		BudgetKB int    `yaml:"budget-kb"`
		Fit      string `yaml:"fit"`
		Width    int    `yaml:"width"` // Width & Height of 0 leave the geometry untouched.
		Height   int    `yaml:"height"`
	} `yaml:"image"`
	Output struct {
		Dir     string `yaml:"dir"`
		Slug    string `yaml:"slug"`
		Archive struct {
			MaxAge       time.Duration `yaml:"max-age"`
			MaxSize      string        `yaml:"max-size"` // e.g. “200 MB”
			MaxSizeBytes int64         `yaml:"-"`
		} `yaml:"archive"`
	} `yaml:"output"`
	Database struct {
		Url string `yaml:"url"` // Optional; when set, error logs are also written to PostgreSQL.
	} `yaml:"database"`
	Debug bool `yaml:"debug"`
}

// Redacted returns a copy of c that is safe to print: credentials in the database URL are masked.
func (c AppConfig) Redacted() AppConfig {
	if c.Database.Url == "" {
		return c
	}
	if u, err := url.Parse(c.Database.Url); err == nil && u.Scheme != "" {
		if q := u.Query(); q.Has("password") {
			q.Set("password", "xxxxx")
			u.RawQuery = q.Encode()
		}
		c.Database.Url = u.Redacted()
	} else {
		// Keyword/value DSNs (“host=… password=…”) cannot be redacted selectively.
		c.Database.Url = "xxxxx"
	}
	return c
}

// Print writes the effective config, redacted, to stdout.
func (c AppConfig) Print() {
	json, _ := json.MarshalIndent(c.Redacted(), "", "\t")
	fmt.Println(string(json))
}

// Target returns the output canvas configured under `image`, or nil if none is configured.
func (c *AppConfig) Target() (*optimize.Target, error) {
	fit, err := optimize.ParseFit(c.Image.Fit)
	if err != nil {
		return nil, err
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 || fit == optimize.FitNone {
		return nil, nil
	}
	return &optimize.Target{Width: c.Image.Width, Height: c.Image.Height, Fit: fit}, nil
}

// ReadConfig reads `configYmlFile`, applies override (typically command-line flags) if non-nil,
// and then fills in defaults. Defaults are applied even when an error is returned, so that a
// missing config file can be tolerated by the caller.
func ReadConfig(configYmlFile string, override func(*AppConfig)) (AppConfig, error) {
	if BuildTimestamp == "" {
		BuildTimestamp = time.Now().Local().Format("2006-01-02 15:04:05")
	}

	c := &AppConfig{}
	var readErr error
	if configYmlPath, err := filepath.Abs(configYmlFile); err != nil {
		readErr = fmt.Errorf("Failed to get path to config file: %w", err)
	} else if buf, err := os.ReadFile(configYmlPath); err != nil {
		readErr = fmt.Errorf("Failed to read config file: %w", err)
	} else if err := yaml.Unmarshal(buf, c); err != nil {
		readErr = fmt.Errorf("Failed to parse config: %w", err)
	}

	if override != nil {
		override(c)
	}
	if err := setDefaults(c); err != nil {
		return *c, err
	}
	return *c, readErr
}

func setDefaults(c *AppConfig) error {
	if c.Capture.Url == "" {
		c.Capture.Url = DefaultUrl
	}
	if c.Capture.Viewport.Width <= 0 || c.Capture.Viewport.Height <= 0 {
		c.Capture.Viewport.Width = 375
		c.Capture.Viewport.Height = 812
	}
	if c.Capture.Viewport.Scale <= 0 {
		c.Capture.Viewport.Scale = 2
	}
	if c.Capture.Timeout == 0 {
		c.Capture.Timeout = 30 * time.Second
	}
	if c.Capture.Settle == nil {
		c.Capture.Settle = core.Ptr(2 * time.Second)
	}
	// Wait for the network to go idle by default; only disable it for pages that poll forever.
	if c.Capture.WaitNetworkIdle == nil {
		c.Capture.WaitNetworkIdle = core.Ptr(true)
	}

	if c.Image.BudgetKB <= 0 {
		c.Image.BudgetKB = optimize.DefaultBudgetKB
	}
	if c.Image.Fit == "" {
		c.Image.Fit = optimize.FitContain.String()
	}
	if _, err := optimize.ParseFit(c.Image.Fit); err != nil {
		return fmt.Errorf("Invalid image.fit: %w", err)
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "screenshots"
	}
	if c.Output.Slug = slug.Make(c.Output.Slug); c.Output.Slug == "" {
		if c.Capture.Url == DefaultUrl {
			c.Output.Slug = DefaultSlug
		} else {
			c.Output.Slug = core.SlugFromURL(c.Capture.Url)
		}
	}
	if c.Output.Archive.MaxSize != "" {
		size, err := humanize.ParseBytes(c.Output.Archive.MaxSize)
		if err != nil {
			return fmt.Errorf("Invalid output.archive.max-size: %w", err)
		}
		c.Output.Archive.MaxSizeBytes = int64(size)
	}

	if !*c.Capture.WaitNetworkIdle && *c.Capture.Settle == 0 {
		slog.Warn("Neither waiting for network idle nor settling; screenshots may be incomplete")
	}
	return nil
}
