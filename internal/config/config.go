package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/HassDhia/deep-agent-sti/internal/confidence"
	"github.com/HassDhia/deep-agent-sti/internal/vendor"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Feed is a named RSS/Atom source list used by import-feed.
type Feed struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type VendorConfig struct {
	Publishers []string `yaml:"publishers"`
	URLMarkers []string `yaml:"url_markers"`
	Qualifier  string   `yaml:"qualifier,omitempty"`
}

type ConfidenceConfig struct {
	// VendorCap bounds confidence when vendor-asserted sources make up more
	// than VendorShare of the source list.
	VendorCap   float64 `yaml:"vendor_cap"`
	VendorShare float64 `yaml:"vendor_share"`
}

type Config struct {
	Retention  string           `yaml:"retention"`
	Vendor     VendorConfig     `yaml:"vendor"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Feeds      []Feed           `yaml:"feeds"`
}

func (c *Config) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 90 * 24 * time.Hour
	}
	d, err := ParseDuration(c.Retention)
	if err != nil {
		return 90 * 24 * time.Hour
	}
	return d
}

// ParseDuration extends time.ParseDuration with "Nd" day syntax.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

// Tagger builds the vendor tagger from the configured lists, falling back
// to the built-in lists for any that are empty.
func (c *Config) Tagger() *vendor.Tagger {
	pubs, markers := c.Vendor.Publishers, c.Vendor.URLMarkers
	if len(pubs) == 0 {
		pubs = vendor.DefaultPublishers
	}
	if len(markers) == 0 {
		markers = vendor.DefaultURLMarkers
	}
	return vendor.NewTagger(pubs, markers)
}

func (c *Config) Qualifier() string {
	if c.Vendor.Qualifier == "" {
		return vendor.DefaultQualifier
	}
	return c.Vendor.Qualifier
}

// VendorCap returns the cap and share threshold, defaulting to 0.70 above half.
func (c *Config) VendorCap() (limit, share float64) {
	limit, share = c.Confidence.VendorCap, c.Confidence.VendorShare
	if limit == 0 {
		limit = 0.70
	}
	if share == 0 {
		share = 0.5
	}
	return limit, share
}

func (c *Config) EnabledFeeds() []Feed {
	var out []Feed
	for _, f := range c.Feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// FeedURL resolves a configured feed name, or returns the argument when it
// is already a URL.
func (c *Config) FeedURL(nameOrURL string) (string, error) {
	for _, f := range c.Feeds {
		if f.Name == nameOrURL {
			return f.URL, nil
		}
	}
	u, err := url.Parse(nameOrURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unknown feed %q", nameOrURL)
	}
	return nameOrURL, nil
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "sti", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "sti", "sti.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: embedded defaults still apply
			_ = writeDefaults(path)
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	mergeDefaultFeeds(&cfg, defaults)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeDefaultFeeds appends default feeds the user file does not name and
// refreshes the URL of feeds it does.
func mergeDefaultFeeds(cfg, defaults *Config) {
	index := make(map[string]int, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		index[f.Name] = i
	}
	for _, d := range defaults.Feeds {
		if i, ok := index[d.Name]; ok {
			cfg.Feeds[i].URL = d.URL
			continue
		}
		cfg.Feeds = append(cfg.Feeds, d)
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	for i, p := range cfg.Vendor.Publishers {
		if p == "" {
			return fmt.Errorf("vendor.publishers[%d]: empty entry", i)
		}
	}
	for i, m := range cfg.Vendor.URLMarkers {
		if m == "" {
			return fmt.Errorf("vendor.url_markers[%d]: empty entry", i)
		}
	}
	if c := cfg.Confidence.VendorCap; c != 0 && (c < confidence.MinValue || c > confidence.MaxValue) {
		return fmt.Errorf("confidence.vendor_cap %.2f outside [%.2f, %.2f]", c, confidence.MinValue, confidence.MaxValue)
	}
	if s := cfg.Confidence.VendorShare; s < 0 || s > 1 {
		return fmt.Errorf("confidence.vendor_share %.2f outside [0, 1]", s)
	}
	for i, f := range cfg.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("feed %q: invalid url: %w", f.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feed %q: url scheme must be http or https, got %q", f.Name, u.Scheme)
		}
	}
	return nil
}
