// CLAUDE:SUMMARY YAML configuration for tabpilot: browser connection, page URLs, DOM selectors, timeouts, storage paths, watcher pacing.
package pilot

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level tabpilot configuration.
type Config struct {
	Browser   BrowserConfig  `yaml:"browser"`
	Pages     PagesConfig    `yaml:"pages"`
	Selectors SelectorConfig `yaml:"selectors"`
	Timeouts  TimeoutConfig  `yaml:"timeouts"`
	Storage   StorageConfig  `yaml:"storage"`
	HTTP      HTTPConfig     `yaml:"http"`
	Watch     WatchConfig    `yaml:"watch"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	Remote      string `yaml:"remote"` // ws:// URL or host:port; empty launches Chrome
	Headless    bool   `yaml:"headless"`
	Stealth     bool   `yaml:"stealth"`
	UserDataDir string `yaml:"user_data_dir"`
}

// PagesConfig names the pages tabpilot works on.
type PagesConfig struct {
	FeedbackURL string `yaml:"feedback_url"`
	TasksURL    string `yaml:"tasks_url"`    // match pattern for task tabs
	TasksPrefix string `yaml:"tasks_prefix"` // URL prefix of task pages
	// TaskPrefixes are the URL prefixes runOnClick treats as task pages.
	// Defaults to TasksPrefix alone; add other task sites here.
	TaskPrefixes []string `yaml:"task_prefixes"`
}

// IsTaskPage reports whether url starts with one of the task prefixes.
func (p PagesConfig) IsTaskPage(url string) bool {
	for _, prefix := range p.TaskPrefixes {
		if prefix != "" && strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// SelectorConfig holds the CSS selectors read by the content responder.
type SelectorConfig struct {
	PreviewAverage string `yaml:"preview_average"`
	PreviewReviews string `yaml:"preview_reviews"`
	FullRatings    string `yaml:"full_ratings"`
	FullAverage    string `yaml:"full_average"`
}

// TimeoutConfig bounds the two waits in the capture flow.
type TimeoutConfig struct {
	PageLoad   time.Duration `yaml:"page_load"`
	Screenshot time.Duration `yaml:"screenshot"`
}

// StorageConfig locates the database and downloads.
type StorageConfig struct {
	Path        string `yaml:"path"`
	DownloadDir string `yaml:"download_dir"`
	TraceSQL    bool   `yaml:"trace_sql"` // log every SQL statement
	// BusyTimeout is how long SQLite waits on a locked database. Default: 5s.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// HTTPConfig configures the control API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// TokenSecret, when set, makes /api require an HS256 bearer token
	// signed with it. At least 32 bytes.
	TokenSecret string `yaml:"token_secret"`
}

// WatchConfig paces the task-change watcher used by runOnTaskChange.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfigFile reads a YAML configuration file. Missing fields take defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pages.FeedbackURL == "" {
		c.Pages.FeedbackURL = "https://www.multimango.com/qa-feedback"
	}
	if c.Pages.TasksURL == "" {
		c.Pages.TasksURL = "https://www.multimango.com/tasks/*"
	}
	if c.Pages.TasksPrefix == "" {
		c.Pages.TasksPrefix = "https://www.multimango.com/tasks/"
	}
	if len(c.Pages.TaskPrefixes) == 0 {
		c.Pages.TaskPrefixes = []string{c.Pages.TasksPrefix}
	}
	if c.Selectors.PreviewAverage == "" {
		c.Selectors.PreviewAverage = ".text-emerald-700.font-bold"
	}
	if c.Selectors.PreviewReviews == "" {
		c.Selectors.PreviewReviews = ".text-gray-500.text-sm"
	}
	if c.Selectors.FullRatings == "" {
		c.Selectors.FullRatings = ".text-2xl.font-semibold"
	}
	if c.Selectors.FullAverage == "" {
		c.Selectors.FullAverage = ".text-emerald-700.font-bold"
	}
	if c.Timeouts.PageLoad <= 0 {
		c.Timeouts.PageLoad = 10 * time.Second
	}
	if c.Timeouts.Screenshot <= 0 {
		c.Timeouts.Screenshot = 50 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/tabpilot.db"
	}
	if c.Storage.BusyTimeout <= 0 {
		c.Storage.BusyTimeout = 5 * time.Second
	}
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = "downloads"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8790"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 2 * time.Second
	}
	if c.Watch.Debounce < 0 {
		c.Watch.Debounce = 0
	}
}
