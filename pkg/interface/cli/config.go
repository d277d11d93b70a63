package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds all application configuration
type Config struct {
	// Input/Output
	InputFile    string `short:"i" long:"input" description:"Reference file (.json, .jsonl or 'domain [reference]' lines)" default:"-"`
	OutputDir    string `short:"o" long:"output-dir" description:"Directory receiving one image per domain" default:"logos"`
	StateDir     string `long:"state-dir" description:"Directory for the ledger, results and attempt logs (defaults to the output directory)"`
	ResultsFile  string `long:"results" description:"Per-domain results file, relative to the state directory" default:"results.jsonl"`
	AttemptsFile string `long:"attempts" description:"Fetch attempt log, relative to the state directory" default:"attempts.jsonl"`
	LedgerFile   string `long:"ledger" description:"Outcome ledger database, relative to the state directory" default:"ledger.db"`

	// Acquisition
	NumWorkers    int      `long:"workers" description:"Number of concurrent workers" default:"5"`
	CDNHosts      []string `long:"cdn-host" description:"Host served by the direct CDN tier (repeatable)"`
	Reset         bool     `long:"reset" description:"Forget every outcome recorded in the ledger"`
	ResetNotFound bool     `long:"reset-not-found" description:"Retry domains previously marked as having no asset"`

	// Relay
	RelayURL         string `long:"relay-url" env:"RELAY_URL" description:"FlareSolverr-compatible relay endpoint; empty disables the relay tier"`
	RelayTimeout     int    `long:"relay-timeout" description:"Relay maxTimeout in seconds" default:"60"`
	RelayConcurrency int64  `long:"relay-concurrency" description:"Maximum concurrent relay calls (0 = workers)" default:"0"`

	// Browser
	ProxiesFile     string  `long:"proxies" description:"Proxy list (.json or .toml)"`
	RetryBudget     int     `long:"retry-budget" description:"Maximum proxies tried per URL in the browser tier" default:"3"`
	BackoffBase     float64 `long:"backoff-base" description:"Browser backoff base; attempt n sleeps base^n seconds" default:"2"`
	BackoffMax      int     `long:"backoff-max" description:"Maximum browser backoff in seconds" default:"30"`
	BrowserTimeout  int     `long:"browser-timeout" description:"Browser navigation timeout in seconds" default:"20"`
	BrowserPath     string  `long:"browser-path" env:"CHROME_PATH" description:"Chrome/Chromium executable"`
	NoHeadless      bool    `long:"no-headless" description:"Show the browser window"`
	DisableBrowser  bool    `long:"no-browser" description:"Disable the headless browser tier"`
	HTTPTimeout     int     `long:"http-timeout" description:"Direct fetch timeout in seconds" default:"15"`
	MaxResponseSize int64   `long:"max-response-size" description:"Maximum HTTP response size in bytes" default:"10485760"`

	// Directory
	DirectoryToken   string  `long:"logodev-token" env:"LOGODEV_API_KEY" description:"Primary directory API token; empty disables the primary directory"`
	DisablePrimary   bool    `long:"no-primary" description:"Skip the primary directory"`
	DisableSecondary bool    `long:"no-secondary" description:"Skip the secondary directory"`
	DirectoryTimeout int     `long:"directory-timeout" description:"Directory request timeout in seconds" default:"10"`
	DirectoryRPS     float64 `long:"directory-rps" description:"Directory requests per second (0 = unlimited)" default:"5"`
	Dwell            int     `long:"dwell" description:"Seconds to wait before re-polling pending directory lookups" default:"240"`

	// Real durations (not parsed from flags directly)
	RelayTimeoutDuration     time.Duration
	BackoffMaxDuration       time.Duration
	BrowserTimeoutDuration   time.Duration
	HTTPTimeoutDuration      time.Duration
	DirectoryTimeoutDuration time.Duration
	DwellDuration            time.Duration

	// Dedup
	BloomFilterSize uint64  `long:"bloom-size" description:"Expected number of acquired domains" default:"100000"`
	BloomFilterFP   float64 `long:"bloom-fp" description:"Bloom filter false positive rate" default:"0.001"`

	// Real bloom filter size (uint)
	RealBloomFilterSize uint

	// UI
	ShowDashboard bool   `long:"dashboard" description:"Show interactive TUI dashboard"`
	ShowProgress  bool   `long:"progress" description:"Show a console progress bar"`
	MetricsAddr   string `long:"metrics-addr" description:"Serve Prometheus metrics on this address, e.g. :2112"`
	LogLevel      string `long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	LogFormat     string `long:"log-format" description:"Log format" choice:"text" choice:"json" default:"text"`
	Version       bool   `short:"v" long:"version" description:"Print version and exit"`
}

// ParseFlags parses command line flags
func ParseFlags() (*Config, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			// Help has been printed by the library, exit cleanly
			os.Exit(0)
		}
		return nil, err
	}

	cfg.normalize()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize derives durations and paths from the raw flag values
func (c *Config) normalize() {
	c.RelayTimeoutDuration = time.Duration(c.RelayTimeout) * time.Second
	c.BackoffMaxDuration = time.Duration(c.BackoffMax) * time.Second
	c.BrowserTimeoutDuration = time.Duration(c.BrowserTimeout) * time.Second
	c.HTTPTimeoutDuration = time.Duration(c.HTTPTimeout) * time.Second
	c.DirectoryTimeoutDuration = time.Duration(c.DirectoryTimeout) * time.Second
	c.DwellDuration = time.Duration(c.Dwell) * time.Second

	c.RealBloomFilterSize = uint(c.BloomFilterSize)

	if c.StateDir == "" {
		c.StateDir = c.OutputDir
	}
	if c.RelayConcurrency <= 0 {
		c.RelayConcurrency = int64(c.NumWorkers)
	}
}

// statePath resolves a state file against the state directory
func (c *Config) statePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.StateDir, name)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NumWorkers <= 0 {
		return fmt.Errorf("number of workers must be > 0, got %d", c.NumWorkers)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}

	if c.RetryBudget <= 0 {
		return fmt.Errorf("retry budget must be > 0, got %d", c.RetryBudget)
	}

	if c.BackoffBase < 1 {
		return fmt.Errorf("backoff base must be >= 1, got %g", c.BackoffBase)
	}

	if c.HTTPTimeoutDuration <= 0 {
		return fmt.Errorf("HTTP timeout must be > 0, got %s", c.HTTPTimeoutDuration)
	}

	if c.BrowserTimeoutDuration <= 0 {
		return fmt.Errorf("browser timeout must be > 0, got %s", c.BrowserTimeoutDuration)
	}

	if c.RelayTimeoutDuration <= 0 {
		return fmt.Errorf("relay timeout must be > 0, got %s", c.RelayTimeoutDuration)
	}

	if c.DirectoryTimeoutDuration <= 0 {
		return fmt.Errorf("directory timeout must be > 0, got %s", c.DirectoryTimeoutDuration)
	}

	if c.DwellDuration < 0 {
		return fmt.Errorf("dwell must be >= 0, got %s", c.DwellDuration)
	}

	if c.DirectoryRPS < 0 {
		return fmt.Errorf("directory rps must be >= 0, got %g", c.DirectoryRPS)
	}

	if c.MaxResponseSize <= 0 {
		return fmt.Errorf("max response size must be > 0, got %d", c.MaxResponseSize)
	}

	if c.BloomFilterFP <= 0 || c.BloomFilterFP >= 1 {
		return fmt.Errorf("bloom filter false positive rate must be between 0 and 1, got %f", c.BloomFilterFP)
	}

	if c.Reset && c.ResetNotFound {
		return fmt.Errorf("--reset already includes --reset-not-found")
	}

	if c.ShowDashboard && c.ShowProgress {
		return fmt.Errorf("--dashboard and --progress are mutually exclusive")
	}

	return nil
}
