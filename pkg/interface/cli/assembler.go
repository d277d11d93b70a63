package cli

import (
	"fmt"
	"os"

	"github.com/WangYihang/Logo-Harvester/pkg/application"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/browser"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/classifier"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/directory"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/domainservice"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/http"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/metrics"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/proxy"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/retry"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/storage"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/strategy"
	"github.com/sirupsen/logrus"
)

// Assembler assembles all components for the application
type Assembler struct {
	config   *Config
	runID    string
	log      logrus.FieldLogger
	exporter *metrics.Exporter
}

// NewAssembler creates a new assembler
func NewAssembler(config *Config, runID string, log logrus.FieldLogger) *Assembler {
	return &Assembler{config: config, runID: runID, log: log}
}

// Exporter returns the Prometheus exporter, or nil when metrics are off
func (a *Assembler) Exporter() *metrics.Exporter {
	return a.exporter
}

// AssembleUseCase loads the targets and wires the acquire use case
func (a *Assembler) AssembleUseCase() (*application.AcquireUseCase, []entity.Target, error) {
	targets, err := LoadTargets(a.config.InputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load targets: %w", err)
	}

	if len(targets) == 0 {
		return nil, nil, fmt.Errorf("no domains provided")
	}

	// Create domain services
	normalizer := domainservice.NewNormalizer()
	expander := domainservice.NewExpander()
	countries := domainservice.NewCountryResolver()
	gate := classifier.New()

	strategies, err := a.assembleStrategies(countries, gate)
	if err != nil {
		return nil, nil, err
	}
	primary, secondary := a.assembleDirectories(gate)

	// Create repositories
	if err := os.MkdirAll(a.config.StateDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	index := storage.NewBloomFilter(storage.Config{
		Size:              a.config.RealBloomFilterSize,
		FalsePositiveRate: a.config.BloomFilterFP,
	})
	store, err := storage.NewAssetStore(a.config.OutputDir, normalizer.DedupKey, index)
	if err != nil {
		return nil, nil, err
	}

	ledger, err := storage.NewLedger(a.config.statePath(a.config.LedgerFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	resultWriter, err := storage.NewResultWriter(a.config.statePath(a.config.ResultsFile))
	if err != nil {
		ledger.Close()
		return nil, nil, fmt.Errorf("failed to create result writer: %w", err)
	}

	logWriter, err := storage.NewLogWriter(a.config.statePath(a.config.AttemptsFile))
	if err != nil {
		ledger.Close()
		resultWriter.Close()
		return nil, nil, fmt.Errorf("failed to create log writer: %w", err)
	}

	taskQueue := storage.NewTaskQueue(len(targets))
	resultQueue := storage.NewResultQueue(a.config.NumWorkers * 2)

	// Create use case
	useCase := application.NewAcquireUseCase(
		application.Config{
			NumWorkers:    a.config.NumWorkers,
			Dwell:         a.config.DwellDuration,
			RunID:         a.runID,
			ResetLedger:   a.config.Reset,
			ResetNotFound: a.config.ResetNotFound,
		},
		normalizer,
		expander,
		strategies,
		primary,
		secondary,
		store,
		ledger,
		taskQueue,
		resultQueue,
		resultWriter,
		logWriter,
		retry.TimerSleeper{},
		a.log,
	)

	if a.config.MetricsAddr != "" {
		a.exporter = metrics.NewExporter()
		useCase.RegisterMetricsObserver(a.exporter)
		useCase.RegisterAttemptRecorder(a.exporter)
	}

	return useCase, targets, nil
}

// assembleStrategies builds the fetch tiers in escalation order
func (a *Assembler) assembleStrategies(countries service.CountryResolver, gate *classifier.Classifier) ([]service.FetchStrategy, error) {
	hosts := a.config.CDNHosts
	if len(hosts) == 0 {
		hosts = strategy.DefaultCDNHosts
	}

	fetcher := http.NewFetcher(http.Config{
		Timeout:         a.config.HTTPTimeoutDuration,
		MaxResponseSize: a.config.MaxResponseSize,
	})
	strategies := []service.FetchStrategy{
		strategy.NewCDN(strategy.CDNConfig{Hosts: hosts, Timeout: a.config.HTTPTimeoutDuration}, fetcher, gate),
	}

	if a.config.RelayURL != "" {
		strategies = append(strategies, strategy.NewRelay(strategy.RelayConfig{
			Endpoint:    a.config.RelayURL,
			MaxTimeout:  a.config.RelayTimeoutDuration,
			Concurrency: a.config.RelayConcurrency,
			SkipHosts:   hosts,
		}, gate))
	} else {
		a.log.Info("relay tier disabled, no relay URL configured")
	}

	if a.config.DisableBrowser {
		return strategies, nil
	}

	var proxies []entity.Proxy
	if a.config.ProxiesFile != "" {
		loaded, err := proxy.Load(a.config.ProxiesFile)
		if err != nil {
			return nil, err
		}
		proxies = loaded
	}
	pool := proxy.NewPool(proxies)
	a.log.WithField("proxies", pool.Len()).Info("proxy pool loaded")

	navigator := browser.NewNavigator(browser.Config{
		ExecPath:          a.config.BrowserPath,
		Headless:          !a.config.NoHeadless,
		NavigationTimeout: a.config.BrowserTimeoutDuration,
	}, a.log)

	backoff := retry.NewBackoff(retry.Policy{
		Base:   a.config.BackoffBase,
		Max:    a.config.BackoffMaxDuration,
		Jitter: retry.DefaultPolicy.Jitter,
	})

	strategies = append(strategies, strategy.NewBrowser(
		strategy.BrowserConfig{
			RetryBudget: a.config.RetryBudget,
			Timeout:     a.config.BrowserTimeoutDuration,
		},
		navigator,
		pool,
		countries,
		gate,
		http.NewUserAgent(),
		backoff,
		a.log,
	))
	return strategies, nil
}

// assembleDirectories builds the directory providers; a disabled provider
// is nil and skipped by the workers
func (a *Assembler) assembleDirectories(checker service.ImageChecker) (service.DirectoryProvider, service.DirectoryProvider) {
	limiter := directory.NewLimiter(a.config.DirectoryRPS, 1)
	config := directory.Config{
		Token:   a.config.DirectoryToken,
		Timeout: a.config.DirectoryTimeoutDuration,
	}

	var primary, secondary service.DirectoryProvider
	switch {
	case a.config.DisablePrimary:
	case a.config.DirectoryToken == "":
		a.log.Warn("primary directory disabled, no token configured")
	default:
		primary = directory.NewPrimary(config, limiter)
	}
	if !a.config.DisableSecondary {
		secondary = directory.NewSecondary(config, limiter, checker)
	}
	return primary, secondary
}
