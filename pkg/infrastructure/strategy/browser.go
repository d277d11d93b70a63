package strategy

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/retry"
	"github.com/sirupsen/logrus"
)

// BrowserConfig holds headless browser strategy configuration
type BrowserConfig struct {
	RetryBudget int
	Timeout     time.Duration
}

// AgentSource supplies user agents for browser attempts
type AgentSource interface {
	Random() string
}

// Browser renders the URL in a headless browser, rotating through proxies
// from the domain's country first
type Browser struct {
	navigator  service.Navigator
	proxies    service.ProxySelector
	countries  service.CountryResolver
	classifier service.Classifier
	agents     AgentSource
	backoff    *retry.Backoff
	budget     int
	timeout    time.Duration
	log        logrus.FieldLogger
}

// NewBrowser creates the browser strategy
func NewBrowser(
	config BrowserConfig,
	navigator service.Navigator,
	proxies service.ProxySelector,
	countries service.CountryResolver,
	classifier service.Classifier,
	agents AgentSource,
	backoff *retry.Backoff,
	log logrus.FieldLogger,
) *Browser {
	budget := config.RetryBudget
	if budget <= 0 {
		budget = 3
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Browser{
		navigator:  navigator,
		proxies:    proxies,
		countries:  countries,
		classifier: classifier,
		agents:     agents,
		backoff:    backoff,
		budget:     budget,
		timeout:    timeout,
		log:        log,
	}
}

// Tier implements service.FetchStrategy
func (s *Browser) Tier() entity.Tier {
	return entity.TierBrowser
}

// Applies accepts any http(s) URL
func (s *Browser) Applies(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Attempts returns how many navigations a chain over n proxies makes
func (s *Browser) Attempts(n int) int {
	if n == 0 {
		return 1
	}
	return min(s.budget, n)
}

// Fetch implements service.FetchStrategy. Each proxy is used at most once
// per call.
func (s *Browser) Fetch(ctx context.Context, target entity.Target, rawURL string, recorder service.AttemptRecorder) (*entity.Download, error) {
	country := s.countries.CountryOf(target.Domain)
	ordered := s.proxies.Order(country)
	attempts := s.Attempts(len(ordered))

	log := s.log.WithFields(logrus.Fields{"domain": target.Domain, "url": rawURL, "country": country})

	var last *entity.FetchError
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, entity.NewFetchError(entity.KindTransport, s.Tier(), rawURL, err)
		}

		var proxy *entity.Proxy
		if i < len(ordered) {
			proxy = &ordered[i]
		}

		download, ferr := s.navigate(ctx, target, rawURL, proxy, i+1, recorder)
		if ferr == nil {
			return download, nil
		}
		last = ferr
		log.WithFields(logrus.Fields{"attempt": i + 1, "proxy": proxyName(proxy)}).WithError(ferr).Debug("browser attempt failed")

		if i < attempts-1 {
			if err := s.backoff.Wait(ctx, i); err != nil {
				return nil, entity.NewFetchError(entity.KindTransport, s.Tier(), rawURL, err)
			}
		}
	}

	return nil, last
}

func (s *Browser) navigate(ctx context.Context, target entity.Target, rawURL string, proxy *entity.Proxy, n int, recorder service.AttemptRecorder) (*entity.Download, *entity.FetchError) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	a := attempt(target, s.Tier(), rawURL, n)
	a.Proxy = proxyName(proxy)

	payload, err := s.navigator.Navigate(ctx, rawURL, proxy, s.agents.Random())
	if err != nil {
		ferr := entity.NewFetchError(entity.KindTransport, s.Tier(), rawURL, err)
		finish(recorder, a, started, nil, ferr)
		return nil, ferr
	}

	download, ferr := accept(s.classifier, s.Tier(), payload)
	finish(recorder, a, started, payload, ferr)
	return download, ferr
}

func proxyName(proxy *entity.Proxy) string {
	if proxy == nil {
		return ""
	}
	return proxy.Server
}
