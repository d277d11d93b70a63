package strategy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	infrahttp "github.com/WangYihang/Logo-Harvester/pkg/infrastructure/http"
)

// CDNConfig holds known-CDN direct fetch configuration
type CDNConfig struct {
	Hosts   []string
	Timeout time.Duration
}

// CDN fetches images straight from hosts known to serve them without
// bot protection
type CDN struct {
	fetcher    *infrahttp.Fetcher
	classifier service.Classifier
	hosts      []string
	timeout    time.Duration
}

// NewCDN creates the known-CDN strategy
func NewCDN(config CDNConfig, fetcher *infrahttp.Fetcher, classifier service.Classifier) *CDN {
	hosts := config.Hosts
	if len(hosts) == 0 {
		hosts = DefaultCDNHosts
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CDN{fetcher: fetcher, classifier: classifier, hosts: hosts, timeout: timeout}
}

// Tier implements service.FetchStrategy
func (s *CDN) Tier() entity.Tier {
	return entity.TierKnownCDN
}

// Applies reports whether the URL is on a known CDN host
func (s *CDN) Applies(rawURL string) bool {
	return MatchesHost(s.hosts, rawURL)
}

// Fetch implements service.FetchStrategy
func (s *CDN) Fetch(ctx context.Context, target entity.Target, rawURL string, recorder service.AttemptRecorder) (*entity.Download, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	a := attempt(target, s.Tier(), rawURL, 1)

	payload, err := s.fetcher.Fetch(ctx, rawURL, s.header(rawURL))
	if err != nil {
		kind := entity.KindTransport
		if errors.Is(err, infrahttp.ErrTooLarge) {
			kind = entity.KindReject
		}
		ferr := entity.NewFetchError(kind, s.Tier(), rawURL, err)
		finish(recorder, a, started, nil, ferr)
		return nil, ferr
	}

	download, ferr := accept(s.classifier, s.Tier(), payload)
	finish(recorder, a, started, payload, ferr)
	if ferr != nil {
		return nil, ferr
	}
	return download, nil
}

func (s *CDN) header(rawURL string) http.Header {
	header := http.Header{}
	header.Set("User-Agent", infrahttp.DesktopChrome)
	header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	header.Set("Accept-Encoding", "gzip, deflate, br")
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	}
	return header
}
