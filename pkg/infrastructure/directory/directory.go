// Package directory queries logo directory services by domain name. It is
// the last tier, used when no candidate URL produced an image.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/classifier"
	infrahttp "github.com/WangYihang/Logo-Harvester/pkg/infrastructure/http"
	"golang.org/x/time/rate"
)

const (
	DefaultPrimaryBaseURL   = "https://img.logo.dev"
	DefaultSecondaryBaseURL = "https://logo.clearbit.com"
	maxBodySize             = 10 << 20
)

// Config holds directory provider configuration
type Config struct {
	PrimaryBaseURL   string
	Token            string
	SecondaryBaseURL string
	Timeout          time.Duration
}

// NewLimiter paces calls shared by both providers; rps <= 0 disables pacing
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// client is the HTTP plumbing both providers share
type client struct {
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func newClient(timeout time.Duration, limiter *rate.Limiter) *client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		timeout: timeout,
	}
}

func (c *client) get(ctx context.Context, rawURL string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := infrahttp.ReadLimited(resp.Body, maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// failureKind tells an oversized answer from a network failure
func failureKind(err error) entity.ErrorKind {
	if errors.Is(err, infrahttp.ErrTooLarge) {
		return entity.KindReject
	}
	return entity.KindTransport
}

func isImage(r *response) bool {
	return len(r.body) > 0 && strings.HasPrefix(classifier.MediaType(r.contentType), "image/")
}

func download(tier entity.Tier, rawURL string, r *response) *entity.Download {
	return &entity.Download{
		URL:       rawURL,
		Tier:      tier,
		Extension: classifier.Extension(r.contentType, rawURL),
		Body:      r.body,
	}
}

// Primary is the token-authenticated directory that may answer 202 while it
// fetches a logo in the background
type Primary struct {
	client  *client
	baseURL string
	token   string
}

// NewPrimary creates the primary provider
func NewPrimary(config Config, limiter *rate.Limiter) *Primary {
	base := config.PrimaryBaseURL
	if base == "" {
		base = DefaultPrimaryBaseURL
	}
	return &Primary{
		client:  newClient(config.Timeout, limiter),
		baseURL: strings.TrimSuffix(base, "/"),
		token:   config.Token,
	}
}

// Tier implements service.DirectoryProvider
func (p *Primary) Tier() entity.Tier {
	return entity.TierPrimaryDirectory
}

func (p *Primary) lookupURL(domain string, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("fallback", "404")
	return p.baseURL + "/" + url.PathEscape(domain) + "?" + q.Encode()
}

// Lookup implements service.DirectoryProvider
func (p *Primary) Lookup(ctx context.Context, domain string) *service.DirectoryResult {
	redacted := p.lookupURL(domain, "REDACTED")
	result := &service.DirectoryResult{URL: redacted}

	resp, err := p.client.get(ctx, p.lookupURL(domain, p.token))
	if err != nil {
		result.Status = service.DirectoryFailed
		result.Err = entity.NewFetchError(failureKind(err), p.Tier(), redacted, err)
		return result
	}
	result.StatusCode = resp.status
	result.ContentType = resp.contentType

	switch {
	case resp.status == http.StatusOK && isImage(resp):
		result.Status = service.DirectoryFound
		result.Download = download(p.Tier(), p.baseURL+"/"+domain, resp)
	case resp.status == http.StatusAccepted:
		result.Status = service.DirectoryPending
	case resp.status == http.StatusNotFound:
		result.Status = service.DirectoryNotFound
	default:
		result.Status = service.DirectoryFailed
		result.Err = entity.NewFetchError(entity.KindProvider, p.Tier(), redacted,
			fmt.Errorf("unexpected response %d %s", resp.status, resp.contentType))
	}
	return result
}

// Secondary is the anonymous directory; its answers are only trusted when
// the image is larger than a tracking pixel
type Secondary struct {
	client  *client
	baseURL string
	checker service.ImageChecker
}

// NewSecondary creates the secondary provider
func NewSecondary(config Config, limiter *rate.Limiter, checker service.ImageChecker) *Secondary {
	base := config.SecondaryBaseURL
	if base == "" {
		base = DefaultSecondaryBaseURL
	}
	return &Secondary{
		client:  newClient(config.Timeout, limiter),
		baseURL: strings.TrimSuffix(base, "/"),
		checker: checker,
	}
}

// Tier implements service.DirectoryProvider
func (s *Secondary) Tier() entity.Tier {
	return entity.TierSecondaryDirectory
}

// Lookup implements service.DirectoryProvider
func (s *Secondary) Lookup(ctx context.Context, domain string) *service.DirectoryResult {
	rawURL := s.baseURL + "/" + url.PathEscape(domain)
	result := &service.DirectoryResult{URL: rawURL, Status: service.DirectoryNotFound}

	resp, err := s.client.get(ctx, rawURL)
	if err != nil {
		result.Err = entity.NewFetchError(failureKind(err), s.Tier(), rawURL, err)
		if !errors.Is(err, infrahttp.ErrTooLarge) {
			result.Status = service.DirectoryFailed
		}
		return result
	}
	result.StatusCode = resp.status
	result.ContentType = resp.contentType

	// an outage or throttling says nothing about the domain
	if resp.status >= http.StatusInternalServerError || resp.status == http.StatusTooManyRequests {
		result.Status = service.DirectoryFailed
		result.Err = entity.NewFetchError(entity.KindProvider, s.Tier(), rawURL,
			fmt.Errorf("unexpected response %d", resp.status))
		return result
	}
	if resp.status != http.StatusOK || !isImage(resp) {
		result.Err = entity.NewFetchError(entity.KindProvider, s.Tier(), rawURL,
			fmt.Errorf("unexpected response %d %s", resp.status, resp.contentType))
		return result
	}
	if err := s.checker.CheckDimensions(resp.contentType, resp.body); err != nil {
		result.Err = entity.NewFetchError(entity.KindReject, s.Tier(), rawURL, err)
		return result
	}

	result.Status = service.DirectoryFound
	result.Download = download(s.Tier(), rawURL, resp)
	return result
}
