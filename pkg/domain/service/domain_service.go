package service

import (
	"context"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// DomainNormalizer canonicalizes domain names
type DomainNormalizer interface {
	// Normalize lower-cases and strips scheme, path, port and trailing dot
	Normalize(domain string) string
	// DedupKey returns the normalized domain without a leading www.
	DedupKey(domain string) string
	// IsValid checks if a domain name is valid
	IsValid(domain string) bool
}

// VariantExpander turns an asset reference into candidate URLs
type VariantExpander interface {
	// Expand returns the ordered, de-duplicated candidate URLs
	Expand(reference string) []string
}

// CountryResolver infers the country a domain belongs to
type CountryResolver interface {
	// CountryOf returns an ISO-like country code
	CountryOf(domain string) string
}

// Classifier decides whether a response is a genuine image
type Classifier interface {
	Classify(requestedURL, finalURL, contentType string, body []byte) entity.Classification
}

// ImageChecker rejects degenerate images such as tracking pixels
type ImageChecker interface {
	CheckDimensions(contentType string, body []byte) error
}

// AttemptRecorder receives every individual fetch attempt
type AttemptRecorder interface {
	Record(attempt *entity.FetchAttempt)
}

// AttemptRecorderFunc adapts a function to AttemptRecorder
type AttemptRecorderFunc func(attempt *entity.FetchAttempt)

// Record calls f(attempt)
func (f AttemptRecorderFunc) Record(attempt *entity.FetchAttempt) {
	f(attempt)
}

// FetchStrategy is one tier of the acquisition chain
type FetchStrategy interface {
	// Tier identifies the strategy
	Tier() entity.Tier
	// Applies reports whether the strategy handles the candidate URL
	Applies(url string) bool
	// Fetch retrieves and classifies the candidate URL. A nil error always
	// comes with an accepted download.
	Fetch(ctx context.Context, target entity.Target, url string, recorder AttemptRecorder) (*entity.Download, error)
}

// DirectoryStatus is the outcome of one directory lookup
type DirectoryStatus string

const (
	DirectoryFound    DirectoryStatus = "found"
	DirectoryPending  DirectoryStatus = "pending"
	DirectoryNotFound DirectoryStatus = "not_found"
	DirectoryFailed   DirectoryStatus = "failed"
)

// DirectoryResult is the answer of a directory provider
type DirectoryResult struct {
	Status      DirectoryStatus
	URL         string
	StatusCode  int
	ContentType string
	Download    *entity.Download
	Err         error
}

// DirectoryProvider looks up a logo by domain in a third-party directory
type DirectoryProvider interface {
	Tier() entity.Tier
	Lookup(ctx context.Context, domain string) *DirectoryResult
}

// Navigator drives a real browser to a URL and captures the main document
type Navigator interface {
	Navigate(ctx context.Context, url string, proxy *entity.Proxy, userAgent string) (*entity.Payload, error)
}

// ProxySelector orders proxies for one browser attempt chain
type ProxySelector interface {
	// Order returns same-country proxies first, then the rest, each group
	// shuffled. The returned slice is owned by the caller.
	Order(country string) []entity.Proxy
	Len() int
}
