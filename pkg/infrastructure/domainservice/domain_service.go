package domainservice

import (
	"regexp"
	"strings"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
)

// Normalizer implements service.DomainNormalizer
type Normalizer struct {
	domainRegex *regexp.Regexp
}

// NewNormalizer creates a new domain normalizer
func NewNormalizer() service.DomainNormalizer {
	return &Normalizer{
		domainRegex: regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`),
	}
}

// Normalize lower-cases a host and strips scheme, credentials, path, port
// and the trailing root dot
func (n *Normalizer) Normalize(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(domain, "://"); i >= 0 {
		domain = domain[i+3:]
	}
	domain = strings.TrimPrefix(domain, "//")
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	if i := strings.LastIndex(domain, "@"); i >= 0 {
		domain = domain[i+1:]
	}
	if i := strings.LastIndex(domain, ":"); i >= 0 {
		domain = domain[:i]
	}
	return strings.TrimSuffix(domain, ".")
}

// DedupKey returns the normalized domain without a leading www.
func (n *Normalizer) DedupKey(domain string) string {
	return strings.TrimPrefix(n.Normalize(domain), "www.")
}

// IsValid checks if a domain name is valid
func (n *Normalizer) IsValid(domain string) bool {
	domain = n.Normalize(domain)
	if domain == "" {
		return false
	}
	return n.domainRegex.MatchString(domain)
}
