package domainservice

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultCountry is used for names without a TLD
const DefaultCountry = "US"

// CountryOverrides maps suffixes whose last label is not a country code
var CountryOverrides = map[string]string{
	"co.uk":  "GB",
	"org.uk": "GB",
	"ac.uk":  "GB",
	"gov.uk": "GB",
	"uk":     "GB",
	"com.au": "AU",
	"net.au": "AU",
	"org.au": "AU",
}

// CountryResolver implements service.CountryResolver
type CountryResolver struct {
	overrides map[string]string
}

// NewCountryResolver creates a resolver with the default overrides
func NewCountryResolver() *CountryResolver {
	return &CountryResolver{overrides: CountryOverrides}
}

// CountryOf infers the country code of a domain
func (c *CountryResolver) CountryOf(domain string) string {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return DefaultCountry
	}

	if suffix, _ := publicsuffix.PublicSuffix(domain); suffix != "" {
		if country, ok := c.overrides[suffix]; ok {
			return country
		}
	}

	// longest matching override
	best := ""
	for suffix := range c.overrides {
		if (domain == suffix || strings.HasSuffix(domain, "."+suffix)) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best != "" {
		return c.overrides[best]
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return DefaultCountry
	}
	return strings.ToUpper(labels[len(labels)-1])
}
