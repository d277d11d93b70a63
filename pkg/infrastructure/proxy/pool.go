package proxy

import (
	"math/rand"
	"strings"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// Pool implements service.ProxySelector over a fixed proxy list.
// The list is never mutated after construction so a Pool may be shared by
// every worker.
type Pool struct {
	proxies []entity.Proxy
	shuffle func(n int, swap func(i, j int))
}

// NewPool creates a pool; country codes are upper-cased
func NewPool(proxies []entity.Proxy) *Pool {
	owned := make([]entity.Proxy, 0, len(proxies))
	for _, p := range proxies {
		if strings.TrimSpace(p.Server) == "" {
			continue
		}
		p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
		owned = append(owned, p)
	}
	return &Pool{proxies: owned, shuffle: rand.Shuffle}
}

// Len returns the number of proxies
func (p *Pool) Len() int {
	return len(p.proxies)
}

// ByCountry returns a copy of the proxies tagged with the country
func (p *Pool) ByCountry(country string) []entity.Proxy {
	country = strings.ToUpper(country)
	var matched []entity.Proxy
	for _, proxy := range p.proxies {
		if proxy.Country == country {
			matched = append(matched, proxy)
		}
	}
	return matched
}

// Excluding returns a copy of the proxies not tagged with the country
func (p *Pool) Excluding(country string) []entity.Proxy {
	country = strings.ToUpper(country)
	var rest []entity.Proxy
	for _, proxy := range p.proxies {
		if proxy.Country != country {
			rest = append(rest, proxy)
		}
	}
	return rest
}

// Order returns same-country proxies first and the rest after, each group
// shuffled independently
func (p *Pool) Order(country string) []entity.Proxy {
	local := p.ByCountry(country)
	backup := p.Excluding(country)
	p.shuffle(len(local), func(i, j int) { local[i], local[j] = local[j], local[i] })
	p.shuffle(len(backup), func(i, j int) { backup[i], backup[j] = backup[j], backup[i] })
	return append(local, backup...)
}
