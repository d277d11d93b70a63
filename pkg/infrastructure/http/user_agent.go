package http

import (
	"math/rand"
	"sync"
)

// DesktopChrome is the fixed user agent sent by the direct CDN fetch
const DesktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// UserAgent provides random desktop agents
type UserAgent struct {
	agents []string
	mu     sync.RWMutex
}

// NewUserAgent creates agent provider
func NewUserAgent() *UserAgent {
	return &UserAgent{
		agents: []string{
			DesktopChrome,
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		},
	}
}

// Random returns random agent
func (ua *UserAgent) Random() string {
	ua.mu.RLock()
	defer ua.mu.RUnlock()
	if len(ua.agents) == 0 {
		return DesktopChrome
	}
	return ua.agents[rand.Intn(len(ua.agents))]
}
