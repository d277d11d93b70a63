package storage

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomFilter implements repository.DomainFilter with a Bloom filter. A
// negative answer is definite, so it can short-circuit asset lookups.
type BloomFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// Config holds Bloom filter configuration
type Config struct {
	Size              uint
	FalsePositiveRate float64
}

// NewBloomFilter creates a new Bloom filter
func NewBloomFilter(config Config) *BloomFilter {
	if config.Size == 0 {
		config.Size = 100000
	}
	if config.FalsePositiveRate <= 0 {
		config.FalsePositiveRate = 0.001
	}
	return &BloomFilter{
		filter: bloom.NewWithEstimates(config.Size, config.FalsePositiveRate),
	}
}

// Contains reports whether the key may have been added
func (bf *BloomFilter) Contains(key string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.filter.TestString(key)
}

// Add adds a key to the filter
func (bf *BloomFilter) Add(key string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filter.AddString(key)
}
