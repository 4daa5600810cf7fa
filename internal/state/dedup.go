// Package state provides target deduplication and report persistence for
// batch scans.
package state

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator tracks which targets have already been scheduled, using a
// Bloom filter for the fast path and an exact map to rule out false
// positives.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	count  int
}

// NewDeduplicator creates a deduplicator sized for the expected number of
// targets.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 100 {
		estimatedItems = 100
	}

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add records a target.
func (d *Deduplicator) Add(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.exact[target]; !exists {
		d.filter.AddString(target)
		d.exact[target] = struct{}{}
		d.count++
	}
}

// HasSeen checks whether a target was already recorded.
func (d *Deduplicator) HasSeen(target string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(target) {
		return false
	}
	_, exists := d.exact[target]
	return exists
}

// Count returns the number of unique targets seen.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// Reset clears the deduplicator.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
	d.count = 0
}
