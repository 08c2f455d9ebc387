package testutil

import "sync"

// HeightClock hands out block heights for fake ledgers.
//
// The first call to Next returns 1. Reset lets a scenario be replayed with
// identical heights.
//
// Thread-safety: all methods are safe for concurrent use.
type HeightClock struct {
	mu     sync.Mutex
	height uint32
}

// NewHeightClock creates a clock at height 0.
func NewHeightClock() *HeightClock {
	return &HeightClock{}
}

// Next advances and returns the new height.
func (c *HeightClock) Next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height++
	return c.height
}

// Current returns the height without advancing.
func (c *HeightClock) Current() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Reset returns the clock to height 0.
func (c *HeightClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = 0
}
