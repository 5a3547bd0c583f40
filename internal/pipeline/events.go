package pipeline

import (
	"sync"

	"podforge/internal/services/llm"
)

// Collector consumes generation events attributed to named producers. Each
// partial emission for a producer supersedes the previous partial; a final
// emission locks the producer's text and later events for it are ignored.
type Collector struct {
	mu       sync.Mutex
	partials map[string]string
	finals   map[string]string
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		partials: make(map[string]string),
		finals:   make(map[string]string),
	}
}

// OnEvent records one emission.
func (c *Collector) OnEvent(ev llm.Event) {
	if ev.Producer == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.finals[ev.Producer]; done {
		return
	}
	if ev.Final {
		c.finals[ev.Producer] = ev.Content
		delete(c.partials, ev.Producer)
		return
	}
	c.partials[ev.Producer] = ev.Content
}

// Final returns the final text for a producer, if one arrived.
func (c *Collector) Final(producer string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.finals[producer]
	return text, ok
}

// Latest returns the best available text for a producer: the final emission
// when present, otherwise the most recent partial.
func (c *Collector) Latest(producer string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text, ok := c.finals[producer]; ok {
		return text, true
	}
	text, ok := c.partials[producer]
	return text, ok
}
