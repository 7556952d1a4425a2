// Package usage tracks external-call consumption for a single orchestrator
// invocation. Constructed per batch and threaded through explicitly so
// concurrent batches cannot corrupt each other's accounting.
package usage

import (
	"sync"
	"sync/atomic"

	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/pkg/anthropic"
)

// Counter accumulates rate-limited external-call counts. Safe for concurrent
// use by a worker pool.
type Counter struct {
	searchesMade  atomic.Int64
	searchesSaved atomic.Int64
	readerCalls   atomic.Int64
	llmCalls      atomic.Int64

	mu     sync.Mutex
	tokens anthropic.TokenUsage
	model  string
}

// NewCounter creates a Counter attributing token cost to the given model.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// SearchMade records one external search call.
func (c *Counter) SearchMade() { c.searchesMade.Add(1) }

// SearchSaved records one search avoided by a cache or profile short-circuit.
func (c *Counter) SearchSaved() { c.searchesSaved.Add(1) }

// ReaderCall records one page-fetch call.
func (c *Counter) ReaderCall() { c.readerCalls.Add(1) }

// LLMCall records one generation call and its token usage.
func (c *Counter) LLMCall(u anthropic.TokenUsage) {
	c.llmCalls.Add(1)
	c.mu.Lock()
	c.tokens.Add(u)
	c.mu.Unlock()
}

// Snapshot returns a point-in-time view of the counters.
func (c *Counter) Snapshot() model.UsageSnapshot {
	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()

	return model.UsageSnapshot{
		SearchesMade:  c.searchesMade.Load(),
		SearchesSaved: c.searchesSaved.Load(),
		ReaderCalls:   c.readerCalls.Load(),
		LLMCalls:      c.llmCalls.Load(),
		InputTokens:   tokens.InputTokens,
		OutputTokens:  tokens.OutputTokens,
		EstimatedCost: tokens.EstimateCost(c.model),
	}
}
