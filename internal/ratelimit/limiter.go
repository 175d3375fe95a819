// Package ratelimit throttles MCP tool calls with one token bucket per tool.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Limit describes a bucket: a sustained rate and the burst it may absorb.
type Limit struct {
	PerMinute float64
	Burst     int
}

// Bucket is a token bucket refilled continuously at Limit.PerMinute.
type Bucket struct {
	mu     sync.Mutex
	limit  Limit
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewBucket returns a full bucket.
func NewBucket(limit Limit) *Bucket {
	return &Bucket{
		limit:  limit,
		tokens: float64(limit.Burst),
		last:   time.Now(),
		now:    time.Now,
	}
}

func (b *Bucket) refill() time.Time {
	now := b.now()
	elapsed := now.Sub(b.last).Minutes()
	b.tokens = math.Min(float64(b.limit.Burst), b.tokens+elapsed*b.limit.PerMinute)
	b.last = now
	return now
}

// Take consumes a token. When none is left it returns false and the time
// until the next token is available.
func (b *Bucket) Take() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.limit.PerMinute <= 0 {
		return false, time.Duration(math.MaxInt64)
	}
	wait := (1 - b.tokens) / b.limit.PerMinute
	return false, time.Duration(wait * float64(time.Minute))
}

// Tool names exposed by the MCP server.
const (
	ToolSimulate = "sirgraph_simulate"
	ToolList     = "sirgraph_list"
	ToolSeries   = "sirgraph_series"
	ToolGraph    = "sirgraph_graph"
)

// DefaultLimits keeps simulations, which are CPU bound, well below the
// read-only tools.
var DefaultLimits = map[string]Limit{
	ToolSimulate: {PerMinute: 6, Burst: 2},
	ToolList:     {PerMinute: 60, Burst: 10},
	ToolSeries:   {PerMinute: 60, Burst: 10},
	ToolGraph:    {PerMinute: 20, Burst: 5},
}

// LimitError is returned by Check when a tool is out of tokens.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Second))
}

// Tools maps tool names to their buckets.
type Tools map[string]*Bucket

// NewTools builds one bucket per entry of limits.
func NewTools(limits map[string]Limit) Tools {
	t := make(Tools, len(limits))
	for name, l := range limits {
		t[name] = NewBucket(l)
	}
	return t
}

// Check takes a token for tool. Tools without a bucket are never limited.
func (t Tools) Check(tool string) error {
	b, ok := t[tool]
	if !ok {
		return nil
	}
	if ok, wait := b.Take(); !ok {
		return &LimitError{Tool: tool, RetryAfter: wait}
	}
	return nil
}
