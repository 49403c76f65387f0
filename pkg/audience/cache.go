package audience

import (
	"context"
	"sync"
	"time"
)

// Result is a resolved audience.
type Result struct {
	SegmentID         string    `json:"segmentId"`
	Count             int       `json:"count"`
	UserIDs           []string  `json:"userIds,omitempty"`
	MatchedRuleLabels []string  `json:"matchedRuleLabels,omitempty"`
	ComputedAt        time.Time `json:"computedAt"`
}

// Cache stores resolved audiences for a bounded time. Implementations must honor
// Invalidate immediately.
type Cache interface {
	Get(ctx context.Context, segmentID string) (*Result, bool, error)
	Set(ctx context.Context, result *Result, ttl time.Duration) error
	Invalidate(ctx context.Context, segmentID string) error
}

type memoryEntry struct {
	result    Result
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, segmentID string) (*Result, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[segmentID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, segmentID)
		c.mu.Unlock()
		return nil, false, nil
	}

	result := entry.result
	result.UserIDs = append([]string(nil), entry.result.UserIDs...)
	result.MatchedRuleLabels = append([]string(nil), entry.result.MatchedRuleLabels...)
	return &result, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, result *Result, ttl time.Duration) error {
	if ttl <= 0 || result == nil {
		return nil
	}

	stored := *result
	stored.UserIDs = append([]string(nil), result.UserIDs...)
	stored.MatchedRuleLabels = append([]string(nil), result.MatchedRuleLabels...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[result.SegmentID] = memoryEntry{result: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, segmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, segmentID)
	return nil
}
