// Package metrics keeps process-wide counters for the /metrics
// endpoint. Everything is atomic; observers never block request
// handling.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	started time.Time

	totalRequests  atomic.Int64
	activeRequests atomic.Int64
	totalErrors    atomic.Int64
	authFailures   atomic.Int64
	rateLimitHits  atomic.Int64
	ipDenied       atomic.Int64
	davRequests    atomic.Int64

	uploadBytes   atomic.Int64
	downloadBytes atomic.Int64

	mu       sync.Mutex
	byMethod map[string]int64
	byStatus map[int]int64
}

func New() *Collector {
	return &Collector{
		started:  time.Now(),
		byMethod: map[string]int64{},
		byStatus: map[int]int64{},
	}
}

func (c *Collector) Request(method string) {
	c.totalRequests.Add(1)
	c.activeRequests.Add(1)
	c.mu.Lock()
	c.byMethod[method]++
	c.mu.Unlock()
}

func (c *Collector) Response(status int) {
	c.activeRequests.Add(-1)
	if status >= 500 {
		c.totalErrors.Add(1)
	}
	c.mu.Lock()
	c.byStatus[status]++
	c.mu.Unlock()
}

func (c *Collector) AuthFailure()             { c.authFailures.Add(1) }
func (c *Collector) RateLimitHit()            { c.rateLimitHits.Add(1) }
func (c *Collector) IPDenied()                { c.ipDenied.Add(1) }
func (c *Collector) DavRequest()              { c.davRequests.Add(1) }
func (c *Collector) AddUploadBytes(n int64)   { c.uploadBytes.Add(n) }
func (c *Collector) AddDownloadBytes(n int64) { c.downloadBytes.Add(n) }

// Snapshot renders all counters for the /metrics endpoint.
func (c *Collector) Snapshot() map[string]any {
	c.mu.Lock()
	byMethod := make(map[string]int64, len(c.byMethod))
	for k, v := range c.byMethod {
		byMethod[k] = v
	}
	byStatus := make(map[int]int64, len(c.byStatus))
	for k, v := range c.byStatus {
		byStatus[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"uptime_seconds": time.Since(c.started).Seconds(),
		"requests": map[string]any{
			"total":     c.totalRequests.Load(),
			"active":    c.activeRequests.Load(),
			"by_method": byMethod,
			"by_status": byStatus,
		},
		"transfer": map[string]any{
			"upload_bytes":   c.uploadBytes.Load(),
			"download_bytes": c.downloadBytes.Load(),
		},
		"errors": map[string]any{
			"total":           c.totalErrors.Load(),
			"auth_failures":   c.authFailures.Load(),
			"rate_limit_hits": c.rateLimitHits.Load(),
			"ip_denied":       c.ipDenied.Load(),
		},
		"webdav": map[string]any{
			"requests": c.davRequests.Load(),
		},
	}
}
