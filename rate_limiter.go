// rate_limiter.go
// ----------------
// This file defines the RateLimiter type, which stores and manages rate limit
// information per integration. State is keyed by integration ID, never by
// provider type alone, so one tenant exhausting its budget cannot delay
// another tenant's calls.
//
// Two mechanisms combine into one verdict:
// - Reactive: the provider's x-ratelimit-* and retry-after response headers
//   are parsed after every call; when the remaining budget is spent the
//   verdict asks the caller to wait until the advertised reset.
// - Proactive: a token bucket smooths request bursts below the configured
//   per-window budget so the reactive path rarely triggers at all.
package atsbridge

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/recruitops/ats-bridge/internal"
)

const (
	headerRateLimit     = "x-ratelimit-limit"
	headerRateRemaining = "x-ratelimit-remaining"
	headerRateReset     = "x-ratelimit-reset"
	headerRetryAfter    = "retry-after"
)

// limitInfo is the last rate limit state a provider reported for one
// integration. Pointer fields distinguish "absent" from zero.
type limitInfo struct {
	MaxRequests       *int
	RemainingRequests *int
	ResetRequestsAt   *int64 // ms since epoch
}

// RateLimiter implements RateLimitChecker for providers with declared
// throttling. Safe for concurrent use across integrations.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]*limitInfo
	buckets map[string]*rate.Limiter

	useProviderLimits bool
	maxRequests       int
	windowSecs        int64
}

// NewRateLimiter builds a limiter from the provider config. When the config
// disables provider limits, the override budget caps whatever the provider
// reports.
func NewRateLimiter(cfg *ProviderConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	r := &RateLimiter{
		limits:            make(map[string]*limitInfo),
		buckets:           make(map[string]*rate.Limiter),
		useProviderLimits: cfg.UseProviderLimits,
	}
	if cfg.MaxRequestsOverride != nil {
		r.maxRequests = *cfg.MaxRequestsOverride
	}
	if cfg.WindowSecsOverride != nil {
		r.windowSecs = *cfg.WindowSecsOverride
	}
	return r
}

// Check records the headers from the response that just completed and decides
// whether the integration's next request may proceed, must wait, or has
// exhausted the provider's budget.
func (r *RateLimiter) Check(integrationID string, headers map[string]string) Verdict {
	info := parseLimitHeaders(headers)

	r.mu.Lock()
	if info != nil {
		if !r.useProviderLimits && r.maxRequests > 0 {
			capped := r.maxRequests
			info.MaxRequests = &capped
			if info.RemainingRequests != nil && *info.RemainingRequests > capped {
				info.RemainingRequests = &capped
			}
		}
		r.limits[integrationID] = info
	}
	stored := r.limits[integrationID]
	bucket := r.bucketLocked(integrationID, stored)
	r.mu.Unlock()

	if stored != nil && stored.RemainingRequests != nil && *stored.RemainingRequests <= 0 {
		if stored.ResetRequestsAt != nil && internal.IsInFuture(*stored.ResetRequestsAt) {
			delay := time.Duration(*stored.ResetRequestsAt-time.Now().UnixMilli()) * time.Millisecond
			return Verdict{Wait: delay}
		}
		// Budget spent and no reset advertised: nothing to wait for.
		return Verdict{Exceeded: true}
	}

	if bucket != nil {
		res := bucket.Reserve()
		if d := res.Delay(); d > 0 {
			return Verdict{Wait: d}
		}
	}
	return Verdict{}
}

// bucketLocked lazily builds the proactive token bucket for one integration,
// sized from the provider-reported budget or the configured override.
func (r *RateLimiter) bucketLocked(integrationID string, info *limitInfo) *rate.Limiter {
	if b, ok := r.buckets[integrationID]; ok {
		return b
	}
	maxReq := r.maxRequests
	windowSecs := r.windowSecs
	if r.useProviderLimits && info != nil && info.MaxRequests != nil {
		maxReq = *info.MaxRequests
	}
	if maxReq <= 0 {
		return nil
	}
	if windowSecs <= 0 {
		windowSecs = 60
	}
	b := rate.NewLimiter(rate.Limit(float64(maxReq)/float64(windowSecs)), maxReq)
	r.buckets[integrationID] = b
	return b
}

// Snapshot returns a copy of the last reported limit state for an
// integration, or nil when nothing has been reported yet.
func (r *RateLimiter) Snapshot(integrationID string) *limitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.limits[integrationID]
	if !ok {
		return nil
	}
	// The fields are pointers; clone them so the caller cannot write through
	// the snapshot into the stored budget.
	copied := &limitInfo{}
	if info.MaxRequests != nil {
		v := *info.MaxRequests
		copied.MaxRequests = &v
	}
	if info.RemainingRequests != nil {
		v := *info.RemainingRequests
		copied.RemainingRequests = &v
	}
	if info.ResetRequestsAt != nil {
		v := *info.ResetRequestsAt
		copied.ResetRequestsAt = &v
	}
	return copied
}

// parseLimitHeaders extracts the normalized limit info from lowercased
// response headers. Returns nil when no limit header is present.
func parseLimitHeaders(h map[string]string) *limitInfo {
	parseInt := func(key string) *int {
		if val, ok := h[key]; ok {
			if i, err := strconv.Atoi(val); err == nil {
				return &i
			}
		}
		return nil
	}
	parseUnixTimestamp := func(key string) *int64 {
		if val, ok := h[key]; ok {
			if ts, err := strconv.ParseInt(val, 10, 64); err == nil {
				ms := internal.UnixToMs(ts)
				return &ms
			}
		}
		return nil
	}

	info := &limitInfo{
		MaxRequests:       parseInt(headerRateLimit),
		RemainingRequests: parseInt(headerRateRemaining),
		ResetRequestsAt:   parseUnixTimestamp(headerRateReset),
	}

	// retry-after only appears once the provider is already throttling.
	if val, ok := h[headerRetryAfter]; ok {
		if ms := internal.ParseDelayStr(val); ms > 0 {
			future := time.Now().UnixMilli() + ms
			if info.ResetRequestsAt == nil || future > *info.ResetRequestsAt {
				info.ResetRequestsAt = &future
			}
			if info.RemainingRequests == nil {
				zero := 0
				info.RemainingRequests = &zero
			}
		}
	}

	if info.MaxRequests == nil && info.RemainingRequests == nil && info.ResetRequestsAt == nil {
		return nil
	}
	return info
}
