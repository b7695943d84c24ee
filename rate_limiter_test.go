package atsbridge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiterForTest() *RateLimiter {
	return NewRateLimiter(&ProviderConfig{UseProviderLimits: true})
}

func TestCheckNoHeadersProceeds(t *testing.T) {
	r := limiterForTest()
	v := r.Check("int-1", map[string]string{})
	assert.False(t, v.Exceeded)
	assert.Zero(t, v.Wait)
}

func TestCheckBudgetRemainingProceeds(t *testing.T) {
	r := limiterForTest()
	v := r.Check("int-1", map[string]string{
		"x-ratelimit-limit":     "60",
		"x-ratelimit-remaining": "42",
	})
	assert.False(t, v.Exceeded)
}

func TestCheckExhaustedBudgetWaitsUntilReset(t *testing.T) {
	r := limiterForTest()
	reset := time.Now().Add(30 * time.Second).Unix()
	v := r.Check("int-1", map[string]string{
		"x-ratelimit-limit":     "60",
		"x-ratelimit-remaining": "0",
		"x-ratelimit-reset":     fmt.Sprintf("%d", reset),
	})
	assert.False(t, v.Exceeded)
	assert.Greater(t, v.Wait, 20*time.Second)
	assert.LessOrEqual(t, v.Wait, 30*time.Second)
}

func TestCheckExhaustedWithoutResetIsExceeded(t *testing.T) {
	r := limiterForTest()
	v := r.Check("int-1", map[string]string{
		"x-ratelimit-limit":     "60",
		"x-ratelimit-remaining": "0",
	})
	assert.True(t, v.Exceeded)
}

func TestCheckRetryAfterBeatsReset(t *testing.T) {
	r := limiterForTest()
	v := r.Check("int-1", map[string]string{
		"x-ratelimit-remaining": "0",
		"retry-after":           "45",
	})
	assert.False(t, v.Exceeded)
	assert.Greater(t, v.Wait, 40*time.Second)
}

func TestCheckRetryAfterImpliesExhaustion(t *testing.T) {
	r := limiterForTest()
	v := r.Check("int-1", map[string]string{"retry-after": "10"})
	assert.Greater(t, v.Wait, 5*time.Second, "retry-after alone must still pause the call")
}

func TestStatePerIntegration(t *testing.T) {
	r := limiterForTest()
	reset := time.Now().Add(time.Minute).Unix()
	r.Check("int-throttled", map[string]string{
		"x-ratelimit-remaining": "0",
		"x-ratelimit-reset":     fmt.Sprintf("%d", reset),
	})

	v := r.Check("int-other", map[string]string{
		"x-ratelimit-limit":     "60",
		"x-ratelimit-remaining": "59",
	})
	assert.False(t, v.Exceeded)
	assert.Zero(t, v.Wait, "one tenant's exhaustion must not delay another")
}

func TestOverrideCapsProviderBudget(t *testing.T) {
	maxReq := 10
	r := NewRateLimiter(&ProviderConfig{
		UseProviderLimits:   false,
		MaxRequestsOverride: &maxReq,
	})
	r.Check("int-1", map[string]string{
		"x-ratelimit-limit":     "1000",
		"x-ratelimit-remaining": "900",
	})

	info := r.Snapshot("int-1")
	require.NotNil(t, info)
	assert.Equal(t, 10, *info.MaxRequests)
	assert.Equal(t, 10, *info.RemainingRequests)
}

func TestSnapshotCopies(t *testing.T) {
	r := limiterForTest()
	assert.Nil(t, r.Snapshot("unknown"))

	reset := time.Now().Add(time.Minute).Unix()
	r.Check("int-1", map[string]string{
		"x-ratelimit-limit":     "60",
		"x-ratelimit-remaining": "5",
		"x-ratelimit-reset":     fmt.Sprintf("%d", reset),
	})
	info := r.Snapshot("int-1")
	require.NotNil(t, info)
	*info.MaxRequests = 0
	*info.RemainingRequests = 0
	*info.ResetRequestsAt = 0

	again := r.Snapshot("int-1")
	assert.Equal(t, 60, *again.MaxRequests, "writes through a snapshot must not reach the stored budget")
	assert.Equal(t, 5, *again.RemainingRequests)
	assert.Equal(t, reset*1000, *again.ResetRequestsAt)
}
