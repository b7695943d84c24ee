package atsbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	cfg := (&ProviderConfig{}).withDefaults()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseBackoff)
	assert.Equal(t, 150*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20, cfg.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.PoolIdleTimeout)
	assert.Equal(t, 1000, cfg.PageSizeLimit)
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	in := &ProviderConfig{MaxRetries: 5, PageSizeLimit: 250}
	cfg := in.withDefaults()

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250, cfg.PageSizeLimit)
	assert.NotSame(t, in, cfg, "defaults must not mutate the caller's config")
	assert.Zero(t, in.BaseBackoff)
}

func TestFromEnvGreenhouse(t *testing.T) {
	t.Setenv(EnvGreenhouseHarvestBase, "https://harvest.greenhouse.io/v1")
	t.Setenv(EnvGreenhouseJobBoardBase, "https://boards-api.greenhouse.io/v1")

	cfg, err := FromEnv(ProviderGreenhouse)
	require.NoError(t, err)
	assert.Equal(t, "https://harvest.greenhouse.io/v1", cfg.BaseURL)
	assert.Equal(t, "https://boards-api.greenhouse.io/v1", cfg.JobBoardBaseURL)
	assert.True(t, cfg.UseProviderLimits)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestFromEnvGreenhouseUnset(t *testing.T) {
	t.Setenv(EnvGreenhouseHarvestBase, "")
	t.Setenv(EnvGreenhouseJobBoardBase, "")

	_, err := FromEnv(ProviderGreenhouse)
	assert.Error(t, err)
}

func TestFromEnvICIMS(t *testing.T) {
	t.Setenv(EnvICIMSBase, "https://api.icims.com")

	cfg, err := FromEnv(ProviderICIMS)
	require.NoError(t, err)
	assert.Equal(t, "https://api.icims.com", cfg.BaseURL)
}

func TestFromEnvWorkday(t *testing.T) {
	t.Setenv(EnvWorkdayService, "Recruiting_v40.2")

	cfg, err := FromEnv(ProviderWorkday)
	require.NoError(t, err)
	assert.Equal(t, "Recruiting_v40.2", cfg.SOAPService)
}

func TestFromEnvUnknownProvider(t *testing.T) {
	_, err := FromEnv(ProviderType("taleo"))
	assert.Error(t, err)
}
