// config.go
// ----------
// This file defines the ProviderConfig structure, which allows per-provider
// customization of endpoints, pooling, retries, rate limit overrides, and
// pagination. The struct is immutable after construction: build one per
// provider and hand it to RegisterProvider. FromEnv reads the conventional
// environment variables for a provider's endpoints and tuning.
package atsbridge

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

const (
	defaultMaxRetries      = 3
	defaultRequestTimeout  = 150 * time.Second
	defaultPoolSize        = 20
	defaultPoolIdleTimeout = 2 * time.Second
	defaultPageSizeLimit   = 1000
)

// ProviderConfig allows per-provider customization of endpoints, rate limits,
// retries, and pagination. Construct once, then treat as read-only.
type ProviderConfig struct {
	// BaseURL is the provider's API root. Greenhouse additionally carries a
	// separate job-board root; Workday carries the recruiting service name
	// appended to the tenant endpoint instead.
	BaseURL         string
	JobBoardBaseURL string
	SOAPService     string

	UseProviderLimits   bool
	MaxRequestsOverride *int   // Override max requests per window if set
	WindowSecsOverride  *int64 // Override the window length if set

	MaxRetries     int           // Max number of retries on transient failure
	BaseBackoff    time.Duration // Initial backoff duration for exponential backoff
	RequestTimeout time.Duration

	PoolSize        int           // Bounded connections per host
	PoolIdleTimeout time.Duration // Idle connection lifetime in the pool

	// PageSizeLimit is the full-page heuristic for paginated bulk reads when
	// the operation itself does not declare a page size.
	PageSizeLimit int
}

// withDefaults fills zero fields so adapters never have to re-check them.
func (c *ProviderConfig) withDefaults() *ProviderConfig {
	out := *c
	if out.MaxRetries == 0 {
		out.MaxRetries = defaultMaxRetries
	}
	if out.BaseBackoff == 0 {
		out.BaseBackoff = time.Second
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = defaultRequestTimeout
	}
	if out.PoolSize == 0 {
		out.PoolSize = defaultPoolSize
	}
	if out.PoolIdleTimeout == 0 {
		out.PoolIdleTimeout = defaultPoolIdleTimeout
	}
	if out.PageSizeLimit == 0 {
		out.PageSizeLimit = defaultPageSizeLimit
	}
	return &out
}

// Environment variables read by FromEnv, matching the deployment convention
// the ATS clients have always used.
const (
	EnvGreenhouseHarvestBase  = "GREENHOUSE_HARVEST_API_BASE"
	EnvGreenhouseJobBoardBase = "GREENHOUSE_JOB_BOARD_API_BASE"
	EnvICIMSBase              = "ICIMS_API_BASE"
	EnvWorkdayService         = "WORKDAY_RECRUITING_API"
)

// FromEnv builds a ProviderConfig for the given provider from environment
// variables. Returns an error when the provider's endpoint variables are
// unset, since a silently empty base URL only fails much later, mid-call.
func FromEnv(provider ProviderType) (*ProviderConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	cfg := &ProviderConfig{UseProviderLimits: true}
	switch provider {
	case ProviderGreenhouse:
		cfg.BaseURL = v.GetString(EnvGreenhouseHarvestBase)
		cfg.JobBoardBaseURL = v.GetString(EnvGreenhouseJobBoardBase)
		if cfg.BaseURL == "" && cfg.JobBoardBaseURL == "" {
			return nil, errors.Newf("config: neither %s nor %s is set", EnvGreenhouseHarvestBase, EnvGreenhouseJobBoardBase)
		}
	case ProviderICIMS:
		cfg.BaseURL = v.GetString(EnvICIMSBase)
		if cfg.BaseURL == "" {
			return nil, errors.Newf("config: %s is not set", EnvICIMSBase)
		}
	case ProviderWorkday:
		cfg.SOAPService = v.GetString(EnvWorkdayService)
		if cfg.SOAPService == "" {
			return nil, errors.Newf("config: %s is not set", EnvWorkdayService)
		}
	default:
		return nil, errors.Newf("config: unsupported provider %q", provider)
	}
	return cfg.withDefaults(), nil
}
