// sdk.go
// ------
// The sdk.go file contains the core AtsBridge struct and its methods. This is
// the main entry point of the module for callers.
//
// Key functionalities include:
// - Initializing the bridge with NewAtsBridge()
// - Registering provider adapters with RegisterProvider()
// - Running named operations via bridge.Do()
// - Driving paginated bulk reads via bridge.Pages()
//
// The AtsBridge relies on a RequestExecutor and a Classifier to give every
// provider the same calling convention: callers receive parsed data, an
// empty/skip result, or one typed failure from the error taxonomy — never a
// raw transport exception.
package atsbridge

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Collaborators are the external services the bridge talks to. Credentials is
// required; the rest default to no-ops.
type Collaborators struct {
	Credentials   CredentialsStore
	Health        HealthRecorder
	Notifications NotificationSink
	Metrics       MetricsSink
	Logger        *zap.SugaredLogger
}

// AtsBridge is the single caller-facing entry point for all providers.
type AtsBridge struct {
	mu       sync.Mutex
	adapters map[ProviderType]ProviderAdapter
	configs  map[ProviderType]*ProviderConfig

	executor    *RequestExecutor
	classifier  *Classifier
	credentials CredentialsStore
	metrics     MetricsSink
	logger      *zap.SugaredLogger
}

// NewAtsBridge builds a bridge wired to the given collaborators.
func NewAtsBridge(c Collaborators) (*AtsBridge, error) {
	if c.Credentials == nil {
		return nil, errors.New("atsbridge: a credentials store is required")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = nopMetricsSink{}
	}
	b := &AtsBridge{
		adapters:    make(map[ProviderType]ProviderAdapter),
		configs:     make(map[ProviderType]*ProviderConfig),
		classifier:  NewClassifier(c.Health, c.Notifications, metrics, logger),
		credentials: c.Credentials,
		metrics:     metrics,
		logger:      logger,
	}
	b.executor = NewRequestExecutor(b)
	return b, nil
}

// RegisterProvider associates an adapter and its configuration with a
// provider type.
func (b *AtsBridge) RegisterProvider(provider ProviderType, adapter ProviderAdapter, config *ProviderConfig) {
	if config == nil {
		config = &ProviderConfig{UseProviderLimits: true}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adapters[provider] = adapter
	b.configs[provider] = config.withDefaults()
	b.logger.Debugw("registered provider", "provider", provider)
}

// Do runs one named operation for one integration and returns the parsed
// payload or a classified error. Swallowed provider conditions come back as a
// skip result with Skipped set.
func (b *AtsBridge) Do(ctx context.Context, integ *Integration, operation string, params Params) (*Result, error) {
	adapter, err := b.adapterFor(integ.Provider)
	if err != nil {
		return nil, err
	}
	return b.executor.Execute(ctx, integ, adapter, operation, params)
}

// Pages drives a paginated bulk read. Each page goes through the same
// executor path as Do, so authentication, rate limiting, and classification
// apply page by page. The returned iterator is lazy and non-restartable.
func (b *AtsBridge) Pages(ctx context.Context, integ *Integration, operation string, params Params) (*PageIter, error) {
	adapter, err := b.adapterFor(integ.Provider)
	if err != nil {
		return nil, err
	}
	bulk, ok := adapter.(BulkProvider)
	if !ok {
		return nil, errors.Newf("atsbridge: provider %q has no paginated operations", integ.Provider)
	}
	po, ok := bulk.BulkOperation(operation)
	if !ok {
		return nil, errors.Newf("atsbridge: operation %q of provider %q is not paginated", operation, integ.Provider)
	}

	limit := po.PageSizeLimit()
	if limit <= 0 {
		limit = b.getProviderConfig(integ.Provider).PageSizeLimit
	}

	fetch := func(ctx context.Context, cursor string) ([]PageItem, error) {
		res, err := b.executor.Execute(ctx, integ, adapter, operation, po.PageParams(params, cursor))
		if err != nil {
			return nil, err
		}
		if res.Skipped {
			// Scope revoked or resource gone mid-read: no further pages.
			return nil, nil
		}
		return po.ExtractItems(res)
	}
	return NewPageIter(fetch, limit), nil
}

func (b *AtsBridge) adapterFor(provider ProviderType) (ProviderAdapter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	adapter, ok := b.adapters[provider]
	if !ok {
		return nil, errors.Newf("atsbridge: provider %q not registered", provider)
	}
	return adapter, nil
}

// getProviderConfig retrieves the config for a provider, or defaults if the
// adapter was registered without one.
func (b *AtsBridge) getProviderConfig(provider ProviderType) *ProviderConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	if config, ok := b.configs[provider]; ok && config != nil {
		return config
	}
	return (&ProviderConfig{UseProviderLimits: true}).withDefaults()
}
