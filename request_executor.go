// request_executor.go
// -------------------
// The RequestExecutor orchestrates one call: resolve credentials, build the
// request, send it through the adapter's transport, consult the rate limiter,
// and hand failures to the classifier. Transient failures (transport errors
// and 5xx without a fault) retry with capped exponential backoff; everything
// else classifies immediately. One call never blocks another integration's
// calls.
package atsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const maxBackoff = 30 * time.Second

// Result is what a successful (or swallowed) call yields. Data holds the
// decoded JSON payload for REST providers or the decoded envelope body for
// SOAP. Skipped results carry no data: the classifier absorbed an expected
// condition (scope revoked, stale resource, suppressed redirect) and the
// caller should treat the operation as "no data".
type Result struct {
	Data any
	Raw  []byte

	Skipped  bool
	SkipKind ErrorKind
}

// RequestExecutor drives calls for the bridge. One executor serves all
// providers; per-call state lives on the stack.
type RequestExecutor struct {
	bridge *AtsBridge
}

func NewRequestExecutor(bridge *AtsBridge) *RequestExecutor {
	return &RequestExecutor{bridge: bridge}
}

// Execute runs one named operation for one integration.
func (re *RequestExecutor) Execute(ctx context.Context, integ *Integration, adapter ProviderAdapter, operation string, params Params) (*Result, error) {
	cfg := re.bridge.getProviderConfig(integ.Provider)
	cc := CallContext{
		Integration: integ,
		Operation:   operation,
		Scope:       adapter.OperationScope(operation),
	}
	if ids, ok := params.Strings("job_ids"); ok {
		cc.JobIDs = ids
	}

	creds, err := re.bridge.credentials.CredentialsFor(ctx, integ.ID)
	if err != nil {
		return re.finish(ctx, cc, &ClassifiedError{
			Kind:     KindCredentialsMissing,
			Provider: integ.Provider,
			Message:  fmt.Sprintf("credentials lookup failed: %v", err),
			cause:    err,
		}, nil)
	}

	material, err := adapter.Authenticate(creds)
	if err != nil {
		return re.finish(ctx, cc, err, nil)
	}

	spec, err := adapter.BuildRequest(operation, params, creds)
	if err != nil {
		return re.finish(ctx, cc, err, nil)
	}

	checker := adapter.RateLimitChecker()
	attempts := 0
	for {
		resp, err := adapter.ExecuteRequest(ctx, spec, material)
		if err != nil {
			if IsTransportError(err) && attempts < cfg.MaxRetries && ctx.Err() == nil {
				wait := calculateBackoff(cfg.BaseBackoff, attempts)
				re.bridge.logger.Warnw("transport failure, retrying",
					"provider", integ.Provider,
					"operation", operation,
					"attempt", attempts+1,
					"backoff", wait,
					"error", err,
				)
				if !sleepCtx(ctx, wait) {
					return re.finish(ctx, cc, err, nil)
				}
				attempts++
				continue
			}
			return re.finish(ctx, cc, err, nil)
		}

		// Rate-limited providers consult the checker after every response,
		// before the response is treated as a success.
		if checker != nil {
			verdict := checker.Check(integ.ID, resp.Headers)
			if verdict.Exceeded || resp.StatusCode == 429 {
				if attempts < cfg.MaxRetries {
					wait := verdict.Wait
					if wait <= 0 {
						wait = calculateBackoff(cfg.BaseBackoff, attempts)
					}
					re.bridge.logger.Warnw("rate limited, backing off",
						"provider", integ.Provider,
						"operation", operation,
						"integration_id", integ.ID,
						"wait", wait,
					)
					if !sleepCtx(ctx, wait) {
						return re.finish(ctx, cc, ctx.Err(), resp)
					}
					attempts++
					continue
				}
				return re.finish(ctx, cc, &ClassifiedError{
					Kind:       KindRateLimitExceeded,
					Provider:   integ.Provider,
					Operation:  operation,
					HTTPStatus: resp.StatusCode,
					Message:    "rate limit exceeded and max retries reached",
				}, resp)
			}
			if verdict.Wait > 0 {
				// Provider asked for breathing room; suspend this call only.
				if !sleepCtx(ctx, verdict.Wait) {
					return re.finish(ctx, cc, ctx.Err(), resp)
				}
			}
		} else if resp.StatusCode == 429 {
			return re.finish(ctx, cc, &ClassifiedError{
				Kind:       KindRateLimitExceeded,
				Provider:   integ.Provider,
				Operation:  operation,
				HTTPStatus: resp.StatusCode,
				Message:    "provider returned 429",
			}, resp)
		}

		if resp.Fault != nil {
			return re.finish(ctx, cc, nil, resp)
		}
		if resp.StatusCode >= 500 && attempts < cfg.MaxRetries {
			wait := calculateBackoff(cfg.BaseBackoff, attempts)
			re.bridge.logger.Warnw("server error, retrying",
				"provider", integ.Provider,
				"operation", operation,
				"status", resp.StatusCode,
				"attempt", attempts+1,
				"backoff", wait,
			)
			if !sleepCtx(ctx, wait) {
				return re.finish(ctx, cc, ctx.Err(), resp)
			}
			attempts++
			continue
		}
		if resp.StatusCode >= 400 {
			return re.finish(ctx, cc, nil, resp)
		}

		return re.decode(ctx, cc, resp)
	}
}

// finish routes a failure through the classifier and converts swallowed
// outcomes into skip results.
func (re *RequestExecutor) finish(ctx context.Context, cc CallContext, cause error, resp *ResponseDescriptor) (*Result, error) {
	outcome := re.bridge.classifier.Classify(ctx, cc, cause, resp)
	if outcome.Swallowed {
		return &Result{Skipped: true, SkipKind: outcome.Kind}, nil
	}
	return nil, outcome.Err
}

// decode turns a successful response into a Result. An empty body is an empty
// result, not an error; an unparsable body classifies as ResponseParseError.
func (re *RequestExecutor) decode(ctx context.Context, cc CallContext, resp *ResponseDescriptor) (*Result, error) {
	re.bridge.metrics.IncrCounter(cc.Integration.Provider, cc.Operation, "success")

	res := &Result{Raw: resp.Body}
	if resp.Envelope != nil {
		res.Data = resp.Envelope
		return res, nil
	}
	if len(resp.Body) == 0 {
		return res, nil
	}
	var data any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		pe := NewParseError(cc.Integration.Provider, cc.Operation, err)
		outcome := re.bridge.classifier.Classify(ctx, cc, pe, resp)
		return nil, outcome.Err
	}
	res.Data = data
	return res, nil
}

func calculateBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	backoff := base * (1 << attempt) // base * 2^attempt
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// sleepCtx waits for d unless the context ends first. Returns false when the
// context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
