package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/namelens/repolens/internal/core"
	"github.com/namelens/repolens/internal/metrics"
)

// Default retry policy.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
	DefaultTimeout     = 30 * time.Second
)

const rateLimitMarker = "rate limit exceeded"

// Query is one logical GraphQL call.
type Query struct {
	Name      string
	Document  string
	Variables map[string]any
}

// Payload is the validated result of a logical call.
type Payload struct {
	Data       json.RawMessage
	Quota      *core.QuotaSnapshot
	Credential int
	Attempts   int
}

// QuotaObserver receives every quota snapshot the API reports.
type QuotaObserver interface {
	RecordQuota(ctx context.Context, slot int, snapshot core.QuotaSnapshot) error
}

// Engine issues GraphQL calls against a shared quota, rotating credentials
// and backing off on transient failures.
type Engine struct {
	URL         string
	Client      *http.Client
	Pool        *TokenPool
	Tracker     *Tracker
	Observer    QuotaObserver
	Logger      *zap.Logger
	MaxRetries  int
	BackoffBase time.Duration
	QuotaSource QuotaSource
	UserAgent   string
	Sleep       func(ctx context.Context, d time.Duration) error
	Clock       func() time.Time

	gateMu     sync.Mutex
	pauseUntil time.Time
}

// NewEngine returns an engine with the default retry policy and tracker.
func NewEngine(url string, pool *TokenPool) (*Engine, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &ConfigurationError{Reason: "api url is required"}
	}
	if pool == nil {
		return nil, &ConfigurationError{Reason: "token pool is required"}
	}
	return &Engine{
		URL:         url,
		Client:      &http.Client{Timeout: DefaultTimeout},
		Pool:        pool,
		Tracker:     NewTracker(),
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		QuotaSource: QuotaSourceAuto,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (r graphQLResponse) messages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			msg = "unknown error"
		}
		messages = append(messages, msg)
	}
	return messages
}

// retryableError marks a per-attempt failure the retry loop may absorb.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Execute runs query, retrying transient failures with exponential backoff.
// Terminal failures are returned as one of the engine error types.
func (e *Engine) Execute(ctx context.Context, query Query) (*Payload, error) {
	if e == nil || e.Pool == nil {
		return nil, &ConfigurationError{Reason: "engine is not configured"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(graphQLRequest{Query: query.Document, Variables: query.Variables})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", query.Name, err)
	}

	logger := e.logger().With(zap.String("query", query.Name))
	attempts := e.maxRetries() + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := e.waitForGate(ctx); err != nil {
			return nil, err
		}

		cred := e.Pool.Current()
		payload, err := e.attempt(ctx, logger, body, cred)
		if err == nil {
			payload.Attempts = attempt + 1
			metrics.RecordRequest(metrics.OutcomeSuccess)
			return payload, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			metrics.RecordRequest(outcomeFor(err))
			return nil, err
		}
		lastErr = retryable.err

		if attempt == attempts-1 {
			break
		}

		delay := e.backoff(attempt)
		metrics.RecordRetry(outcomeFor(lastErr))
		logger.Warn("Retrying request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(lastErr))
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	metrics.RecordRequest(metrics.OutcomeExhausted)
	logger.Error("Retries exhausted", zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, &RetriesExhaustedError{Attempts: attempts, Err: lastErr}
}

func (e *Engine) attempt(ctx context.Context, logger *zap.Logger, body []byte, cred Credential) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(e.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	(&oauth2.Token{AccessToken: cred.Token()}).SetAuthHeader(req)

	resp, err := e.client().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("Transport failure", zap.Stringer("credential", cred), zap.Error(err))
		return nil, &retryableError{err: &NetworkError{Err: err}}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: &NetworkError{Err: err}}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		next := e.Pool.RotateFrom(cred.Slot)
		metrics.RecordRotation("http_429")
		logger.Warn("Rate limited by transport, rotating credential",
			zap.Stringer("credential", cred),
			zap.Stringer("next", next))
		return nil, &retryableError{err: &RateLimitError{Status: resp.StatusCode}}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		logger.Error("Unexpected HTTP status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 512)))
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Error("Failed to decode response", zap.Error(err), zap.String("body", truncate(string(raw), 512)))
		return nil, &DecodeError{Err: err, Body: string(raw)}
	}

	quota := extractQuota(e.QuotaSource, envelope.Data, resp.Header)

	if len(envelope.Errors) > 0 {
		apiErr := &APIError{Messages: envelope.messages()}
		if hasRateLimitMessage(apiErr.Messages) {
			next := e.Pool.RotateFrom(cred.Slot)
			metrics.RecordRotation("api_rate_limit")
			logger.Warn("API reported rate limit, rotating credential",
				zap.Stringer("credential", cred),
				zap.Stringer("next", next),
				zap.Strings("messages", apiErr.Messages))
			return nil, &retryableError{err: &RateLimitError{Status: resp.StatusCode, Err: apiErr}}
		}
		if quota != nil {
			if err := e.applyQuota(ctx, logger, cred, *quota); err != nil {
				return nil, err
			}
		}
		logger.Error("GraphQL API returned errors", zap.Strings("messages", apiErr.Messages))
		return nil, apiErr
	}

	if quota != nil {
		if err := e.applyQuota(ctx, logger, cred, *quota); err != nil {
			return nil, err
		}
	}

	return &Payload{Data: envelope.Data, Quota: quota, Credential: cred.Slot}, nil
}

// applyQuota records the snapshot and carries out the tracker's decision
// for the next call.
func (e *Engine) applyQuota(ctx context.Context, logger *zap.Logger, cred Credential, snapshot core.QuotaSnapshot) error {
	metrics.SetQuotaRemaining(cred.Slot, snapshot.Remaining)
	if e.Observer != nil {
		if err := e.Observer.RecordQuota(ctx, cred.Slot, snapshot); err != nil {
			logger.Warn("Failed to record quota snapshot", zap.Error(err))
		}
	}

	decision := e.tracker().Decide(snapshot, e.Pool.Size())
	fields := []zap.Field{
		zap.Stringer("credential", cred),
		zap.Int("remaining", snapshot.Remaining),
		zap.Int("limit", snapshot.Limit),
		zap.Int("cost", snapshot.Cost),
		zap.Time("reset_at", snapshot.ResetAt),
	}

	switch decision.Action {
	case ActionRotate:
		next := e.Pool.RotateFrom(cred.Slot)
		metrics.RecordRotation(decision.Reason)
		logger.Info("Quota "+decision.Reason+", rotating credential", append(fields, zap.Stringer("next", next))...)
	case ActionPause:
		wait := decision.Until.Sub(e.now())
		metrics.RecordPause(wait)
		logger.Warn("Quota "+decision.Reason+", pausing until reset",
			append(fields, zap.Time("until", decision.Until), zap.Duration("wait", wait))...)
		if err := e.pause(ctx, decision.Until); err != nil {
			return err
		}
		logger.Info("Resuming after quota pause")
	default:
		logger.Debug("Quota ok", fields...)
	}
	return nil
}

// pause blocks every caller of the engine until the given instant.
func (e *Engine) pause(ctx context.Context, until time.Time) error {
	e.gateMu.Lock()
	if until.After(e.pauseUntil) {
		e.pauseUntil = until
	}
	e.gateMu.Unlock()
	return e.waitForGate(ctx)
}

// waitForGate returns once no pause is active. The gate is re-read after
// every sleep since another worker may have extended it meanwhile.
func (e *Engine) waitForGate(ctx context.Context) error {
	for {
		e.gateMu.Lock()
		until := e.pauseUntil
		if until.IsZero() {
			e.gateMu.Unlock()
			return nil
		}
		wait := until.Sub(e.now())
		if wait <= 0 {
			e.pauseUntil = time.Time{}
			e.gateMu.Unlock()
			return nil
		}
		e.gateMu.Unlock()

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (e *Engine) backoff(attempt int) time.Duration {
	base := e.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempt)))
}

func (e *Engine) maxRetries() int {
	if e.MaxRetries < 0 {
		return 0
	}
	return e.MaxRetries
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (e *Engine) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (e *Engine) tracker() *Tracker {
	if e.Tracker != nil {
		return e.Tracker
	}
	return NewTracker()
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func hasRateLimitMessage(messages []string) bool {
	for _, msg := range messages {
		if strings.Contains(strings.ToLower(msg), rateLimitMarker) {
			return true
		}
	}
	return false
}

func outcomeFor(err error) string {
	var (
		networkErr *NetworkError
		limitErr   *RateLimitError
		httpErr    *HTTPError
		apiErr     *APIError
		decodeErr  *DecodeError
	)
	switch {
	case errors.As(err, &limitErr):
		return metrics.OutcomeRateLimited
	case errors.As(err, &networkErr):
		return metrics.OutcomeNetwork
	case errors.As(err, &httpErr):
		return metrics.OutcomeHTTP
	case errors.As(err, &apiErr):
		return metrics.OutcomeAPI
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecode
	default:
		return metrics.OutcomeOther
	}
}
