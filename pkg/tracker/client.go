package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/campusops/devtrack/internal/apperr"
)

// Config contains everything needed to talk to the tracker's REST API.
type Config struct {
	BaseURL string
	Token   string
	// Timeout bounds a whole call including retries. Defaults to 30s.
	Timeout time.Duration
	Retry   RetryPolicy
	// RequestsPerSecond throttles outgoing calls below the tracker's
	// documented ceiling. Defaults to 5 rps with a burst of 5.
	RequestsPerSecond float64
	Burst             int
}

// Client is a typed HTTP client for the tracker. It injects the auth
// header, reuses connections, enforces per-call deadlines, retries
// transient failures with jittered exponential backoff, and keeps its
// request rate under a token bucket.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	timeout     time.Duration
	retry       RetryPolicy
	limiter     *rate.Limiter
	invalidator CacheInvalidator
	metrics     Metrics
	logger      zerolog.Logger
}

// New constructs a tracker client. invalidator and metrics may be nil.
func New(cfg Config, invalidator CacheInvalidator, metrics Metrics, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tracker base url must be provided")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("tracker token must be provided")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.RetryableStatus == nil {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		timeout:     cfg.Timeout,
		retry:       cfg.Retry,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger.With().Str("component", "tracker_client").Logger(),
	}, nil
}

// Get fetches one asset by tracker-assigned ID.
func (c *Client) Get(ctx context.Context, assetID string) (AssetRecord, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/asset/"+url.PathEscape(assetID), nil)
	if err != nil {
		return AssetRecord{}, err
	}
	if status != http.StatusOK {
		return AssetRecord{}, c.statusError(status, body, "asset "+assetID)
	}

	var record AssetRecord
	if err := decodeValidated(assetSchema, body, &record); err != nil {
		c.logger.Warn().Str("asset_id", assetID).Str("body", snippet(body)).Msg("malformed asset payload")
		return AssetRecord{}, err
	}
	return record, nil
}

// FindByTag resolves an asset by its human-readable tag via the search
// endpoint. Exactly zero matches is a not-found error.
func (c *Client) FindByTag(ctx context.Context, tag string) (AssetRecord, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/asset?tag="+url.QueryEscape(tag), nil)
	if err != nil {
		return AssetRecord{}, err
	}
	if status != http.StatusOK {
		return AssetRecord{}, c.statusError(status, body, "tag "+tag)
	}

	var result struct {
		Assets []AssetRecord `json:"assets"`
	}
	if err := decodeValidated(searchSchema, body, &result); err != nil {
		return AssetRecord{}, err
	}
	if len(result.Assets) == 0 {
		return AssetRecord{}, apperr.Newf(apperr.KindNotFound, "no asset with tag %s", tag)
	}
	return result.Assets[0], nil
}

// UpdateOwner sets or clears (nil) the asset's owner. The cached entry is
// invalidated before success is reported.
func (c *Client) UpdateOwner(ctx context.Context, assetID string, ownerRef *string) error {
	payload, err := json.Marshal(map[string]interface{}{"owner_ref": ownerRef})
	if err != nil {
		return fmt.Errorf("encode owner update: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPut, "/asset/"+url.PathEscape(assetID), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return c.statusError(status, body, "asset "+assetID)
	}

	c.dropFromCache(ctx, assetID)
	return nil
}

// CreateAsset registers a new asset under the given tag and returns the
// tracker-assigned ID.
func (c *Client) CreateAsset(ctx context.Context, tag string, fields map[string]string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"tag":           tag,
		"custom_fields": fields,
	})
	if err != nil {
		return "", fmt.Errorf("encode asset create: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/asset", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", c.statusError(status, body, "tag "+tag)
	}

	var created struct {
		AssetID string `json:"asset_id"`
	}
	if err := decodeValidated(createdSchema, body, &created); err != nil {
		return "", err
	}

	c.dropFromCache(ctx, created.AssetID)
	return created.AssetID, nil
}

func (c *Client) dropFromCache(ctx context.Context, assetID string) {
	if c.invalidator == nil {
		return
	}
	if err := c.invalidator.Invalidate(ctx, assetID); err != nil {
		c.logger.Warn().Err(err).Str("asset_id", assetID).Msg("cache invalidation failed")
	}
}

// do runs one logical call: throttle, send, retry transient failures.
// The returned status is the final attempt's; body is fully read.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	route := routeLabel(path)
	var lastStatus int
	var lastBody []byte

	for attempt := 0; ; attempt++ {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, c.deadlineError(err, method, path)
		}
		if waited := time.Since(waitStart); waited > time.Millisecond {
			c.metrics.ObserveThrottleWait(waited.Seconds())
		}

		body, status, err := c.send(ctx, method, path, payload)
		c.metrics.ObserveRequest(method, route, status, time.Since(waitStart).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, c.deadlineError(ctx.Err(), method, path)
			}
			if attempt >= c.retry.MaxRetries {
				return nil, 0, fmt.Errorf("tracker %s %s: %w", method, path, err)
			}
		} else {
			if !c.retry.retryable(status) || attempt >= c.retry.MaxRetries {
				return body, status, nil
			}
			lastStatus, lastBody = status, body
		}

		c.metrics.ObserveRetry(method, route)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Int("attempt", attempt+1).
			Msg("retrying tracker call")

		select {
		case <-time.After(c.retry.backoff(attempt)):
		case <-ctx.Done():
			if lastStatus != 0 {
				return lastBody, lastStatus, nil
			}
			return nil, 0, c.deadlineError(ctx.Err(), method, path)
		}
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) statusError(status int, body []byte, subject string) error {
	switch status {
	case http.StatusNotFound:
		return apperr.Newf(apperr.KindNotFound, "tracker has no %s", subject)
	case http.StatusTooManyRequests:
		return apperr.Newf(apperr.KindRateLimited, "tracker throttled %s after retries", subject)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("tracker unavailable (%d) for %s after retries", status, subject)
	default:
		return fmt.Errorf("tracker rejected %s with status %d: %s", subject, status, snippet(body))
	}
}

func (c *Client) deadlineError(err error, method, path string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, fmt.Sprintf("tracker %s %s deadline exceeded", method, path), err)
	}
	return fmt.Errorf("tracker %s %s: %w", method, path, err)
}

// routeLabel strips identifiers so metrics stay low-cardinality.
func routeLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i] + "?..."
	}
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return "/" + parts[1] + "/{id}"
	}
	return path
}
