package tracker

import "context"

// AssetRecord is the tracker's view of one device. AssetID is assigned by
// the tracker and immutable; Tag is unique within its prefix namespace.
type AssetRecord struct {
	AssetID      string            `json:"asset_id"`
	Tag          string            `json:"tag"`
	OwnerRef     *string           `json:"owner_ref"`
	CustomFields map[string]string `json:"custom_fields"`
}

// CacheInvalidator drops a cached asset entry after a successful mutation.
// The client calls it before reporting success so readers never see the
// pre-mutation record served from cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, assetID string) error
}

// Metrics receives instrumentation callbacks from the client. Implementations
// must be safe for concurrent use.
type Metrics interface {
	ObserveRequest(method, route string, status int, seconds float64)
	ObserveRetry(method, route string)
	ObserveThrottleWait(seconds float64)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string, string, int, float64) {}
func (nopMetrics) ObserveRetry(string, string)                 {}
func (nopMetrics) ObserveThrottleWait(float64)                 {}
