package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/campusops/devtrack/internal/apperr"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
		BackoffCap:      5 * time.Millisecond,
		RetryableStatus: map[int]bool{429: true, 502: true, 503: true, 504: true},
	}
}

func newTestClient(t *testing.T, server *httptest.Server, invalidator CacheInvalidator) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:           server.URL,
		Token:             "secret-token",
		Timeout:           2 * time.Second,
		Retry:             testPolicy(),
		RequestsPerSecond: 1000,
		Burst:             1000,
	}, invalidator, nil, zerolog.Nop())
	require.NoError(t, err)
	return client
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, assetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, assetID)
	return nil
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		require.Equal(t, "token secret-token", r.Header.Get("Authorization"))
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"asset_id":"42","tag":"W12-0042","owner_ref":"U7","custom_fields":{"serial":"SN1"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	record, err := client.Get(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "42", record.AssetID)
	require.Equal(t, "W12-0042", record.Tag)
	require.NotNil(t, record.OwnerRef)
	require.Equal(t, "U7", *record.OwnerRef)
	require.Equal(t, "SN1", record.CustomFields["serial"])
	require.Equal(t, 3, calls)
}

func TestGetNotFoundFailsImmediately(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	_, err := client.Get(context.Background(), "missing")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
	require.Equal(t, 1, calls, "4xx other than 429 must not be retried")
}

func TestGetRateLimitedAfterRetryBudget(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	_, err := client.Get(context.Background(), "1")
	require.True(t, apperr.IsKind(err, apperr.KindRateLimited))
	require.Equal(t, 4, calls, "initial attempt plus three retries")
}

func TestGetMalformedPayloadIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag":"W12-0042"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	_, err := client.Get(context.Background(), "1")
	require.True(t, apperr.IsKind(err, apperr.KindProtocol))
}

func TestGetDeadlineSurfacesAsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := New(Config{
		BaseURL:           server.URL,
		Token:             "secret-token",
		Timeout:           50 * time.Millisecond,
		Retry:             testPolicy(),
		RequestsPerSecond: 1000,
	}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "1")
	require.True(t, apperr.IsKind(err, apperr.KindTimeout))
}

func TestUpdateOwnerInvalidatesCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	invalidator := &recordingInvalidator{}
	client := newTestClient(t, server, invalidator)

	require.NoError(t, client.UpdateOwner(context.Background(), "42", nil))
	require.Equal(t, []string{"42"}, invalidator.ids)
}

func TestUpdateOwnerFailureSkipsInvalidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	invalidator := &recordingInvalidator{}
	client := newTestClient(t, server, invalidator)

	owner := "U9"
	err := client.UpdateOwner(context.Background(), "42", &owner)
	require.Error(t, err)
	require.Empty(t, invalidator.ids)
}

func TestCreateAssetReturnsAssignedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"asset_id":"105"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	id, err := client.CreateAsset(context.Background(), "W12-0105", map[string]string{"serial": "SN9"})
	require.NoError(t, err)
	require.Equal(t, "105", id)
}

func TestFindByTagZeroMatchesIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "W12-9999", r.URL.Query().Get("tag"))
		_, _ = w.Write([]byte(`{"assets":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	_, err := client.FindByTag(context.Background(), "W12-9999")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLimiterBoundsBurst(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		_, _ = w.Write([]byte(`{"asset_id":"1","tag":"T"}`))
	}))
	defer server.Close()

	client, err := New(Config{
		BaseURL:           server.URL,
		Token:             "secret-token",
		Timeout:           time.Second,
		Retry:             testPolicy(),
		RequestsPerSecond: 20,
		Burst:             1,
	}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "1")
		require.NoError(t, err)
	}
	// Burst of one at 20 rps means the second and third calls wait.
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	require.Equal(t, 3, calls)
}
