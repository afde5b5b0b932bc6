package tracker

import (
	"math/rand"
	"time"
)

// RetryPolicy describes how transient tracker failures are retried. The
// zero value disables retries; use DefaultRetryPolicy for the documented
// defaults. Policies are immutable once handed to a client.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// BackoffBase is the delay before the first retry; each further retry
	// doubles it, with full jitter applied.
	BackoffBase time.Duration
	// BackoffCap bounds a single sleep regardless of attempt count.
	BackoffCap time.Duration
	// RetryableStatus is the set of HTTP status codes worth retrying.
	RetryableStatus map[int]bool
}

// DefaultRetryPolicy mirrors the tracker's documented guidance: three
// retries with exponential backoff on throttling and gateway failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  8 * time.Second,
		RetryableStatus: map[int]bool{
			429: true,
			502: true,
			503: true,
			504: true,
		},
	}
}

func (p RetryPolicy) retryable(status int) bool {
	return p.RetryableStatus[status]
}

// backoff returns the sleep before retry number attempt (0-based), with
// full jitter so synchronized callers fan out instead of stampeding.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BackoffBase <= 0 {
		return 0
	}
	d := p.BackoffBase << uint(attempt)
	if p.BackoffCap > 0 && d > p.BackoffCap {
		d = p.BackoffCap
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
