package retry

import (
	"context"
	"time"

	"github.com/beaconhq/beacon/internal/metrics"
	"github.com/beaconhq/beacon/internal/transport"
)

const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the delay before the first retry; each subsequent
	// retry doubles it (1s, 2s, 4s).
	DefaultBaseDelay = time.Second
)

// Scheduler drives bounded exponential-backoff retries around a transport
// attempt. It never touches the delivery queue; queueing on terminal failure
// is the orchestrator's job.
type Scheduler struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep is the delay primitive between attempts. Tests substitute it to
	// fast-forward virtual time instead of waiting on real timers.
	Sleep func(time.Duration)
}

// New returns a scheduler with the default retry policy and a real sleep.
func New() *Scheduler {
	return &Scheduler{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Sleep:      time.Sleep,
	}
}

// Run performs the initial attempt plus up to MaxRetries retries while the
// outcome stays retryable. Client errors are terminal and return immediately.
func (s *Scheduler) Run(ctx context.Context, attempt func(context.Context) transport.Result) transport.Result {
	res := attempt(ctx)
	delay := s.BaseDelay
	for n := 0; n < s.MaxRetries && res.Retryable(); n++ {
		metrics.RecordRetry(Reason(res))
		s.Sleep(delay)
		delay *= 2
		res = attempt(ctx)
	}
	return res
}

// Reason labels a failed attempt for metrics.
func Reason(res transport.Result) string {
	switch {
	case res.Outcome == transport.OutcomeNetworkError:
		return "network"
	case res.StatusCode == 429:
		return "http_429"
	case res.StatusCode >= 500:
		return "http_5xx"
	case res.StatusCode >= 400:
		return "http_4xx"
	default:
		return "other"
	}
}
