package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/beaconhq/beacon/internal/logging"
)

// DefaultInterval is how often the monitor probes the collector.
const DefaultInterval = 30 * time.Second

// Monitor probes the collector base URL and reports online/offline
// transitions, for hosts that have no connectivity signal of their own. Any
// HTTP response counts as reachable; only transport-level failures mean
// offline.
type Monitor struct {
	url        string
	interval   time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

// New returns a monitor probing the given collector base URL.
func New(baseURL string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		url:        baseURL,
		interval:   interval,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logging.New("beacon-connectivity"),
	}
}

// Check performs one probe and reports whether the collector is reachable.
func (m *Monitor) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Watch probes on an interval until the context is canceled, invoking
// onChange on every online/offline transition. The first probe result is
// always reported.
func (m *Monitor) Watch(ctx context.Context, onChange func(online bool)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	first := true
	last := false
	for {
		online := m.Check(ctx)
		if first || online != last {
			m.logger.Plain().WithField("online", online).Info("connectivity change")
			onChange(online)
			first = false
			last = online
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
