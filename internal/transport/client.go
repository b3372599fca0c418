package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/logging"
	"github.com/beaconhq/beacon/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Variant selects which collector endpoint an attempt targets.
type Variant string

const (
	// Production accepts events for processing.
	Production Variant = "production"
	// Debug returns validation diagnostics instead of processing the event.
	Debug Variant = "debug"
)

// Outcome classifies a single delivery attempt.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"       // 2xx
	OutcomeClientError  Outcome = "client_error"  // 4xx and unresolvable 1xx/3xx, terminal
	OutcomeServerError  Outcome = "server_error"  // 5xx, retryable
	OutcomeNetworkError Outcome = "network_error" // transport-level failure, retryable
)

// ValidationMessage is one diagnostic returned by the debug endpoint. A
// message without a validation code signals a structural problem.
type ValidationMessage struct {
	ValidationCode string `json:"validation_code,omitempty"`
	Description    string `json:"description"`
	FieldPath      string `json:"field_path,omitempty"`
}

// Result is the classified outcome of one attempt.
type Result struct {
	Outcome    Outcome
	StatusCode int
	// Messages is populated only for successful debug-endpoint attempts.
	Messages []ValidationMessage
	Err      error
}

// Retryable reports whether another attempt could succeed.
func (r Result) Retryable() bool {
	return r.Outcome == OutcomeServerError || r.Outcome == OutcomeNetworkError
}

type debugResponse struct {
	ValidationMessages []ValidationMessage `json:"validationMessages"`
}

// Client performs single HTTP delivery attempts against the collector.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	productionURL string
	debugURL      string
	measurementID string
	apiSecret     string
	logger        *logging.Logger
}

// NewClient builds a transport client from the collector configuration.
func NewClient(cfg config.Config) *Client {
	timeout := cfg.Collector.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       cfg.Collector.BaseURL,
		productionURL: cfg.Collector.BaseURL + cfg.Collector.ProductionPath,
		debugURL:      cfg.Collector.BaseURL + cfg.Collector.DebugPath,
		measurementID: cfg.Collector.MeasurementID,
		apiSecret:     cfg.Collector.APISecret,
		logger:        logging.New("beacon-transport"),
	}
}

// endpoint returns the full collector URL for the variant, credentials in the
// query string.
func (c *Client) endpoint(v Variant) string {
	base := c.productionURL
	if v == Debug {
		base = c.debugURL
	}
	q := url.Values{}
	q.Set("measurement_id", c.measurementID)
	q.Set("api_secret", c.apiSecret)
	return base + "?" + q.Encode()
}

// Attempt issues exactly one POST of the serialized payload and classifies
// the result. It never retries; that is the scheduler's job.
func (c *Client) Attempt(ctx context.Context, body []byte, variant Variant) Result {
	ctx, span := tracing.StartSpan(ctx, "transport.attempt",
		attribute.String("endpoint_variant", string(variant)),
		attribute.Int("body_bytes", len(body)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(variant), bytes.NewReader(body))
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return Result{Outcome: OutcomeNetworkError, Err: err}
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	tracing.InjectHTTP(ctx, req.Header)
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		c.logger.WithContext(ctx).WithEndpoint(string(variant)).WithError(err).Warn("collector unreachable")
		return Result{Outcome: OutcomeNetworkError, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res := Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode}
		if variant == Debug {
			res.Messages = parseValidationMessages(resp.Body)
		}
		return res
	case resp.StatusCode >= 500:
		return Result{Outcome: OutcomeServerError, StatusCode: resp.StatusCode}
	default:
		// 4xx, plus 1xx/3xx leftovers the HTTP client did not resolve (an
		// unfollowable redirect, say). Retrying cannot change any of them.
		return Result{Outcome: OutcomeClientError, StatusCode: resp.StatusCode}
	}
}

// parseValidationMessages decodes the debug endpoint response body. A
// malformed or empty body means "no messages", not failure.
func parseValidationMessages(r io.Reader) []ValidationMessage {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	var dr debugResponse
	if err := json.Unmarshal(b, &dr); err != nil {
		return nil
	}
	return dr.ValidationMessages
}
