package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/config"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		Collector: config.Collector{
			BaseURL:        baseURL,
			ProductionPath: "/mp/collect",
			DebugPath:      "/debug/mp/collect",
			MeasurementID:  "G-TEST",
			APISecret:      "secret",
			Timeout:        2 * time.Second,
		},
	}
}

func TestAttemptClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantOutcome Outcome
		retryable   bool
	}{
		{"200 is success", http.StatusOK, OutcomeSuccess, false},
		{"204 is success", http.StatusNoContent, OutcomeSuccess, false},
		{"400 is terminal client error", http.StatusBadRequest, OutcomeClientError, false},
		{"404 is terminal client error", http.StatusNotFound, OutcomeClientError, false},
		{"304 is terminal, not retried", http.StatusNotModified, OutcomeClientError, false},
		{"300 is terminal, not retried", http.StatusMultipleChoices, OutcomeClientError, false},
		{"500 is retryable server error", http.StatusInternalServerError, OutcomeServerError, true},
		{"503 is retryable server error", http.StatusServiceUnavailable, OutcomeServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL))
			res := c.Attempt(context.Background(), []byte(`{}`), Production)

			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.wantOutcome)
			}
			if res.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.status)
			}
			if res.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", res.Retryable(), tt.retryable)
			}
		})
	}
}

func TestAttemptNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refused connection

	c := NewClient(testConfig(srv.URL))
	res := c.Attempt(context.Background(), []byte(`{}`), Production)

	if res.Outcome != OutcomeNetworkError {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeNetworkError)
	}
	if res.Err == nil {
		t.Error("Err = nil, want transport error")
	}
	if !res.Retryable() {
		t.Error("network errors must be retryable")
	}
}

func TestAttemptRequestShape(t *testing.T) {
	var gotPath, gotQuery, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	body := []byte(`{"client_id":"c1"}`)
	res := c.Attempt(context.Background(), body, Production)

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("Outcome = %q, want success", res.Outcome)
	}
	if gotPath != "/mp/collect" {
		t.Errorf("path = %q, want /mp/collect", gotPath)
	}
	if gotQuery != "api_secret=secret&measurement_id=G-TEST" {
		t.Errorf("query = %q, want credentials in query string", gotQuery)
	}
	if gotContentType != "text/plain;charset=UTF-8" {
		t.Errorf("content type = %q, want text/plain;charset=UTF-8", gotContentType)
	}
	if gotBody != string(body) {
		t.Errorf("body = %q, want %q", gotBody, string(body))
	}
}

func TestAttemptDebugVariant(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantMsgs int
	}{
		{
			name:     "debug endpoint returns parsed messages",
			body:     `{"validationMessages":[{"validation_code":"VALUE_INVALID","description":"bad","field_path":"f"}]}`,
			wantMsgs: 1,
		},
		{
			name:     "empty message list",
			body:     `{"validationMessages":[]}`,
			wantMsgs: 0,
		},
		{
			name:     "malformed body means no messages, not failure",
			body:     `not json at all`,
			wantMsgs: 0,
		},
		{
			name:     "empty body means no messages",
			body:     ``,
			wantMsgs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL))
			res := c.Attempt(context.Background(), []byte(`{}`), Debug)

			if gotPath != "/debug/mp/collect" {
				t.Errorf("path = %q, want /debug/mp/collect", gotPath)
			}
			if res.Outcome != OutcomeSuccess {
				t.Errorf("Outcome = %q, want success", res.Outcome)
			}
			if len(res.Messages) != tt.wantMsgs {
				t.Errorf("len(Messages) = %d, want %d", len(res.Messages), tt.wantMsgs)
			}
		})
	}
}

func TestProductionVariantIgnoresResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"validationMessages":[{"description":"x"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	res := c.Attempt(context.Background(), []byte(`{}`), Production)

	if len(res.Messages) != 0 {
		t.Errorf("production attempts must not parse validation messages, got %v", res.Messages)
	}
}
