package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beaconhq/beacon/internal/transport"
	"github.com/beaconhq/beacon/internal/validate"
)

// collector simulates the remote analytics collector: a production endpoint
// that accepts payloads and a debug endpoint that returns validation
// diagnostics. FAIL_FIRST_N makes the production endpoint flaky so retry and
// queueing paths can be exercised end to end.
type collector struct {
	mu            sync.Mutex
	failFirstN    int
	reqCount      int
	responseDelay time.Duration

	requestsTotal *prometheus.CounterVec
}

func newCollector(failFirstN int, responseDelay time.Duration) *collector {
	return &collector{
		failFirstN:    failFirstN,
		responseDelay: responseDelay,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fake_collector_requests_total",
				Help: "Total requests received by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
	}
}

func main() {
	failFirstN := 0
	if v := os.Getenv("FAIL_FIRST_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			failFirstN = n
		}
	}
	delay := time.Duration(0)
	if v := os.Getenv("RESPONSE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			delay = time.Duration(n) * time.Millisecond
		}
	}

	c := newCollector(failFirstN, delay)

	reg := prometheus.NewRegistry()
	reg.MustRegister(c.requestsTotal)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("/mp/collect", c.handleCollect)
	mux.HandleFunc("/debug/mp/collect", c.handleDebug)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := ":8084"
	if v := os.Getenv("FAKE_COLLECTOR_PORT"); v != "" {
		addr = v
	}
	log.Printf("fake-collector listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// handleCollect is the production endpoint: 204 on success, flaky 500s for
// the first FAIL_FIRST_N requests.
func (c *collector) handleCollect(w http.ResponseWriter, r *http.Request) {
	c.sleep()
	b, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	c.mu.Lock()
	c.reqCount++
	failing := c.reqCount <= c.failFirstN
	count := c.reqCount
	c.mu.Unlock()

	if failing {
		c.requestsTotal.WithLabelValues("production", "500").Inc()
		log.Printf("FAILING (%d/%d) %s body=%s", count, c.failFirstN, r.URL.Path, truncate(string(b), 160))
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	c.requestsTotal.WithLabelValues("production", "204").Inc()
	log.Printf("fake-collector OK %s body=%q", r.URL.Path, truncate(string(b), 160))
	w.WriteHeader(http.StatusNoContent)
}

// handleDebug is the debug endpoint: always 200, with diagnostics computed
// from the payload. An unparseable body yields a structural message without
// a validation code.
func (c *collector) handleDebug(w http.ResponseWriter, r *http.Request) {
	c.sleep()
	b, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	msgs := diagnose(b)
	c.requestsTotal.WithLabelValues("debug", "200").Inc()
	log.Printf("fake-collector DEBUG %s messages=%d", r.URL.Path, len(msgs))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"validationMessages": msgs})
}

// diagnose mirrors the real collector's debug checks closely enough to
// exercise the pipeline's classification logic.
func diagnose(body []byte) []transport.ValidationMessage {
	var p struct {
		ClientID string `json:"client_id"`
		Events   []struct {
			Name   string         `json:"name"`
			Params map[string]any `json:"params"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		// No code: structural problem.
		return []transport.ValidationMessage{{
			Description: "Payload is not valid JSON.",
		}}
	}

	msgs := []transport.ValidationMessage{}
	if p.ClientID == "" {
		msgs = append(msgs, transport.ValidationMessage{
			Description: "Measurement requires a client_id.",
			FieldPath:   "client_id",
		})
	}
	if len(p.Events) == 0 {
		msgs = append(msgs, transport.ValidationMessage{
			Description: "Measurement requires at least one event.",
			FieldPath:   "events",
		})
	}
	for i, ev := range p.Events {
		path := fmt.Sprintf("events[%d]", i)
		if ev.Name == "" {
			msgs = append(msgs, transport.ValidationMessage{
				ValidationCode: "VALUE_REQUIRED",
				Description:    "Event name is required.",
				FieldPath:      path + ".name",
			})
		}
		if len(ev.Name) > validate.MaxEventNameLen {
			msgs = append(msgs, transport.ValidationMessage{
				ValidationCode: "VALUE_OUT_OF_BOUNDS",
				Description:    fmt.Sprintf("Event name exceeds %d characters.", validate.MaxEventNameLen),
				FieldPath:      path + ".name",
			})
		}
		if len(ev.Params) > validate.MaxParamCount {
			msgs = append(msgs, transport.ValidationMessage{
				ValidationCode: "EXCEEDED_MAX_ENTITY_QUANTITY",
				Description:    fmt.Sprintf("Event exceeds %d parameters.", validate.MaxParamCount),
				FieldPath:      path + ".params",
			})
		}
	}
	return msgs
}

func (c *collector) sleep() {
	if c.responseDelay > 0 {
		time.Sleep(c.responseDelay)
	}
}

// truncate truncates a string to the specified length and adds an ellipsis if truncated
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
