package delivery

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/beaconhq/beacon/internal/event"
	"github.com/beaconhq/beacon/internal/metrics"
	"github.com/beaconhq/beacon/internal/tracing"
	"github.com/beaconhq/beacon/internal/transport"
	"github.com/beaconhq/beacon/internal/validate"
)

// ValidateAgainstCollector sends the assembled payload to the debug endpoint
// and classifies the returned diagnostics: messages with a validation code
// become warnings, messages without one become errors. A single attempt is
// made; validation is advisory and not worth a backoff cycle.
func (s *Service) ValidateAgainstCollector(ctx context.Context, ev event.Event, id *event.Identity) validate.Result {
	ctx, span := tracing.StartSpan(ctx, "delivery.validate",
		attribute.String("event_name", ev.Name),
	)
	defer span.End()

	p := s.assembler.Assemble(ev, id)
	body, err := p.Marshal()
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return validate.FromTransportFailure(p, transport.Result{Outcome: transport.OutcomeClientError, Err: err})
	}

	tr := s.transport.Attempt(ctx, body, transport.Debug)
	if tr.Outcome != transport.OutcomeSuccess {
		tracing.SetSpanError(ctx, tr.Err)
		return validate.FromTransportFailure(p, tr)
	}
	res := validate.FromCollectorMessages(p, tr.Messages)
	span.SetAttributes(
		attribute.Bool("valid", res.Valid),
		attribute.Int("errors", len(res.Errors)),
		attribute.Int("warnings", len(res.Warnings)),
	)
	return res
}

// ValidateInBackground is the fire-and-forget counterpart of
// ValidateAgainstCollector. It never blocks the caller and is never awaited
// by the send path, so a slow collector cannot stall delivery. The outcome
// is emitted as a structured log line with elapsed time and a remediation
// suggestion for each finding.
func (s *Service) ValidateInBackground(ctx context.Context, ev event.Event, id *event.Identity) {
	// The goroutine outlives the call, so it must not die with the caller's
	// context. WithoutCancel keeps the trace correlation and drops the
	// cancellation.
	ctx = context.WithoutCancel(ctx)
	go func() {
		start := time.Now()
		res := s.ValidateAgainstCollector(ctx, ev, id)
		elapsed := time.Since(start)

		entry := s.logger.Plain().WithEventName(ev.Name).
			WithField("elapsed_ms", elapsed.Milliseconds())

		switch {
		case !res.Valid:
			metrics.RecordValidation("error")
			entry.WithField("errors", issueSummaries(res.Errors)).
				WithField("warnings", issueSummaries(res.Warnings)).
				Error("collector validation failed")
		case len(res.Warnings) > 0:
			metrics.RecordValidation("warning")
			entry.WithField("warnings", issueSummaries(res.Warnings)).
				Warn("collector validation passed with warnings")
		default:
			metrics.RecordValidation("success")
			entry.Info("collector validation passed")
		}

		if s.validationHook != nil {
			s.validationHook(res)
		}
	}()
}

// BatchValidate validates each event against the debug endpoint, one round
// trip per event, and logs an aggregate pass/fail count.
func (s *Service) BatchValidate(ctx context.Context, events []event.Event, id *event.Identity) []validate.Result {
	results := make([]validate.Result, 0, len(events))
	passed := 0
	for _, ev := range events {
		res := s.ValidateAgainstCollector(ctx, ev, id)
		if res.Valid {
			metrics.RecordValidation("success")
			passed++
		} else {
			metrics.RecordValidation("error")
		}
		results = append(results, res)
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"total":  len(events),
		"passed": passed,
		"failed": len(events) - passed,
	}).Info("batch validation finished")
	return results
}

// issueSummaries renders findings for log output, pairing each with its
// remediation suggestion.
func issueSummaries(issues []validate.Issue) []map[string]string {
	out := make([]map[string]string, 0, len(issues))
	for _, i := range issues {
		m := map[string]string{
			"type":       i.Type,
			"message":    i.Message,
			"suggestion": validate.Remediation(i.Type),
		}
		if i.Field != "" {
			m["field"] = i.Field
		}
		out = append(out, m)
	}
	return out
}
