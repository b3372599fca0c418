package validate

import (
	"github.com/beaconhq/beacon/internal/payload"
	"github.com/beaconhq/beacon/internal/transport"
)

// Issue types for collector-side findings.
const (
	ErrCollectorStructural  = "collector_structural_error"
	ErrCollectorUnreachable = "collector_unreachable"
	ErrCollectorRejected    = "collector_rejected"
)

// FromCollectorMessages classifies debug-endpoint diagnostics into a Result.
// A message carrying a validation code describes a format or value problem
// and becomes a warning typed by that code; a message without one describes a
// structural problem (a required field entirely absent) and becomes an error.
func FromCollectorMessages(p payload.Payload, msgs []transport.ValidationMessage) Result {
	res := Result{Payload: p}
	for _, m := range msgs {
		if m.ValidationCode != "" {
			res.addWarning(Issue{
				Type:    m.ValidationCode,
				Message: m.Description,
				Field:   m.FieldPath,
			})
			continue
		}
		res.addError(Issue{
			Type:    ErrCollectorStructural,
			Message: m.Description,
			Field:   m.FieldPath,
		})
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// FromTransportFailure builds a failed Result for a debug attempt that never
// produced diagnostics.
func FromTransportFailure(p payload.Payload, tr transport.Result) Result {
	issue := Issue{
		Type:    ErrCollectorUnreachable,
		Message: "debug endpoint unreachable",
	}
	if tr.Err != nil {
		issue.Message = tr.Err.Error()
	}
	if tr.Outcome == transport.OutcomeClientError {
		issue.Type = ErrCollectorRejected
		issue.Message = "debug endpoint rejected the request"
		issue.Value = tr.StatusCode
	}
	return Result{Valid: false, Errors: []Issue{issue}, Payload: p}
}
