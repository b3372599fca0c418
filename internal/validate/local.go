package validate

import (
	"fmt"

	"github.com/beaconhq/beacon/internal/event"
	"github.com/beaconhq/beacon/internal/payload"
	"github.com/beaconhq/beacon/internal/schema"
)

// Structural limits the collector enforces. Exceeding them is survivable
// (the collector truncates or drops), so they surface as warnings.
const (
	MaxEventNameLen = 40
	MaxParamCount   = 25
	MaxParamKeyLen  = 40
	MaxPayloadBytes = 8 * 1024
)

// Issue types produced by the local validator.
const (
	ErrMissingEventName       = "missing_event_name"
	ErrMissingParams          = "missing_params"
	ErrMissingRequiredParam   = "missing_required_param"
	WarnEventNameLength       = "event_name_length"
	WarnTooManyParameters     = "too_many_parameters"
	WarnParamNameLength       = "param_name_length"
	WarnPlaceholderClientID   = "placeholder_client_id"
	WarnPlaceholderSessionID  = "placeholder_session_id"
	WarnMissingEngagementTime = "missing_engagement_time"
	WarnPayloadSize           = "payload_size_warning"
	WarnUnknownEventName      = "unknown_event_name"
)

// Issue is a single validation finding.
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// Result is the outcome of one validation pass. Valid is false iff Errors is
// non-empty; warnings never affect it.
type Result struct {
	Valid    bool            `json:"valid"`
	Errors   []Issue         `json:"errors"`
	Warnings []Issue         `json:"warnings"`
	Payload  payload.Payload `json:"payload"`
}

func (r *Result) addError(i Issue)   { r.Errors = append(r.Errors, i) }
func (r *Result) addWarning(i Issue) { r.Warnings = append(r.Warnings, i) }

// Local runs the synchronous structural checks. It performs no network
// access; the payload embedded in the result is the one a send would post.
type Local struct {
	Assembler payload.Assembler
	// Registry enables stricter per-event-name checks when non-nil.
	Registry *schema.Registry
}

// Validate checks one event against the structural rules. Each check is
// independent; all applicable findings are reported.
func (v Local) Validate(ev event.Event, id *event.Identity) Result {
	res := Result{}

	if ev.Name == "" {
		res.addError(Issue{
			Type:    ErrMissingEventName,
			Message: "event name is required",
			Field:   "name",
		})
	}
	if ev.Params == nil {
		res.addError(Issue{
			Type:    ErrMissingParams,
			Message: "params map is required (may be empty, never absent)",
			Field:   "params",
		})
	}

	if len(ev.Name) > MaxEventNameLen {
		res.addWarning(Issue{
			Type:    WarnEventNameLength,
			Message: fmt.Sprintf("event name exceeds %d characters", MaxEventNameLen),
			Field:   "name",
			Value:   ev.Name,
		})
	}
	if len(ev.Params) > MaxParamCount {
		res.addWarning(Issue{
			Type:    WarnTooManyParameters,
			Message: fmt.Sprintf("event carries %d parameters, limit is %d", len(ev.Params), MaxParamCount),
			Field:   "params",
			Value:   len(ev.Params),
		})
	}
	for k := range ev.Params {
		if len(k) > MaxParamKeyLen {
			res.addWarning(Issue{
				Type:    WarnParamNameLength,
				Message: fmt.Sprintf("parameter name exceeds %d characters", MaxParamKeyLen),
				Field:   "params." + k,
				Value:   k,
			})
		}
	}

	if id == nil || id.ClientID == "" || id.ClientID == event.PlaceholderID {
		res.addWarning(Issue{
			Type:    WarnPlaceholderClientID,
			Message: "client id missing, placeholder will be sent",
			Field:   "client_id",
		})
	}
	if id == nil || id.SessionID == "" || id.SessionID == event.PlaceholderID {
		res.addWarning(Issue{
			Type:    WarnPlaceholderSessionID,
			Message: "session id missing, placeholder will be sent",
			Field:   "session_id",
		})
	}
	if ev.EngagementTimeMsec <= 0 {
		res.addWarning(Issue{
			Type:    WarnMissingEngagementTime,
			Message: "engagement_time_msec missing, default will be substituted",
			Field:   "engagement_time_msec",
		})
	}

	if v.Registry != nil && ev.Name != "" {
		if rule, known := v.Registry.Lookup(ev.Name); !known {
			res.addWarning(Issue{
				Type:    WarnUnknownEventName,
				Message: "event name not present in the schema registry",
				Field:   "name",
				Value:   ev.Name,
			})
		} else {
			for _, p := range rule.RequiredParams {
				if _, ok := ev.Params[p]; !ok {
					res.addError(Issue{
						Type:    ErrMissingRequiredParam,
						Message: fmt.Sprintf("event %q requires parameter %q", ev.Name, p),
						Field:   "params." + p,
					})
				}
			}
		}
	}

	res.Payload = v.Assembler.Assemble(ev, id)
	if b, err := res.Payload.Marshal(); err == nil && len(b) > MaxPayloadBytes {
		res.addWarning(Issue{
			Type:    WarnPayloadSize,
			Message: fmt.Sprintf("serialized payload is %d bytes, limit is %d", len(b), MaxPayloadBytes),
			Field:   "payload",
			Value:   len(b),
		})
	}

	res.Valid = len(res.Errors) == 0
	return res
}
