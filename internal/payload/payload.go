package payload

import (
	json "github.com/goccy/go-json"

	"github.com/beaconhq/beacon/internal/event"
)

// DefaultEngagementTimeMsec is the engagement time substituted when the event
// does not carry one. The collector rejects events without it.
const DefaultEngagementTimeMsec = 100

// Event is the wire form of a single event inside a Payload. session_id and
// engagement_time_msec live inside Params, never at the top level.
type Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Payload is the wire-ready structure posted to the collector. It is built
// fresh per send and never mutated afterwards, so a retry can reuse it as is.
type Payload struct {
	ClientID       string         `json:"client_id"`
	Events         []Event        `json:"events"`
	UserProperties map[string]any `json:"user_properties,omitempty"`
}

// Assembler builds wire payloads from events and identity context.
type Assembler struct {
	// DefaultEngagementTimeMsec substitutes a missing engagement time.
	// Zero means DefaultEngagementTimeMsec.
	DefaultEngagementTimeMsec int64
}

// Assemble builds the payload for a single event. A nil identity falls back
// to the reserved placeholder so assembly never fails; the validators surface
// that as a warning. The event's params map is copied, never mutated.
func (a Assembler) Assemble(ev event.Event, id *event.Identity) Payload {
	clientID := event.PlaceholderID
	sessionID := event.PlaceholderID
	var userProps map[string]any
	if id != nil {
		if id.ClientID != "" {
			clientID = id.ClientID
		}
		if id.SessionID != "" {
			sessionID = id.SessionID
		}
		userProps = id.UserProperties
	}

	engagement := ev.EngagementTimeMsec
	if engagement <= 0 {
		engagement = a.DefaultEngagementTimeMsec
		if engagement <= 0 {
			engagement = DefaultEngagementTimeMsec
		}
	}

	params := make(map[string]any, len(ev.Params)+2)
	for k, v := range ev.Params {
		params[k] = v
	}
	params["engagement_time_msec"] = engagement
	params["session_id"] = sessionID

	return Payload{
		ClientID:       clientID,
		Events:         []Event{{Name: ev.Name, Params: params}},
		UserProperties: userProps,
	}
}

// Marshal serializes the payload into the body sent to the collector.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
